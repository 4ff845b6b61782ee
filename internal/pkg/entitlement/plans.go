package entitlement

import "strings"

type Plan string

// Subscription plans, ordered by rank.
const (
	PlanStarter  Plan = "starter"
	PlanStandard Plan = "standard"
	PlanPremium  Plan = "premium"
)

// PlanModules maps each plan to the modules it includes. Every plan set is
// closed under the module requires relation; TestPlanSetsClosed guards that.
func PlanModules(plan Plan) []string {
	switch NormalizePlan(string(plan)) {
	case PlanPremium:
		return []string{
			ModuleAcademics, ModuleExams, ModuleTimetable, ModuleLibrary,
			ModuleTransport, ModuleHostel, ModuleFinance, ModuleInventory,
			ModuleHR, ModulePayroll,
		}
	case PlanStandard:
		return []string{
			ModuleAcademics, ModuleExams, ModuleTimetable, ModuleLibrary,
			ModuleFinance,
		}
	default:
		return []string{ModuleAcademics, ModuleExams}
	}
}

// NormalizePlan maps arbitrary input to a known plan, defaulting to starter.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanStandard):
		return PlanStandard
	case string(PlanPremium):
		return PlanPremium
	default:
		return PlanStarter
	}
}

// ValidPlan reports whether plan names a known subscription plan.
func ValidPlan(plan string) bool {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanStarter), string(PlanStandard), string(PlanPremium):
		return true
	default:
		return false
	}
}

// PlanRank orders plans for upgrade comparisons.
func PlanRank(plan Plan) int {
	switch NormalizePlan(string(plan)) {
	case PlanPremium:
		return 2
	case PlanStandard:
		return 1
	default:
		return 0
	}
}
