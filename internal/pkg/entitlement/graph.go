package entitlement

import (
	"fmt"
	"sort"
	"strings"
)

// Feature module identifiers known to the platform.
const (
	ModuleAcademics = "academics"
	ModuleExams     = "exams"
	ModuleTimetable = "timetable"
	ModuleLibrary   = "library"
	ModuleTransport = "transport"
	ModuleHostel    = "hostel"
	ModuleFinance   = "finance"
	ModuleInventory = "inventory"
	ModuleHR        = "hr"
	ModulePayroll   = "payroll"
)

// MissingDependenciesError reports an activation blocked by disabled
// prerequisite modules.
type MissingDependenciesError struct {
	ModuleID string
	Missing  []string
}

func (e *MissingDependenciesError) Error() string {
	return fmt.Sprintf("module %q requires disabled modules: %s", e.ModuleID, strings.Join(e.Missing, ", "))
}

// BlockingDependentsError reports a deactivation blocked by enabled modules
// that depend on the one being disabled.
type BlockingDependentsError struct {
	ModuleID   string
	Dependents []string
}

func (e *BlockingDependentsError) Error() string {
	return fmt.Sprintf("module %q is required by enabled modules: %s", e.ModuleID, strings.Join(e.Dependents, ", "))
}

// UnknownModuleError reports a module id outside the catalog.
type UnknownModuleError struct {
	ModuleID string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("unknown module %q", e.ModuleID)
}

// Graph is the static dependency map between feature modules. It is loaded
// once at startup and read-only afterwards; the reverse dependents map is
// generated mechanically from the forward map so the two cannot drift.
type Graph struct {
	requires   map[string][]string
	dependents map[string][]string
}

// NewGraph builds a graph from a forward requires map. Every module named
// only as a dependency is added to the catalog with no requirements.
func NewGraph(requires map[string][]string) *Graph {
	g := &Graph{
		requires:   make(map[string][]string, len(requires)),
		dependents: make(map[string][]string),
	}
	for module, deps := range requires {
		g.requires[module] = append([]string(nil), deps...)
		for _, dep := range deps {
			if _, ok := requires[dep]; !ok {
				if _, seen := g.requires[dep]; !seen {
					g.requires[dep] = nil
				}
			}
			g.dependents[dep] = append(g.dependents[dep], module)
		}
	}
	for _, deps := range g.dependents {
		sort.Strings(deps)
	}
	return g
}

// DefaultGraph returns the platform's module dependency configuration.
func DefaultGraph() *Graph {
	return NewGraph(map[string][]string{
		ModuleAcademics: nil,
		ModuleExams:     {ModuleAcademics},
		ModuleTimetable: {ModuleAcademics},
		ModuleLibrary:   {ModuleAcademics},
		ModuleTransport: {ModuleAcademics},
		ModuleHostel:    {ModuleAcademics},
		ModuleFinance:   nil,
		ModuleInventory: nil,
		ModuleHR:        nil,
		ModulePayroll:   {ModuleHR},
	})
}

// Has reports whether the module is part of the catalog.
func (g *Graph) Has(moduleID string) bool {
	_, ok := g.requires[moduleID]
	return ok
}

// Modules returns the sorted module catalog.
func (g *Graph) Modules() []string {
	out := make([]string, 0, len(g.requires))
	for m := range g.requires {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Requires returns the direct prerequisites of a module.
func (g *Graph) Requires(moduleID string) []string {
	return append([]string(nil), g.requires[moduleID]...)
}

// CanActivate reports whether moduleID may be enabled given the tenant's
// currently enabled set. Returns *MissingDependenciesError when blocked.
func (g *Graph) CanActivate(moduleID string, enabled map[string]bool) error {
	if !g.Has(moduleID) {
		return &UnknownModuleError{ModuleID: moduleID}
	}
	var missing []string
	for _, dep := range g.requires[moduleID] {
		if !enabled[dep] {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingDependenciesError{ModuleID: moduleID, Missing: missing}
	}
	return nil
}

// CanDeactivate reports whether moduleID may be disabled given the tenant's
// currently enabled set. Returns *BlockingDependentsError when blocked.
func (g *Graph) CanDeactivate(moduleID string, enabled map[string]bool) error {
	if !g.Has(moduleID) {
		return &UnknownModuleError{ModuleID: moduleID}
	}
	var blocking []string
	for _, dependent := range g.dependents[moduleID] {
		if dependent != moduleID && enabled[dependent] {
			blocking = append(blocking, dependent)
		}
	}
	if len(blocking) > 0 {
		return &BlockingDependentsError{ModuleID: moduleID, Dependents: blocking}
	}
	return nil
}

// ActivationOrder sorts modules so that every module appears after all of
// its prerequisites. Modules outside the input set are ignored; the input
// set is assumed closed under the requires relation.
func (g *Graph) ActivationOrder(moduleIDs []string) []string {
	in := make(map[string]bool, len(moduleIDs))
	for _, m := range moduleIDs {
		in[m] = true
	}
	visited := make(map[string]bool, len(moduleIDs))
	var out []string
	var visit func(string)
	visit = func(m string) {
		if visited[m] || !in[m] {
			return
		}
		visited[m] = true
		for _, dep := range g.requires[m] {
			visit(dep)
		}
		out = append(out, m)
	}
	sorted := append([]string(nil), moduleIDs...)
	sort.Strings(sorted)
	for _, m := range sorted {
		visit(m)
	}
	return out
}
