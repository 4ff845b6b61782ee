package entitlement

import (
	"errors"
	"reflect"
	"testing"
)

func TestCanActivateMissingDependencies(t *testing.T) {
	g := DefaultGraph()

	tests := []struct {
		module  string
		enabled map[string]bool
		missing []string
	}{
		{module: ModuleAcademics, enabled: map[string]bool{}, missing: nil},
		{module: ModuleLibrary, enabled: map[string]bool{}, missing: []string{ModuleAcademics}},
		{module: ModuleLibrary, enabled: map[string]bool{ModuleAcademics: true}, missing: nil},
		{module: ModulePayroll, enabled: map[string]bool{ModuleAcademics: true}, missing: []string{ModuleHR}},
		{module: ModulePayroll, enabled: map[string]bool{ModuleHR: true}, missing: nil},
	}

	for _, tt := range tests {
		err := g.CanActivate(tt.module, tt.enabled)
		if tt.missing == nil {
			if err != nil {
				t.Fatalf("CanActivate(%q) = %v, want nil", tt.module, err)
			}
			continue
		}
		var missingErr *MissingDependenciesError
		if !errors.As(err, &missingErr) {
			t.Fatalf("CanActivate(%q) = %v, want MissingDependenciesError", tt.module, err)
		}
		if !reflect.DeepEqual(missingErr.Missing, tt.missing) {
			t.Fatalf("CanActivate(%q) missing = %v, want %v", tt.module, missingErr.Missing, tt.missing)
		}
	}
}

func TestCanDeactivateBlockingDependents(t *testing.T) {
	g := DefaultGraph()

	enabled := map[string]bool{
		ModuleAcademics: true,
		ModuleLibrary:   true,
		ModuleFinance:   true,
	}

	err := g.CanDeactivate(ModuleAcademics, enabled)
	var blockingErr *BlockingDependentsError
	if !errors.As(err, &blockingErr) {
		t.Fatalf("CanDeactivate(academics) = %v, want BlockingDependentsError", err)
	}
	if !reflect.DeepEqual(blockingErr.Dependents, []string{ModuleLibrary}) {
		t.Fatalf("blocking dependents = %v, want [library]", blockingErr.Dependents)
	}

	if err := g.CanDeactivate(ModuleLibrary, enabled); err != nil {
		t.Fatalf("CanDeactivate(library) = %v, want nil", err)
	}
	if err := g.CanDeactivate(ModuleFinance, enabled); err != nil {
		t.Fatalf("CanDeactivate(finance) = %v, want nil", err)
	}
}

func TestUnknownModule(t *testing.T) {
	g := DefaultGraph()

	var unknownErr *UnknownModuleError
	if err := g.CanActivate("crystal_ball", nil); !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownModuleError, got %v", err)
	}
	if err := g.CanDeactivate("crystal_ball", nil); !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownModuleError, got %v", err)
	}
}

func TestReverseMapGeneratedFromForwardMap(t *testing.T) {
	// A dependency named only on the right-hand side still joins the catalog
	// and picks up its dependents.
	g := NewGraph(map[string][]string{
		"b": {"a"},
		"c": {"a", "b"},
	})

	if !g.Has("a") {
		t.Fatalf("expected module a in catalog")
	}
	err := g.CanDeactivate("a", map[string]bool{"a": true, "b": true, "c": true})
	var blockingErr *BlockingDependentsError
	if !errors.As(err, &blockingErr) {
		t.Fatalf("expected BlockingDependentsError, got %v", err)
	}
	if !reflect.DeepEqual(blockingErr.Dependents, []string{"b", "c"}) {
		t.Fatalf("dependents = %v, want [b c]", blockingErr.Dependents)
	}
}

func TestActivationOrder(t *testing.T) {
	g := DefaultGraph()

	order := g.ActivationOrder(PlanModules(PlanPremium))
	position := make(map[string]int, len(order))
	for i, m := range order {
		position[m] = i
	}
	for _, m := range order {
		for _, dep := range g.Requires(m) {
			if position[dep] > position[m] {
				t.Fatalf("module %q activated before its dependency %q", m, dep)
			}
		}
	}
	if len(order) != len(PlanModules(PlanPremium)) {
		t.Fatalf("activation order dropped modules: %v", order)
	}
}

func TestInvariantHoldsAfterAcceptedOperations(t *testing.T) {
	// Random-ish walk: apply any sequence of individually accepted
	// activate/deactivate operations and check the invariant after each.
	g := DefaultGraph()
	enabled := map[string]bool{}

	ops := []struct {
		activate bool
		module   string
	}{
		{true, ModuleAcademics},
		{true, ModuleLibrary},
		{true, ModuleHR},
		{true, ModulePayroll},
		{false, ModuleLibrary},
		{true, ModuleTransport},
		{false, ModulePayroll},
		{false, ModuleHR},
		{false, ModuleTransport},
		{false, ModuleAcademics},
	}

	for _, op := range ops {
		var err error
		if op.activate {
			err = g.CanActivate(op.module, enabled)
			if err == nil {
				enabled[op.module] = true
			}
		} else {
			err = g.CanDeactivate(op.module, enabled)
			if err == nil {
				delete(enabled, op.module)
			}
		}
		for m := range enabled {
			for _, dep := range g.Requires(m) {
				if !enabled[dep] {
					t.Fatalf("invariant violated after op %+v: %q enabled without %q", op, m, dep)
				}
			}
		}
	}
}
