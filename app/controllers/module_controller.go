package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/entitlement"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/tenantcontext"
)

// HandleListModules returns the module catalog annotated with the tenant's
// activation state and each module's dependencies.
func HandleListModules(c *fiber.Ctx) error {
	if !tenantcontext.IsAuthenticated(c) {
		return respondUnauthenticated(c)
	}
	tenantCtx := tenantcontext.GetTenantContext(c)

	svc := GetSettlementService()
	states, err := svc.TenantEntitlements(tenantCtx.TenantID)
	if err != nil {
		log.Errorf("[Modules] entitlement lookup failed for tenant %d: %v", tenantCtx.TenantID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load modules"})
	}

	byModule := make(map[string]int, len(states))
	for i, st := range states {
		byModule[st.ModuleID] = i
	}

	graph := svc.Graph()
	modules := make([]fiber.Map, 0, len(graph.Modules()))
	for _, id := range graph.Modules() {
		entry := fiber.Map{
			"module_id": id,
			"requires":  graph.Requires(id),
			"enabled":   false,
		}
		if i, ok := byModule[id]; ok {
			st := states[i]
			entry["enabled"] = st.IsEnabled
			if st.IsEnabled {
				entry["activation_type"] = st.ActivationType
				entry["activated_at"] = st.ActivatedAt
				entry["expires_at"] = st.ExpiresAt
			}
		}
		modules = append(modules, entry)
	}

	return c.JSON(fiber.Map{"plan": tenantCtx.Plan, "modules": modules})
}

// HandleActivateModule enables a module for the tenant. Activation with
// disabled prerequisites is rejected with the full missing list.
func HandleActivateModule(c *fiber.Ctx) error {
	if !tenantcontext.IsAuthenticated(c) {
		return respondUnauthenticated(c)
	}
	tenantID := tenantcontext.GetTenantID(c)
	moduleID := strings.TrimSpace(c.Params("module_id"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := GetSettlementService().ActivateModule(ctx, tenantID, moduleID, tenantcontext.GetActor(c))
	if err != nil {
		var unknown *entitlement.UnknownModuleError
		if errors.As(err, &unknown) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown module"})
		}
		var missing *entitlement.MissingDependenciesError
		if errors.As(err, &missing) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":                "missing_dependencies",
				"message":              "Enable the required modules first",
				"module_id":            moduleID,
				"missing_dependencies": missing.Missing,
			})
		}
		log.Errorf("[Modules] activation failed for tenant %d module %s: %v", tenantID, moduleID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to activate module"})
	}

	return c.JSON(fiber.Map{"module_id": moduleID, "enabled": true})
}

// HandleDeactivateModule disables a module unless enabled modules still
// depend on it; rejections carry the full dependent list.
func HandleDeactivateModule(c *fiber.Ctx) error {
	if !tenantcontext.IsAuthenticated(c) {
		return respondUnauthenticated(c)
	}
	tenantID := tenantcontext.GetTenantID(c)
	moduleID := strings.TrimSpace(c.Params("module_id"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := GetSettlementService().DeactivateModule(ctx, tenantID, moduleID, tenantcontext.GetActor(c))
	if err != nil {
		var unknown *entitlement.UnknownModuleError
		if errors.As(err, &unknown) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown module"})
		}
		var blocking *entitlement.BlockingDependentsError
		if errors.As(err, &blocking) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":               "blocking_dependents",
				"message":             "Disable the dependent modules first",
				"module_id":           moduleID,
				"blocking_dependents": blocking.Dependents,
			})
		}
		log.Errorf("[Modules] deactivation failed for tenant %d module %s: %v", tenantID, moduleID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to deactivate module"})
	}

	return c.JSON(fiber.Map{"module_id": moduleID, "enabled": false})
}
