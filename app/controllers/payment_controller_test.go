package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swairua/zira-edu-connect-sub010/app/models"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/entitlement"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/gateway"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/settlement"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/tenantcontext"
)

// stubSettlement implements SettlementService with canned results.
type stubSettlement struct {
	intent          *models.PaymentIntent
	createErr       error
	initiateRef     string
	initiateErr     error
	callbackOutcome *settlement.CallbackOutcome
	callbackErr     error
	callbackEvents  []*gateway.CallbackEvent
	activateErr     error
	deactivateErr   error
	entitlements    []models.EntitlementState
}

func (s *stubSettlement) CreateIntent(_ context.Context, in settlement.CreateIntentInput) (*models.PaymentIntent, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.intent, nil
}

func (s *stubSettlement) Initiate(_ context.Context, intentID string) (string, error) {
	if s.initiateErr != nil {
		return "", s.initiateErr
	}
	return s.initiateRef, nil
}

func (s *stubSettlement) HandleCallback(_ context.Context, ev *gateway.CallbackEvent) (*settlement.CallbackOutcome, error) {
	s.callbackEvents = append(s.callbackEvents, ev)
	if s.callbackErr != nil {
		return nil, s.callbackErr
	}
	return s.callbackOutcome, nil
}

func (s *stubSettlement) GetIntent(intentID string) (*models.PaymentIntent, error) {
	if s.intent == nil || s.intent.ID != intentID {
		return nil, settlement.ErrIntentNotFound
	}
	return s.intent, nil
}

func (s *stubSettlement) ActivateModule(_ context.Context, tenantID uint, moduleID, actor string) error {
	return s.activateErr
}

func (s *stubSettlement) DeactivateModule(_ context.Context, tenantID uint, moduleID, actor string) error {
	return s.deactivateErr
}

func (s *stubSettlement) TenantEntitlements(tenantID uint) ([]models.EntitlementState, error) {
	return s.entitlements, nil
}

func (s *stubSettlement) Graph() *entitlement.Graph {
	return entitlement.DefaultGraph()
}

func newTestApp(t *testing.T, stub *stubSettlement, tenantID uint) *fiber.App {
	t.Helper()
	InitializeSettlementController(stub)
	t.Cleanup(func() { InitializeSettlementController(nil) })

	app := fiber.New()
	withTenant := func(c *fiber.Ctx) error {
		c.Locals(tenantcontext.KeyTenantContext, tenantcontext.TenantContext{
			TenantID: tenantID,
			Plan:     "starter",
			Actor:    "tenant:1:api",
		})
		return c.Next()
	}
	app.Post("/api/v1/payments", withTenant, HandleCreatePayment)
	app.Get("/api/v1/payments/:id", withTenant, HandleGetPayment)
	app.Post("/api/v1/payments/:id/initiate", withTenant, HandleInitiatePayment)
	app.Post("/api/v1/payments/callback", HandleGatewayCallback)
	app.Get("/api/v1/modules", withTenant, HandleListModules)
	app.Post("/api/v1/modules/:module_id/activate", withTenant, HandleActivateModule)
	app.Post("/api/v1/modules/:module_id/deactivate", withTenant, HandleDeactivateModule)
	return app
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHandleCreatePaymentSuccess(t *testing.T) {
	stub := &stubSettlement{
		intent: &models.PaymentIntent{
			ID:        "intent-1",
			TenantID:  1,
			InvoiceID: "invoice-1",
			Status:    models.IntentStatusCreated,
		},
		initiateRef: "ws_CO_777",
	}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/payments", fiber.Map{
		"kind":             "addon_purchase",
		"amount":           2500,
		"currency":         "KES",
		"target_module_id": "library",
		"phone":            "254700000001",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "intent-1", body["payment_intent_id"])
	assert.Equal(t, "invoice-1", body["invoice_id"])
	assert.Equal(t, models.IntentStatusGatewayPending, body["status"])
	assert.Equal(t, "ws_CO_777", body["gateway_reference"])
}

func TestHandleCreatePaymentValidationError(t *testing.T) {
	stub := &stubSettlement{
		createErr: &settlement.ValidationError{Field: "target_module_id", Message: "required for addon purchases"},
	}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/payments", fiber.Map{
		"kind": "addon_purchase",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "invalid_request", body["error"])
	assert.Equal(t, "target_module_id", body["field"])
}

func TestHandleCreatePaymentGatewayDown(t *testing.T) {
	stub := &stubSettlement{
		intent: &models.PaymentIntent{
			ID:        "intent-2",
			TenantID:  1,
			InvoiceID: "invoice-2",
			Status:    models.IntentStatusCreated,
		},
		initiateErr: settlement.ErrGatewayUnavailable,
	}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/payments", fiber.Map{
		"kind":   "renewal",
		"amount": 4900,
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "gateway_unavailable", body["error"])
	assert.Equal(t, "intent-2", body["payment_intent_id"])
	assert.Equal(t, models.IntentStatusCreated, body["status"])
	assert.Equal(t, true, body["retriable"])
}

func TestHandleGetPaymentTenantScoping(t *testing.T) {
	stub := &stubSettlement{
		intent: &models.PaymentIntent{
			ID:       "intent-3",
			TenantID: 99,
			Status:   models.IntentStatusSettled,
		},
	}
	// Authenticated as tenant 1; the intent belongs to tenant 99.
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/payments/intent-3", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleGetPaymentOwnIntent(t *testing.T) {
	stub := &stubSettlement{
		intent: &models.PaymentIntent{
			ID:       "intent-4",
			TenantID: 1,
			Status:   models.IntentStatusGatewayPending,
		},
	}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/payments/intent-4", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, models.IntentStatusGatewayPending, body["status"])
}

func TestHandleGatewayCallbackAck(t *testing.T) {
	stub := &stubSettlement{
		callbackOutcome: &settlement.CallbackOutcome{IntentID: "intent-5", Applied: true},
	}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/payments/callback", fiber.Map{
		"gateway_reference": "ws_CO_55",
		"result_code":       0,
		"external_receipt":  "RCP55",
	}), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(0), body["ResultCode"])
	require.Len(t, stub.callbackEvents, 1)
	assert.Equal(t, "ws_CO_55", stub.callbackEvents[0].GatewayReference)
	assert.True(t, stub.callbackEvents[0].Success)
}

func TestHandleGatewayCallbackMalformed(t *testing.T) {
	stub := &stubSettlement{}
	app := newTestApp(t, stub, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, stub.callbackEvents)
}

func TestHandleGatewayCallbackTransientFailure(t *testing.T) {
	stub := &stubSettlement{callbackErr: assert.AnError}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/payments/callback", fiber.Map{
		"gateway_reference": "ws_CO_56",
		"result_code":       0,
	}), -1)
	require.NoError(t, err)
	// Non-2xx so the gateway redelivers.
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestHandleActivateModuleConflict(t *testing.T) {
	stub := &stubSettlement{
		activateErr: &entitlement.MissingDependenciesError{
			ModuleID: "payroll",
			Missing:  []string{"hr"},
		},
	}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/modules/payroll/activate", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "missing_dependencies", body["error"])
	assert.Equal(t, []any{"hr"}, body["missing_dependencies"])
}

func TestHandleDeactivateModuleConflict(t *testing.T) {
	stub := &stubSettlement{
		deactivateErr: &entitlement.BlockingDependentsError{
			ModuleID:   "hr",
			Dependents: []string{"payroll"},
		},
	}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/modules/hr/deactivate", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "blocking_dependents", body["error"])
	assert.Equal(t, []any{"payroll"}, body["blocking_dependents"])
}

func TestHandleActivateModuleUnknown(t *testing.T) {
	stub := &stubSettlement{
		activateErr: &entitlement.UnknownModuleError{ModuleID: "astrology"},
	}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/modules/astrology/activate", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTenantHandlersRejectMissingContext(t *testing.T) {
	InitializeSettlementController(&stubSettlement{})
	t.Cleanup(func() { InitializeSettlementController(nil) })

	// No tenant middleware on these mounts.
	app := fiber.New()
	app.Post("/payments", HandleCreatePayment)
	app.Get("/payments/:id", HandleGetPayment)
	app.Get("/modules", HandleListModules)
	app.Post("/modules/:module_id/activate", HandleActivateModule)

	for _, req := range []*http.Request{
		jsonRequest(t, http.MethodPost, "/payments", fiber.Map{"kind": "renewal", "amount": 100}),
		httptest.NewRequest(http.MethodGet, "/payments/intent-1", nil),
		httptest.NewRequest(http.MethodGet, "/modules", nil),
		httptest.NewRequest(http.MethodPost, "/modules/library/activate", nil),
	} {
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, req.URL.Path)
	}
}

func TestHandleListModules(t *testing.T) {
	stub := &stubSettlement{
		entitlements: []models.EntitlementState{
			{TenantID: 1, ModuleID: entitlement.ModuleAcademics, IsEnabled: true, ActivationType: models.ActivationTypePlanIncluded},
		},
	}
	app := newTestApp(t, stub, 1)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/modules", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	modules, ok := body["modules"].([]any)
	require.True(t, ok)
	assert.Len(t, modules, len(entitlement.DefaultGraph().Modules()))

	var academics map[string]any
	for _, m := range modules {
		entry := m.(map[string]any)
		if entry["module_id"] == entitlement.ModuleAcademics {
			academics = entry
			break
		}
	}
	require.NotNil(t, academics)
	assert.Equal(t, true, academics["enabled"])
}
