package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/swairua/zira-edu-connect-sub010/app/models"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/database"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/entitlement"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/gateway"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/settlement"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/tenantcontext"
)

// SettlementService is the settlement surface the controllers use. The
// production implementation is *settlement.Service.
type SettlementService interface {
	CreateIntent(ctx context.Context, in settlement.CreateIntentInput) (*models.PaymentIntent, error)
	Initiate(ctx context.Context, intentID string) (string, error)
	HandleCallback(ctx context.Context, ev *gateway.CallbackEvent) (*settlement.CallbackOutcome, error)
	GetIntent(intentID string) (*models.PaymentIntent, error)
	ActivateModule(ctx context.Context, tenantID uint, moduleID, actor string) error
	DeactivateModule(ctx context.Context, tenantID uint, moduleID, actor string) error
	TenantEntitlements(tenantID uint) ([]models.EntitlementState, error)
	Graph() *entitlement.Graph
}

// Global settlement service instance
var settlementSvc SettlementService

// InitializeSettlementController wires the controllers to a settlement service
func InitializeSettlementController(svc SettlementService) {
	settlementSvc = svc
}

// GetSettlementService returns the global settlement service instance
func GetSettlementService() SettlementService {
	if settlementSvc == nil {
		settlementSvc = settlement.NewServiceFromDB(database.GetDB())
	}
	return settlementSvc
}

type createPaymentRequest struct {
	Kind           string `json:"kind"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	TargetPlanID   string `json:"target_plan_id"`
	TargetModuleID string `json:"target_module_id"`
	BillingCycle   string `json:"billing_cycle"`
	Phone          string `json:"phone"`
	InvoiceID      string `json:"invoice_id"`
}

// HandleCreatePayment creates a payment intent and initiates the gateway
// charge in one request. A transport failure at the gateway still returns
// the created intent so the client can retry initiation.
func HandleCreatePayment(c *fiber.Ctx) error {
	if !tenantcontext.IsAuthenticated(c) {
		return respondUnauthenticated(c)
	}

	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Malformed JSON body"})
	}

	svc := GetSettlementService()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	intent, err := svc.CreateIntent(ctx, settlement.CreateIntentInput{
		TenantID:       tenantcontext.GetTenantID(c),
		Kind:           strings.TrimSpace(req.Kind),
		Amount:         req.Amount,
		Currency:       strings.TrimSpace(req.Currency),
		TargetPlanID:   strings.TrimSpace(req.TargetPlanID),
		TargetModuleID: strings.TrimSpace(req.TargetModuleID),
		BillingCycle:   strings.TrimSpace(req.BillingCycle),
		Phone:          strings.TrimSpace(req.Phone),
		InvoiceID:      strings.TrimSpace(req.InvoiceID),
		Actor:          tenantcontext.GetActor(c),
	})
	if err != nil {
		var verr *settlement.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "field": verr.Field, "message": verr.Message})
		}
		log.Errorf("[Payments] create intent failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create payment"})
	}

	return respondInitiation(c, svc, ctx, intent, fiber.StatusCreated)
}

// HandleInitiatePayment retries gateway initiation for an intent that is
// still in created state (e.g. after a gateway outage).
func HandleInitiatePayment(c *fiber.Ctx) error {
	if !tenantcontext.IsAuthenticated(c) {
		return respondUnauthenticated(c)
	}
	svc := GetSettlementService()

	intent, err := loadTenantIntent(svc, c.Params("id"), tenantcontext.GetTenantID(c))
	if err != nil {
		return respondIntentLookupError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	return respondInitiation(c, svc, ctx, intent, fiber.StatusOK)
}

func respondInitiation(c *fiber.Ctx, svc SettlementService, ctx context.Context, intent *models.PaymentIntent, okStatus int) error {
	ref, err := svc.Initiate(ctx, intent.ID)
	switch {
	case err == nil:
		return c.Status(okStatus).JSON(fiber.Map{
			"payment_intent_id": intent.ID,
			"invoice_id":        intent.InvoiceID,
			"status":            models.IntentStatusGatewayPending,
			"gateway_reference": ref,
		})
	case errors.Is(err, settlement.ErrGatewayUnavailable):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":             "gateway_unavailable",
			"message":           "Payment gateway is unreachable, retry initiation later",
			"payment_intent_id": intent.ID,
			"invoice_id":        intent.InvoiceID,
			"status":            models.IntentStatusCreated,
			"retriable":         true,
		})
	case errors.Is(err, settlement.ErrGatewayRejected):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":             "gateway_rejected",
			"message":           "Payment gateway rejected the charge",
			"payment_intent_id": intent.ID,
			"status":            models.IntentStatusFailed,
		})
	case errors.Is(err, settlement.ErrInvalidIntentState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "invalid_state", "message": err.Error()})
	default:
		log.Errorf("[Payments] initiation failed for intent %s: %v", intent.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to initiate payment"})
	}
}

// HandleGetPayment returns the current state of one payment intent for
// status polling.
func HandleGetPayment(c *fiber.Ctx) error {
	if !tenantcontext.IsAuthenticated(c) {
		return respondUnauthenticated(c)
	}

	intent, err := loadTenantIntent(GetSettlementService(), c.Params("id"), tenantcontext.GetTenantID(c))
	if err != nil {
		return respondIntentLookupError(c, err)
	}
	return c.JSON(intent)
}

func loadTenantIntent(svc SettlementService, id string, tenantID uint) (*models.PaymentIntent, error) {
	intent, err := svc.GetIntent(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	// Cross-tenant ids are indistinguishable from unknown ones.
	if intent.TenantID != tenantID {
		return nil, settlement.ErrIntentNotFound
	}
	return intent, nil
}

func respondUnauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Tenant authentication required"})
}

func respondIntentLookupError(c *fiber.Ctx, err error) error {
	if errors.Is(err, settlement.ErrIntentNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Payment not found"})
	}
	log.Errorf("[Payments] intent lookup failed: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load payment"})
}

// HandleGatewayCallback ingests the asynchronous payment result from the
// mobile-money gateway. Only transient persistence failures return a
// non-2xx status; duplicates and unknown references are acknowledged so
// the gateway stops redelivering.
func HandleGatewayCallback(c *fiber.Ctx) error {
	ev, err := gateway.ParseCallback(c.BodyRaw())
	if err != nil {
		log.Warnf("[Payments] unparseable callback from %s: %v", c.IP(), err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ResultCode": 1, "ResultDesc": "Rejected"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := GetSettlementService().HandleCallback(ctx, ev)
	if err != nil {
		log.Errorf("[Payments] callback processing failed for %s: %v", ev.GatewayReference, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ResultCode": 1, "ResultDesc": "Retry"})
	}

	resp := fiber.Map{"ResultCode": 0, "ResultDesc": "Accepted"}
	if outcome.Duplicate {
		resp["Duplicate"] = true
	}
	return c.JSON(resp)
}
