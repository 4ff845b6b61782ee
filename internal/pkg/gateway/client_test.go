package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(tokenURL, chargeURL string) *Client {
	return &Client{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://zira.example.com/api/v1/payments/callback",
		TokenURL:       tokenURL,
		ChargeURL:      chargeURL,
		HTTPClient:     &http.Client{Timeout: 5 * time.Second},
	}
}

func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":"3599"}`))
	}))
}

func TestInitiateChargeSuccess(t *testing.T) {
	tokenSrv := newTokenServer(t)
	defer tokenSrv.Close()

	chargeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"MerchantRequestID": "mr-1",
			"CheckoutRequestID": "ws_CO_123",
			"ResponseCode": "0",
			"ResponseDescription": "Success. Request accepted for processing"
		}`))
	}))
	defer chargeSrv.Close()

	c := newTestClient(tokenSrv.URL, chargeSrv.URL)
	resp, err := c.InitiateCharge(context.Background(), ChargeRequest{
		Phone:            "254700000001",
		Amount:           50000,
		AccountReference: "INV-42",
		Description:      "Library module",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_123" {
		t.Fatalf("CheckoutRequestID = %q, want ws_CO_123", resp.CheckoutRequestID)
	}
}

func TestInitiateChargeRejectedByGateway(t *testing.T) {
	tokenSrv := newTokenServer(t)
	defer tokenSrv.Close()

	chargeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ResponseCode":"1","ResponseDescription":"Invalid phone number"}`))
	}))
	defer chargeSrv.Close()

	c := newTestClient(tokenSrv.URL, chargeSrv.URL)
	_, err := c.InitiateCharge(context.Background(), ChargeRequest{Phone: "0700", Amount: 100})

	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if gwErr.Code != "1" {
		t.Fatalf("code = %q, want 1", gwErr.Code)
	}
}

func TestInitiateChargeAmbiguousAcceptanceFailsClosed(t *testing.T) {
	tokenSrv := newTokenServer(t)
	defer tokenSrv.Close()

	// 2xx and ResponseCode 0 but no checkout reference.
	chargeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ResponseCode":"0","ResponseDescription":"Accepted"}`))
	}))
	defer chargeSrv.Close()

	c := newTestClient(tokenSrv.URL, chargeSrv.URL)
	_, err := c.InitiateCharge(context.Background(), ChargeRequest{Phone: "254700000001", Amount: 100})

	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if gwErr.Code != "missing_checkout_request_id" {
		t.Fatalf("code = %q, want missing_checkout_request_id", gwErr.Code)
	}
}

func TestInitiateChargeGatewayDown(t *testing.T) {
	tokenSrv := newTokenServer(t)
	tokenURL := tokenSrv.URL
	tokenSrv.Close()

	c := newTestClient(tokenURL, tokenURL)
	_, err := c.InitiateCharge(context.Background(), ChargeRequest{Phone: "254700000001", Amount: 100})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestInitiateChargeValidation(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0", "http://127.0.0.1:0")

	var gwErr *Error
	if _, err := c.InitiateCharge(context.Background(), ChargeRequest{Phone: "", Amount: 100}); !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error for empty phone, got %v", err)
	}
	if _, err := c.InitiateCharge(context.Background(), ChargeRequest{Phone: "254700000001", Amount: 0}); !errors.As(err, &gwErr) {
		t.Fatalf("expected *Error for non-positive amount, got %v", err)
	}
}
