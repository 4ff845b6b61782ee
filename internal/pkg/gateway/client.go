package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/cache"
	"github.com/swairua/zira-edu-connect-sub010/internal/pkg/env"
)

const (
	defaultTokenURL  = "https://gateway.example.com/oauth/v1/generate?grant_type=client_credentials"
	defaultChargeURL = "https://gateway.example.com/stkpush/v1/processrequest"

	tokenCacheKey    = "gateway:access_token"
	tokenCacheMargin = 60 * time.Second
)

// ErrUnavailable marks transport-level failures (connection refused,
// deadline exceeded) where the gateway gave no answer at all.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Error is a definitive gateway-side rejection: the gateway answered, and
// the answer was not an acceptance.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway rejected request: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// Client wraps access-token acquisition and the STK-push charge request
// against the external mobile-money gateway. It performs one bounded
// attempt per call; retry policy belongs to the caller.
type Client struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string

	TokenURL  string
	ChargeURL string

	HTTPClient *http.Client
}

// ChargeRequest is the input for one charge initiation.
type ChargeRequest struct {
	Phone            string
	Amount           int64
	Currency         string
	AccountReference string
	Description      string
}

// ChargeResponse carries the gateway's acceptance of a charge initiation.
// CheckoutRequestID is the reference the asynchronous callback will carry.
type ChargeResponse struct {
	MerchantRequestID string
	CheckoutRequestID string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// NewClientFromEnv builds a client from environment configuration.
func NewClientFromEnv() *Client {
	return &Client{
		ConsumerKey:    strings.TrimSpace(env.GetEnv("GATEWAY_CONSUMER_KEY", "")),
		ConsumerSecret: strings.TrimSpace(env.GetEnv("GATEWAY_CONSUMER_SECRET", "")),
		ShortCode:      strings.TrimSpace(env.GetEnv("GATEWAY_SHORTCODE", "")),
		Passkey:        strings.TrimSpace(env.GetEnv("GATEWAY_PASSKEY", "")),
		CallbackURL:    strings.TrimSpace(env.GetEnv("GATEWAY_CALLBACK_URL", "")),
		TokenURL:       strings.TrimSpace(env.GetEnv("GATEWAY_TOKEN_URL", defaultTokenURL)),
		ChargeURL:      strings.TrimSpace(env.GetEnv("GATEWAY_CHARGE_URL", defaultChargeURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// AccessToken returns a bearer token for the gateway API. Tokens are cached
// in redis with an expiry margin so concurrent handler instances share one
// token; cache failures degrade to a direct fetch.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if cached, err := cache.Get(tokenCacheKey); err == nil && cached != "" {
		return cached, nil
	}

	token, ttl, err := c.fetchAccessToken(ctx)
	if err != nil {
		return "", err
	}

	if ttl > tokenCacheMargin {
		if err := cache.Set(tokenCacheKey, token, ttl-tokenCacheMargin); err != nil {
			log.Warnf("[Gateway] token cache write failed: %v", err)
		}
	}
	return token, nil
}

func (c *Client) fetchAccessToken(ctx context.Context) (string, time.Duration, error) {
	if c.ConsumerKey == "" || c.ConsumerSecret == "" {
		return "", 0, errors.New("GATEWAY_CONSUMER_KEY/GATEWAY_CONSUMER_SECRET are not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.TokenURL, nil)
	if err != nil {
		return "", 0, err
	}
	req.SetBasicAuth(c.ConsumerKey, c.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, &Error{StatusCode: resp.StatusCode, Code: "token_request_failed", Message: string(body)}
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", 0, &Error{StatusCode: resp.StatusCode, Code: "malformed_token_response", Message: err.Error()}
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", 0, &Error{StatusCode: resp.StatusCode, Code: "empty_access_token", Message: "token endpoint returned no access_token"}
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(strings.TrimSpace(out.ExpiresIn)); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	return out.AccessToken, ttl, nil
}

// InitiateCharge sends the STK-push-equivalent request. An ambiguous
// acceptance (2xx with missing checkout reference) fails closed.
func (c *Client) InitiateCharge(ctx context.Context, in ChargeRequest) (*ChargeResponse, error) {
	if strings.TrimSpace(in.Phone) == "" {
		return nil, &Error{Code: "invalid_phone", Message: "phone number is required"}
	}
	if in.Amount <= 0 {
		return nil, &Error{Code: "invalid_amount", Message: "amount must be positive"}
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.ShortCode + c.Passkey + timestamp))

	payload := map[string]any{
		"BusinessShortCode": c.ShortCode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            in.Amount,
		"PartyA":            in.Phone,
		"PartyB":            c.ShortCode,
		"PhoneNumber":       in.Phone,
		"CallBackURL":       c.CallbackURL,
		"AccountReference":  in.AccountReference,
		"TransactionDesc":   in.Description,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ChargeURL, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Code: "charge_request_failed", Message: string(body)}
	}

	var out struct {
		MerchantRequestID string `json:"MerchantRequestID"`
		CheckoutRequestID string `json:"CheckoutRequestID"`
		ResponseCode      string `json:"ResponseCode"`
		ResponseDesc      string `json:"ResponseDescription"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Code: "malformed_charge_response", Message: err.Error()}
	}
	if strings.TrimSpace(out.ResponseCode) != "0" {
		return nil, &Error{StatusCode: resp.StatusCode, Code: out.ResponseCode, Message: out.ResponseDesc}
	}
	if strings.TrimSpace(out.CheckoutRequestID) == "" {
		// "Accepted" without a reference cannot be reconciled later.
		return nil, &Error{StatusCode: resp.StatusCode, Code: "missing_checkout_request_id", Message: "gateway accepted charge without a checkout reference"}
	}

	return &ChargeResponse{
		MerchantRequestID: strings.TrimSpace(out.MerchantRequestID),
		CheckoutRequestID: strings.TrimSpace(out.CheckoutRequestID),
	}, nil
}
