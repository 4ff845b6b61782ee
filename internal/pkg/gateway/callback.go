package gateway

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// CallbackEvent is the normalized shape of one asynchronous payment result
// delivered by the gateway.
type CallbackEvent struct {
	GatewayReference     string
	Success              bool
	ResultCode           int
	ResultDescription    string
	ExternalReceipt      string
	Amount               int64
	Phone                string
	TransactionTimestamp *time.Time
}

// ParseCallback decodes a gateway callback payload. Callbacks arrive from
// an external process; anything without a usable reference is rejected here
// so the settlement engine only ever sees addressable events.
func ParseCallback(payload []byte) (*CallbackEvent, error) {
	var raw struct {
		GatewayReference     string `json:"gateway_reference"`
		CheckoutRequestID    string `json:"CheckoutRequestID"`
		ResultCode           int    `json:"result_code"`
		ResultDescription    string `json:"result_description"`
		ExternalReceipt      string `json:"external_receipt"`
		Amount               int64  `json:"amount"`
		Phone                string `json:"phone"`
		TransactionTimestamp string `json:"transaction_timestamp"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}

	ref := strings.TrimSpace(raw.GatewayReference)
	if ref == "" {
		// Some gateway firmware versions send the checkout id field instead.
		ref = strings.TrimSpace(raw.CheckoutRequestID)
	}
	if ref == "" {
		return nil, errors.New("callback payload missing gateway reference")
	}

	ev := &CallbackEvent{
		GatewayReference:  ref,
		Success:           raw.ResultCode == 0,
		ResultCode:        raw.ResultCode,
		ResultDescription: strings.TrimSpace(raw.ResultDescription),
		ExternalReceipt:   strings.TrimSpace(raw.ExternalReceipt),
		Amount:            raw.Amount,
		Phone:             strings.TrimSpace(raw.Phone),
	}
	if ts := strings.TrimSpace(raw.TransactionTimestamp); ts != "" {
		for _, layout := range []string{time.RFC3339, "20060102150405"} {
			if parsed, err := time.Parse(layout, ts); err == nil {
				ev.TransactionTimestamp = &parsed
				break
			}
		}
	}
	return ev, nil
}
