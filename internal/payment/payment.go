// Package payment defines the structured payment object that callers hand to
// the converter before a capture.
package payment

import "github.com/yourorg/capture-bridge/internal/card"

// Payment is the caller-facing payment description. TotalAmount is in minor
// units of CurrencyCode. Details holds free-form extra fields that the
// converter must not overwrite.
type Payment struct {
	Number       string         `json:"number,omitempty"`
	CurrencyCode string         `json:"currency"`
	TotalAmount  int64          `json:"totalAmount"`
	Description  string         `json:"description,omitempty"`
	ClientID     string         `json:"clientId,omitempty"`
	ClientEmail  string         `json:"clientEmail,omitempty"`
	CreditCard   *card.Card     `json:"-"`
	Details      map[string]any `json:"details,omitempty"`
}
