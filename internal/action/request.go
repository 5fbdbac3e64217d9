package action

import (
	"github.com/yourorg/capture-bridge/internal/card"
	"github.com/yourorg/capture-bridge/internal/details"
	"github.com/yourorg/capture-bridge/internal/payment"
	"github.com/yourorg/capture-bridge/internal/token"
)

// Capture asks for the payment described by Details to be charged.
type Capture struct {
	// FirstModel is what the capture was requested for. It is handed to the
	// card provider untouched.
	FirstModel any
	Details    *details.Details
	// Token is the capture token when the capture was reached through one.
	// Offsite captures send the payer back to its target URL.
	Token *token.Token
	// ClientIP is the payer's address, used as the clientIp default.
	ClientIP string
	// CardProvider overrides the action's provider for this request.
	CardProvider card.Provider
}

// Notify carries an asynchronous gateway callback for Details.
type Notify struct {
	Details *details.Details
	Token   *token.Token
}

// Convert turns Payment into a details record. Existing, when set, is the
// partial record to fill; Result holds the outcome.
type Convert struct {
	Payment  *payment.Payment
	Existing *details.Details
	Result   *details.Details
}

// GetStatus asks for the human status of Details; the answer is left in
// Status.
type GetStatus struct {
	Details *details.Details
	Status  string
}

// Status values reported by GetStatus.
const (
	StatusNew      = "new"
	StatusPending  = "pending"
	StatusCaptured = "captured"
	StatusFailed   = "failed"
	StatusUnknown  = "unknown"
)
