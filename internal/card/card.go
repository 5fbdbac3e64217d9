// Package card models the payment instrument handed to a gateway: either full
// card fields or an opaque reusable token.
package card

import (
	"fmt"
	"strconv"
	"time"
)

// Card holds full card fields or a token. When Token is set it takes
// precedence over the full fields.
type Card struct {
	Number   string
	CVV      string
	Holder   string
	ExpireAt time.Time
	Token    string
}

// HasToken reports whether the card is represented by a reusable token.
func (c *Card) HasToken() bool {
	return c != nil && c.Token != ""
}

// Fields maps the card onto the gateway's card payload shape. The holder
// name goes into firstName; lastName is always empty.
func (c *Card) Fields() map[string]any {
	m := map[string]any{
		"number":      c.Number,
		"cvv":         c.CVV,
		"expiryMonth": "",
		"expiryYear":  "",
		"firstName":   c.Holder,
		"lastName":    "",
	}
	if !c.ExpireAt.IsZero() {
		m["expiryMonth"] = c.ExpireAt.Format("01")
		m["expiryYear"] = c.ExpireAt.Format("06")
	}
	return m
}

// Erase zeroes every sensitive field. The token is kept.
func (c *Card) Erase() {
	if c == nil {
		return
	}
	c.Number = ""
	c.CVV = ""
	c.Holder = ""
	c.ExpireAt = time.Time{}
}

// Masked returns the number with all but the last four digits hidden.
func (c *Card) Masked() string {
	if c == nil || len(c.Number) < 4 {
		return ""
	}
	return "****" + c.Number[len(c.Number)-4:]
}

// Input is the JSON shape clients use to submit a card.
type Input struct {
	Number      string `json:"number"`
	CVV         string `json:"cvv"`
	ExpiryMonth int    `json:"expiryMonth"`
	ExpiryYear  int    `json:"expiryYear"`
	Holder      string `json:"holder"`
	Token       string `json:"token"`
}

// ToCard validates the input and converts it. Two-digit years are taken as
// 20YY.
func (in Input) ToCard() (*Card, error) {
	if in.Token != "" {
		return &Card{Token: in.Token}, nil
	}
	if in.Number == "" {
		return nil, fmt.Errorf("card: number or token is required")
	}
	if _, err := strconv.ParseUint(in.Number, 10, 64); err != nil {
		return nil, fmt.Errorf("card: number must be numeric")
	}
	if in.ExpiryMonth < 1 || in.ExpiryMonth > 12 {
		return nil, fmt.Errorf("card: invalid expiry month %d", in.ExpiryMonth)
	}
	year := in.ExpiryYear
	if year < 100 {
		year += 2000
	}
	return &Card{
		Number:   in.Number,
		CVV:      in.CVV,
		Holder:   in.Holder,
		ExpireAt: time.Date(year, time.Month(in.ExpiryMonth), 1, 0, 0, 0, 0, time.UTC),
	}, nil
}
