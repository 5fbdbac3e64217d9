package main

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yourorg/capture-bridge/internal/action"
	"github.com/yourorg/capture-bridge/internal/adapter"
	"github.com/yourorg/capture-bridge/internal/card"
	"github.com/yourorg/capture-bridge/internal/details"
	"github.com/yourorg/capture-bridge/internal/monitor"
	"github.com/yourorg/capture-bridge/internal/orchestrator"
	"github.com/yourorg/capture-bridge/internal/payment"
	"github.com/yourorg/capture-bridge/internal/policy"
	"github.com/yourorg/capture-bridge/internal/reporting"
	"github.com/yourorg/capture-bridge/internal/storage"
	"github.com/yourorg/capture-bridge/internal/token"
)

// server holds everything the HTTP handlers share.
type server struct {
	orc      *orchestrator.Orchestrator
	store    storage.Store
	tokens   *token.GenericFactory
	vault    *cardVault
	journal  *reporting.Journal
	reporter *reporting.RetrospectiveReporter
	logger   zerolog.Logger

	createPayment *monitor.ContractMonitor
	capture       *monitor.ContractMonitor
}

type createPaymentRequest struct {
	payment.Payment
	Card *card.Input `json:"card,omitempty"`
}

type captureRequest struct {
	Card     *card.Input `json:"card,omitempty"`
	AfterURL string      `json:"afterUrl,omitempty"`
}

type paymentResponse struct {
	ID      string           `json:"id"`
	Status  string           `json:"status"`
	Details *details.Details `json:"details"`
}

func (s *server) routes(tracing bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if tracing {
		r.Use(otelgin.Middleware("capture-bridge"))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/payments", s.createPayment.Middleware(false), s.handleCreatePayment)
	r.POST("/payments/:id/capture", s.capture.Middleware(true), s.handleCapture)
	r.GET("/payments/:id/status", s.handleStatus)
	r.GET("/capture/:token", s.handleCaptureReturn)
	r.POST("/capture/:token", s.handleCaptureReturn)
	r.GET("/notify/:token", s.handleNotify)
	r.POST("/notify/:token", s.handleNotify)
	r.GET("/reports/retrospective", s.handleRetrospective)
	return r
}

func (s *server) handleCreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	p := req.Payment
	if req.Card != nil {
		cc, err := req.Card.ToCard()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		p.CreditCard = cc
	}

	convert := &action.Convert{Payment: &p}
	if _, err := s.orc.Execute(c.Request.Context(), convert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec := &storage.Record{ID: uuid.NewString(), Gateway: s.orc.GatewayName(), Details: convert.Result}
	if err := s.store.Create(c.Request.Context(), rec); err != nil {
		s.logger.Error().Err(err).Msg("failed to store payment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store payment"})
		return
	}
	if p.CreditCard != nil && !p.CreditCard.HasToken() {
		s.vault.Put(rec.ID, p.CreditCard)
	}
	s.logger.Info().Str("payment_id", rec.ID).Str("currency", p.CurrencyCode).Msg("payment created")
	c.JSON(http.StatusCreated, s.view(c, rec))
}

func (s *server) handleCapture(c *gin.Context) {
	ctx := c.Request.Context()
	rec, ok := s.load(c, c.Param("id"))
	if !ok {
		return
	}

	var body captureRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
	}

	req := &action.Capture{
		FirstModel:   rec,
		Details:      rec.Details,
		ClientIP:     c.ClientIP(),
		CardProvider: s.vault.Provider(rec.ID),
	}
	if body.Card != nil {
		cc, err := body.Card.ToCard()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.CardProvider = card.Static{Card: cc}
	}
	if s.orc.Offsite() {
		tok, err := s.tokens.CreateCaptureToken(ctx, s.orc.GatewayName(), rec.ID, body.AfterURL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		req.Token = tok
	}

	before := s.status(c, rec)
	reply, err := s.orc.Execute(ctx, req)
	if !s.save(c, rec, before, err) {
		return
	}
	if err == nil && !reply.Interrupts() && req.Token != nil {
		s.tokens.Invalidate(ctx, req.Token.Hash)
	}
	s.respond(c, rec, reply)
}

// handleCaptureReturn is where the payer lands after an offsite page.
func (s *server) handleCaptureReturn(c *gin.Context) {
	ctx := c.Request.Context()
	tok, err := s.tokens.Resolve(ctx, c.Param("token"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	rec, ok := s.load(c, tok.Identity)
	if !ok {
		return
	}

	req := &action.Capture{FirstModel: rec, Details: rec.Details, Token: tok, ClientIP: c.ClientIP()}
	before := s.status(c, rec)
	reply, err := s.orc.Execute(ctx, req)
	if !s.save(c, rec, before, err) {
		return
	}
	if reply.Interrupts() {
		s.respond(c, rec, reply)
		return
	}
	s.tokens.Invalidate(ctx, tok.Hash)
	if tok.AfterURL != "" {
		c.Redirect(http.StatusFound, tok.AfterURL)
		return
	}
	c.JSON(http.StatusOK, s.view(c, rec))
}

func (s *server) handleNotify(c *gin.Context) {
	ctx := c.Request.Context()
	tok, err := s.tokens.Resolve(ctx, c.Param("token"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	rec, ok := s.load(c, tok.Identity)
	if !ok {
		return
	}
	before := s.status(c, rec)
	reply, err := s.orc.Execute(ctx, &action.Notify{Details: rec.Details, Token: tok})
	if !s.save(c, rec, before, err) {
		return
	}
	s.respond(c, rec, reply)
}

func (s *server) handleStatus(c *gin.Context) {
	rec, ok := s.load(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": rec.ID, "status": s.status(c, rec)})
}

func (s *server) handleRetrospective(c *gin.Context) {
	report, err := s.reporter.GenerateRetrospective(s.journal.Entries())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *server) load(c *gin.Context, id string) (*storage.Record, bool) {
	rec, err := s.store.Get(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return nil, false
	}
	if err != nil {
		s.logger.Error().Err(err).Str("payment_id", id).Msg("failed to load payment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment"})
		return nil, false
	}
	return rec, true
}

// save persists rec after an action ran, journals the outcome and answers
// errors. before is the status prior to the action. It reports whether the handler should go on.
func (s *server) save(c *gin.Context, rec *storage.Record, before string, runErr error) bool {
	if errors.Is(runErr, policy.ErrDenied) {
		s.record(c, rec, before, runErr)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": runErr.Error()})
		return false
	}
	if err := s.store.Update(c.Request.Context(), rec); err != nil {
		s.logger.Error().Err(err).Str("payment_id", rec.ID).Msg("failed to update payment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update payment"})
		return false
	}
	s.record(c, rec, before, runErr)
	switch {
	case runErr == nil:
		return true
	case errors.Is(runErr, action.ErrMissingCard):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": runErr.Error()})
	default:
		s.logger.Error().Err(runErr).Str("payment_id", rec.ID).Msg("gateway call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": runErr.Error()})
	}
	return false
}

// record adds a journal entry when the status moved away from before, or
// when the action failed.
func (s *server) record(c *gin.Context, rec *storage.Record, before string, runErr error) {
	entry := reporting.LogEntry{
		PaymentID: rec.ID,
		Gateway:   rec.Gateway,
		Currency:  rec.Details.String(details.KeyCurrency),
	}
	if amount, err := adapter.AmountField(rec.Details.Map(), details.KeyAmount); err == nil {
		entry.Amount = amount
	}
	switch {
	case errors.Is(runErr, policy.ErrDenied):
		entry.Status, entry.ErrorCode = reporting.StatusError, "policy_denied"
	case errors.Is(runErr, action.ErrMissingCard):
		entry.Status, entry.ErrorCode = reporting.StatusError, "missing_card"
	case runErr != nil:
		entry.Status, entry.ErrorCode = reporting.StatusError, "gateway_error"
	default:
		entry.Status = s.status(c, rec)
		if entry.Status == before {
			return
		}
		if entry.Status == action.StatusFailed {
			entry.ErrorCode = rec.Details.String(details.KeyStatusCode)
		}
	}
	s.journal.Record(entry)
}

func (s *server) status(c *gin.Context, rec *storage.Record) string {
	q := &action.GetStatus{Details: rec.Details}
	if _, err := s.orc.Execute(c.Request.Context(), q); err != nil {
		return action.StatusUnknown
	}
	return q.Status
}

func (s *server) view(c *gin.Context, rec *storage.Record) paymentResponse {
	return paymentResponse{ID: rec.ID, Status: s.status(c, rec), Details: rec.Details}
}

// respond answers with reply, or with the record when reply does not
// interrupt.
func (s *server) respond(c *gin.Context, rec *storage.Record, reply action.Reply) {
	switch reply.Kind {
	case action.ReplyRedirect:
		c.Redirect(http.StatusFound, reply.URL)
	case action.ReplyPostRedirect:
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := postRedirectPage.Execute(c.Writer, reply); err != nil {
			s.logger.Error().Err(err).Msg("failed to render redirect form")
		}
	case action.ReplyHTTP:
		c.Status(reply.StatusCode)
	default:
		c.JSON(http.StatusOK, s.view(c, rec))
	}
}

var postRedirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html>
<head><title>Redirecting...</title></head>
<body onload="document.forms[0].submit();">
<form action="{{.URL}}" method="post">
<p>Redirecting to payment page...</p>
{{range $name, $value := .Fields}}<input type="hidden" name="{{$name}}" value="{{$value}}"/>
{{end}}<input type="submit" value="Continue"/>
</form>
</body>
</html>
`))

// cardVault holds cards submitted with a payment until it is captured.
// Stored records never keep card data.
type cardVault struct {
	mu    sync.Mutex
	cards map[string]card.Card
}

func newCardVault() *cardVault {
	return &cardVault{cards: make(map[string]card.Card)}
}

func (v *cardVault) Put(id string, c *card.Card) {
	v.mu.Lock()
	v.cards[id] = *c
	v.mu.Unlock()
}

// Provider hands out a copy of the card stored for id once, then forgets
// it.
func (v *cardVault) Provider(id string) card.Provider {
	return card.ProviderFunc(func(_ context.Context, _ any, _ *details.Details) (*card.Card, error) {
		v.mu.Lock()
		defer v.mu.Unlock()
		c, ok := v.cards[id]
		if !ok {
			return nil, card.ErrNotSupported
		}
		delete(v.cards, id)
		return &c, nil
	})
}
