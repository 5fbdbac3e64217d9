// Package factory builds a ready-to-use orchestrator from a flat options map:
// it picks the gateway binding by its "type" option, guards it with the
// circuit breaker and binds the capture, notify, convert and status actions.
package factory

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/yourorg/capture-bridge/internal/action"
	"github.com/yourorg/capture-bridge/internal/adapter"
	"github.com/yourorg/capture-bridge/internal/adapter/dummy"
	"github.com/yourorg/capture-bridge/internal/adapter/hosted"
	"github.com/yourorg/capture-bridge/internal/adapter/stripe"
	"github.com/yourorg/capture-bridge/internal/card"
	"github.com/yourorg/capture-bridge/internal/circuitbreaker"
	"github.com/yourorg/capture-bridge/internal/currency"
	"github.com/yourorg/capture-bridge/internal/orchestrator"
	"github.com/yourorg/capture-bridge/internal/token"
)

var (
	// ErrTypeRequired is returned when the options carry no gateway type.
	ErrTypeRequired = errors.New("the type fields are required")
	// ErrTypeNotSupported is returned for a type nothing is registered for.
	ErrTypeNotSupported = errors.New("gateway type is not supported")
)

// Option keys understood by the bundled constructors.
const (
	OptionType     = "type"
	OptionAPIKey   = "apiKey"
	OptionBaseURL  = "baseUrl"
	OptionEndpoint = "endpoint"
	OptionSecret   = "secret"
)

// DefaultCurrencies is used when Deps.Currencies is nil.
var DefaultCurrencies = map[string]int{"USD": 2, "EUR": 2, "GBP": 2, "CHF": 2, "JPY": 0}

// Deps are the collaborators shared by every orchestrator a Factory creates.
type Deps struct {
	HTTPClient   *http.Client
	Currencies   currency.Resolver
	Tokens       token.Factory
	CardProvider card.Provider
	Breaker      *circuitbreaker.CircuitBreaker
	Guard        orchestrator.CaptureGuard
	Logger       zerolog.Logger
}

// Constructor builds a gateway binding from options.
type Constructor func(options map[string]any, deps Deps) (adapter.Gateway, error)

// Factory creates orchestrators by gateway type.
type Factory struct {
	deps     Deps
	registry map[string]Constructor
}

// New creates a Factory. A nil registry means DefaultRegistry().
func New(deps Deps, registry map[string]Constructor) *Factory {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if deps.Currencies == nil {
		deps.Currencies = currency.NewStatic(DefaultCurrencies)
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Factory{deps: deps, registry: registry}
}

// DefaultRegistry returns the bundled gateway types: Dummy, Stripe and Hosted.
func DefaultRegistry() map[string]Constructor {
	return map[string]Constructor{
		dummy.GatewayName: func(map[string]any, Deps) (adapter.Gateway, error) {
			return dummy.NewDummyAdapter(), nil
		},
		stripe.GatewayName: func(options map[string]any, deps Deps) (adapter.Gateway, error) {
			key := adapter.StringField(options, OptionAPIKey)
			if key == "" {
				return nil, fmt.Errorf("factory: the %s option is required for %s", OptionAPIKey, stripe.GatewayName)
			}
			gw := stripe.NewStripeAdapter(deps.HTTPClient, key, deps.Currencies)
			if base := adapter.StringField(options, OptionBaseURL); base != "" {
				gw = gw.WithBaseURL(base)
			}
			return gw, nil
		},
		hosted.GatewayName: func(options map[string]any, deps Deps) (adapter.Gateway, error) {
			endpoint := adapter.StringField(options, OptionEndpoint)
			if endpoint == "" {
				return nil, fmt.Errorf("factory: the %s option is required for %s", OptionEndpoint, hosted.GatewayName)
			}
			return hosted.NewHostedAdapter(deps.HTTPClient, endpoint, adapter.StringField(options, OptionSecret)), nil
		},
	}
}

// Register adds or replaces the constructor for typ.
func (f *Factory) Register(typ string, c Constructor) {
	f.registry[typ] = c
}

// Types lists the registered gateway types in sorted order.
func (f *Factory) Types() []string {
	types := maps.Keys(f.registry)
	slices.Sort(types)
	return types
}

// CreateConfig returns the default options map, one entry per option key a
// bundled constructor reads.
func (f *Factory) CreateConfig() map[string]any {
	return map[string]any{
		OptionType:     "",
		OptionAPIKey:   "",
		OptionBaseURL:  "",
		OptionEndpoint: "",
		OptionSecret:   "",
	}
}

// Create builds the orchestrator for options[type].
func (f *Factory) Create(options map[string]any) (*orchestrator.Orchestrator, error) {
	typ := adapter.StringField(options, OptionType)
	if typ == "" {
		return nil, ErrTypeRequired
	}
	ctor, ok := f.registry[typ]
	if !ok {
		return nil, fmt.Errorf("%w: given gateway type %s is not supported", ErrTypeNotSupported, typ)
	}
	gw, err := ctor(options, f.deps)
	if err != nil {
		return nil, err
	}
	if f.deps.Breaker != nil {
		gw = f.deps.Breaker.Wrap(gw)
	}

	logger := f.deps.Logger
	var actions []action.Action
	if _, offsite := gw.(adapter.OffsiteGateway); offsite {
		actions = append(actions,
			action.NewOffsiteCaptureAction(f.deps.Tokens, logger),
			action.NewNotifyAction(logger),
		)
	} else {
		actions = append(actions, action.NewCaptureAction(f.deps.CardProvider, logger))
	}
	actions = append(actions,
		action.NewConvertPaymentAction(f.deps.Currencies),
		action.NewStatusAction(),
	)

	orc, err := orchestrator.NewOrchestrator(gw, logger, actions...)
	if err != nil {
		return nil, fmt.Errorf("factory: %s: %w", typ, err)
	}
	if f.deps.Guard != nil {
		orc.SetGuard(f.deps.Guard)
	}
	f.deps.Logger.Info().Str("gateway", typ).Bool("offsite", orc.Offsite()).Msg("gateway created")
	return orc, nil
}
