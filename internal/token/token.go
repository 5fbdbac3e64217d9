// Package token issues the URLs a payer or a gateway uses to come back into
// the bridge: capture tokens (return/cancel after an offsite page) and notify
// tokens (asynchronous gateway callbacks).
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a hash does not resolve to a token.
var ErrNotFound = errors.New("token: not found")

// Token binds a gateway and a payment identity to a target URL.
type Token struct {
	Hash        string
	GatewayName string
	Identity    string
	TargetURL   string
	AfterURL    string
}

// Factory creates notify tokens for an in-flight capture.
type Factory interface {
	CreateNotifyToken(ctx context.Context, gatewayName, identity string) (*Token, error)
}

// GenericFactory keeps issued tokens in memory and builds target URLs under
// baseURL.
type GenericFactory struct {
	baseURL string

	mu     sync.RWMutex
	tokens map[string]*Token
}

// NewGenericFactory returns a factory rooted at baseURL (e.g. "https://shop.example/pay").
func NewGenericFactory(baseURL string) *GenericFactory {
	return &GenericFactory{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  make(map[string]*Token),
	}
}

// CreateCaptureToken issues a token whose target URL resumes the capture of
// identity. afterURL is where the payer ends up once the capture is done.
func (f *GenericFactory) CreateCaptureToken(_ context.Context, gatewayName, identity, afterURL string) (*Token, error) {
	return f.issue("capture", gatewayName, identity, afterURL)
}

// CreateNotifyToken implements Factory.
func (f *GenericFactory) CreateNotifyToken(_ context.Context, gatewayName, identity string) (*Token, error) {
	return f.issue("notify", gatewayName, identity, "")
}

// Resolve looks up an issued token by hash.
func (f *GenericFactory) Resolve(_ context.Context, hash string) (*Token, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tokens[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	c := *t
	return &c, nil
}

// Invalidate forgets a token.
func (f *GenericFactory) Invalidate(_ context.Context, hash string) {
	f.mu.Lock()
	delete(f.tokens, hash)
	f.mu.Unlock()
}

func (f *GenericFactory) issue(path, gatewayName, identity, afterURL string) (*Token, error) {
	if identity == "" {
		return nil, fmt.Errorf("token: identity is required")
	}
	hash := uuid.NewString()
	t := &Token{
		Hash:        hash,
		GatewayName: gatewayName,
		Identity:    identity,
		TargetURL:   fmt.Sprintf("%s/%s/%s", f.baseURL, path, hash),
		AfterURL:    afterURL,
	}
	f.mu.Lock()
	f.tokens[hash] = t
	f.mu.Unlock()
	c := *t
	return &c, nil
}
