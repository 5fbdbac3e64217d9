package details

// Secret wraps a sensitive value (card number, CVV) so it can be handed to a
// gateway once and then erased. It never renders its content.
type Secret struct {
	value  any
	erased bool
}

// NewSecret wraps v.
func NewSecret(v any) *Secret {
	return &Secret{value: v}
}

// Peek returns the wrapped value, or false once the secret was erased.
func (s *Secret) Peek() (any, bool) {
	if s == nil || s.erased {
		return nil, false
	}
	return s.value, true
}

// Erase drops the wrapped value.
func (s *Secret) Erase() {
	if s == nil {
		return
	}
	s.value = nil
	s.erased = true
}

// Erased reports whether Erase was called.
func (s *Secret) Erased() bool {
	return s == nil || s.erased
}

func (s *Secret) String() string {
	return "***"
}

func (s *Secret) GoString() string {
	return "details.Secret{***}"
}

// MarshalJSON always yields null.
func (s *Secret) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}
