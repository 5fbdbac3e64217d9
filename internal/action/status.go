package action

import (
	"context"
	"fmt"

	"github.com/yourorg/capture-bridge/internal/details"
)

// StatusAction derives a human status from a details record.
type StatusAction struct{}

// NewStatusAction creates a StatusAction.
func NewStatusAction() *StatusAction {
	return &StatusAction{}
}

// Supports implements Action.
func (a *StatusAction) Supports(request any) bool {
	s, ok := request.(*GetStatus)
	return ok && s.Details != nil
}

// Execute implements Action.
func (a *StatusAction) Execute(_ context.Context, request any) (Reply, error) {
	if !a.Supports(request) {
		return Reply{}, fmt.Errorf("%w: %T", ErrRequestNotSupported, request)
	}
	req := request.(*GetStatus)
	req.Status = StatusOf(req.Details)
	return Reply{}, nil
}

// StatusOf applies, in order: an explicit _status; a pending completion; the
// outcome of the last gateway call; otherwise new.
func StatusOf(d *details.Details) string {
	if d.Has(details.KeyStatus) {
		switch s := d.String(details.KeyStatus); s {
		case StatusNew, StatusPending, StatusCaptured, StatusFailed:
			return s
		default:
			return StatusUnknown
		}
	}
	if d.Bool(details.KeyCompleteCaptureRequired) && !d.Bool(details.KeyCaptureCompleted) {
		return StatusPending
	}
	if d.Has(details.KeySuccessful) {
		if d.Bool(details.KeySuccessful) {
			return StatusCaptured
		}
		return StatusFailed
	}
	return StatusNew
}
