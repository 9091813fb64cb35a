package syncer

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction     = errors.New("attachment extraction failed")
	ErrRegistration   = errors.New("storage registration failed")
	ErrChannelDelete  = errors.New("channel message deletion failed")
	ErrListing        = errors.New("storage listing failed")
	ErrHistory        = errors.New("channel history fetch failed")
	ErrStreamClosed   = errors.New("channel event stream closed")
	ErrCycleInProcess = errors.New("reconciliation cycle already running")
	ErrSyncDisabled   = errors.New("deletion sync is disabled")
)

// ExtractionError describes a message whose attachment could not be turned
// into a file name.
type ExtractionError struct {
	MessageID int64
	Reason    string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("message %d: %s", e.MessageID, e.Reason)
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}
