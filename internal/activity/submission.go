package activity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSubmission indicates a malformed inbound submission event.
var ErrInvalidSubmission = errors.New("activity: invalid submission")

// Submission is the fully-typed inbound event from the transport layer.
// Category derivation from caption markers happens upstream; by the time an
// event reaches the ledger it names exactly one category.
type Submission struct {
	GroupID         string
	UserID          string
	DisplayName     string
	Category        Category
	Caption         string
	Image           []byte
	SourceMessageID string
}

// Validate rejects malformed events at the boundary so optional or untyped
// fields never propagate inward. The category is rewritten to its canonical
// form: everything past the boundary switches on exact Category values.
func (s *Submission) Validate() error {
	if strings.TrimSpace(s.GroupID) == "" {
		return fmt.Errorf("%w: missing group id", ErrInvalidSubmission)
	}
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidSubmission)
	}
	if strings.TrimSpace(s.DisplayName) == "" {
		return fmt.Errorf("%w: missing display name", ErrInvalidSubmission)
	}
	category, err := ParseCategory(string(s.Category))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	s.Category = category
	if len(s.Image) == 0 {
		return fmt.Errorf("%w: missing image payload", ErrInvalidSubmission)
	}
	return nil
}
