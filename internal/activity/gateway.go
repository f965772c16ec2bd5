package activity

import "context"

// Verdict is the classification gateway's judgement of one photo.
type Verdict struct {
	Valid    bool
	Feedback string
}

// Gateway is the opaque classification capability. Any returned error is
// treated as the service being unavailable and never consumes an attempt;
// a rejection is a Verdict with Valid false, not an error.
type Gateway interface {
	Classify(ctx context.Context, category Category, image []byte, displayName string) (Verdict, error)
}
