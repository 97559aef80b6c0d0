package similarity

import (
	"errors"

	"github.com/example/go-textsim/internal/embedding"
)

var (
	// ErrEmptyText is returned when either input text is empty.
	ErrEmptyText = errors.New("empty text")
	// ErrModelUnavailable is returned when the scorer has no embedding model.
	ErrModelUnavailable = embedding.ErrModelUnavailable
	// ErrModelInvocation wraps any failure raised while running the model.
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrDegenerateVector is returned for an empty or zero-norm pooled vector.
	ErrDegenerateVector = errors.New("degenerate embedding vector")
	// ErrDimensionMismatch is returned when the two pooled vectors differ in length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// FailureReason maps an error to a short machine-readable reason, as used in
// metric attributes and API responses.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyText):
		return "empty_text"
	case errors.Is(err, ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, ErrDegenerateVector):
		return "degenerate_vector"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrModelInvocation):
		return "model_invocation"
	default:
		return "other"
	}
}
