package pipeline

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when Run is called while another run holds the
// pipeline.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// ComputationError reports an invariant violation that makes a derived value
// meaningless, such as a non-positive minimum price.
type ComputationError struct {
	ProductID string
	MinPrice  float64
	Reason    string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("price variation for product %q: %s (min price %v)", e.ProductID, e.Reason, e.MinPrice)
}

// ComputationErrors flattens err (possibly joined) into its ComputationErrors.
func ComputationErrors(err error) []*ComputationError {
	if err == nil {
		return nil
	}
	var out []*ComputationError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, ComputationErrors(e)...)
		}
		return out
	}
	var ce *ComputationError
	if errors.As(err, &ce) {
		out = append(out, ce)
	}
	return out
}
