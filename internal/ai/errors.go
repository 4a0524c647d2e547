package ai

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrEmptyResponse       = errors.New("ai provider returned empty response")
)

// ClassifyError folds a transport-level provider failure into one of the
// stable sentinels so failed jobs record a consistent error message.
func ClassifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
