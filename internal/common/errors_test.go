package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels_AreDistinctAndWrappable(t *testing.T) {
	all := []error{
		ErrorNotFound, ErrInvalidSource, ErrSourceUnavailable, ErrDecodeFailed,
		ErrTransferFailed, ErrMissingDestination, ErrAlreadyRunning, ErrNotInitialized,
		ErrStoreUnavailable, ErrUnknownStatus, ErrInvalidTransition,
	}
	for i, a := range all {
		wrapped := fmt.Errorf("step small: %w", a)
		assert.True(t, errors.Is(wrapped, a))
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(wrapped, b), "%v must not match %v", a, b)
			}
		}
	}
}
