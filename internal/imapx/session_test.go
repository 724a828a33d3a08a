package imapx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithReopenRecoversOnce(t *testing.T) {
	staleErr := errors.New("mailbox closed")
	reopens := 0
	calls := 0

	err := retryWithReopen(context.Background(), 2, time.Millisecond,
		func() error { reopens++; return nil },
		func() error {
			calls++
			if calls == 1 {
				return staleErr
			}
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, reopens)
}

func TestRetryWithReopenNonStaleErrorPropagatesImmediately(t *testing.T) {
	fatal := errors.New("NO fetch rejected")
	calls := 0

	err := retryWithReopen(context.Background(), 2, time.Millisecond,
		func() error { return nil },
		func() error { calls++; return fatal })

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithReopenExhaustsBound(t *testing.T) {
	staleErr := errors.New("no mailbox selected")
	calls := 0
	reopens := 0

	err := retryWithReopen(context.Background(), 2, time.Millisecond,
		func() error { reopens++; return nil },
		func() error { calls++; return staleErr })

	assert.Equal(t, staleErr, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
	assert.Equal(t, 2, reopens)
}

func TestRetryWithReopenReopenFailureCountsAgainstBound(t *testing.T) {
	staleErr := errors.New("mailbox closed")
	restricted := &RestrictedAccessError{Folder: "Sent", Err: errors.New("unsafe login")}
	calls := 0

	err := retryWithReopen(context.Background(), 2, time.Millisecond,
		func() error { return restricted },
		func() error { calls++; return staleErr })

	// the folder never reopened, so only the first attempt ran
	assert.Equal(t, 1, calls)
	assert.True(t, IsRestrictedAccess(err))
}

func TestRetryWithReopenHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryWithReopen(ctx, 2, time.Millisecond,
		func() error { return nil },
		func() error { t.Fatal("op must not run after cancellation"); return nil })

	assert.ErrorIs(t, err, context.Canceled)
}
