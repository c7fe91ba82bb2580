package convert_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/doc-to-pdf-service/internal/convert"
)

func TestRunBounded_CompletesInTime(t *testing.T) {
	t.Parallel()

	callErr := errors.New("export rejected")

	timedOut, err := convert.RunBoundedForTest(func() error {
		return callErr
	}, time.Second)

	assert.False(t, timedOut)
	require.ErrorIs(t, err, callErr)

	timedOut, err = convert.RunBoundedForTest(func() error {
		return nil
	}, time.Second)

	assert.False(t, timedOut)
	require.NoError(t, err)
}

func TestRunBounded_DeadlineElapses(t *testing.T) {
	t.Parallel()

	started := time.Now()

	timedOut, err := convert.RunBoundedForTest(func() error {
		select {} // blocks forever; the goroutine is abandoned
	}, 100*time.Millisecond)

	elapsed := time.Since(started)

	assert.True(t, timedOut)
	require.NoError(t, err)
	assert.Less(t, elapsed, time.Second)
}

func TestRunBounded_AbandonedCallStillCompletes(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	finished := make(chan struct{})

	timedOut, _ := convert.RunBoundedForTest(func() error {
		<-release
		close(finished)

		return nil
	}, 50*time.Millisecond)

	require.True(t, timedOut)

	// The abandoned goroutine must still be able to run to completion;
	// the buffered result channel guarantees it never blocks on send.
	close(release)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned call could not complete")
	}
}
