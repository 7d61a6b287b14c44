// File: internal/browser/session_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContextCallerCancel(t *testing.T) {
	session, sessionCancel := context.WithCancel(context.Background())
	defer sessionCancel()
	caller, callerCancel := context.WithCancel(context.Background())

	combined, cancel := combineContext(session, caller)
	defer cancel()

	callerCancel()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe caller cancellation")
	}
	// The session itself must stay alive.
	require.NoError(t, session.Err())
}

func TestCombineContextSessionCancel(t *testing.T) {
	session, sessionCancel := context.WithCancel(context.Background())
	caller := context.Background()

	combined, cancel := combineContext(session, caller)
	defer cancel()

	sessionCancel()
	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe session cancellation")
	}
}

func TestCombineContextDeadline(t *testing.T) {
	session := context.Background()
	caller, callerCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer callerCancel()

	combined, cancel := combineContext(session, caller)
	defer cancel()

	select {
	case <-combined.Done():
	case <-time.After(time.Second):
		t.Fatal("combined context did not observe caller deadline")
	}
	assert.Error(t, caller.Err())
}
