package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/solatis/mongofront/session"
)

func TestStartAndTouch(t *testing.T) {
	m := session.NewManager(0, 0)
	defer m.Close()

	s := m.Start()
	require.Equal(t, session.StateActive, s.State)

	m.Touch(s.ID)
	got, ok := m.Get(s.ID)
	require.True(t, ok)
	require.Equal(t, session.StateActive, got.State)
}

func TestEndSession(t *testing.T) {
	m := session.NewManager(0, 0)
	defer m.Close()

	s := m.Start()
	m.End([]session.ID{s.ID})

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	require.Equal(t, session.StateEnded, got.State)
}

func TestTransactionLifecycle(t *testing.T) {
	m := session.NewManager(0, 0)
	defer m.Close()

	s := m.Start()
	require.True(t, m.StartTransaction(s.ID, 1))
	m.RecordOp(s.ID, "insert test.coll")

	got, _ := m.Get(s.ID)
	require.Equal(t, session.StateTxnInProgress, got.State)
	require.Len(t, got.TxnOps, 1)

	require.True(t, m.CommitTransaction(s.ID))
	got, _ = m.Get(s.ID)
	require.Equal(t, session.StateTxnCommitted, got.State)
}

func TestAbortTransactionClearsOps(t *testing.T) {
	m := session.NewManager(0, 0)
	defer m.Close()

	s := m.Start()
	m.StartTransaction(s.ID, 1)
	m.RecordOp(s.ID, "insert test.coll")
	require.True(t, m.AbortTransaction(s.ID))

	got, _ := m.Get(s.ID)
	require.Equal(t, session.StateTxnAborted, got.State)
	require.Empty(t, got.TxnOps)
}

func TestIDHexRoundTrip(t *testing.T) {
	id := session.NewID()
	require.Len(t, id.Hex(), 32)
}

func TestStateStaysActiveUntilSweep(t *testing.T) {
	m := session.NewManager(10*time.Millisecond, time.Hour)
	defer m.Close()

	s := m.Start()
	time.Sleep(20 * time.Millisecond)
	// sweepInterval is fixed at 60s, so no sweep runs during this test: the
	// idle timeout has passed, but Get still reports the session active.
	got, _ := m.Get(s.ID)
	require.Equal(t, session.StateActive, got.State)
}
