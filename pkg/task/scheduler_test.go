package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOneShotFiresOnceAtStartInterval(t *testing.T) {
	s := New()
	tsk := s.NewGameTask("tick", 5, 0)

	require.Empty(t, s.Advance(4), "fired early")

	fired := s.Advance(1)
	require.Len(t, fired, 1)
	require.Equal(t, tsk.ID, fired[0].ID)
	require.Zero(t, s.Len(), "one-shot task should be retired")
}

func TestRepeatingTaskReschedules(t *testing.T) {
	s := New()
	s.NewGameTask("heartbeat", 2, 3)

	first := s.Advance(2)
	require.Len(t, first, 1)
	require.Equal(t, 1, s.Len(), "repeating task should still be pending")

	second := s.Advance(3)
	require.Len(t, second, 1)
}

func TestKillRemovesPendingTask(t *testing.T) {
	s := New()
	tsk := s.NewGameTask("never", 100, 0)
	require.NoError(t, s.Kill(tsk.ID))
	require.Empty(t, s.Advance(200), "killed task still fired")
	require.ErrorIs(t, s.Kill(tsk.ID), ErrNoSuchTask, "double kill")
}

// Ties at the same due time fire in registration (id) order, per §5.
func TestTiesFireInRegistrationOrder(t *testing.T) {
	s := New()
	a := s.NewGameTask("a", 5, 0)
	b := s.NewGameTask("b", 5, 0)

	fired := s.Advance(5)
	require.Len(t, fired, 2)
	require.Equal(t, a.ID, fired[0].ID)
	require.Equal(t, b.ID, fired[1].ID)
}

// Id reuse matches the C reference's stack-shortcut behavior: retiring
// the most recently allocated id just decrements the counter instead
// of growing the free-list.
func TestIDReuseShortcut(t *testing.T) {
	s := New()
	first := s.NewGameTask("x", 1, 0)
	second := s.NewGameTask("y", 1, 0)
	require.NoError(t, s.Kill(second.ID))

	third := s.NewGameTask("z", 1, 0)
	require.Equal(t, second.ID, third.ID, "expected id reuse via shortcut")

	require.NoError(t, s.Kill(first.ID))
	require.NoError(t, s.Kill(third.ID))
}

func TestSnapshotCopiesWithoutExposingHeap(t *testing.T) {
	s := New()
	s.NewGameTask("a", 5, 0)
	s.NewGameTask("b", 10, 2)

	snap := s.Snapshot()
	require.Len(t, snap, 2)

	s.Advance(5)
	require.Len(t, snap, 2, "snapshot must not be mutated by later Advance calls")
}

func TestDueInReflectsRemainingTime(t *testing.T) {
	s := New()
	s.NewGameTask("a", 5, 0)
	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, int64(5), s.DueIn(snap[0]))

	s.Advance(2)
	require.Equal(t, int64(3), s.DueIn(snap[0]))
}
