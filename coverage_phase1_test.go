package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Engine lifecycle + queue battery coverage
// =============================================================================

// TestPhase1_ChangeRejectsNilBackend covers the nil-backend guard in
// Change, which must leave the existing backend and wake-up transport
// untouched rather than tearing them down on a rejected swap.
func TestPhase1_ChangeRejectsNilBackend(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	defer e.Free()

	assert.ErrorIs(t, e.Change(nil, 0), ErrBackendNil)
}

// TestPhase1_QueueBatteryPriorityOrder verifies the battery drains
// ClassFast strictly before ClassClose, regardless of push order.
func TestPhase1_QueueBatteryPriorityOrder(t *testing.T) {
	b := newQueueBattery()

	var order []string
	b.enqueue(ClassClose, func() { order = append(order, "close") })
	b.enqueue(ClassFast, func() { order = append(order, "fast") })
	b.enqueue(ClassAccept, func() { order = append(order, "accept") })

	for b.total() > 0 {
		task, _, ok := b.pop()
		require.True(t, ok)
		task()
	}

	assert.Equal(t, []string{"fast", "accept", "close"}, order)
}

// TestPhase1_RequestIndexFindRemoveUnknown covers FindRemove on a shard
// that has never seen the given key, distinct from the remove-after-add
// path already exercised elsewhere.
func TestPhase1_RequestIndexFindRemoveUnknown(t *testing.T) {
	idx := NewRequestIndex(NewNoOpLogger())
	_, ok := idx.FindRemove(0xdeadbeef)
	assert.False(t, ok, "FindRemove on an untouched shard should report ok=false")
}
