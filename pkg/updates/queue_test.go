package updates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/types"
)

func update(task types.TaskID, state types.TaskState) types.StatusUpdate {
	return types.StatusUpdate{
		FrameworkID: "f1",
		AgentID:     "agent-1",
		Status:      types.TaskStatus{TaskID: task, State: state},
	}
}

func TestInsertAndAck(t *testing.T) {
	q := NewQueue(10 * time.Second)
	now := time.Now()

	q.Insert(now, update("t1", types.TaskRunning))
	assert.Equal(t, 1, q.Pending())

	assert.True(t, q.Ack("t1"))
	assert.True(t, q.Empty())
}

func TestDuplicateAckIsNoop(t *testing.T) {
	q := NewQueue(10 * time.Second)
	q.Insert(time.Now(), update("t1", types.TaskRunning))

	assert.True(t, q.Ack("t1"))
	assert.False(t, q.Ack("t1"))
	assert.False(t, q.Ack("never-seen"))
}

func TestAckErasesOldestFirst(t *testing.T) {
	q := NewQueue(10 * time.Second)
	now := time.Now()

	first := update("t1", types.TaskStarting)
	second := update("t1", types.TaskRunning)
	q.Insert(now, first)
	q.Insert(now.Add(time.Second), second)
	require.Equal(t, 2, q.Pending())

	assert.True(t, q.Ack("t1"))
	assert.Equal(t, 1, q.Pending())

	// The survivor is the later update.
	expired := q.Expire(now.Add(time.Hour))
	require.Len(t, expired, 1)
	assert.Equal(t, types.TaskRunning, expired[0].Status.State)
}

func TestExpireReturnsOnlyLapsed(t *testing.T) {
	q := NewQueue(10 * time.Second)
	now := time.Now()

	q.Insert(now, update("t1", types.TaskRunning))
	q.Insert(now.Add(5*time.Second), update("t2", types.TaskRunning))

	// t1's deadline is now+10s; t2's is now+15s.
	expired := q.Expire(now.Add(12 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, types.TaskID("t1"), expired[0].Status.TaskID)
	assert.Equal(t, 2, q.Pending())
}

func TestExpireRearmsDeadline(t *testing.T) {
	q := NewQueue(10 * time.Second)
	now := time.Now()

	q.Insert(now, update("t1", types.TaskRunning))

	// First expiry re-sends and re-arms relative to the expiry time.
	expired := q.Expire(now.Add(11 * time.Second))
	require.Len(t, expired, 1)

	// Inside the new window nothing further expires.
	assert.Empty(t, q.Expire(now.Add(15*time.Second)))

	// Past it, the update comes back again; pending stays bounded at 1.
	expired = q.Expire(now.Add(22 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, 1, q.Pending())
}

func TestExpireOrderIsDeterministic(t *testing.T) {
	q := NewQueue(10 * time.Second)
	now := time.Now()
	for _, id := range []types.TaskID{"t3", "t1", "t2"} {
		q.Insert(now, update(id, types.TaskRunning))
	}

	expired := q.Expire(now.Add(time.Minute))
	require.Len(t, expired, 3)
	assert.Equal(t, types.TaskID("t1"), expired[0].Status.TaskID)
	assert.Equal(t, types.TaskID("t2"), expired[1].Status.TaskID)
	assert.Equal(t, types.TaskID("t3"), expired[2].Status.TaskID)
}

func TestAckAfterExpireStopsRetries(t *testing.T) {
	q := NewQueue(10 * time.Second)
	now := time.Now()

	q.Insert(now, update("t1", types.TaskRunning))
	require.Len(t, q.Expire(now.Add(11*time.Second)), 1)

	assert.True(t, q.Ack("t1"))
	assert.Empty(t, q.Expire(now.Add(time.Hour)))
}
