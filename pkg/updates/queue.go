package updates

import (
	"sort"
	"time"

	"github.com/cuemby/burrow/pkg/types"
)

// RetryInterval is how long the agent waits for a master acknowledgement
// before re-sending a status update.
const RetryInterval = 10 * time.Second

// Queue holds the unacknowledged status updates of one framework, bucketed
// by retry deadline and indexed by task inside each bucket. It is owned by
// the agent loop and is not safe for concurrent use.
type Queue struct {
	interval time.Duration
	buckets  map[int64]map[types.TaskID]types.StatusUpdate
}

// NewQueue creates a queue with the given retry interval.
func NewQueue(interval time.Duration) *Queue {
	if interval <= 0 {
		interval = RetryInterval
	}
	return &Queue{
		interval: interval,
		buckets:  make(map[int64]map[types.TaskID]types.StatusUpdate),
	}
}

// Insert stores an update under the deadline now+interval.
func (q *Queue) Insert(now time.Time, update types.StatusUpdate) {
	deadline := now.Add(q.interval).UnixNano()
	bucket, ok := q.buckets[deadline]
	if !ok {
		bucket = make(map[types.TaskID]types.StatusUpdate)
		q.buckets[deadline] = bucket
	}
	bucket[update.Status.TaskID] = update
}

// Ack erases the first stored update for the task, scanning buckets in
// deadline order. It reports whether anything was erased; acking an absent
// task is a no-op.
func (q *Queue) Ack(taskID types.TaskID) bool {
	for _, deadline := range q.deadlines() {
		bucket := q.buckets[deadline]
		if _, ok := bucket[taskID]; ok {
			delete(bucket, taskID)
			if len(bucket) == 0 {
				delete(q.buckets, deadline)
			}
			return true
		}
	}
	return false
}

// Expire returns every update whose deadline has passed, in deterministic
// order, and re-buckets the survivors at now+interval so a lost
// acknowledgement cannot grow the queue without bound.
func (q *Queue) Expire(now time.Time) []types.StatusUpdate {
	var expired []types.StatusUpdate
	for _, deadline := range q.deadlines() {
		if deadline > now.UnixNano() {
			break
		}
		bucket := q.buckets[deadline]
		delete(q.buckets, deadline)

		tasks := make([]types.TaskID, 0, len(bucket))
		for taskID := range bucket {
			tasks = append(tasks, taskID)
		}
		sort.Slice(tasks, func(i, j int) bool { return tasks[i] < tasks[j] })
		for _, taskID := range tasks {
			expired = append(expired, bucket[taskID])
		}
	}

	for _, update := range expired {
		q.Insert(now, update)
	}
	return expired
}

// Pending reports the number of stored updates.
func (q *Queue) Pending() int {
	n := 0
	for _, bucket := range q.buckets {
		n += len(bucket)
	}
	return n
}

// Empty reports whether no updates are stored.
func (q *Queue) Empty() bool {
	return q.Pending() == 0
}

func (q *Queue) deadlines() []int64 {
	out := make([]int64, 0, len(q.buckets))
	for deadline := range q.buckets {
		out = append(out, deadline)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
