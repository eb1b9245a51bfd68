package messages

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/types"
)

func TestEncodeDecodeRunTask(t *testing.T) {
	in := RunTask{
		Framework: types.FrameworkInfo{
			Name: "analytics",
			User: "svc-analytics",
			Executor: types.ExecutorInfo{
				ExecutorID: "default",
				URI:        "/opt/executors/analytics",
			},
		},
		FrameworkID:       "f1",
		SchedulerEndpoint: "10.1.2.3:5050",
		Task: types.TaskDescription{
			TaskID:    "t1",
			Name:      "crunch",
			AgentID:   "agent-1",
			Resources: resources.Resources{resources.Scalar("cpus", 1), resources.Scalar("mem", 256)},
		},
	}

	data, err := Encode("10.0.0.1:5051", in)
	require.NoError(t, err)

	from, msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:5051", from)

	out, ok := msg.(RunTask)
	require.True(t, ok, "decoded to %T", msg)
	assert.Equal(t, in, out)
}

func TestDecodeUnknownTag(t *testing.T) {
	data, err := json.Marshal(Envelope{ID: "x", Tag: "LaunchMissiles"})
	require.NoError(t, err)

	_, _, err = Decode(data)
	assert.ErrorContains(t, err, "unknown message tag")
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode([]byte("not json at all"))
	assert.Error(t, err)
}

func TestDecodeEmptyPayload(t *testing.T) {
	data, err := json.Marshal(Envelope{ID: "x", Tag: TagPing})
	require.NoError(t, err)

	_, msg, err := Decode(data)
	require.NoError(t, err)
	assert.IsType(t, Ping{}, msg)
}

// A receiver must tolerate fields it does not know about and default fields
// the sender did not write. Both sides of a link can then be upgraded
// independently.
func TestDecodeSkewedSchema(t *testing.T) {
	payload := []byte(`{
		"agent_id": "agent-1",
		"framework_id": "f1",
		"task_id": "t1",
		"brand_new_field": {"nested": true}
	}`)
	data, err := json.Marshal(Envelope{ID: "x", Tag: TagStatusUpdateAck, Payload: payload})
	require.NoError(t, err)

	_, msg, err := Decode(data)
	require.NoError(t, err)

	ack, ok := msg.(StatusUpdateAck)
	require.True(t, ok)
	assert.Equal(t, types.TaskID("t1"), ack.TaskID)
}

func TestStatusUpdateCarriesTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	in := StatusUpdate{
		Update: types.StatusUpdate{
			FrameworkID: "f1",
			AgentID:     "agent-1",
			Status:      types.TaskStatus{TaskID: "t1", State: types.TaskRunning},
			Timestamp:   ts,
			Sequence:    3,
		},
		Reliable: true,
	}

	data, err := Encode("", in)
	require.NoError(t, err)
	_, msg, err := Decode(data)
	require.NoError(t, err)

	out := msg.(StatusUpdate)
	assert.True(t, out.Reliable)
	assert.True(t, out.Update.Timestamp.Equal(ts))
	assert.Equal(t, int64(3), out.Update.Sequence)
}
