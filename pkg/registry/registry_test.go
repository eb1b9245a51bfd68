package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/types"
)

func testFramework(t *testing.T) (*Registry, *Framework) {
	t.Helper()
	r := New(10 * time.Second)
	fw, err := r.CreateFramework("f1", types.FrameworkInfo{
		Name: "analytics",
		User: "svc",
		Executor: types.ExecutorInfo{
			ExecutorID: "default",
			URI:        "/opt/executors/analytics",
		},
	}, "10.0.0.2:5050")
	require.NoError(t, err)
	return r, fw
}

func taskDesc(id types.TaskID, cpus, mem float64) types.TaskDescription {
	return types.TaskDescription{
		TaskID:  id,
		Name:    "task-" + string(id),
		AgentID: "agent-1",
		Resources: resources.Resources{
			resources.Scalar("cpus", cpus),
			resources.Scalar("mem", mem),
		},
	}
}

func TestCreateFrameworkIsUnique(t *testing.T) {
	r, _ := testFramework(t)
	_, err := r.CreateFramework("f1", types.FrameworkInfo{}, "")
	assert.Error(t, err)
	assert.Equal(t, 1, r.Size())
}

func TestResourceAccountingClosure(t *testing.T) {
	_, fw := testFramework(t)
	exec, err := fw.CreateExecutor(fw.Info.Executor, "/tmp/work/0")
	require.NoError(t, err)

	_, err = exec.AddTask(taskDesc("t1", 1, 256))
	require.NoError(t, err)
	_, err = exec.AddTask(taskDesc("t2", 2, 512))
	require.NoError(t, err)

	assert.Equal(t, 3.0, exec.Resources.GetScalar("cpus", 0))
	assert.Equal(t, 768.0, exec.Resources.GetScalar("mem", 0))

	exec.RemoveTask("t1")
	assert.Equal(t, 2.0, exec.Resources.GetScalar("cpus", 0))
	assert.Equal(t, 512.0, exec.Resources.GetScalar("mem", 0))

	exec.RemoveTask("t2")
	assert.Equal(t, 0.0, exec.Resources.GetScalar("cpus", 0))
	assert.Equal(t, 0.0, exec.Resources.GetScalar("mem", 0))
}

func TestTaskInQueuedOrLaunchedNeverBoth(t *testing.T) {
	_, fw := testFramework(t)
	exec, err := fw.CreateExecutor(fw.Info.Executor, "/tmp/work/0")
	require.NoError(t, err)

	require.NoError(t, exec.Queue(taskDesc("t1", 1, 256)))
	assert.Error(t, exec.Queue(taskDesc("t1", 1, 256)))

	task, err := exec.AddTask(taskDesc("t1", 1, 256))
	require.NoError(t, err)
	assert.Equal(t, types.TaskStarting, task.State)
	assert.Empty(t, exec.QueuedTasks)
	assert.Contains(t, exec.LaunchedTasks, types.TaskID("t1"))

	_, err = exec.AddTask(taskDesc("t1", 1, 256))
	assert.Error(t, err)
}

func TestRemoveQueuedTaskCostsNothing(t *testing.T) {
	_, fw := testFramework(t)
	exec, err := fw.CreateExecutor(fw.Info.Executor, "/tmp/work/0")
	require.NoError(t, err)

	require.NoError(t, exec.Queue(taskDesc("t1", 1, 256)))
	exec.RemoveTask("t1")
	assert.Empty(t, exec.QueuedTasks)
	assert.Equal(t, 0.0, exec.Resources.GetScalar("cpus", 0))
}

func TestEndpointIsSetOnce(t *testing.T) {
	_, fw := testFramework(t)
	exec, err := fw.CreateExecutor(fw.Info.Executor, "/tmp/work/0")
	require.NoError(t, err)

	assert.False(t, exec.Registered())
	require.NoError(t, exec.Register("10.0.0.3:41000"))
	assert.True(t, exec.Registered())

	assert.Error(t, exec.Register("10.0.0.3:41001"))
	assert.Equal(t, "10.0.0.3:41000", string(exec.Endpoint))

	assert.Error(t, newExecutor("f1", fw.Info.Executor, "").Register(""))
}

func TestExecutorForTask(t *testing.T) {
	_, fw := testFramework(t)
	e1, err := fw.CreateExecutor(types.ExecutorInfo{ExecutorID: "e1", URI: "/bin/x"}, "/tmp/0")
	require.NoError(t, err)
	e2, err := fw.CreateExecutor(types.ExecutorInfo{ExecutorID: "e2", URI: "/bin/y"}, "/tmp/1")
	require.NoError(t, err)

	require.NoError(t, e1.Queue(taskDesc("queued", 1, 1)))
	_, err = e2.AddTask(taskDesc("launched", 1, 1))
	require.NoError(t, err)

	assert.Same(t, e1, fw.ExecutorForTask("queued"))
	assert.Same(t, e2, fw.ExecutorForTask("launched"))
	assert.Nil(t, fw.ExecutorForTask("absent"))
}

func TestUpdateTaskState(t *testing.T) {
	_, fw := testFramework(t)
	exec, err := fw.CreateExecutor(fw.Info.Executor, "/tmp/0")
	require.NoError(t, err)
	_, err = exec.AddTask(taskDesc("t1", 1, 1))
	require.NoError(t, err)

	exec.UpdateTaskState("t1", types.TaskRunning)
	assert.Equal(t, types.TaskRunning, exec.LaunchedTasks["t1"].State)

	// Unknown task is ignored.
	exec.UpdateTaskState("ghost", types.TaskRunning)
}

func TestTasksSnapshotOrdering(t *testing.T) {
	r := New(10 * time.Second)
	fwB, err := r.CreateFramework("fb", types.FrameworkInfo{}, "")
	require.NoError(t, err)
	fwA, err := r.CreateFramework("fa", types.FrameworkInfo{}, "")
	require.NoError(t, err)

	execB, err := fwB.CreateExecutor(types.ExecutorInfo{ExecutorID: "e"}, "")
	require.NoError(t, err)
	execA, err := fwA.CreateExecutor(types.ExecutorInfo{ExecutorID: "e"}, "")
	require.NoError(t, err)

	_, err = execB.AddTask(taskDesc("t2", 1, 1))
	require.NoError(t, err)
	_, err = execA.AddTask(taskDesc("t1", 1, 1))
	require.NoError(t, err)

	tasks := r.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, types.FrameworkID("fa"), tasks[0].FrameworkID)
	assert.Equal(t, types.FrameworkID("fb"), tasks[1].FrameworkID)
}

func TestDestroyExecutor(t *testing.T) {
	_, fw := testFramework(t)
	_, err := fw.CreateExecutor(fw.Info.Executor, "/tmp/0")
	require.NoError(t, err)

	_, err = fw.CreateExecutor(fw.Info.Executor, "/tmp/1")
	assert.Error(t, err, "duplicate executor id must be rejected")

	fw.DestroyExecutor(fw.Info.Executor.ExecutorID)
	assert.Nil(t, fw.Executor(fw.Info.Executor.ExecutorID))
	assert.Empty(t, fw.Executors)
}
