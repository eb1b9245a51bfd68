package detector

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/messages"
)

type recorder struct {
	mu   sync.Mutex
	msgs []messages.Message
}

func (r *recorder) handle(msg messages.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) snapshot() []messages.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messages.Message(nil), r.msgs...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStandaloneAnnouncesOnce(t *testing.T) {
	rec := &recorder{}
	det := NewStandalone("10.0.0.1:5050", rec.handle)
	require.NoError(t, det.Start())
	det.Stop()

	msgs := rec.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, messages.NewMasterDetected{Master: "10.0.0.1:5050"}, msgs[0])
}

func TestFileDetectorFollowsElections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master")
	rec := &recorder{}

	det := NewFile(path, rec.handle)
	det.interval = 10 * time.Millisecond
	require.NoError(t, det.Start())
	defer det.Stop()

	// No file yet: no master.
	waitFor(t, func() bool { return len(rec.snapshot()) >= 1 })
	assert.Equal(t, messages.NoMasterDetected{}, rec.snapshot()[0])

	// An election winner appears.
	require.NoError(t, os.WriteFile(path, []byte("10.0.0.1:5050\n"), 0644))
	waitFor(t, func() bool { return len(rec.snapshot()) >= 2 })
	assert.Equal(t, messages.NewMasterDetected{Master: "10.0.0.1:5050"}, rec.snapshot()[1])

	// A new master is elected.
	require.NoError(t, os.WriteFile(path, []byte("10.0.0.2:5050\n"), 0644))
	waitFor(t, func() bool { return len(rec.snapshot()) >= 3 })
	assert.Equal(t, messages.NewMasterDetected{Master: "10.0.0.2:5050"}, rec.snapshot()[2])

	// An unchanged file announces nothing further.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 3)
}
