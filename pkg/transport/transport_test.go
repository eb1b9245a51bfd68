package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/messages"
	"github.com/cuemby/burrow/pkg/types"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true})
}

type inbox struct {
	mu   sync.Mutex
	msgs []messages.Message
	from []Endpoint
}

func (in *inbox) handler(from Endpoint, msg messages.Message) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.msgs = append(in.msgs, msg)
	in.from = append(in.from, from)
}

func (in *inbox) len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.msgs)
}

func startNode(t *testing.T, h Handler) *Node {
	t.Helper()
	n, err := NewNode("127.0.0.1:0", "")
	require.NoError(t, err)
	if h != nil {
		n.OnMessage(h)
	}
	go n.Start()
	t.Cleanup(n.Stop)
	return n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestSendDeliversInOrder(t *testing.T) {
	in := &inbox{}
	receiver := startNode(t, in.handler)
	sender := startNode(t, nil)

	for i := 0; i < 20; i++ {
		sender.Send(receiver.Addr(), messages.KillTask{
			FrameworkID: "f1",
			TaskID:      types.TaskID(rune('a' + i)),
		})
	}

	waitFor(t, func() bool { return in.len() == 20 })

	in.mu.Lock()
	defer in.mu.Unlock()
	for i, msg := range in.msgs {
		kill, ok := msg.(messages.KillTask)
		require.True(t, ok, "message %d decoded to %T", i, msg)
		assert.Equal(t, types.TaskID(rune('a'+i)), kill.TaskID)
		assert.Equal(t, sender.Addr(), in.from[i])
	}
}

func TestSendToDeadPeerIsSilent(t *testing.T) {
	sender := startNode(t, nil)
	// Nothing listens here; Send must neither block nor panic.
	sender.Send("127.0.0.1:1", messages.Ping{})
	time.Sleep(50 * time.Millisecond)
}

func TestSendToEmptyEndpointIsDropped(t *testing.T) {
	sender := startNode(t, nil)
	sender.Send("", messages.Ping{})
}

func TestLinkReportsExitedOnce(t *testing.T) {
	peer := startNode(t, nil)
	peerAddr := peer.Addr()

	var mu sync.Mutex
	exits := 0
	watcher := startNode(t, nil)
	watcher.probeInterval = 20 * time.Millisecond
	watcher.OnExited(func(e Endpoint) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, peerAddr, e)
		exits++
	})

	watcher.Link(peerAddr)
	peer.Stop()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return exits == 1
	})

	// The link is gone after firing; no further notifications.
	time.Sleep(10 * watcher.probeInterval)
	mu.Lock()
	assert.Equal(t, 1, exits)
	mu.Unlock()
}

func TestUnlinkSuppressesExited(t *testing.T) {
	peer := startNode(t, nil)

	var mu sync.Mutex
	exits := 0
	watcher := startNode(t, nil)
	watcher.probeInterval = 20 * time.Millisecond
	watcher.OnExited(func(Endpoint) {
		mu.Lock()
		defer mu.Unlock()
		exits++
	})

	watcher.Link(peer.Addr())
	watcher.Unlink(peer.Addr())
	peer.Stop()

	time.Sleep(10 * watcher.probeInterval)
	mu.Lock()
	assert.Equal(t, 0, exits)
	mu.Unlock()
}
