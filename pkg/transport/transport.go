package transport

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/messages"
)

// Endpoint is a peer address in host:port form.
type Endpoint string

// Handler receives inbound messages. Handlers must not block; long work is
// handed off to the owning actor.
type Handler func(from Endpoint, msg messages.Message)

// Sender is the outbound half of a transport, split out so tests can record
// sends without a network.
type Sender interface {
	Send(to Endpoint, msg messages.Message)
}

// Transport is the full peer surface the agent needs.
type Transport interface {
	Sender
	Link(to Endpoint)
	Unlink(to Endpoint)
	Addr() Endpoint
}

const (
	inboxPath  = "/inbox"
	healthPath = "/health"

	// Outbound queue depth per peer. A full queue drops, like a lost
	// datagram; retry timers above recover.
	outboxDepth = 1024

	linkProbeInterval = 2 * time.Second
	linkProbeFailures = 3
)

// Node is the HTTP-backed Transport implementation.
type Node struct {
	advertise Endpoint
	listener  net.Listener
	server    *http.Server
	router    *mux.Router
	client    *http.Client
	handler   Handler
	exited    func(Endpoint)

	probeInterval time.Duration
	probeFailures int

	mu      sync.Mutex
	outbox  map[Endpoint]chan []byte
	links   map[Endpoint]chan struct{}
	closed  bool
	stopped sync.WaitGroup
}

// NewNode binds a listener on bindAddr. advertise is the endpoint peers
// should reply to; when empty it is derived from the bound address.
func NewNode(bindAddr string, advertise Endpoint) (*Node, error) {
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", bindAddr, err)
	}

	if advertise == "" {
		advertise = Endpoint(listener.Addr().String())
	}

	n := &Node{
		advertise:     advertise,
		listener:      listener,
		router:        mux.NewRouter(),
		client:        &http.Client{Timeout: 10 * time.Second},
		probeInterval: linkProbeInterval,
		probeFailures: linkProbeFailures,
		outbox:        make(map[Endpoint]chan []byte),
		links:         make(map[Endpoint]chan struct{}),
	}

	n.router.HandleFunc(inboxPath, n.handleInbox).Methods(http.MethodPost)
	n.router.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	n.server = &http.Server{
		Handler:      n.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return n, nil
}

// OnMessage installs the inbound message handler. Must be called before
// Start.
func (n *Node) OnMessage(h Handler) {
	n.handler = h
}

// OnExited installs the link-failure callback. Must be called before Start.
func (n *Node) OnExited(f func(Endpoint)) {
	n.exited = f
}

// Router exposes the node's HTTP router so read-only endpoints can be
// mounted on the same port.
func (n *Node) Router() *mux.Router {
	return n.router
}

// Addr returns the advertised endpoint.
func (n *Node) Addr() Endpoint {
	return n.advertise
}

// Start serves the inbox until Stop. It blocks; callers run it in a
// goroutine.
func (n *Node) Start() error {
	err := n.server.Serve(n.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes the listener, all outbound queues and all links.
func (n *Node) Stop() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	for _, ch := range n.outbox {
		close(ch)
	}
	for _, stop := range n.links {
		close(stop)
	}
	n.outbox = make(map[Endpoint]chan []byte)
	n.links = make(map[Endpoint]chan struct{})
	n.mu.Unlock()

	n.server.Close()
	n.stopped.Wait()
}

func (n *Node) handleInbox(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	from, msg, err := messages.Decode(body)
	if err != nil {
		logger := log.WithComponent("transport")
		logger.Warn().Err(err).Msg("Dropping undecodable message")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	if n.handler != nil {
		n.handler(Endpoint(from), msg)
	}
}

// Send queues msg for delivery to a peer. Sends are ordered per peer and
// never block the caller.
func (n *Node) Send(to Endpoint, msg messages.Message) {
	logger := log.WithComponent("transport")
	if to == "" {
		logger.Debug().
			Str("tag", msg.Tag()).Msg("Dropping message to empty endpoint")
		return
	}

	data, err := messages.Encode(string(n.advertise), msg)
	if err != nil {
		logger.Error().Err(err).
			Str("tag", msg.Tag()).Msg("Failed to encode message")
		return
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	ch, ok := n.outbox[to]
	if !ok {
		ch = make(chan []byte, outboxDepth)
		n.outbox[to] = ch
		n.stopped.Add(1)
		go n.deliver(to, ch)
	}
	n.mu.Unlock()

	select {
	case ch <- data:
	default:
		logger.Warn().
			Str("peer", string(to)).Str("tag", msg.Tag()).
			Msg("Outbox full, dropping message")
	}
}

func (n *Node) deliver(to Endpoint, ch chan []byte) {
	defer n.stopped.Done()
	logger := log.WithComponent("transport")
	url := "http://" + string(to) + inboxPath
	for data := range ch {
		resp, err := n.client.Post(url, "application/json", bytes.NewReader(data))
		if err != nil {
			// Retry lives above the transport.
			logger.Debug().Err(err).
				Str("peer", string(to)).Msg("Send failed")
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

// Link starts monitoring a peer. When the peer stops answering health
// probes the exited callback fires exactly once and the link is dropped.
func (n *Node) Link(to Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if _, ok := n.links[to]; ok {
		return
	}
	stop := make(chan struct{})
	n.links[to] = stop
	n.stopped.Add(1)
	go n.probe(to, stop)
}

// Unlink stops monitoring a peer.
func (n *Node) Unlink(to Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if stop, ok := n.links[to]; ok {
		close(stop)
		delete(n.links, to)
	}
}

func (n *Node) probe(to Endpoint, stop chan struct{}) {
	defer n.stopped.Done()

	url := "http://" + string(to) + healthPath
	ticker := time.NewTicker(n.probeInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			resp, err := n.client.Get(url)
			if err == nil {
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
			if err == nil && resp.StatusCode == http.StatusOK {
				failures = 0
				continue
			}
			failures++
			if failures < n.probeFailures {
				continue
			}

			n.mu.Lock()
			if current, ok := n.links[to]; ok && current == stop {
				delete(n.links, to)
			}
			n.mu.Unlock()

			if n.exited != nil {
				n.exited(to)
			}
			return
		}
	}
}
