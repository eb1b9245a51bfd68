package detector

import (
	"os"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/messages"
)

// Handler receives master announcements: NewMasterDetected when an elected
// master appears or changes, NoMasterDetected when none is elected.
type Handler func(msg messages.Message)

// Detector watches for master elections.
type Detector interface {
	Start() error
	Stop()
}

// Standalone announces a fixed master once. Used when the master address is
// known up front and there is no election.
type Standalone struct {
	master  string
	handler Handler
}

// NewStandalone creates a detector for a static master endpoint.
func NewStandalone(master string, handler Handler) *Standalone {
	return &Standalone{master: master, handler: handler}
}

func (s *Standalone) Start() error {
	logger := log.WithComponent("detector")
	logger.Info().
		Str("master", s.master).Msg("Using standalone master")
	s.handler(messages.NewMasterDetected{Master: s.master})
	return nil
}

func (s *Standalone) Stop() {}

// defaultPollInterval is how often the file detector re-reads its source.
const defaultPollInterval = time.Second

// File announces the master named in a file, polling for changes. The file
// holds a single host:port line; a missing or empty file means no elected
// master. Election systems write the winner's address into the file.
type File struct {
	path     string
	handler  Handler
	interval time.Duration

	stopCh chan struct{}
	done   chan struct{}
}

// NewFile creates a file-backed detector.
func NewFile(path string, handler Handler) *File {
	return &File{
		path:     path,
		handler:  handler,
		interval: defaultPollInterval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (f *File) Start() error {
	go f.run()
	return nil
}

func (f *File) Stop() {
	close(f.stopCh)
	<-f.done
}

func (f *File) run() {
	defer close(f.done)

	logger := log.WithComponent("detector")
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	// announced tracks the last announcement so changes fire exactly once.
	// The empty string doubles as "nothing announced yet"; the first read
	// always announces.
	announced := ""
	first := true

	announce := func() {
		master := f.read()
		if !first && master == announced {
			return
		}
		first = false
		announced = master
		if master == "" {
			logger.Warn().Str("path", f.path).Msg("No master in election file")
			f.handler(messages.NoMasterDetected{})
			return
		}
		logger.Info().Str("master", master).Msg("Detected master")
		f.handler(messages.NewMasterDetected{Master: master})
	}

	announce()
	for {
		select {
		case <-ticker.C:
			announce()
		case <-f.stopCh:
			return
		}
	}
}

func (f *File) read() string {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(data))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return line
}
