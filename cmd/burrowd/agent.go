package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/burrow/pkg/agent"
	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/detector"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/isolation"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/messages"
	"github.com/cuemby/burrow/pkg/reaper"
	"github.com/cuemby/burrow/pkg/resources"
	"github.com/cuemby/burrow/pkg/transport"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/cuemby/burrow/pkg/updates"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the node agent",
	Long: `Run the node agent. The agent needs to know where the master lives:
either a fixed address via --master, or an election file via --master-file
that a coordination service keeps up to date.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().String("master", "", "Master endpoint (host:port)")
	agentCmd.Flags().String("master-file", "", "File holding the elected master's endpoint")
	agentCmd.Flags().String("bind", ":5051", "Address to listen on")
	agentCmd.Flags().String("advertise", "", "Endpoint peers should reply to (default: bound address)")
	agentCmd.Flags().String("config", "", "Path to the YAML configuration file")
	agentCmd.Flags().String("work-dir", "", "Override the configured work directory")
	agentCmd.Flags().String("resources", "", "Override the configured resource vector")
	agentCmd.Flags().Bool("local", false, "Single-process deployment; executors run in-process")
	agentCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	agentCmd.Flags().Bool("log-json", false, "Log JSON instead of console output")
}

func runAgent(cmd *cobra.Command, args []string) error {
	master, _ := cmd.Flags().GetString("master")
	masterFile, _ := cmd.Flags().GetString("master-file")
	bindAddr, _ := cmd.Flags().GetString("bind")
	advertise, _ := cmd.Flags().GetString("advertise")
	configPath, _ := cmd.Flags().GetString("config")
	workDir, _ := cmd.Flags().GetString("work-dir")
	resourcesFlag, _ := cmd.Flags().GetString("resources")
	local, _ := cmd.Flags().GetBool("local")
	logLevel, _ := cmd.Flags().GetString("log-level")
	logJSON, _ := cmd.Flags().GetBool("log-json")

	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
	logger := log.WithComponent("burrowd")

	if master == "" && masterFile == "" {
		return fmt.Errorf("one of --master or --master-file is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %v", err)
	}
	if workDir != "" {
		cfg.WorkDir = workDir
	}
	if resourcesFlag != "" {
		cfg.Resources = resourcesFlag
	}

	res, err := resources.Parse(cfg.Resources)
	if err != nil {
		return fmt.Errorf("failed to parse resources: %v", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("failed to determine hostname: %v", err)
	}
	publicHostname := os.Getenv(config.EnvPublicDNS)
	if publicHostname == "" {
		publicHostname = hostname
	}

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return fmt.Errorf("failed to create work directory: %v", err)
	}

	node, err := transport.NewNode(bindAddr, transport.Endpoint(advertise))
	if err != nil {
		return fmt.Errorf("failed to start transport: %v", err)
	}

	var journal *updates.Journal
	if cfg.Checkpoint {
		journal, err = updates.OpenJournal(filepath.Join(cfg.WorkDir, "updates.db"))
		if err != nil {
			return fmt.Errorf("failed to open status-update journal: %v", err)
		}
	}

	broker := events.NewBroker()
	broker.Start()

	ag := agent.New(agent.Options{
		Config: cfg,
		Info: types.AgentInfo{
			Hostname:       hostname,
			PublicHostname: publicHostname,
			Resources:      res,
			Attributes:     cfg.Attributes,
		},
		Transport: node,
		Isolation: isolation.NewProcessModule(),
		Journal:   journal,
		Events:    broker,
		Local:     local,
	})

	// The reaper reports exits back to the agent, so it is wired after
	// construction.
	rp := reaper.New(ag)
	ag.SetWatcher(rp)
	rp.Start()

	announce := func(msg messages.Message) { ag.Receive("", msg) }

	node.OnMessage(ag.Receive)
	node.OnExited(func(peer transport.Endpoint) {
		ag.PeerExited(peer)
		if masterFile == "" && string(peer) == master {
			// With a fixed master there is no election to announce its
			// return; keep re-introducing it until the link holds.
			announce(messages.NewMasterDetected{Master: master})
		}
	})
	api.Mount(node.Router(), ag)

	if err := ag.Start(); err != nil {
		return fmt.Errorf("failed to start agent: %v", err)
	}

	var det detector.Detector
	if masterFile != "" {
		det = detector.NewFile(masterFile, announce)
	} else {
		det = detector.NewStandalone(master, announce)
	}
	if err := det.Start(); err != nil {
		return fmt.Errorf("failed to start master detector: %v", err)
	}

	// Surface lifecycle events in the log.
	sub := broker.Subscribe()
	go func() {
		for ev := range sub {
			logger.Debug().Str("type", string(ev.Type)).
				Fields(map[string]interface{}{"metadata": ev.Metadata}).
				Msg(ev.Message)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		if err := node.Start(); err != nil {
			serveErr <- err
		}
	}()

	logger.Info().
		Str("endpoint", string(node.Addr())).
		Str("resources", res.String()).
		Msg("Agent is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serveErr:
		logger.Error().Err(err).Msg("Transport failed")
	case <-rp.Done():
		// Without the reaper, executor exits would go unnoticed and tasks
		// would leak. Not recoverable in-process.
		logger.Fatal().Msg("Process reaper terminated unexpectedly")
	}

	det.Stop()
	node.Stop()
	ag.Stop()
	rp.Stop()
	broker.Unsubscribe(sub)
	broker.Stop()
	return nil
}
