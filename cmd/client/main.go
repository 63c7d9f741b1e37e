package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/emberlink/pkg/adapter"
	"github.com/cbodonnell/emberlink/pkg/api"
	"github.com/cbodonnell/emberlink/pkg/clock"
	"github.com/cbodonnell/emberlink/pkg/config"
	"github.com/cbodonnell/emberlink/pkg/core"
	"github.com/cbodonnell/emberlink/pkg/deathlink"
	"github.com/cbodonnell/emberlink/pkg/gamedata"
	"github.com/cbodonnell/emberlink/pkg/hints"
	"github.com/cbodonnell/emberlink/pkg/ledger"
	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/protocol"
	"github.com/cbodonnell/emberlink/pkg/queue"
	"github.com/cbodonnell/emberlink/pkg/repositories"
	"github.com/cbodonnell/emberlink/pkg/seedbind"
	"github.com/cbodonnell/emberlink/pkg/session"
	"github.com/cbodonnell/emberlink/pkg/state"
	"github.com/cbodonnell/emberlink/pkg/tracker"
	"github.com/cbodonnell/emberlink/pkg/version"
)

func main() {
	configPath := flag.String("config", "emberlink.json", "Path to the config file written by the seed generator")
	logLevel := flag.String("log-level", "info", "Log level")
	apiPort := flag.Int("api-port", 8989, "Port for the local status API")
	migrationsDir := flag.String("migrations", "migrations", "Path to the database migrations directory")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting emberlink version %s", version.Get())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if cfg.GeneratorVersion != "" && cfg.GeneratorVersion != version.Get() {
		panic(fmt.Sprintf("Config was generated by version %s but this client is version %s", cfg.GeneratorVersion, version.Get()))
	}

	gameData, err := gamedata.Load(cfg.GameDataPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load game data: %v", err))
	}
	log.Info("Loaded game data: %d templates, %d locations", gameData.TemplateCount(), gameData.LocationCount())

	repository, err := repositories.NewSQLiteRepository(ctx, cfg.DatabasePath, *migrationsDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer repository.Close(ctx)

	realClock := clock.NewRealClock()

	// TODO: replace the in-memory adapter with the process-attach adapter
	// once the memory layout tables are finalized.
	gameAdapter := adapter.NewInMemoryAdapter()
	gameEventQueue := queue.NewInMemoryQueue(1000)

	sessionManager := session.NewManager(session.NewManagerOptions{
		ServerURL: cfg.ServerURL,
		Slot:      cfg.Slot,
		Password:  cfg.Password,
		Tags:      sessionTags(cfg),
		Clock:     realClock,
	})

	trackerManager := tracker.NewTracker(tracker.NewTrackerOptions{
		Repository: repository,
		Clock:      realClock,
	})

	itemLedger := ledger.NewLedger(ledger.NewLedgerOptions{
		Repository:  repository,
		GameData:    gameData,
		GameAdapter: gameAdapter,
		Checks:      trackerManager,
		Clock:       realClock,
	})

	deathLink := deathlink.NewCoordinator(deathlink.NewCoordinatorOptions{
		Slot:        cfg.Slot,
		Config:      cfg.DeathLink,
		GameAdapter: gameAdapter,
		Clock:       realClock,
	})

	hintEmitter := hints.NewEmitter(hints.NewEmitterOptions{
		GameData: gameData,
	})

	seedBinder := seedbind.NewBinder(seedbind.NewBinderOptions{
		GameAdapter: gameAdapter,
		ConfigSeed:  cfg.Seed,
	})

	stateManager := state.NewInMemoryStateManager()

	apiServer := api.NewAPIServer(api.NewAPIServerOptions{
		Port:         *apiPort,
		StateManager: stateManager,
	})
	go apiServer.Start()
	defer func() {
		if err := apiServer.Stop(context.Background()); err != nil {
			log.Error("Failed to stop API server: %v", err)
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("Shutting down")
		cancel()
	}()

	syncLoopInterval := 100 * time.Millisecond
	coreManager := core.NewManager(core.NewManagerOptions{
		Session:        sessionManager,
		Ledger:         itemLedger,
		Tracker:        trackerManager,
		DeathLink:      deathLink,
		Hints:          hintEmitter,
		SeedBinder:     seedBinder,
		GameAdapter:    gameAdapter,
		GameEventQueue: gameEventQueue,
		StateManager:   stateManager,
		Clock:          realClock,
		Slot:           cfg.Slot,
		LoopInterval:   syncLoopInterval,
	})

	log.Info("Starting sync loop")
	if err := coreManager.Start(ctx); err != nil {
		panic(fmt.Sprintf("Failed to run sync loop: %v", err))
	}
	if err := coreManager.FatalErr(); err != nil {
		log.Error("Stopped with fatal error: %v", err)
		os.Exit(1)
	}
}

func sessionTags(cfg *config.Config) []string {
	var tags []string
	if cfg.DeathLink.Enabled {
		tags = append(tags, protocol.DeathLinkTag)
	}
	return tags
}
