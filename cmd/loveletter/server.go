package main

import (
	"time"

	"github.com/lox/loveletter/cmd/loveletter/shared"
	"github.com/lox/loveletter/internal/engine"
	"github.com/lox/loveletter/internal/game"
	"github.com/lox/loveletter/internal/randutil"
	"github.com/lox/loveletter/internal/server"
	"github.com/lox/loveletter/internal/store"
)

// ServerCmd runs the game server
type ServerCmd struct {
	Config   string `short:"c" default:"loveletter.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	DB       string `help:"SQLite database path (overrides config)"`
	Seed     *int64 `help:"Deterministic shuffle seed (optional)"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}

	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.DB != "" {
		cfg.Game.DatabasePath = c.DB
	}
	if c.Seed != nil {
		cfg.Game.Seed = *c.Seed
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := shared.SetupLogger(cfg.Server.LogLevel)
	if cfg.Server.LogFile != "" {
		var cleanup func()
		logger, cleanup = shared.SetupFileLogger(cfg.Server.LogFile, cfg.Server.LogLevel)
		defer cleanup()
	}

	var st store.Store
	if cfg.Game.DatabasePath != "" {
		st, err = store.OpenSQLite(cfg.Game.DatabasePath)
		if err != nil {
			return err
		}
		logger.Info("Using SQLite store", "path", cfg.Game.DatabasePath)
	} else {
		st = store.NewMemoryStore()
		logger.Info("Using in-memory store, games will not survive a restart")
	}
	defer func() { _ = st.Close() }()

	seed := cfg.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Info("Shuffle seed", "seed", seed)

	eng := engine.New(st, game.NewEventBus(), logger,
		engine.WithRand(randutil.New(seed)))

	wsServer := server.NewServer(cfg.ListenAddr(), logger)
	gameService := server.NewGameService(eng, wsServer, logger)
	wsServer.SetGameService(gameService)

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- wsServer.Start()
	}()

	logger.Info("Love Letter server ready", "addr", cfg.ListenAddr())

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
		return wsServer.Stop()
	case err := <-serverErr:
		return err
	}
}
