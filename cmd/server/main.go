package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/config"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/conn"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/console"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/dispatcher"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/executor"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/extract"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/hub"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/logging"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/server"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/store"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

const version = "0.1.0"

func main() {
	// Child processes of the process-mode pool re-enter here.
	if len(os.Args) > 1 && os.Args[1] == executor.ExtractCommand {
		if len(os.Args) != 3 {
			fmt.Fprintf(os.Stderr, "usage: %s %s <file>\n", os.Args[0], executor.ExtractCommand)
			os.Exit(2)
		}
		if err := executor.ServeExtract(os.Stdout, os.Args[2], extract.File); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	configFile := flag.String("config", "", "Path to a YAML config file")
	flagCfg := config.DefaultServerConfig()
	flag.StringVar(&flagCfg.Addr, "addr", flagCfg.Addr, "Client listen address")
	flag.StringVar(&flagCfg.AdminAddr, "admin-addr", flagCfg.AdminAddr, "Operator API address (empty disables it)")
	flag.StringVar(&flagCfg.LogLevel, "log-level", flagCfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&flagCfg.LogFormat, "log-format", flagCfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&flagCfg.LogFile, "log-file", flagCfg.LogFile, "Append a copy of the log to this file (empty disables it)")
	flag.StringVar(&flagCfg.DBPath, "db", flagCfg.DBPath, "SQLite history path (empty disables history)")
	flag.StringVar(&flagCfg.TextDir, "text-dir", flagCfg.TextDir, "Directory with the *.txt file pool")
	flag.BoolVar(&flagCfg.Console, "console", flagCfg.Console, "Read operator commands from stdin")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg := flagCfg
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
		// Explicit flags win over the file.
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "addr":
				cfg.Addr = flagCfg.Addr
			case "admin-addr":
				cfg.AdminAddr = flagCfg.AdminAddr
			case "log-level":
				cfg.LogLevel = flagCfg.LogLevel
			case "log-format":
				cfg.LogFormat = flagCfg.LogFormat
			case "log-file":
				cfg.LogFile = flagCfg.LogFile
			case "db":
				cfg.DBPath = flagCfg.DBPath
			case "text-dir":
				cfg.TextDir = flagCfg.TextDir
			case "console":
				cfg.Console = flagCfg.Console
			}
		})
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.Open(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := os.MkdirAll(cfg.TextDir, 0o755); err != nil {
		logger.Error("create text directory", "dir", cfg.TextDir, "error", err)
		os.Exit(1)
	}
	if files, err := hub.ListTextFiles(cfg.TextDir); err == nil {
		logger.Info("file pool ready", "dir", cfg.TextDir, "files", len(files))
	}

	// Open the history store if configured.
	var st store.Store
	if cfg.DBPath != "" {
		sqlite, err := store.NewSQLiteStore(cfg.DBPath, logger)
		if err != nil {
			logger.Error("open database", "error", err)
			os.Exit(1)
		}
		defer sqlite.Close()
		if err := sqlite.Migrate(context.Background()); err != nil {
			logger.Error("migrate database", "error", err)
			os.Exit(1)
		}
		logger.Info("database ready", "path", cfg.DBPath)
		st = sqlite
	}

	// Executors for both isolation modes.
	command := cfg.ProcessCommand
	if len(command) == 0 {
		if command, err = executor.SelfCommand(); err != nil {
			logger.Error("resolve process command", "error", err)
			os.Exit(1)
		}
	}
	executors := executor.NewRegistry(logger)
	executors.Register(executor.NewThreadExecutor(cfg.TextDir, extract.File, logger))
	executors.Register(executor.NewProcessExecutor(command, cfg.TextDir, logger))

	reg := hub.NewRegistry()
	if err := reg.SetDefaultConfig(cfg.DefaultSession); err != nil {
		logger.Error("default session config", "error", err)
		os.Exit(1)
	}
	disp := dispatcher.New(reg, executors, st, logger)
	h := hub.New(reg, disp, cfg.TextDir, logger)
	info := model.ServerInfo{Name: "os-scheduler", Version: version}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := disp.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("dispatcher stopped", "error", err)
		}
	}()

	var httpServer *http.Server
	if cfg.AdminAddr != "" {
		opts := []server.Option{server.WithMaxSimulationTicks(cfg.MaxSimTicks)}
		if st != nil {
			opts = append(opts, server.WithStore(st))
		}
		srv := server.New(info, h, disp, logger, opts...)
		httpServer = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("operator API starting", "addr", cfg.AdminAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("operator API failed", "error", err)
				stop()
			}
		}()
	}

	if cfg.Console {
		c := console.New(h, disp, os.Stdin, os.Stdout, logger)
		go func() {
			if err := c.Run(ctx); err != nil {
				logger.Error("console stopped", "error", err)
			}
			// "exit" or end of input shuts the server down.
			stop()
		}()
	}

	listener := conn.NewListener(conn.NewHandler(h, info, cfg.WriteTimeout, logger), reg, logger)
	if err := listener.ListenAndServe(ctx, cfg.Addr); err != nil {
		logger.Error("listen failed", "addr", cfg.Addr, "error", err)
		stop()
	}
	logger.Info("shutting down")

	// Connections are closed; stop the dispatcher before the API.
	disp.Stop()
	wg.Wait()

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("operator API shutdown", "error", err)
		}
	}
	logger.Info("server stopped")
}
