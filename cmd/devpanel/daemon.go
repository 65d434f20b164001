package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"vawter.tech/stopper"

	"github.com/panelkit/devpanel/internal/api"
	"github.com/panelkit/devpanel/internal/config"
	"github.com/panelkit/devpanel/internal/dockerproxy"
	"github.com/panelkit/devpanel/internal/logger"
	"github.com/panelkit/devpanel/internal/logs"
	"github.com/panelkit/devpanel/internal/models"
	"github.com/panelkit/devpanel/internal/registry"
	"github.com/panelkit/devpanel/internal/state"
	"github.com/panelkit/devpanel/internal/store"
	"github.com/panelkit/devpanel/internal/supervisor"
)

const (
	// migrateDelay postpones the one-shot file-to-database log import
	// so it never competes with startup.
	migrateDelay = 5 * time.Second
	// shutdownTimeout bounds the graceful HTTP drain.
	shutdownTimeout = 30 * time.Second
	// stopGrace bounds how long tailers and the log writer get to
	// flush after the HTTP server has drained.
	stopGrace = 5 * time.Second
)

var (
	configPath string
	listenAddr string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the devpanel daemon",
	Long:  `Starts the devpanel daemon which detects workspace services, supervises their processes, tails their logs, and serves the HTTP API.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address, overrides the configured host:port")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr == "" {
		listenAddr = cfg.Addr()
	}

	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	log.Info("starting devpanel daemon", "addr", listenAddr, "project_root", cfg.ProjectRoot)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// The SQLite store is optional: without it the panel still runs,
	// serving logs straight from the files.
	var writer *store.Writer
	st, err := store.New(cfg.DBPath())
	if err != nil {
		log.Warn("log database unavailable, running in file-only mode", "error", err)
		st = nil
	} else {
		writer = store.NewWriter(st, log)
	}

	stateStore := state.New(cfg.StatePath())

	services := registry.Detect(cfg.ProjectRoot)
	log.Info("detected services", "count", len(services))
	reg := registry.New(services)

	if names, err := registry.ComposeServices(cfg.ProjectRoot); err != nil {
		log.Warn("could not read compose file", "error", err)
	} else if len(names) > 0 {
		log.Info("compose services present", "services", names)
	}

	sctx := stopper.WithContext(context.Background())

	hub := logs.NewHub()
	logMgr, err := logs.NewManager(sctx, cfg.Logs.Dir, cfg.Logs.PollInterval(), hub, st, writer, log)
	if err != nil {
		return err
	}
	for _, svc := range services {
		if err := logMgr.RegisterService(svc.ID); err != nil {
			log.Warn("could not register service logs", "service", svc.ID, "error", err)
		}
	}
	if writer != nil {
		writer.Start(sctx)
	}

	sup := supervisor.New(cfg.Supervisor.AutoRestart, cfg.Supervisor.MaxRestartAttempts, cfg.Logs.Dir, stateStore, log)

	docker, err := dockerproxy.New(log)
	if err != nil {
		log.Warn("docker engine unavailable, container endpoints disabled", "error", err)
		docker = nil
	}

	server := api.New(reg, sup, logMgr, docker, log)

	// One-shot import of pre-existing file logs into the database,
	// delayed past startup and gated on an empty logs table so a
	// daemon restart never re-imports.
	if st != nil {
		sctx.Go(func(ctx *stopper.Context) error {
			select {
			case <-ctx.Stopping():
				return nil
			case <-time.After(migrateDelay):
			}
			count, err := st.CountLogs(models.LogFilters{})
			if err != nil || count > 0 {
				return nil
			}
			if migrated := logMgr.MigrateAll(); migrated > 0 {
				log.Info("imported file logs into database", "entries", migrated)
			}
			return nil
		})
	}

	// Daily retention sweep.
	var cr *cron.Cron
	if st != nil {
		cr = cron.New()
		cr.AddFunc("@daily", func() {
			deleted, err := st.CleanupOldLogs(cfg.Logs.RetentionDays)
			if err != nil {
				log.Warn("log cleanup failed", "error", err)
				return
			}
			if deleted > 0 {
				log.Info("removed old logs", "deleted", deleted, "retention_days", cfg.Logs.RetentionDays)
			}
		})
		cr.Start()
	}

	// Re-adopt processes left running by a previous daemon.
	sup.Recover(reg.All())

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		if err := server.Start(listenAddr); err != nil {
			serverErr <- err
		}
		close(serverErr)
	}()

	log.Info("devpanel daemon ready", "addr", listenAddr)

	// Wait for shutdown signal or server error
	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			log.Error("server error", "error", err)
			runErr = err
		}
	}

	// Supervised processes stay running across daemon restarts; the
	// state snapshot lets the next daemon re-adopt them.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", "error", err)
	}
	if cr != nil {
		cr.Stop()
	}
	sctx.Stop(stopGrace)
	_ = sctx.Wait()
	if docker != nil {
		docker.Close()
	}
	if st != nil {
		if err := st.Close(); err != nil {
			log.Warn("database close error", "error", err)
		}
	}

	log.Info("shutdown complete")
	return runErr
}
