package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/fieldops/visitwatch/internal/api"
	"github.com/fieldops/visitwatch/internal/config"
	"github.com/fieldops/visitwatch/internal/diff"
	"github.com/fieldops/visitwatch/internal/eventbus"
	"github.com/fieldops/visitwatch/internal/logger"
	"github.com/fieldops/visitwatch/internal/metrics"
	"github.com/fieldops/visitwatch/internal/notification"
	"github.com/fieldops/visitwatch/internal/scheduler"
	"github.com/fieldops/visitwatch/internal/server"
	"github.com/fieldops/visitwatch/internal/service"
	"github.com/fieldops/visitwatch/internal/state"
	"github.com/fieldops/visitwatch/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and digest scheduler",
	Long:  "Start the visitwatch API server, the completed-job registry watcher, and the digest delivery scheduler.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (overrides PORT env var)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}

	log, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.NewSQLiteDB(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening delivery log database: %w", err)
	}
	defer func() { _ = db.Close() }()
	notifStore := storage.NewSQLiteNotificationStore(db)

	locks := state.NewLocks()
	snapshots := state.NewSnapshotStore(cfg.SnapshotsDir(), locks)
	digests := state.NewDigestStore(cfg.DigestsDir(), locks)
	users := state.NewUserStore(cfg.UsersDir())
	oracle := state.NewCompletedJobOracle(cfg.RegistryDir(), log)

	go func() {
		if err := oracle.Watch(ctx); err != nil {
			log.Warn("registry watcher stopped, falling back to read-through loads", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	pipelineMetrics := metrics.New(registry)

	bus := eventbus.New(2, log)
	defer bus.Close()
	bus.Subscribe(service.NewRecorder(notifStore, pipelineMetrics, log))

	gateway := notification.NewGateway(
		notification.NewSMTPProvider(notification.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Username:   cfg.SMTPUsername,
			Password:   cfg.SMTPPassword,
			FromAddr:   cfg.SMTPFromAddr,
			Encryption: cfg.SMTPEncryption,
		}),
		notification.NewPushoverProvider(cfg.PushoverToken),
		log,
	)

	detector := diff.NewDetector(log, diff.WithSwapWindow(cfg.SwapWindowDays))
	changeSvc := service.NewChangeService(snapshots, digests, users, oracle, detector, gateway, bus, log)
	digestSvc := service.NewDigestService(digests, users, gateway, bus, log)

	sched, err := scheduler.New(scheduler.Config{
		Users:           users,
		Digests:         digestSvc,
		TickInterval:    cfg.TickInterval(),
		WindowTolerance: cfg.WindowTolerance(),
		Logger:          log,
	})
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = sched.Stop() }()

	apiSrv := api.New(changeSvc, digestSvc, notifStore, sched, log)
	srv := server.New(apiSrv, registry, cfg.Port, log)

	fmt.Fprintf(os.Stderr, "visitwatch running on http://localhost:%d (data: %s)\n", cfg.Port, cfg.DataDir)
	return srv.Run(ctx)
}
