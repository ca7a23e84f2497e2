package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldops/visitwatch/internal/config"
	"github.com/fieldops/visitwatch/internal/diff"
	"github.com/fieldops/visitwatch/internal/logger"
	"github.com/fieldops/visitwatch/internal/notification"
	"github.com/fieldops/visitwatch/internal/service"
	"github.com/fieldops/visitwatch/internal/state"
)

var detectCmd = &cobra.Command{
	Use:   "detect <user-id>",
	Short: "Run one detection cycle for a user",
	Long:  "Compare the user's stored snapshot pair, print the resulting change set, and route it through the configured channels.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDetect,
}

var detectDryRun bool

func init() {
	detectCmd.Flags().BoolVar(&detectDryRun, "dry-run", false, "print the change set without dispatching anything")
}

func runDetect(cmd *cobra.Command, args []string) error {
	userID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewConsoleLogger(cfg.SlogLevel())

	locks := state.NewLocks()
	snapshots := state.NewSnapshotStore(cfg.SnapshotsDir(), locks)
	digests := state.NewDigestStore(cfg.DigestsDir(), locks)
	users := state.NewUserStore(cfg.UsersDir())
	oracle := state.NewCompletedJobOracle(cfg.RegistryDir(), log)

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
	svc := service.NewChangeService(snapshots, digests, users, oracle, detector, gateway, nil, log)

	cs, err := svc.DetectChanges(cmd.Context(), userID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cs); err != nil {
		return err
	}

	if detectDryRun || cs.Empty() {
		return nil
	}

	decision, err := svc.RouteChangeSet(cmd.Context(), userID, cs)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "routed: %s\n", decision)
	return nil
}
