package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldops/visitwatch/internal/config"
	"github.com/fieldops/visitwatch/internal/logger"
	"github.com/fieldops/visitwatch/internal/notification"
	"github.com/fieldops/visitwatch/internal/service"
	"github.com/fieldops/visitwatch/internal/state"
)

var flushCmd = &cobra.Command{
	Use:   "flush <user-id>",
	Short: "Force a user's pending digest out now",
	Long:  "Combine and deliver the user's accumulated digest queue immediately, regardless of the delivery window.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlush,
}

func runFlush(cmd *cobra.Command, args []string) error {
	userID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewConsoleLogger(cfg.SlogLevel())

	locks := state.NewLocks()
	digests := state.NewDigestStore(cfg.DigestsDir(), locks)
	users := state.NewUserStore(cfg.UsersDir())

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

	svc := service.NewDigestService(digests, users, gateway, nil, log)

	cs, err := svc.Flush(cmd.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrNothingPending) {
			fmt.Fprintf(os.Stderr, "nothing pending for %s\n", userID)
			return nil
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "flushed %d changes for %s\n", cs.Summary.Total(), userID)
	return nil
}
