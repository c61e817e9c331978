// Command cleanup runs one cleanup sweep against the configured store and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-verification/pkg/bootstrap"
	"github.com/tendant/simple-verification/pkg/cleanup"
	"github.com/tendant/simple-verification/pkg/config"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))

	daysOld := flag.Int("days-old", cfg.Cleanup.DaysOld, "Delete identities unverified for this many days")
	dryRun := flag.Bool("dry-run", false, "Only count what would be deleted")
	timeout := flag.Duration("timeout", cfg.Cleanup.Timeout, "Abort the sweep after this long")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, *daysOld, *dryRun); err != nil {
		slog.Error("Cleanup failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, daysOld int, dryRun bool) error {
	repos, err := bootstrap.OpenRepositories(ctx, cfg.Persistence, cfg.Database)
	if err != nil {
		return err
	}
	defer repos.Close()

	engine := cleanup.NewEngine(repos.Cleanup, cleanup.WithDaysOld(cfg.Cleanup.DaysOld))

	if dryRun {
		p, err := engine.Preview(ctx, daysOld)
		if err != nil {
			return err
		}
		fmt.Printf("Would delete (created before %s):\n", p.CreatedBefore.Format(time.RFC3339))
		fmt.Printf("  unverified identities:     %d\n", p.UnverifiedIdentities)
		fmt.Printf("  expired email records:     %d\n", p.ExpiredEmailRecords)
		fmt.Printf("  expired identity records:  %d\n", p.ExpiredIdentityRecords)
		fmt.Printf("  total:                     %d\n", p.Total)
		return nil
	}

	res, err := engine.Trigger(ctx, daysOld)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d unverified identities and %d expired records in %s\n",
		res.UnverifiedIdentitiesDeleted, res.ExpiredRecordsDeleted, res.Duration().Round(time.Millisecond))
	return res.Err()
}
