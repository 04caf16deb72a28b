// Command achievements-backfill recomputes achievement awards and cached XP
// for existing users, for example after the catalog changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"deckhub/config"
	"deckhub/database"
	"deckhub/services/achievements"

	"github.com/spf13/cobra"
)

type backend interface {
	achievements.Store
	Close() error
}

type opener func(ctx context.Context) (backend, error)

type options struct {
	dryRun  bool
	reset   bool
	all     bool
	emails  []string
	userIDs []string
}

func (o options) filter() (achievements.UserFilter, error) {
	f := achievements.UserFilter{IDs: o.userIDs, Emails: o.emails}
	hasFilter := len(f.IDs) > 0 || len(f.Emails) > 0
	switch {
	case o.all && hasFilter:
		return f, errors.New("--all cannot be combined with --email or --user-id")
	case !o.all && !hasFilter:
		return f, errors.New("select users with --email, --user-id, or --all")
	}
	return f, nil
}

func openFromEnv(ctx context.Context) (backend, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	return database.OpenBackend(ctx, cfg)
}

func newRootCmd(open opener) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "achievements-backfill",
		Short: "Recompute achievement awards and XP for existing users",
		Long: `Recompute achievement awards and cached achievement XP.

Awards are only ever added. --reset drops a user's existing awards first and
regrants them from current history. --dry-run reports what would change
without writing anything.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, open, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report changes without writing")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "discard existing awards before recomputing")
	cmd.Flags().BoolVar(&opts.all, "all", false, "process every user")
	cmd.Flags().StringSliceVar(&opts.emails, "email", nil, "user email to process (repeatable)")
	cmd.Flags().StringSliceVar(&opts.userIDs, "user-id", nil, "user id to process (repeatable)")
	return cmd
}

func run(cmd *cobra.Command, open opener, opts options) error {
	filter, err := opts.filter()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := open(ctx)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	engine := achievements.NewEngine(store)
	if _, err := engine.EnsureCatalog(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tXP\tRANK\tUNLOCKED")

	report, err := engine.Backfill(ctx, filter, achievements.RecomputeOptions{DryRun: opts.dryRun, Reset: opts.reset},
		func(userID string, res *achievements.AwardResult, err error) {
			if err != nil {
				fmt.Fprintf(w, "%s\terror\t-\t%v\n", userID, err)
				return
			}
			unlocked := "-"
			if len(res.Unlocked) > 0 {
				keys := make([]string, 0, len(res.Unlocked))
				for _, u := range res.Unlocked {
					keys = append(keys, u.Key)
				}
				unlocked = strings.Join(keys, ",")
			}
			fmt.Fprintf(w, "%s\t%d -> %d\t%s\t%s\n", userID, res.PreviousAchievementXP, res.AchievementXP, res.Rank.Name, unlocked)
		})
	if flushErr := w.Flush(); flushErr != nil && err == nil {
		err = flushErr
	}
	if err != nil {
		return err
	}

	mode := "applied"
	if opts.dryRun {
		mode = "dry run"
	}
	fmt.Fprintf(out, "\n%s: %d users, %d changed, %d badges unlocked, %d failed\n",
		mode, report.Users, report.Changed, report.Unlocked, report.Failed)
	if report.Failed > 0 {
		return fmt.Errorf("%d users failed", report.Failed)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(openFromEnv).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
