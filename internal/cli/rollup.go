package cli

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/engine"
	"pulsecheck/internal/flagger"
	"pulsecheck/internal/output"
	"pulsecheck/internal/period"
	"pulsecheck/internal/rollup"
	"pulsecheck/ui/console"
)

var (
	aggregatePeriod string
	aggregateAt     string
	finalizeDate    string
)

// rollupStack builds the engine and coordinator over repo.
func rollupStack(repo *relational.Repo) (*engine.Engine, *rollup.Coordinator, error) {
	cfg := getConfig()
	eng, err := engine.New(repo, repo, cfg.Thresholds)
	if err != nil {
		return nil, nil, err
	}
	coord, err := rollup.New(eng, repo, repo, cfg)
	if err != nil {
		return nil, nil, err
	}
	return eng, coord, nil
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Summarize the period containing --at and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pt, err := period.ParseType(aggregatePeriod)
		if err != nil {
			return err
		}
		at, err := parseInstant(aggregateAt)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client, repo, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		eng, coord, err := rollupStack(repo)
		if err != nil {
			return err
		}
		summaries, err := eng.Aggregate(ctx, pt, at)
		if err != nil {
			return err
		}
		if pt == period.Hour {
			if err := coord.RecordHourSummaries(ctx, summaries); err != nil {
				return err
			}
		}
		return printSummaries(ctx, cmd, repo, summaries)
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Recompute the daily totals of every group active on --date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseInstant(finalizeDate)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client, repo, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		eng, coord, err := rollupStack(repo)
		if err != nil {
			return err
		}
		closed, err := finalizeGroups(ctx, eng, coord, day)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d daily records finalized\n", period.Start(period.Day, day).Format("2006-01-02"), closed)
		return err
	},
}

// finalizeGroups closes the day for every group the day summary found.
func finalizeGroups(ctx context.Context, agg rollup.Aggregator, coord *rollup.Coordinator, day time.Time) (int, error) {
	summaries, err := agg.Aggregate(ctx, period.Day, day)
	if err != nil {
		return 0, err
	}
	closed := 0
	var errs error
	for _, s := range summaries {
		ok, err := coord.FinalizeDay(ctx, s.Group, day)
		if err != nil {
			log.WithError(err).WithField("group", s.Group.String()).Warn("finalize failed")
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, errs
}

func printSummaries(ctx context.Context, cmd *cobra.Command, repo *relational.Repo, summaries []relational.Summary) error {
	keys := make([]relational.GroupKey, 0, len(summaries))
	for _, s := range summaries {
		keys = append(keys, s.Group)
	}
	labels, err := repo.LookupLabels(ctx, keys)
	if err != nil {
		return err
	}
	fl := flagger.NewFlaggerService(flagger.FromThresholds(getConfig().Thresholds))
	console.Print(cmd.OutOrStdout(), output.BuildDashboard(summaries, labels, fl))
	return nil
}

func init() {
	aggregateCmd.Flags().StringVarP(&aggregatePeriod, "period", "p", "hour", "period type: hour, day, week or month")
	aggregateCmd.Flags().StringVar(&aggregateAt, "at", "", "instant inside the period, RFC3339 or YYYY-MM-DD (default now)")
	finalizeCmd.Flags().StringVar(&finalizeDate, "date", "", "UTC day to finalize, YYYY-MM-DD (default today)")

	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(finalizeCmd)
}
