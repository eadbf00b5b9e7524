package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/flagger"
	"pulsecheck/internal/logging"
	"pulsecheck/internal/period"
	"pulsecheck/ui/console"
	"pulsecheck/ui/tui"
)

var reportPeriod string

// reportCmd prints the newest stored bucket of a period type.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the latest stored summaries of a period type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pt, err := period.ParseType(reportPeriod)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		client, repo, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		fl := flagger.NewFlaggerService(flagger.FromThresholds(getConfig().Thresholds))
		snap, err := tui.NewRepoProvider(repo, fl).Snapshot(ctx, pt)
		if err != nil {
			return err
		}
		console.Print(cmd.OutOrStdout(), snap.View)
		return nil
	},
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List known routes with their group keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, repo, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		routes, err := repo.ListRoutes(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, rt := range routes {
			fmt.Fprintf(out, "%-28s %-7s %s  (first seen %s)\n", relational.RouteKey(rt.RouteID), rt.Method, rt.Path, humanize.Time(rt.CreatedAt))
		}
		fmt.Fprintf(out, "%s routes\n", humanize.Comma(int64(len(routes))))
		return nil
	},
}

var dashboardPeriod string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the interactive latency dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pt, err := period.ParseType(dashboardPeriod)
		if err != nil {
			return err
		}
		client, repo, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		// The TUI owns the terminal.
		logging.Quiet()

		fl := flagger.NewFlaggerService(flagger.FromThresholds(getConfig().Thresholds))
		return tui.Start(tui.NewRepoProvider(repo, fl), pt)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportPeriod, "period", "p", "hour", "period type: hour, day, week or month")
	dashboardCmd.Flags().StringVarP(&dashboardPeriod, "period", "p", "hour", "initial period tab")

	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(dashboardCmd)
}
