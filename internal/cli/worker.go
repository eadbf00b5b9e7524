package cli

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database"
	"pulsecheck/internal/database/graph"
	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/flagger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the rollup worker until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, repo, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		w, err := newWorker(ctx, repo, getConfig())
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		log.WithField("interval", getConfig().Rollup.Interval.String()).Info("rollup worker started")

		<-ctx.Done()
		log.Info("shutting down rollup worker")
		w.Stop()
		return nil
	},
}

// newWorker assembles a RollupWorker over repo, with the Neo4j mirror when enabled and reachable.
func newWorker(ctx context.Context, repo *relational.Repo, cfg config.Config) (*database.RollupWorker, error) {
	eng, coord, err := rollupStack(repo)
	if err != nil {
		return nil, err
	}

	var g graph.GraphClient
	if cfg.Graph.Enabled {
		neo, err := graph.NewNeo4jClient(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			log.WithError(err).Warn("neo4j unavailable, graph mirror disabled")
		} else {
			g = neo
		}
	}

	fl := flagger.NewFlaggerService(flagger.FromThresholds(cfg.Thresholds))
	w, err := database.NewRollupWorker(eng, coord, repo, fl, g, cfg.Rollup)
	if err != nil {
		if g != nil {
			cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			_ = g.Close(cctx)
		}
		return nil, err
	}
	return w, nil
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
