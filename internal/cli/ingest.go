package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/ingest"
)

var ingestFile string

// traceLine is one JSON line of the ingest format: a request and its operations.
type traceLine struct {
	Method     string          `json:"method"`
	Path       string          `json:"path"`
	At         time.Time       `json:"at"`
	DurationMS float64         `json:"duration_ms"`
	Status     *int            `json:"status"`
	ViewMS     float64         `json:"view_ms"`
	DBMS       float64         `json:"db_ms"`
	Operations []operationLine `json:"operations"`
}

type operationLine struct {
	Type       string    `json:"type"`
	Label      string    `json:"label"`
	SQL        *string   `json:"sql"`
	Location   string    `json:"location"`
	At         time.Time `json:"at"`
	DurationMS float64   `json:"duration_ms"`
}

func (l traceLine) events() (ingest.RequestEvent, []ingest.OperationEvent) {
	req := ingest.RequestEvent{
		Method:     l.Method,
		Path:       l.Path,
		OccurredAt: l.At,
		DurationMS: l.DurationMS,
		Status:     l.Status,
		ViewMS:     l.ViewMS,
		DBMS:       l.DBMS,
	}
	ops := make([]ingest.OperationEvent, 0, len(l.Operations))
	for _, o := range l.Operations {
		ops = append(ops, ingest.OperationEvent{
			Type:             relational.OperationType(o.Type),
			Label:            o.Label,
			SQL:              o.SQL,
			CodebaseLocation: o.Location,
			OccurredAt:       o.At,
			DurationMS:       o.DurationMS,
		})
	}
	return req, ops
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Record request traces from JSON lines (file or stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if ingestFile != "" && ingestFile != "-" {
			f, err := os.Open(ingestFile)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		ctx := cmd.Context()
		client, repo, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		p, err := ingest.NewPipeline(repo)
		if err != nil {
			return err
		}
		n, err := ingestTraces(ctx, p, in)
		fmt.Fprintf(cmd.OutOrStdout(), "%s traces recorded\n", humanize.Comma(int64(n)))
		return err
	},
}

// ingestTraces records every line of r and returns how many requests were stored.
// Bad lines are reported together once the input is exhausted.
func ingestTraces(ctx context.Context, p *ingest.Pipeline, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		n    int
		errs error
		line int
	)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return n, multierr.Append(errs, err)
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var tl traceLine
		if err := json.Unmarshal(raw, &tl); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		req, ops := tl.events()
		id, err := p.RecordTrace(ctx, req, ops)
		if id != 0 {
			n++
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", line, err))
		}
	}
	if err := scanner.Err(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		log.WithField("failed", len(multierr.Errors(errs))).Warn("ingest finished with errors")
	}
	return n, errs
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "-", "JSON lines file, - for stdin")

	rootCmd.AddCommand(ingestCmd)
}
