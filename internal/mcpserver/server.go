// Package mcpserver exposes the normalizer, the stored summaries and the
// backfill job as MCP tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	log "github.com/sirupsen/logrus"

	"pulsecheck/internal/config"
	"pulsecheck/internal/database/graph"
	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/engine"
	"pulsecheck/internal/flagger"
	"pulsecheck/internal/period"
	"pulsecheck/internal/rollup"
	"pulsecheck/internal/sqlnorm"
)

// Server wraps the MCP server with pulsecheck capabilities.
type Server struct {
	mcpServer   *mcp.Server
	duckdbRepo  *relational.Repo
	coordinator *rollup.Coordinator
	neighbors   *graph.RelationalGraphWrapper
	neo4jClient graph.GraphClient // nil when the graph mirror is disabled
	flaggerSvc  *flagger.FlaggerService
}

// NewServer creates a new MCP server instance over an open database.
func NewServer(cfg config.Config, client *relational.DuckDBClient, repo *relational.Repo) (*Server, error) {
	if client == nil || repo == nil {
		return nil, errors.New("database client and repo are required")
	}

	eng, err := engine.New(repo, repo, cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	coord, err := rollup.New(eng, repo, repo, cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		duckdbRepo:  repo,
		coordinator: coord,
		neighbors:   graph.NewRelationalGraphWrapper(client),
		flaggerSvc:  flagger.NewFlaggerService(flagger.FromThresholds(cfg.Thresholds)),
	}

	if cfg.Graph.Enabled {
		neo, err := graph.NewNeo4jClient(cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			log.WithError(err).Warn("neo4j unavailable, query_graph disabled")
		} else {
			s.neo4jClient = neo
		}
	}

	// Create MCP server with Implementation
	impl := &mcp.Implementation{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}
	s.mcpServer = mcp.NewServer(impl, nil)

	// Register tools
	s.registerTools()
	return s, nil
}

// NormalizeSQLArgs defines the input for normalize_sql tool.
type NormalizeSQLArgs struct {
	SQL string `json:"sql" jsonschema:"the raw SQL statement"`
}

// NormalizeSQLResult defines the output for normalize_sql tool.
type NormalizeSQLResult struct {
	Normalized string `json:"normalized" jsonschema:"canonical query shape with literals replaced by ?"`
	Changed    bool   `json:"changed" jsonschema:"whether normalization altered the input"`
}

// SummariesArgs defines the input for get_summaries tool.
type SummariesArgs struct {
	Group      string `json:"group,omitempty" jsonschema:"exact group key: overall, route:<id> or query:<id>"`
	Kind       string `json:"kind,omitempty" jsonschema:"group kind filter: overall, route or query"`
	PeriodType string `json:"period_type,omitempty" jsonschema:"hour, day, week or month"`
	From       string `json:"from,omitempty" jsonschema:"earliest period start, RFC3339 or YYYY-MM-DD"`
	To         string `json:"to,omitempty" jsonschema:"exclusive latest period start, RFC3339 or YYYY-MM-DD"`
	Limit      int    `json:"limit,omitempty" jsonschema:"number of summaries to return (default 10, max 100)"`
}

// SummaryView is one summary as returned to tool callers.
type SummaryView struct {
	Group       string   `json:"group"`
	Label       string   `json:"label"`
	PeriodType  string   `json:"period_type"`
	PeriodStart string   `json:"period_start"`
	PeriodEnd   string   `json:"period_end"`
	Count       int64    `json:"count"`
	Avg         float64  `json:"avg_ms"`
	Min         float64  `json:"min_ms"`
	Max         float64  `json:"max_ms"`
	P50         float64  `json:"p50_ms"`
	P95         float64  `json:"p95_ms"`
	P99         float64  `json:"p99_ms"`
	StdDev      *float64 `json:"stddev_ms,omitempty"`
	ErrorCount  int64    `json:"error_count"`
	ErrorRate   float64  `json:"error_rate"`
	Status      string   `json:"status"`
	Explanation string   `json:"explanation,omitempty"`
}

// SummariesResult wraps summary results.
type SummariesResult struct {
	Summaries []SummaryView `json:"summaries" jsonschema:"summaries, newest period first"`
}

// DailyStatsArgs defines the input for get_daily_stats tool.
type DailyStatsArgs struct {
	Date string `json:"date" jsonschema:"the UTC day, YYYY-MM-DD"`
}

// DailyStatView is one daily record as returned to tool callers.
type DailyStatView struct {
	Group         string                         `json:"group"`
	Label         string                         `json:"label"`
	Date          string                         `json:"date"`
	Finalized     bool                           `json:"finalized"`
	TotalRequests int64                          `json:"total_requests"`
	AvgDuration   float64                        `json:"avg_duration"`
	MaxDuration   float64                        `json:"max_duration"`
	ErrorCount    int64                          `json:"error_count"`
	P95Duration   float64                        `json:"p95_duration"`
	HourlyData    map[string]relational.HourStat `json:"hourly_data"`
}

// DailyStatsResult wraps daily stat results.
type DailyStatsResult struct {
	Stats []DailyStatView `json:"stats" jsonschema:"daily records, overall first"`
}

// BackfillArgs defines the input for run_backfill tool.
type BackfillArgs struct {
	From        string   `json:"from" jsonschema:"range start, RFC3339 or YYYY-MM-DD"`
	To          string   `json:"to" jsonschema:"range end (inclusive bucket), RFC3339 or YYYY-MM-DD"`
	PeriodTypes []string `json:"period_types,omitempty" jsonschema:"period types to replay, default all"`
}

// BackfillResult reports a backfill run.
type BackfillResult struct {
	RunID      string   `json:"run_id"`
	Steps      int      `json:"steps"`
	Failed     int      `json:"failed"`
	DaysClosed int      `json:"days_closed"`
	Errors     []string `json:"errors,omitempty"`
}

// QueryGraphArgs defines the input for query_graph tool.
type QueryGraphArgs struct {
	Cypher string `json:"cypher" jsonschema:"Cypher query to execute"`
}

// QueryGraphResult wraps graph query results.
type QueryGraphResult struct {
	Data []map[string]any `json:"data" jsonschema:"query results"`
}

// NeighborsArgs defines the input for get_neighbors tool.
type NeighborsArgs struct {
	Group string `json:"group" jsonschema:"group key: overall, route:<id> or query:<id>"`
}

// NeighborView is one linked group.
type NeighborView struct {
	Group string  `json:"group"`
	Label string  `json:"label"`
	Calls int64   `json:"calls"`
	AvgMS float64 `json:"avg_ms"`
}

// NeighborsResult wraps neighbor results.
type NeighborsResult struct {
	Neighbors []NeighborView `json:"neighbors"`
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	// Tool 1: normalize_sql
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "normalize_sql",
		Description: "Normalize a SQL statement into its canonical query shape: literal values become ?, identifiers are kept, IN lists collapse to a single placeholder.",
	}, s.handleNormalizeSQL)

	// Tool 2: get_summaries
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_summaries",
		Description: "List stored latency summaries (count, avg, min, max, p50, p95, p99, stddev, error counts) by group, period type and range, newest first, each with a performance status.",
	}, s.handleGetSummaries)

	// Tool 3: get_daily_stats
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_daily_stats",
		Description: "Get the daily records for one UTC day, including the per-hour breakdown. Unfinalized days report zero totals.",
	}, s.handleGetDailyStats)

	// Tool 4: run_backfill
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "run_backfill",
		Description: "Recompute summaries and daily records over a historical range. Safe to re-run; failed periods are reported and the rest still run.",
	}, s.handleRunBackfill)

	// Tool 5: get_neighbors
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_neighbors",
		Description: "Find the queries issued by a route, or the routes issuing a query, with call counts and average durations.",
	}, s.handleGetNeighbors)

	// Tool 6: query_graph - Direct Cypher access for power users
	if s.neo4jClient != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        "query_graph",
			Description: "Execute read-only Cypher on the neo4j mirror. Nodes: Group {key, kind, label}, Period {type, start}. Edges: (Group)-[:SUMMARIZED_IN {count, avg_duration, p95_duration, error_rate, status}]->(Period).",
		}, s.handleQueryGraph)
	}
}

func (s *Server) handleNormalizeSQL(_ context.Context, _ *mcp.CallToolRequest, args NormalizeSQLArgs) (*mcp.CallToolResult, NormalizeSQLResult, error) {
	if strings.TrimSpace(args.SQL) == "" {
		return nil, NormalizeSQLResult{}, errors.New("sql is required")
	}
	out := sqlnorm.NormalizeString(args.SQL)
	return nil, NormalizeSQLResult{Normalized: out, Changed: out != args.SQL}, nil
}

func (s *Server) handleGetSummaries(ctx context.Context, _ *mcp.CallToolRequest, args SummariesArgs) (*mcp.CallToolResult, SummariesResult, error) {
	f := relational.SummaryFilter{Limit: args.Limit}
	if args.Group != "" {
		key, err := relational.ParseGroupKey(args.Group)
		if err != nil {
			return nil, SummariesResult{}, err
		}
		f.Group = &key
	}
	switch relational.GroupKind(args.Kind) {
	case "", relational.KindOverall, relational.KindRoute, relational.KindQuery:
		f.Kind = relational.GroupKind(args.Kind)
	default:
		return nil, SummariesResult{}, fmt.Errorf("invalid kind: %s (must be overall, route or query)", args.Kind)
	}
	if args.PeriodType != "" {
		pt, err := period.ParseType(args.PeriodType)
		if err != nil {
			return nil, SummariesResult{}, err
		}
		f.PeriodType = pt.String()
	}
	var err error
	if f.From, err = parseTime(args.From); err != nil {
		return nil, SummariesResult{}, err
	}
	if f.To, err = parseTime(args.To); err != nil {
		return nil, SummariesResult{}, err
	}

	summaries, err := s.duckdbRepo.ListSummaries(ctx, f)
	if err != nil {
		return nil, SummariesResult{}, fmt.Errorf("failed to query summaries: %w", err)
	}
	labels, err := s.lookupLabels(ctx, summaries)
	if err != nil {
		return nil, SummariesResult{}, err
	}

	views := make([]SummaryView, 0, len(summaries))
	for _, sm := range summaries {
		flags := s.flaggerSvc.Flag(sm)
		views = append(views, SummaryView{
			Group:       sm.Group.String(),
			Label:       labels[sm.Group],
			PeriodType:  sm.PeriodType,
			PeriodStart: sm.PeriodStart.UTC().Format(time.RFC3339),
			PeriodEnd:   sm.PeriodEnd.UTC().Format(time.RFC3339Nano),
			Count:       sm.Count,
			Avg:         sm.AvgDuration,
			Min:         sm.MinDuration,
			Max:         sm.MaxDuration,
			P50:         sm.P50Duration,
			P95:         sm.P95Duration,
			P99:         sm.P99Duration,
			StdDev:      sm.StdDevDuration,
			ErrorCount:  sm.ErrorCount,
			ErrorRate:   flags.ErrorRate,
			Status:      string(flags.Status),
			Explanation: flags.Explanation,
		})
	}
	return nil, SummariesResult{Summaries: views}, nil
}

func (s *Server) handleGetDailyStats(ctx context.Context, _ *mcp.CallToolRequest, args DailyStatsArgs) (*mcp.CallToolResult, DailyStatsResult, error) {
	date, err := time.Parse(time.DateOnly, args.Date)
	if err != nil {
		return nil, DailyStatsResult{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", args.Date)
	}
	stats, err := s.duckdbRepo.ListDailyStats(ctx, date)
	if err != nil {
		return nil, DailyStatsResult{}, fmt.Errorf("failed to query daily stats: %w", err)
	}

	keys := make([]relational.GroupKey, 0, len(stats))
	for _, d := range stats {
		keys = append(keys, d.Group)
	}
	labels, err := s.duckdbRepo.LookupLabels(ctx, keys)
	if err != nil {
		return nil, DailyStatsResult{}, err
	}

	views := make([]DailyStatView, 0, len(stats))
	for _, d := range stats {
		views = append(views, DailyStatView{
			Group:         d.Group.String(),
			Label:         labels[d.Group],
			Date:          d.Date.Format(time.DateOnly),
			Finalized:     d.Finalized(),
			TotalRequests: d.TotalRequests,
			AvgDuration:   d.AvgDuration,
			MaxDuration:   d.MaxDuration,
			ErrorCount:    d.ErrorCount,
			P95Duration:   d.P95Duration,
			HourlyData:    d.HourlyData,
		})
	}
	return nil, DailyStatsResult{Stats: views}, nil
}

func (s *Server) handleRunBackfill(ctx context.Context, _ *mcp.CallToolRequest, args BackfillArgs) (*mcp.CallToolResult, BackfillResult, error) {
	from, err := parseTime(args.From)
	if err != nil || from.IsZero() {
		return nil, BackfillResult{}, fmt.Errorf("invalid from %q", args.From)
	}
	to, err := parseTime(args.To)
	if err != nil || to.IsZero() {
		return nil, BackfillResult{}, fmt.Errorf("invalid to %q", args.To)
	}
	if to.Before(from) {
		return nil, BackfillResult{}, errors.New("to must not be before from")
	}
	types, err := period.ParseTypes(args.PeriodTypes)
	if err != nil {
		return nil, BackfillResult{}, err
	}

	report, runErr := s.coordinator.Backfill(ctx, from, to, types)
	res := BackfillResult{RunID: report.RunID, Steps: report.Steps, Failed: report.Failed, DaysClosed: report.DaysClosed}
	if runErr != nil {
		for _, e := range multierrErrors(runErr) {
			res.Errors = append(res.Errors, e.Error())
		}
	}
	return nil, res, nil
}

func (s *Server) handleGetNeighbors(ctx context.Context, _ *mcp.CallToolRequest, args NeighborsArgs) (*mcp.CallToolResult, NeighborsResult, error) {
	key, err := relational.ParseGroupKey(args.Group)
	if err != nil {
		return nil, NeighborsResult{}, err
	}
	nodes, err := s.neighbors.GetNeighbors(ctx, key)
	if err != nil {
		return nil, NeighborsResult{}, err
	}
	out := NeighborsResult{Neighbors: make([]NeighborView, 0, len(nodes))}
	for _, n := range nodes {
		v := NeighborView{Group: n.ID}
		v.Label, _ = n.Properties["label"].(string)
		v.Calls, _ = n.Properties["calls"].(int64)
		v.AvgMS, _ = n.Properties["avg_ms"].(float64)
		out.Neighbors = append(out.Neighbors, v)
	}
	return nil, out, nil
}

// handleQueryGraph executes Cypher queries.
func (s *Server) handleQueryGraph(ctx context.Context, _ *mcp.CallToolRequest, args QueryGraphArgs) (*mcp.CallToolResult, QueryGraphResult, error) {
	if s.neo4jClient == nil {
		return nil, QueryGraphResult{}, errors.New("graph mirror is disabled")
	}
	result, err := s.neo4jClient.ExecuteCypher(ctx, args.Cypher)
	if err != nil {
		return nil, QueryGraphResult{}, fmt.Errorf("cypher query failed: %w", err)
	}
	return nil, QueryGraphResult{Data: result}, nil
}

func (s *Server) lookupLabels(ctx context.Context, summaries []relational.Summary) (map[relational.GroupKey]string, error) {
	keys := make([]relational.GroupKey, 0, len(summaries))
	for _, sm := range summaries {
		keys = append(keys, sm.Group)
	}
	return s.duckdbRepo.LookupLabels(ctx, keys)
}

// Start starts the MCP server using stdio transport.
func (s *Server) Start(ctx context.Context) error {
	log.Info("starting pulsecheck MCP server on stdio")
	transport := &mcp.StdioTransport{}
	return s.mcpServer.Run(ctx, transport)
}

// Close cleans up resources. The database is owned by the caller.
func (s *Server) Close(ctx context.Context) error {
	if s.neo4jClient != nil {
		return s.neo4jClient.Close(ctx)
	}
	return nil
}
