package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsecheck/internal/database/relational"
	"pulsecheck/internal/ingest"
	"pulsecheck/internal/period"
)

func TestNormalizeLines(t *testing.T) {
	in := strings.NewReader("SELECT * FROM users WHERE id = 42\n\n  select 1 \n")
	var out bytes.Buffer
	require.NoError(t, normalizeLines(in, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "SELECT * FROM users WHERE id = ?", lines[0])
}

func TestParseInstant(t *testing.T) {
	got, err := parseInstant("2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), got)

	got, err = parseInstant("2024-06-03T12:30:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC), got)

	_, err = parseInstant("yesterday")
	assert.Error(t, err)

	now, err := parseInstant("")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now, time.Minute)
}

const traces = `{"method":"get","path":"/users","at":"2024-06-03T10:05:00Z","duration_ms":120,"status":200,"operations":[{"type":"sql","sql":"SELECT * FROM users WHERE id = 1","duration_ms":15}]}
{"method":"GET","path":"/users","at":"2024-06-03T10:20:00Z","duration_ms":480,"status":500,"operations":[{"type":"sql","sql":"SELECT * FROM users WHERE id = 2","duration_ms":40}]}
not json
{"method":"","path":"/broken","at":"2024-06-03T10:25:00Z","duration_ms":1}
`

func TestIngestTraces(t *testing.T) {
	ctx := context.Background()
	client, err := relational.NewInMemoryDB()
	require.NoError(t, err)
	defer client.Close()
	repo := relational.NewRepo(client.DB())
	require.NoError(t, repo.Migrate(ctx))

	p, err := ingest.NewPipeline(repo)
	require.NoError(t, err)

	n, err := ingestTraces(ctx, p, strings.NewReader(traces))
	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "line 4")

	start, next := period.Bounds(period.Hour, time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC))
	groups, err := repo.SamplesInWindow(ctx, start, next)
	require.NoError(t, err)
	assert.Len(t, groups[relational.Overall], 2)

	var queries int
	for k, samples := range groups {
		if k.Kind == relational.KindQuery {
			queries++
			assert.Len(t, samples, 2, "both statements share one shape")
		}
	}
	assert.Equal(t, 1, queries)
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestCommandsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "pulse.db")
	file := filepath.Join(dir, "traces.jsonl")
	require.NoError(t, os.WriteFile(file, []byte(strings.Join(strings.Split(traces, "\n")[:2], "\n")), 0o644))

	out := run(t, "--db", db, "--log-level", "warn", "ingest", "-f", file)
	assert.Contains(t, out, "2 traces recorded")

	out = run(t, "--db", db, "backfill", "--from", "2024-06-03T10:00:00Z", "--to", "2024-06-03T10:59:00Z", "--types", "hour,day")
	assert.Contains(t, out, "2 steps ok, 0 failed")
	assert.Contains(t, out, "days closed")

	out = run(t, "--db", db, "report", "--period", "hour")
	assert.Contains(t, out, "GET /users")

	out = run(t, "--db", db, "finalize", "--date", "2024-06-03")
	assert.Contains(t, out, "2024-06-03: 3 daily records finalized")

	out = run(t, "--db", db, "routes")
	assert.Contains(t, out, "/users")
	assert.Contains(t, out, "1 routes")

	out = run(t, "--db", db, "normalize", "SELECT name FROM t WHERE id IN (1, 2, 3)")
	assert.NotContains(t, out, "1, 2")
}
