package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load environment variables (PULSECHECK_* overrides)
	loadEnvFile("env/.env")

	fmt.Println("🧪 Testing PulseCheck MCP tools")
	fmt.Println("=======================================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	serverPath := findServerBinary()
	if serverPath == "" {
		log.Fatal("❌ pulsecheck binary not found. Run: go build -o pulsecheck .")
	}
	fmt.Println("✅ Test 1: pulsecheck binary found")

	// Scratch database unless one is configured
	env := os.Environ()
	if os.Getenv("PULSECHECK_DATABASE_PATH") == "" {
		dir, err := os.MkdirTemp("", "pulsecheck-smoke")
		if err != nil {
			log.Fatalf("❌ temp dir: %v", err)
		}
		defer os.RemoveAll(dir)
		env = append(env, "PULSECHECK_DATABASE_PATH="+filepath.Join(dir, "smoke.db"))
	}

	cmd := exec.Command(serverPath, "mcp")
	cmd.Env = env
	cmd.Stderr = os.Stderr
	transport := &mcp.CommandTransport{Command: cmd}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MCP server: %v", err)
	}
	defer session.Close()
	fmt.Println("✅ Test 2: Connected to MCP server")

	fmt.Println("\n✓ Test 3: Listing available tools")
	listResult, err := session.ListTools(ctx, nil)
	if err != nil {
		log.Fatalf("❌ Failed to list tools: %v", err)
	}
	fmt.Printf("  Found %d tools:\n", len(listResult.Tools))
	for _, tool := range listResult.Tools {
		fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
	}

	now := time.Now().UTC()
	steps := []struct {
		title string
		tool  string
		args  map[string]interface{}
	}{
		{"normalize_sql", "normalize_sql", map[string]interface{}{"sql": "SELECT * FROM users WHERE id IN (1, 2, 3)"}},
		{"run_backfill over the last two hours", "run_backfill", map[string]interface{}{
			"from":         now.Add(-2 * time.Hour).Format(time.RFC3339),
			"to":           now.Format(time.RFC3339),
			"period_types": []string{"hour", "day"},
		}},
		{"get_summaries", "get_summaries", map[string]interface{}{"period_type": "hour", "limit": 5}},
		{"get_daily_stats", "get_daily_stats", map[string]interface{}{"date": now.Format(time.DateOnly)}},
		{"get_neighbors", "get_neighbors", map[string]interface{}{"group": "overall"}},
	}

	failed := 0
	for i, st := range steps {
		fmt.Printf("\n✓ Test %d: %s\n", i+4, st.title)
		res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: st.tool, Arguments: st.args})
		if err != nil {
			fmt.Printf("  ❌ %s failed: %v\n", st.tool, err)
			failed++
			continue
		}
		if res.IsError {
			fmt.Printf("  ❌ %s returned an error\n", st.tool)
			failed++
		} else {
			fmt.Printf("  ✅ %s called successfully\n", st.tool)
		}
		printPreview(res)
	}

	fmt.Println("\n=======================================")
	if failed > 0 {
		fmt.Printf("❌ %d tool calls failed\n", failed)
		return 1
	}
	fmt.Println("✅ All MCP tool calling tests complete!")
	fmt.Println("\n💡 To test interactively, run: go run ./cmd/mcp-client ./pulsecheck mcp")
	return 0
}

func printPreview(res *mcp.CallToolResult) {
	for i, content := range res.Content {
		if i >= 3 {
			fmt.Printf("  ... and %d more content items\n", len(res.Content)-i)
			break
		}
		switch v := content.(type) {
		case *mcp.TextContent:
			preview := v.Text
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			fmt.Printf("    %s\n", preview)
		default:
			fmt.Printf("    [%T]\n", content)
		}
	}
}

func findServerBinary() string {
	candidates := []string{
		"./pulsecheck",
		"../../pulsecheck",
		"../../../pulsecheck",
	}
	for _, p := range candidates {
		if abs, err := filepath.Abs(p); err == nil {
			if _, err := os.Stat(abs); err == nil {
				return abs
			}
		}
	}
	return ""
}

func loadEnvFile(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}

	file, err := os.Open(absPath)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	}
}
