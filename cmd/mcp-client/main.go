package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mcp-client <server-command> [<args>]")
		fmt.Fprintln(os.Stderr, "Example: mcp-client ./pulsecheck mcp")
		os.Exit(2)
	}

	ctx := context.Background()

	// Start the server as a subprocess
	cmd := exec.Command(args[0], args[1:]...)
	transport := &mcp.CommandTransport{Command: cmd}

	// Create MCP client
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "pulsecheck-client",
		Version: "1.0.0",
	}, nil)

	// Connect to the server
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer session.Close()

	fmt.Println("Connected to PulseCheck MCP Server!")
	printHelp()

	// Interactive REPL
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		parts := strings.Fields(input)

		switch {
		case input == "/exit":
			fmt.Println("Goodbye!")
			return

		case input == "/tools":
			listTools(ctx, session)

		case strings.HasPrefix(input, "/summaries"):
			args := map[string]interface{}{}
			if len(parts) > 1 {
				args["period_type"] = parts[1]
			}
			if len(parts) > 2 {
				args["kind"] = parts[2]
			}
			if len(parts) > 3 {
				if n, err := strconv.Atoi(parts[3]); err == nil {
					args["limit"] = n
				}
			}
			callTool(ctx, session, "get_summaries", args)

		case strings.HasPrefix(input, "/daily"):
			if len(parts) < 2 {
				fmt.Println("usage: /daily <YYYY-MM-DD>")
				continue
			}
			callTool(ctx, session, "get_daily_stats", map[string]interface{}{
				"date": parts[1],
			})

		case strings.HasPrefix(input, "/backfill"):
			if len(parts) < 3 {
				fmt.Println("usage: /backfill <from> <to> [hour,day,...]")
				continue
			}
			args := map[string]interface{}{
				"from": parts[1],
				"to":   parts[2],
			}
			if len(parts) > 3 {
				args["period_types"] = strings.Split(parts[3], ",")
			}
			callTool(ctx, session, "run_backfill", args)

		case strings.HasPrefix(input, "/neighbors"):
			if len(parts) < 2 {
				fmt.Println("usage: /neighbors <overall|route:<id>|query:<id>>")
				continue
			}
			callTool(ctx, session, "get_neighbors", map[string]interface{}{
				"group": parts[1],
			})

		case strings.HasPrefix(input, "/graph "):
			cypher := strings.TrimPrefix(input, "/graph ")
			callTool(ctx, session, "query_graph", map[string]interface{}{
				"cypher": cypher,
			})

		case strings.HasPrefix(input, "/"):
			printHelp()

		default:
			// Anything else is treated as SQL to normalize
			callTool(ctx, session, "normalize_sql", map[string]interface{}{
				"sql": input,
			})
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Scanner error: %v", err)
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  /tools                              - List available tools")
	fmt.Println("  /summaries [period] [kind] [limit]  - Latest stored summaries")
	fmt.Println("  /daily <YYYY-MM-DD>                 - Daily records of one day")
	fmt.Println("  /backfill <from> <to> [types]       - Replay a historical range")
	fmt.Println("  /neighbors <group>                  - Routes and queries linked to a group")
	fmt.Println("  /graph <cypher>                     - Execute Cypher query")
	fmt.Println("  /exit                               - Exit the client")
	fmt.Println("  <sql>                               - Normalize a SQL statement")
	fmt.Println()
}

func listTools(ctx context.Context, session *mcp.ClientSession) {
	fmt.Println("Available Tools:")
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			log.Printf("Error listing tools: %v", err)
			return
		}
		fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
	}
	fmt.Println()
}

func callTool(ctx context.Context, session *mcp.ClientSession, toolName string, args map[string]interface{}) {
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		log.Printf("Error calling tool: %v", err)
		return
	}

	printResult(result)
}

func printResult(result *mcp.CallToolResult) {
	if result.IsError {
		fmt.Printf("❌ Error: ")
	} else {
		fmt.Printf("✅ Result: ")
	}

	// Try to pretty-print the content
	for _, content := range result.Content {
		switch v := content.(type) {
		case *mcp.TextContent:
			fmt.Println(v.Text)
		default:
			// Try JSON marshaling for other types
			jsonData, err := json.MarshalIndent(content, "", "  ")
			if err != nil {
				fmt.Printf("%+v\n", content)
			} else {
				fmt.Println(string(jsonData))
			}
		}
	}
	fmt.Println()
}
