package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/cexll/issuebot/internal/changeset"
	"github.com/cexll/issuebot/internal/github"
	"github.com/cexll/issuebot/internal/orchestrator"
)

const mcpVersion = "v1.0.0"

// BranchNameParams is the input of the branch_name tool.
type BranchNameParams struct {
	Number int    `json:"number" jsonschema:"The issue number"`
	Title  string `json:"title" jsonschema:"The issue title"`
}

// RunBacklogParams is the input of the run_backlog tool.
type RunBacklogParams struct{}

type backlogRunner interface {
	RunSync(ctx context.Context, trigger string) (*orchestrator.Report, error)
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve issuebot tools over MCP (stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			p, err := buildPipeline(ctx, a.cfg)
			if err != nil {
				return err
			}

			log.Println("[MCP] Starting on stdio transport...")
			if err := newMCPServer(p.dispatcher).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			log.Println("[MCP] Server stopped gracefully")
			return nil
		},
	}
}

func newMCPServer(runner backlogRunner) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "issuebot",
		Version: mcpVersion,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "branch_name",
		Description: "Derive the work branch name issuebot uses for an issue",
	}, HandleBranchName)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_backlog",
		Description: "Process every open issue once and return the run report",
	}, runBacklogHandler(runner))

	return server
}

// HandleBranchName handles the branch_name tool call
func HandleBranchName(ctx context.Context, req *mcp.CallToolRequest, params BranchNameParams) (*mcp.CallToolResult, any, error) {
	if params.Number <= 0 {
		return nil, nil, fmt.Errorf("number must be a positive issue number")
	}
	change := changeset.Describe(github.Issue{Number: params.Number, Title: params.Title})
	return textResult(change.BranchName), nil, nil
}

func runBacklogHandler(runner backlogRunner) func(context.Context, *mcp.CallToolRequest, RunBacklogParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, _ RunBacklogParams) (*mcp.CallToolResult, any, error) {
		log.Printf("[MCP] Received run_backlog request")

		report, err := runner.RunSync(ctx, "mcp")
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Error: %v", err)}},
				IsError: true,
			}, nil, nil
		}

		data, err := json.MarshalIndent(struct {
			*orchestrator.Report
			Summary orchestrator.Summary `json:"summary"`
		}{report, report.Summary()}, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("encode report: %w", err)
		}
		return textResult(string(data)), nil, nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
