package main

import (
	"context"
	"log"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	mcpserver "github.com/ykzou1214/musictoolkit/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server over stdio",
	Long: "Starts an MCP server over stdin/stdout. Agent hosts connect via their\n" +
		"MCP configuration and call the music tools directly.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	orch, _, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	srv := mcpserver.NewServer(orch, orch.Store(), releaseVersion)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	log.Println("starting musictoolkit MCP server over stdio")
	return srv.Run(ctx, &sdkmcp.StdioTransport{})
}
