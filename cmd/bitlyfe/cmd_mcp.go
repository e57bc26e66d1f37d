package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	bitmcp "github.com/tecbitlyfe/bitlyfe/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  chat             send a message and get the companion's reply
  remember         store a memory
  search_memories  substring search over memories
  memory_stats     per-user memory statistics
  set_persona      switch the active personality`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer func() { _ = a.Close() }()

			srv := bitmcp.NewServer(a.st, a.chat, a.personas, version, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: bitlyfe MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
