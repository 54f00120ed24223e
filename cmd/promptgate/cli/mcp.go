package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/promptgate/promptgate/internal/cache"
	pmcp "github.com/promptgate/promptgate/internal/mcp"
	"github.com/promptgate/promptgate/internal/service"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes prompt matching
and token-scoped prompt lookups as tools for AI agents. Supports stdio
(default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with Claude Desktop or other MCP clients.

In HTTP mode, the server listens on the specified port for streamable HTTP
connections.`,
		Example: `  promptgate mcp                              # stdio mode (for Claude Desktop)
  promptgate mcp --transport http --port 3001 # HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	logger := newLogger(false)

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	matchCache := cache.NewMemory(parseDurationOr(viper.GetString("cache.sweep_interval"), time.Minute))
	defer matchCache.Close()

	matcher := service.NewMatcher(st, matchCache,
		parseDurationOr(viper.GetString("cache.hit_ttl"), service.DefaultHitTTL),
		parseDurationOr(viper.GetString("cache.miss_ttl"), service.DefaultMissTTL),
		logger)
	prompts := service.NewPromptService(st)
	tokens := service.NewTokenService(st, logger)

	mcpSrv := pmcp.NewMCPServer(tokens, matcher, prompts, st, logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
