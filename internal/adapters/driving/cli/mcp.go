package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/deepone/internal/adapters/driving/mcp"
	"github.com/custodia-labs/deepone/internal/logger"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

Tools:
  research      run a research task and return the report
  search_local  query the local document index

Resources:
  deepone://reports        stored reports
  deepone://reports/{id}   report markdown
  deepone://runs           recent runs

By default, the server communicates over stdio using JSON-RPC. Use --port
to serve streamable HTTP instead.

Examples:
  deepone mcp serve
  deepone mcp serve --port 8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "deepone": {
        "command": "/path/to/deepone",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

// mcpPorts collects the services exposed over MCP. The index is optional:
// without an embedding provider search_local reports it as unavailable.
func mcpPorts(cmd *cobra.Command) (*mcp.Ports, error) {
	if err := requireRuntime(); err != nil {
		return nil, err
	}
	ctx := commandContext(cmd)

	research, err := backend.Research(ctx, false)
	if err != nil {
		return nil, err
	}
	history, err := backend.History(ctx)
	if err != nil {
		return nil, err
	}
	ports := &mcp.Ports{Research: research, History: history}

	index, _, err := backend.Index(ctx)
	if err != nil {
		logger.Warn("Local index unavailable over MCP: %v", err)
	} else {
		ports.Index = index
	}
	return ports, nil
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports, err := mcpPorts(cmd)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(commandContext(cmd), addr)
	}

	return server.Run(commandContext(cmd))
}
