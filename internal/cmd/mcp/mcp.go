// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	reconcilercmd "github.com/sjpiano/paytrack/internal/cmd/reconciler"
	entrypoint "github.com/sjpiano/paytrack/internal/platform/cmd"
	mcpservice "github.com/sjpiano/paytrack/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	reconcilercmd.ServiceEnv
	HTTPAddr  string `env:"PAYTRACK_MCP_HTTP_ADDR" envDefault:"localhost:8081"`
	Transport string `env:"PAYTRACK_MCP_TRANSPORT" envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.BindFlags(fs)
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	serviceCfg, err := cfg.RuntimeConfig()
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(context.Context) error {
		return mcpservice.Run(ctx, mcpservice.Config{
			Transport: mcpservice.TransportKind(cfg.Transport),
			HTTPAddr:  cfg.HTTPAddr,
			Service:   serviceCfg,
		})
	})
}
