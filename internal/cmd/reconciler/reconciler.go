// Package reconciler parses reconciler command flags and launches the
// reconciliation runtime.
package reconciler

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/sjpiano/paytrack/internal/platform/cmd"
	reconcileapp "github.com/sjpiano/paytrack/internal/services/reconcile/app"
)

// Config holds reconciler command configuration.
type Config struct {
	ServiceEnv
	Port     int           `env:"PAYTRACK_PORT" envDefault:"8095"`
	Interval time.Duration `env:"PAYTRACK_INTERVAL" envDefault:"0s"`
	DryRun   bool          `env:"PAYTRACK_DRY_RUN"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.BindFlags(fs)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The reconciler health gRPC server port")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Reconciliation interval; 0 runs once and exits")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Report would-be invoices without writing or sending")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the reconciler runtime.
func Run(ctx context.Context, cfg Config) error {
	serviceCfg, err := cfg.RuntimeConfig()
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReconciler, func(context.Context) error {
		return reconcileapp.Run(ctx, reconcileapp.RuntimeConfig{
			Service:  serviceCfg,
			Port:     cfg.Port,
			Interval: cfg.Interval,
			DryRun:   cfg.DryRun,
		})
	})
}
