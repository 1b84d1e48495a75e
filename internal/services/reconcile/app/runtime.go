package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/text/language"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
	"github.com/sjpiano/paytrack/internal/services/reconcile/mailbox"
	"github.com/sjpiano/paytrack/internal/services/reconcile/receipt"
	reconcilesqlite "github.com/sjpiano/paytrack/internal/services/reconcile/storage/sqlite"
)

// HealthService is the gRPC health service name the reconciler reports on.
const HealthService = "reconcile.runtime"

const (
	defaultReconcilerPort = 8095
	defaultDBPath         = "data/paytrack.db"
)

// ServiceRuntimeConfig selects the concrete collaborators for a Service.
type ServiceRuntimeConfig struct {
	DBPath        string
	MailboxDir    string
	MailboxFormat string
	SubjectTerms  []string
	MarkerPhrase  string
	Timezone      string
	Tax           decimal.Decimal
	NodeID        int64
	CallTimeout   time.Duration
	SMTP          receipt.SMTPConfig
	AcademyName   string
}

// RuntimeConfig controls reconciler startup and loop behavior.
type RuntimeConfig struct {
	Service  ServiceRuntimeConfig
	Port     int
	Interval time.Duration
	DryRun   bool
}

// OpenService opens storage and builds a Service from cfg. The returned
// close function releases storage.
func OpenService(ctx context.Context, cfg ServiceRuntimeConfig) (*Service, func(), error) {
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultDBPath
	}
	location, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, nil, err
	}
	inbox, err := mailbox.Open(cfg.MailboxFormat, cfg.MailboxDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open mailbox: %w", err)
	}
	numbers, err := domain.SnowflakeNumbers(cfg.NodeID)
	if err != nil {
		return nil, nil, err
	}
	receipts, err := newReceiptSender(cfg, location)
	if err != nil {
		return nil, nil, err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := reconcilesqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open reconcile sqlite store: %w", err)
	}
	closeStore := func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close reconcile sqlite store: %v", closeErr)
		}
	}

	service, err := NewService(Dependencies{
		Mailbox:  inbox,
		Store:    store,
		Receipts: receipts,
	}, ServiceConfig{
		Location:       location,
		SubjectTerms:   cfg.SubjectTerms,
		MarkerPhrase:   cfg.MarkerPhrase,
		Tax:            cfg.Tax,
		InvoiceNumbers: numbers,
		CallTimeout:    cfg.CallTimeout,
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return service, closeStore, nil
}

// Run starts the health server and reconciles on cfg.Interval until ctx is
// done. A zero interval runs once and returns the run error.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultReconcilerPort
	}

	service, closeService, err := OpenService(ctx, cfg.Service)
	if err != nil {
		return err
	}
	defer closeService()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on reconciler port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("reconciler health server listening at %v", listener.Addr())
	loop := NewLoop(service, LoopConfig{
		Interval: cfg.Interval,
		DryRun:   cfg.DryRun,
		OnRun: func(report domain.Report, _ error) {
			healthServer.SetServingStatus(HealthService, healthStatusFor(report))
		},
	})
	return loop.Run(ctx)
}

// healthStatusFor reports NOT_SERVING after any FAILED run, including one
// whose every email hit a store failure without a run-level error.
func healthStatusFor(report domain.Report) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if report.Status == domain.RunFailed {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

func newReceiptSender(cfg ServiceRuntimeConfig, location *time.Location) (domain.ReceiptSender, error) {
	localizer := receipt.NewLocalizer(language.English)
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		log.Printf("smtp is not configured; receipts will be logged and reported as failed")
		return receipt.LogSender{Localizer: localizer, AcademyName: cfg.AcademyName}, nil
	}
	smtpCfg := cfg.SMTP
	smtpCfg.AcademyName = cfg.AcademyName
	smtpCfg.Location = location
	sender, err := receipt.NewSMTPSender(smtpCfg, localizer)
	if err != nil {
		return nil, fmt.Errorf("configure receipt sender: %w", err)
	}
	return sender, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return location, nil
}
