package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/polyarb/config"
	"github.com/alejandrodnm/polyarb/internal/adapters/paper"
	"github.com/alejandrodnm/polyarb/internal/adapters/polymarket"
	"github.com/alejandrodnm/polyarb/internal/adapters/storage"
	"github.com/alejandrodnm/polyarb/internal/adapters/synthetic"
	"github.com/alejandrodnm/polyarb/internal/domain"
	"github.com/alejandrodnm/polyarb/internal/execution"
	"github.com/alejandrodnm/polyarb/internal/marketdata"
	"github.com/alejandrodnm/polyarb/internal/orchestrator"
	"github.com/alejandrodnm/polyarb/internal/ports"
	"github.com/alejandrodnm/polyarb/internal/strategy"
)

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "ruta al archivo de configuración")
	once := fs.Bool("once", false, "detenerse tras el primer tradeset liquidado")
	paperFlag := fs.Bool("paper", false, "forzar paper trading (fills simulados)")
	syntheticFlag := fs.Bool("synthetic", false, "forzar el venue sintético")
	verbose := fs.Bool("verbose", false, "logging a nivel debug")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := loadConfig(*configPath)
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *paperFlag {
		cfg.PaperMode = true
	}
	if *syntheticFlag {
		cfg.Venue.Name = "synthetic"
	}
	setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("cmdRun: open ledger: %w", err)
	}
	defer ledger.Close()

	risk := execution.NewRiskManager(ledger, execution.RiskConfig{
		MaxConsecutiveFailures: cfg.Risk.MaxConsecutiveFailures,
		HaltOnPartialFill:      cfg.Risk.HaltOnPartialFill,
	})
	if err := risk.Load(ctx); err != nil {
		return fmt.Errorf("cmdRun: %w", err)
	}

	venue, err := buildVenue(ctx, cfg, risk)
	if err != nil {
		return fmt.Errorf("cmdRun: %w", err)
	}
	if cfg.PaperMode {
		venue = paper.Wrap(venue)
	}

	book := marketdata.NewBook(cfg.Staleness())
	engine := strategy.NewEngine(strategy.Config{
		MinEdge:    cfg.Strategy.MinEdge,
		CostBuffer: cfg.Strategy.CostBuffer,
		MinDepth:   cfg.Strategy.MinDepth,
		Cooldown:   cfg.Cooldown(),
	})
	exec := execution.NewExecutor(venue, ledger, risk, execution.Config{
		OrderSize:    cfg.Execution.OrderSize,
		Timeout:      cfg.ExecutionTimeout(),
		PollInterval: cfg.PollInterval(),
	})

	orch := orchestrator.New(orchestrator.Config{Once: *once}, venue, book, engine, exec, risk, ledger)

	slog.Info("polyarb starting",
		"venue", venue.Name(),
		"paper_mode", cfg.PaperMode,
		"dsn", cfg.Storage.DSN,
		"min_edge", cfg.Strategy.MinEdge,
		"order_size", cfg.Execution.OrderSize,
	)

	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("cmdRun: %w", err)
	}
	slog.Info("polyarb stopped")
	return nil
}

// buildVenue instancia el venue según la configuración. El venue de
// Polymarket arranca en modo solo-datos si no hay clave privada; con
// paper_mode eso basta para operar.
func buildVenue(ctx context.Context, cfg *config.Config, risk *execution.RiskManager) (ports.VenueAdapter, error) {
	switch cfg.Venue.Name {
	case "synthetic":
		return synthetic.New(synthetic.DefaultConfig(cfg.Venue.Seed)), nil

	case "polymarket":
		key := os.Getenv("POLYGON_PRIVATE_KEY")
		if key == "" && !cfg.PaperMode {
			return nil, fmt.Errorf("buildVenue: live polymarket trading requires POLYGON_PRIVATE_KEY")
		}
		return polymarket.New(polymarket.Config{
			CLOBBase:       cfg.Venue.CLOBBase,
			WSURL:          cfg.Venue.WSURL,
			PrivateKeyHex:  key,
			FeeRateDefault: cfg.Strategy.FeeRateDefault,
			OnDisconnect: func(err error) {
				risk.ReportFailure(ctx, domain.RiskDisconnect, "", err.Error())
			},
		})

	default:
		return nil, fmt.Errorf("buildVenue: unknown venue %q", cfg.Venue.Name)
	}
}
