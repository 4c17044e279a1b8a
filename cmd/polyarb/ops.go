package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/alejandrodnm/polyarb/internal/adapters/notify"
	"github.com/alejandrodnm/polyarb/internal/adapters/storage"
	"github.com/alejandrodnm/polyarb/internal/execution"
	"github.com/alejandrodnm/polyarb/internal/ports"
)

// ops.go — comandos de operador: status, report, halt, resume. Todos
// trabajan contra el ledger, sin tocar el venue.

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "ruta al archivo de configuración")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := loadConfig(*configPath)
	setupLogger(cfg.Log)
	ctx := context.Background()

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("cmdStatus: open ledger: %w", err)
	}
	defer ledger.Close()

	risk, err := ledger.LoadRiskState(ctx)
	if err != nil {
		return fmt.Errorf("cmdStatus: %w", err)
	}
	signals, err := ledger.SignalSummary(ctx)
	if err != nil {
		return fmt.Errorf("cmdStatus: %w", err)
	}
	tradesets, err := ledger.TradeSetSummary(ctx)
	if err != nil {
		return fmt.Errorf("cmdStatus: %w", err)
	}

	return notify.NewConsole().ShowStatus(ctx, ports.StatusView{
		Venue:     cfg.Venue.Name,
		PaperMode: cfg.PaperMode,
		Risk:      risk,
		TradeSets: tradesets,
		Signals:   signals,
	})
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "ruta al archivo de configuración")
	rows := fs.Int("n", 20, "filas a mostrar por tabla")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := loadConfig(*configPath)
	setupLogger(cfg.Log)
	ctx := context.Background()

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("cmdReport: open ledger: %w", err)
	}
	defer ledger.Close()

	signals, err := ledger.SignalSummary(ctx)
	if err != nil {
		return fmt.Errorf("cmdReport: %w", err)
	}
	tradesets, err := ledger.TradeSetSummary(ctx)
	if err != nil {
		return fmt.Errorf("cmdReport: %w", err)
	}
	recent, err := ledger.RecentTradeSets(ctx, *rows)
	if err != nil {
		return fmt.Errorf("cmdReport: %w", err)
	}
	events, err := ledger.RecentRiskEvents(ctx, *rows)
	if err != nil {
		return fmt.Errorf("cmdReport: %w", err)
	}

	return notify.NewConsole().ShowReport(ctx, ports.ReportView{
		Signals:    signals,
		TradeSets:  tradesets,
		Recent:     recent,
		RiskEvents: events,
	})
}

func cmdHalt(args []string) error {
	fs := flag.NewFlagSet("halt", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "ruta al archivo de configuración")
	reason := fs.String("reason", "", "motivo del halt (obligatorio)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *reason == "" {
		return fmt.Errorf("cmdHalt: -reason is required")
	}

	cfg := loadConfig(*configPath)
	setupLogger(cfg.Log)
	ctx := context.Background()

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("cmdHalt: open ledger: %w", err)
	}
	defer ledger.Close()

	risk := execution.NewRiskManager(ledger, execution.RiskConfig{
		MaxConsecutiveFailures: cfg.Risk.MaxConsecutiveFailures,
		HaltOnPartialFill:      cfg.Risk.HaltOnPartialFill,
	})
	if err := risk.Load(ctx); err != nil {
		return fmt.Errorf("cmdHalt: %w", err)
	}
	return risk.ManualHalt(ctx, *reason)
}

func cmdResume(args []string) error {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "ruta al archivo de configuración")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := loadConfig(*configPath)
	setupLogger(cfg.Log)
	ctx := context.Background()

	ledger, err := storage.NewSQLiteLedger(cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("cmdResume: open ledger: %w", err)
	}
	defer ledger.Close()

	risk := execution.NewRiskManager(ledger, execution.RiskConfig{
		MaxConsecutiveFailures: cfg.Risk.MaxConsecutiveFailures,
		HaltOnPartialFill:      cfg.Risk.HaltOnPartialFill,
	})
	if err := risk.Load(ctx); err != nil {
		return fmt.Errorf("cmdResume: %w", err)
	}
	return risk.Resume(ctx)
}
