package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alejandrodnm/polyarb/config"
)

const usage = `polyarb — complete-set arbitrage bot for binary prediction markets

Usage:
  polyarb run    [-config path] [-once] [-paper] [-synthetic] [-verbose]
  polyarb status [-config path]
  polyarb report [-config path] [-n rows]
  polyarb halt   [-config path] -reason "..."
  polyarb resume [-config path]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "status":
		err = cmdStatus(os.Args[2:])
	case "report":
		err = cmdReport(os.Args[2:])
	case "halt":
		err = cmdHalt(os.Args[2:])
	case "resume":
		err = cmdResume(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// loadConfig carga el YAML si existe; sin archivo usa los defaults, que
// apuntan al venue sintético.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("config file not found, using defaults", "path", path)
			return config.Default()
		}
		slog.Error("failed to load config", "err", err, "path", path)
		os.Exit(1)
	}
	return cfg
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
