package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Strategy  StrategyConfig  `yaml:"strategy"`
	Execution ExecutionConfig `yaml:"execution"`
	Risk      RiskConfig      `yaml:"risk"`
	Venue     VenueConfig     `yaml:"venue"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	PaperMode bool            `yaml:"paper_mode"`
}

// StrategyConfig controla la detección de oportunidades.
type StrategyConfig struct {
	MinEdge          float64 `yaml:"min_edge"`           // edge mínimo para disparar (empate a min_edge acepta)
	CostBuffer       float64 `yaml:"cost_buffer"`        // colchón restado al edge (slippage, gas)
	MinDepth         float64 `yaml:"min_depth"`          // profundidad mínima en la pata más fina
	CooldownSeconds  float64 `yaml:"cooldown_seconds"`   // espera tras un trade en el mismo mercado
	StalenessSeconds float64 `yaml:"staleness_seconds"`  // quotes más viejas que esto no se evalúan
	FeeRateDefault   float64 `yaml:"fee_rate_default"`   // fee si el venue no publica uno por mercado
}

// ExecutionConfig controla el ciclo de vida de las órdenes.
type ExecutionConfig struct {
	OrderSize      float64 `yaml:"order_size"`       // tamaño objetivo por pata (capado por depth)
	TimeoutSeconds float64 `yaml:"timeout_seconds"`  // deadline compartido de fill para ambas patas
	PollIntervalMs int     `yaml:"poll_interval_ms"` // cadencia de poll de fills
}

// RiskConfig controla el kill switch.
type RiskConfig struct {
	MaxConsecutiveFailures int  `yaml:"max_consecutive_failures"`
	HaltOnPartialFill      bool `yaml:"halt_on_partial_fill"` // true: un solo partial fill dispara el switch
}

// VenueConfig identifica y configura el venue.
type VenueConfig struct {
	Name     string `yaml:"name"`      // polymarket | synthetic
	CLOBBase string `yaml:"clob_base"` // REST base URL
	WSURL    string `yaml:"ws_url"`    // WebSocket market channel
	Seed     int64  `yaml:"seed"`      // semilla del venue sintético
}

// StorageConfig controla dónde se persiste el ledger.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores de entorno sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default devuelve una configuración usable sin archivo (demo/tests).
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Cooldown devuelve la ventana de cooldown como time.Duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Strategy.CooldownSeconds * float64(time.Second))
}

// Staleness devuelve el umbral de staleness como time.Duration.
func (c *Config) Staleness() time.Duration {
	return time.Duration(c.Strategy.StalenessSeconds * float64(time.Second))
}

// ExecutionTimeout devuelve el deadline de fill como time.Duration.
func (c *Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.Execution.TimeoutSeconds * float64(time.Second))
}

// PollInterval devuelve la cadencia de poll como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Execution.PollIntervalMs) * time.Millisecond
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYARB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Strategy.MinEdge <= 0 {
		cfg.Strategy.MinEdge = 0.01
	}
	if cfg.Strategy.MinDepth <= 0 {
		cfg.Strategy.MinDepth = 10
	}
	if cfg.Strategy.CooldownSeconds <= 0 {
		cfg.Strategy.CooldownSeconds = 2
	}
	if cfg.Strategy.StalenessSeconds <= 0 {
		cfg.Strategy.StalenessSeconds = 10
	}
	if cfg.Strategy.FeeRateDefault < 0 {
		cfg.Strategy.FeeRateDefault = 0
	}
	if cfg.Execution.OrderSize <= 0 {
		cfg.Execution.OrderSize = 10
	}
	if cfg.Execution.TimeoutSeconds <= 0 {
		cfg.Execution.TimeoutSeconds = 5
	}
	if cfg.Execution.PollIntervalMs <= 0 {
		cfg.Execution.PollIntervalMs = 250
	}
	if cfg.Risk.MaxConsecutiveFailures <= 0 {
		cfg.Risk.MaxConsecutiveFailures = 3
	}
	if cfg.Venue.Name == "" {
		cfg.Venue.Name = "synthetic"
	}
	if cfg.Venue.CLOBBase == "" {
		cfg.Venue.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.Venue.WSURL == "" {
		cfg.Venue.WSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polyarb.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
