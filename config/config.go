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
	Engine   EngineConfig   `yaml:"engine"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Signer   SignerConfig   `yaml:"signer"`
	Chain    ChainConfig    `yaml:"chain"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Telegram TelegramConfig `yaml:"telegram"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig controla el loop de reconciliación y la máquina de estados.
type EngineConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	Workers         int    `yaml:"workers"`        // bets procesadas en paralelo por tick
	PathNamespace   string `yaml:"path_namespace"` // prefijo de los paths de depósito
	EscrowPath      string `yaml:"escrow_path"`    // path origen de los payouts
	EscrowOwner     string `yaml:"escrow_owner"`   // identidad dueña del escrow path
}

// LedgerConfig apunta al gateway del contrato de apuestas.
type LedgerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SignerConfig apunta al signing service delegado.
type SignerConfig struct {
	BaseURL    string `yaml:"base_url"`
	KeyVersion int    `yaml:"key_version"`
	APIKey     string `yaml:"-"` // solo vía env SIGNER_API_KEY
}

// ChainConfig contiene el acceso a la chain de settlement.
type ChainConfig struct {
	RPCURL       string `yaml:"rpc_url"`
	ChainID      int64  `yaml:"chain_id"`
	TokenAddress string `yaml:"token_address"` // contrato ERC-20 del token de stake
}

// OracleConfig apunta al servicio de razonamiento que decide los outcomes.
type OracleConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TelegramConfig controla el canal de notificaciones salientes.
type TelegramConfig struct {
	Enabled bool  `yaml:"enabled"`
	ChatID  int64 `yaml:"chat_id"`
	Token   string `yaml:"-"` // solo vía env TELEGRAM_TOKEN
}

// StorageConfig controla dónde se persiste el audit trail local.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// PollInterval devuelve el intervalo de reconciliación como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.IntervalSeconds) * time.Second
}

// OracleTimeout devuelve el timeout por consulta al oráculo.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// Validate falla si falta configuración sin la que el proceso no debe
// arrancar: sin endpoints ni credenciales no hay modo seguro de operar.
func (c *Config) Validate() error {
	switch {
	case c.Chain.RPCURL == "":
		return fmt.Errorf("config.Validate: chain.rpc_url is required")
	case c.Chain.TokenAddress == "":
		return fmt.Errorf("config.Validate: chain.token_address is required")
	case c.Ledger.BaseURL == "":
		return fmt.Errorf("config.Validate: ledger.base_url is required")
	case c.Signer.BaseURL == "":
		return fmt.Errorf("config.Validate: signer.base_url is required")
	case c.Oracle.BaseURL == "":
		return fmt.Errorf("config.Validate: oracle.base_url is required")
	case c.Engine.EscrowPath == "":
		return fmt.Errorf("config.Validate: engine.escrow_path is required")
	case c.Telegram.Enabled && c.Telegram.Token == "":
		return fmt.Errorf("config.Validate: telegram enabled but TELEGRAM_TOKEN not set")
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SIGNER_API_KEY"); v != "" {
		cfg.Signer.APIKey = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.IntervalSeconds <= 0 {
		cfg.Engine.IntervalSeconds = 30
	}
	if cfg.Engine.Workers <= 0 {
		cfg.Engine.Workers = 4
	}
	if cfg.Engine.PathNamespace == "" {
		cfg.Engine.PathNamespace = "wager-evm"
	}
	if cfg.Engine.EscrowOwner == "" {
		cfg.Engine.EscrowOwner = "escrow"
	}
	if cfg.Signer.KeyVersion <= 0 {
		cfg.Signer.KeyVersion = 1
	}
	if cfg.Oracle.TimeoutSeconds <= 0 {
		cfg.Oracle.TimeoutSeconds = 20
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "wagerbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
