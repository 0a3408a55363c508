package game

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// GameConf holds game-level configuration parameters, loaded from YAML.
type GameConf struct {
	// --- Identity ---
	BotName       string `yaml:"bot_name"`       // author identity the dispatcher ignores
	CommandPrefix string `yaml:"command_prefix"` // literal prefix for commands

	// --- Inventory ---
	TeamCapacity int `yaml:"team_capacity"`

	// --- Session timing (seconds) ---
	CatchTimeout     int `yaml:"catch_timeout"`     // wait for "catch <name>" after a spawn
	TradeTimeout     int `yaml:"trade_timeout"`     // wait for the buyer's offer reply
	TrainingDuration int `yaml:"training_duration"` // training cap; early stop allowed
	SpawnIntervalMin int `yaml:"spawn_interval_min"`
	SpawnIntervalMax int `yaml:"spawn_interval_max"`
	DrainTimeout     int `yaml:"drain_timeout"` // shutdown grace for in-flight handlers

	// --- Dispatch policy ---
	StrictCommands bool `yaml:"strict_commands"` // reply to unmatched prefixed input

	// --- Transport ---
	WebHost        string   `yaml:"web_host"`
	WebPort        int      `yaml:"web_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// --- Paths ---
	SpeciesPath string `yaml:"species_path"`
	BoltPath    string `yaml:"bolt_path"`
	LedgerPath  string `yaml:"ledger_path"` // empty disables the activity ledger
	TextDir     string `yaml:"text_dir"`    // empty uses built-in help text

	// --- Ledger ---
	LedgerRetention int `yaml:"ledger_retention"` // seconds, 0 = keep forever
}

// DefaultGameConf returns the built-in defaults.
func DefaultGameConf() *GameConf {
	return &GameConf{
		BotName:          "wildspawn",
		CommandPrefix:    "pkmn ",
		TeamCapacity:     6,
		CatchTimeout:     300,
		TradeTimeout:     300,
		TrainingDuration: 3600,
		SpawnIntervalMin: 10,
		SpawnIntervalMax: 20,
		DrainTimeout:     10,
		WebPort:          8470,
		SpeciesPath:      "data/species.csv",
		BoltPath:         "wildspawn.bolt",
		LedgerRetention:  0,
	}
}

// LoadGameConf reads a YAML config file, applying defaults for unset fields.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gameconf: read %s: %w", path, err)
	}
	conf := DefaultGameConf()
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("gameconf: parse %s: %w", path, err)
	}
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("gameconf: %s: %w", path, err)
	}
	return conf, nil
}

// validate rejects configurations the engine cannot run with.
func (c *GameConf) validate() error {
	if c.CommandPrefix == "" {
		return fmt.Errorf("command_prefix must not be empty")
	}
	if c.TeamCapacity <= 0 {
		return fmt.Errorf("team_capacity must be positive")
	}
	if c.SpawnIntervalMin <= 0 || c.SpawnIntervalMax < c.SpawnIntervalMin {
		return fmt.Errorf("spawn interval bounds are invalid")
	}
	return nil
}

// CatchWait returns the catch timeout as a duration.
func (c *GameConf) CatchWait() time.Duration {
	return time.Duration(c.CatchTimeout) * time.Second
}

// TradeWait returns the trade reply timeout as a duration.
func (c *GameConf) TradeWait() time.Duration {
	return time.Duration(c.TradeTimeout) * time.Second
}

// TrainingWait returns the full training duration.
func (c *GameConf) TrainingWait() time.Duration {
	return time.Duration(c.TrainingDuration) * time.Second
}

// DrainWait returns the shutdown grace period.
func (c *GameConf) DrainWait() time.Duration {
	return time.Duration(c.DrainTimeout) * time.Second
}

// LedgerWait returns the ledger retention window, zero meaning unlimited.
func (c *GameConf) LedgerWait() time.Duration {
	return time.Duration(c.LedgerRetention) * time.Second
}
