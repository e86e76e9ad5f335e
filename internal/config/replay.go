package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Input         string
	Window        time.Duration
	Pool          string
	ChainID       uint64
	Snapshot      string
	PGDSN         string
	Out           string
	Comparisons   string
	BatchSize     int
	StateFile     string
	StateName     string
	RecomputeFrom uint64
	FollowChain   bool
	Engine        EngineConfig
	LogLevel      string
}

// EngineConfig tunes the invariant solver.
type EngineConfig struct {
	MaxIterations     int
	StrictConvergence bool
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("in", "./data/typed_events.jsonl")
		v.SetDefault("window", "1h")
		v.SetDefault("batch-size", 1000)
		v.SetDefault("state-name", "replay")
		setEngineDefaults(v)
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return ReplayConfig{}, fmt.Errorf("parse window: %w", err)
	}
	if window < time.Second {
		return ReplayConfig{}, fmt.Errorf("window must be at least 1s, got %s", window)
	}
	recompute, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return ReplayConfig{}, fmt.Errorf("parse recompute-from: %w", err)
	}

	cfg := ReplayConfig{
		Input:         v.GetString("in"),
		Window:        window,
		Pool:          v.GetString("pool"),
		ChainID:       v.GetUint64("chain-id"),
		Snapshot:      v.GetString("snapshot"),
		PGDSN:         v.GetString("pg-dsn"),
		Out:           v.GetString("out"),
		Comparisons:   v.GetString("comparisons"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		StateName:     v.GetString("state-name"),
		RecomputeFrom: recompute,
		FollowChain:   v.GetBool("follow-chain"),
		Engine:        engineConfig(v),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

func setEngineDefaults(v *viper.Viper) {
	v.SetDefault("max-iterations", 1000)
	v.SetDefault("strict", false)
}

func engineConfig(v *viper.Viper) EngineConfig {
	return EngineConfig{
		MaxIterations:     v.GetInt("max-iterations"),
		StrictConvergence: v.GetBool("strict"),
	}
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
