package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	Snapshot string
	PGDSN    string
	Pool     string
	ChainID  uint64
	I        int
	J        int
	Amount   string
	Amounts  []string
	Execute  bool
	Engine   EngineConfig
	LogLevel string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("j", 1)
		setEngineDefaults(v)
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		Snapshot: v.GetString("snapshot"),
		PGDSN:    v.GetString("pg-dsn"),
		Pool:     v.GetString("pool"),
		ChainID:  v.GetUint64("chain-id"),
		I:        v.GetInt("i"),
		J:        v.GetInt("j"),
		Amount:   v.GetString("amount"),
		Amounts:  getStringSlice(v, "amounts"),
		Execute:  v.GetBool("execute"),
		Engine:   engineConfig(v),
		LogLevel: v.GetString("log-level"),
	}
	return cfg, nil
}

// SnapshotConfig holds configuration for the snapshot command.
type SnapshotConfig struct {
	RPCURL            string
	RequestsPerSecond float64
	Pool              string
	Block             uint64
	Out               string
	PGDSN             string
	Retry             RetryConfig
	LogLevel          string
}

// LoadSnapshot merges config file, environment variables, and flags into SnapshotConfig.
func LoadSnapshot(cfgFile string, flags *pflag.FlagSet) (SnapshotConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("out", "./data/snapshot.json")
		setRetryDefaults(v)
	})
	if err != nil {
		return SnapshotConfig{}, err
	}

	cfg := SnapshotConfig{
		RPCURL:            v.GetString("rpc"),
		RequestsPerSecond: v.GetFloat64("rps"),
		Pool:              v.GetString("pool"),
		Block:             v.GetUint64("block"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		Retry:             retryConfig(v),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, nil
}
