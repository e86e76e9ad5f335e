package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STABLESCOPE_RPC.
const EnvPrefix = "STABLESCOPE"

// IndexConfig holds configuration for the index command.
type IndexConfig struct {
	RPCURL            string
	RequestsPerSecond float64
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []string
	Topic0            []string
	CoinCounts        []int
	BatchSize         uint64
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	Retry             RetryConfig
	LogLevel          string
}

// RetryConfig is shared by every command that talks to the chain.
type RetryConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

// LoadIndex merges config file, environment variables, and flags into IndexConfig.
func LoadIndex(cfgFile string, flags *pflag.FlagSet) (IndexConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("batch-size", uint64(2000))
		v.SetDefault("out", "./data/logs.jsonl")
		v.SetDefault("checkpoint", "./data/checkpoint.json")
		v.SetDefault("checkpoint-enabled", true)
		v.SetDefault("n-coins", []int{2, 3, 4})
		setRetryDefaults(v)
	})
	if err != nil {
		return IndexConfig{}, err
	}

	cfg := IndexConfig{
		RPCURL:            v.GetString("rpc"),
		RequestsPerSecond: v.GetFloat64("rps"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Addresses:         getStringSlice(v, "address"),
		Topic0:            getStringSlice(v, "topic0"),
		CoinCounts:        v.GetIntSlice("n-coins"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		Retry:             retryConfig(v),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// newViper builds a viper instance with env overrides, bound flags and an
// optional config file. Without cfgFile a ./config.* file is used if present.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	if defaults != nil {
		defaults(v)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func setRetryDefaults(v *viper.Viper) {
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("max-backoff", 30*time.Second)
}

func retryConfig(v *viper.Viper) RetryConfig {
	return RetryConfig{
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		MaxBackoff:   v.GetDuration("max-backoff"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
