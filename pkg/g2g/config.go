package g2g

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages embedding configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Training parameters
	v.SetDefault("training.epochs", 10)
	v.SetDefault("training.samples_per_anchor", 3)
	v.SetDefault("training.learning_rate", 1e-3)
	v.SetDefault("training.random_seed", time.Now().UnixNano())
	v.SetDefault("training.eval_interval", 50)

	// Neighborhood parameters
	v.SetDefault("neighborhood.max_hops", 1)

	// Encoder parameters
	v.SetDefault("encoder.embedding_dim", 64)
	v.SetDefault("encoder.hidden1", DefaultHidden1)
	v.SetDefault("encoder.hidden2", DefaultHidden2)

	// Performance parameters
	v.SetDefault("performance.num_workers", runtime.NumCPU())

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.progress_interval", 10)

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Getters for training parameters
func (c *Config) Epochs() int               { return c.v.GetInt("training.epochs") }
func (c *Config) SamplesPerAnchor() int     { return c.v.GetInt("training.samples_per_anchor") }
func (c *Config) LearningRate() float64     { return c.v.GetFloat64("training.learning_rate") }
func (c *Config) RandomSeed() int64         { return c.v.GetInt64("training.random_seed") }
func (c *Config) EvalInterval() int         { return c.v.GetInt("training.eval_interval") }

func (c *Config) MaxHops() int { return c.v.GetInt("neighborhood.max_hops") }

func (c *Config) EmbeddingDim() int { return c.v.GetInt("encoder.embedding_dim") }
func (c *Config) Hidden1() int      { return c.v.GetInt("encoder.hidden1") }
func (c *Config) Hidden2() int      { return c.v.GetInt("encoder.hidden2") }

func (c *Config) NumWorkers() int { return c.v.GetInt("performance.num_workers") }

func (c *Config) LogLevel() string        { return c.v.GetString("logging.level") }
func (c *Config) ProgressInterval() int   { return c.v.GetInt("logging.progress_interval") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "g2g").Logger()
}
