package cmd

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cv-matcher/internal/headhunter"
	"github.com/spigell/cv-matcher/internal/matching"
)

const (
	app = "cv-matcher"
)

type Config struct {
	Index       *IndexConfig     `mapstructure:"index"`
	Embedding   *EmbeddingConfig `mapstructure:"embedding"`
	Matching    matching.Config  `mapstructure:"matching"`
	ExcludeFile string           `mapstructure:"exclude-file"`
	Exclude     *struct {
		Companies []string
	}
	Source *SourceConfig `mapstructure:"source"`
}

type IndexConfig struct {
	// Provider is qdrant or memory.
	Provider   string `mapstructure:"provider"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	Dimensions uint64 `mapstructure:"dimensions"`
	APIKeyFile string `mapstructure:"api-key-file"`
	TLS        bool   `mapstructure:"tls"`
}

type EmbeddingConfig struct {
	Provider          string `mapstructure:"provider"`
	Model             string `mapstructure:"model"`
	APIKey            string `mapstructure:"api-key"`
	APIKeyFile        string `mapstructure:"api-key-file"`
	Dimensions        int    `mapstructure:"dimensions"`
	MaxRetries        int    `mapstructure:"max-retries"`
	RequestsPerMinute int    `mapstructure:"requests-per-minute"`
	CacheFile         string `mapstructure:"cache-file"`
	MaxLogLength      int    `mapstructure:"max-log-length"`
}

type SourceConfig struct {
	Search            *headhunter.SearchParams `mapstructure:"search"`
	TokenFile         string                   `mapstructure:"token-file"`
	UserAgent         string                   `mapstructure:"user-agent"`
	RequestsPerSecond float64                  `mapstructure:"requests-per-second"`
	Workers           int                      `mapstructure:"workers"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-matcher ranks job descriptions against a resume using multi-chunk embeddings",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"embedding.api-key-file": "CV_MATCHER_GEMINI_API_KEY_FILE",
		"index.api-key-file":     "CV_MATCHER_QDRANT_API_KEY_FILE",
		"source.token-file":      "HH_TOKEN_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for match and index commands.
	if matchCmd.CalledAs() == "" && indexCmd.CalledAs() == "" {
		return
	}

	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// Without an explicit --config everything may come from flags and env.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Index == nil {
		config.Index = &IndexConfig{}
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{}
	}
	if config.Source == nil {
		config.Source = &SourceConfig{}
	}

	return config, nil
}

func (c *Config) excludedCompanies() []string {
	if c.Exclude == nil {
		return nil
	}
	return c.Exclude.Companies
}
