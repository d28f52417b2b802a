package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/headhunter"
	"github.com/spigell/cv-matcher/internal/ingest"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/secrets"
)

const (
	sourceHeadhunter = "headhunter"
	sourceFile       = "file"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Load job descriptions into the vector index",
	Run: func(cmd *cobra.Command, _ []string) {
		runIndex(cmd)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringP("source", "s", sourceHeadhunter, "where to take jobs from: headhunter or file")
	indexCmd.Flags().StringP("file", "f", "", "corpus file (.yaml or .json) for --source file")
}

func runIndex(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if strings.EqualFold(config.Index.Provider, providerMemory) {
		logger.Fatal("the memory index does not outlive the process, use qdrant or match --corpus")
	}

	source, _ := cmd.Flags().GetString("source")
	file, _ := cmd.Flags().GetString("file")

	var jobs []ingest.Job
	switch source {
	case sourceFile:
		if file == "" {
			logger.Fatal("--file is required for the file source")
		}
		jobs, err = ingest.LoadFile(file)
	case sourceHeadhunter:
		jobs, err = headhunterJobs(ctx, config.Source, logger)
	default:
		logger.Fatal("unknown source", zap.String("source", source))
	}
	if err != nil {
		logger.Fatal("getting jobs", zap.String("source", source), zap.Error(err))
	}

	if len(jobs) == 0 {
		logger.Info("exiting", zap.String("reason", "no jobs found"))
		return
	}

	embedder, closeEmbedder, err := newEmbedder(ctx, config.Embedding, logger)
	if err != nil {
		logger.Fatal("creating an embedder", zap.Error(err))
	}
	defer closeEmbedder()

	index, err := newIndex(ctx, config.Index, embedder.Dimensions(), logger)
	if err != nil {
		logger.Fatal("connecting to the vector index", zap.Error(err))
	}
	defer index.Close()

	stats, err := ingest.NewIndexer(embedder, index, indexerOptions(config), logger).IndexJobs(ctx, jobs)
	if err != nil {
		logger.Fatal("indexing jobs", zap.Error(err))
	}

	logger.Info("indexing finished",
		zap.String("source", source),
		zap.Int("jobs", stats.Jobs),
		zap.Int("skipped", stats.Skipped),
		zap.Int("chunks", stats.Chunks),
	)
}

func headhunterJobs(ctx context.Context, config *SourceConfig, logger *zap.Logger) ([]ingest.Job, error) {
	var token string
	if strings.TrimSpace(config.TokenFile) != "" {
		t, err := secrets.Load(secrets.Source{Name: "headhunter token", File: config.TokenFile})
		if err != nil {
			return nil, err
		}
		token = t
	}

	hh := headhunter.New(logger, token)
	if config.UserAgent != "" {
		hh.UserAgent = config.UserAgent
	}

	if config.Search != nil {
		logger.Info("starting the search", zap.String("search", config.Search.Text))
	}

	return ingest.NewHeadhunterSource(hh, config.Search, config.RequestsPerSecond, config.Workers, logger).Jobs(ctx)
}
