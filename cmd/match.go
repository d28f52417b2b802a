package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/ingest"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/matching"
	"github.com/spigell/cv-matcher/internal/vectorindex"
)

const (
	PromptReportByCompanies   = "Report by companies"
	PromptResultsToFile       = "Dump results to file"
	PromptAppendToExcludeFile = "Append all results to exclude file"
	PromptExit                = "Exit"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find the job descriptions that fit a resume best",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("resume", "r", "", "resume file (plain text or markdown)")
	matchCmd.Flags().String("location", "", "only jobs with this location")
	matchCmd.Flags().Bool("remote", false, "only remote (true) or on-site (false) jobs. Unset means both")
	matchCmd.Flags().String("job-type", "", "only jobs of this type: fulltime, parttime, contract or internship")
	matchCmd.Flags().IntP("top-k", "k", 0, "number of jobs to return. Default is matching.top-k from config")
	matchCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for an action, print the report and exit")
	matchCmd.Flags().String("corpus", "", "index this corpus file (.yaml or .json) before matching")
	matchCmd.Flags().StringP("exclude-file", "e", "", "special file with jobs to exclude. Default is unset.")
	matchCmd.Flags().StringSlice("disable-filter", nil, "skip these filters for this run: companies, exclude_file")

	matchCmd.MarkFlagRequired("resume")
	viper.BindPFlag("exclude-file", matchCmd.Flags().Lookup("exclude-file"))
}

func runMatch(cmd *cobra.Command) {
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

	logger.Info("starting the cv-matcher", zap.String("version", resolveVersion()))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config.Matching, "", "  ")
	logger.Debug(fmt.Sprintf("starting with matching config: \n %s", pretty))

	resumeFile, _ := cmd.Flags().GetString("resume")
	resume, err := os.ReadFile(resumeFile)
	if err != nil {
		logger.Fatal("reading resume", zap.Error(err))
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

	if corpus, _ := cmd.Flags().GetString("corpus"); corpus != "" {
		if err := indexCorpus(ctx, corpus, config, embedder, index, logger); err != nil {
			logger.Fatal("indexing corpus", zap.Error(err))
		}
	}

	disabled, _ := cmd.Flags().GetStringSlice("disable-filter")
	filters, err := newFilters(config, disabled, logger)
	if err != nil {
		logger.Fatal("configuring filters", zap.Error(err))
	}

	engine, err := matching.New(config.Matching, embedder, index, logger,
		matching.WithBundleFilter(filters),
	)
	if err != nil {
		logger.Fatal("creating the matching engine", zap.Error(err))
	}

	topK, _ := cmd.Flags().GetInt("top-k")
	result, err := engine.Match(ctx, string(resume), filterFromFlags(cmd), topK)
	if err != nil {
		logger.Fatal("matching", zap.Error(err))
	}

	if result.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no matching jobs found"))
		return
	}

	for _, entry := range reportEntries(result) {
		logger.Info("match",
			zap.Int("rank", entry.Rank),
			zap.String("job_id", entry.JobID),
			zap.Float32("score", entry.Score),
			zap.String("company", entry.Company),
			zap.String("url", entry.URL),
		)
	}

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	if autoApprove {
		if err := handleAction(PromptReportByCompanies, logger, config, result); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		return
	}

	for {
		items := []string{PromptReportByCompanies, PromptResultsToFile}
		if config.ExcludeFile != "" {
			items = append(items, PromptAppendToExcludeFile)
		}

		prompt := promptui.Select{
			Label: "What next?",
			Items: append(items, PromptExit),
		}

		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, config, result); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, config *Config, result *matching.Result) error {
	switch action {
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByCompanies:
		pretty, _ := json.MarshalIndent(reportByCompany(result), "", "  ")
		logger.Info(string(pretty), zap.Int("jobs count", result.Len()))
		return nil
	case PromptResultsToFile:
		filename, err := dumpToTmpFile(result)
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		excluded, err := filtering.LoadExcludedFromFile(config.ExcludeFile)
		if err != nil {
			return err
		}

		excluded.Append(filtering.ExcludedFromResult(result))
		if err := excluded.ToFile(config.ExcludeFile); err != nil {
			return err
		}

		logger.Info("appended to exclude file", zap.String("filename", config.ExcludeFile), zap.Int("jobs", excluded.Len()))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// filterFromFlags builds the metadata filter. --remote applies only when set.
func filterFromFlags(cmd *cobra.Command) matching.Filter {
	filter := matching.Filter{}

	if location, _ := cmd.Flags().GetString("location"); strings.TrimSpace(location) != "" {
		filter[matching.FilterLocation] = location
	}
	if jobType, _ := cmd.Flags().GetString("job-type"); strings.TrimSpace(jobType) != "" {
		filter[matching.FilterJobType] = strings.ToLower(jobType)
	}
	if cmd.Flags().Changed("remote") {
		remote, _ := cmd.Flags().GetBool("remote")
		filter[matching.FilterIsRemote] = remote
	}

	return filter
}

func indexCorpus(ctx context.Context, path string, config *Config, embedder embedding.Embedder, index vectorindex.Index, logger *zap.Logger) error {
	jobs, err := ingest.LoadFile(path)
	if err != nil {
		return err
	}

	indexer := ingest.NewIndexer(embedder, index, indexerOptions(config), logger)
	stats, err := indexer.IndexJobs(ctx, jobs)
	if err != nil {
		return err
	}

	logger.Info("corpus indexed", zap.String("file", path), zap.Int("jobs", stats.Jobs), zap.Int("chunks", stats.Chunks))
	return nil
}

func indexerOptions(config *Config) ingest.Options {
	return ingest.Options{
		MinChunkLength: config.Matching.MinChunkLength,
		MaxChunkLength: config.Matching.MaxChunkLength,
		Namespace:      config.Matching.Namespace,
		Workers:        config.Source.Workers,
	}
}
