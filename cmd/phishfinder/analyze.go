package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phishfinder/backend/internal/adapters/providers"
	"github.com/phishfinder/backend/internal/application"
	"github.com/phishfinder/backend/internal/domain"
	"github.com/phishfinder/backend/internal/ports"
)

var analyzeFormat string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze submissions from a .json or .eml file",
	Long: `Analyze one file of submissions and print the verdicts as JSON.

The format is taken from the file extension unless --format is given.
A .json file holds one submission object or an array of them.

Examples:
  phishfinder analyze submission.json
  phishfinder analyze message.eml --memory
  phishfinder analyze export.txt --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "", "Submission format (json, eml)")
}

func runAnalyze(_ *cobra.Command, args []string) error {
	container, err := buildCLIContainer()
	if err != nil {
		return err
	}

	return container.Invoke(func(
		logger *zap.Logger,
		registry *providers.Registry,
		analysis *application.AnalysisService,
		store ports.Storage,
		c ports.Cache,
	) error {
		defer logger.Sync()
		defer store.Close()
		defer c.Stop()

		path := args[0]
		var source ports.EmailSource
		if analyzeFormat != "" {
			source, err = registry.Source(analyzeFormat)
		} else {
			source, err = registry.ForPath(path)
		}
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer file.Close()

		ctx := context.Background()
		submissions, err := source.Load(ctx, file)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		logger.Info("Loaded submissions", zap.String("file", path), zap.Int("count", len(submissions)))

		results := make([]*domain.AnalysisResult, 0, len(submissions))
		for _, sub := range submissions {
			result, err := analysis.Analyze(ctx, sub)
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", sub.ID, err)
			}
			results = append(results, result)
		}
		return printJSON(results)
	})
}
