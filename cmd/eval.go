package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/bookcovers/internal/dataset"
	"github.com/lehigh-university-libraries/bookcovers/internal/evaluation"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Cover resolution evaluation tools",
		Long: `Evaluation tools for measuring how often the resolver serves the right cover.

A dataset is a JSONL or Parquet file of labelled queries. Each record carries the
query fields plus expected_isbn, expected_cover_url or expect_placeholder.`,
	}

	cmd.AddCommand(newEvalRunCmd())
	cmd.AddCommand(newEvalReportCmd())

	return cmd
}

func newEvalRunCmd() *cobra.Command {
	var (
		datasetPath  string
		outputDir    string
		sampleSize   int
		concurrency  int
		visual       bool
		providerList string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve a labelled dataset and write a YAML report",
		Example: `  # Evaluate 50 records, 4 at a time
  bookcovers eval run --dataset books.jsonl --sample 50 --concurrency 4

  # Evaluate a parquet dataset with the visual check
  bookcovers eval run --dataset books.parquet --visual`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(datasetPath); err != nil {
				return fmt.Errorf("dataset file not found: %s", datasetPath)
			}

			records, err := dataset.NewLoader(datasetPath).LoadSample(sampleSize)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}
			slog.Info("Dataset loaded", "records", len(records))

			cfg, err := loadConfig(cmd, visual, providerList)
			if err != nil {
				return err
			}
			r, err := buildResolver(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}

			slog.Info("Processing records", "concurrency", concurrency)
			results := evaluation.Run(cmd.Context(), r, records, concurrency, slog.Default())

			runCfg := evaluation.RunConfig{
				DatasetPath: datasetPath,
				SampleSize:  len(records),
				Concurrency: concurrency,
				Providers:   cfg.Providers,
				Visual:      cfg.Visual,
			}
			if cfg.Visual {
				runCfg.VisualProvider = cfg.VisualProvider + "/" + cfg.VisualModel()
			}
			report := evaluation.NewReport(runCfg, results)

			path, err := report.SaveYAML(outputDir)
			if err != nil {
				return fmt.Errorf("failed to save results: %w", err)
			}

			if err := report.Write(cmd.OutOrStdout(), "text"); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nResults saved to: %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "\nView again with:\n  bookcovers eval report --file %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to a JSONL or Parquet dataset (required)")
	cmd.Flags().StringVar(&outputDir, "output", "evals", "Directory for the YAML report")
	cmd.Flags().IntVar(&sampleSize, "sample", 0, "Number of records to evaluate (0 for all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Concurrent resolutions")
	addResolverFlags(cmd, &visual, &providerList)
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func newEvalReportCmd() *cobra.Command {
	var (
		file   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a saved evaluation report",
		Example: `  bookcovers eval report --file evals/covers-2026-01-02_15-04-05-1a2b3c4d.yaml
  bookcovers eval report --file evals/run.yaml --format csv > run.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := evaluation.LoadReport(file)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), format)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Report written by eval run (required)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or csv")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
