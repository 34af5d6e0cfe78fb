package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/forta-classifier/internal/config"
	"github.com/forta-classifier/internal/domain"
	"github.com/forta-classifier/internal/loader"
	"github.com/forta-classifier/internal/logging"
	"github.com/forta-classifier/internal/rules"
	"github.com/forta-classifier/internal/service"
)

// Output file names written by the evaluate command.
const (
	MultimorbidityFile = "multimorbidity.json"
	FortaListFile      = "forta_list.json"
)

// app carries the state shared by all subcommands once the root command has run.
type app struct {
	configFile   string
	referenceDir string
	logLevel     string

	configManager *config.Manager
	logger        *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:          "forta",
		Short:        "Multimorbidity and FORTA medication classification",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "configuration file (default: config.yaml in ., ./config or /etc/forta-classifier)")
	rootCmd.PersistentFlags().StringVar(&a.referenceDir, "reference-dir", "", "directory holding the reference tables")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(evaluateCmd(a))
	rootCmd.AddCommand(validateCmd(a))

	return rootCmd
}

func (a *app) setup() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read .env file: %w", err)
	}

	var opts []config.Option
	if a.configFile != "" {
		opts = append(opts, config.WithConfigFile(a.configFile))
	}
	if a.referenceDir != "" {
		opts = append(opts, config.WithOverride("reference.dir", a.referenceDir))
	}
	if a.logLevel != "" {
		opts = append(opts, config.WithOverride("logging.level", a.logLevel))
	}

	configManager, err := config.NewManager(opts...)
	if err != nil {
		return err
	}
	if err := configManager.Validate(); err != nil {
		return err
	}

	// CLI output goes to stdout; logs stay on stderr unless configured otherwise
	loggingConfig := configManager.GetConfig().Logging
	if loggingConfig.Output == "" || loggingConfig.Output == "stdout" {
		loggingConfig.Output = "stderr"
	}
	logger, err := logging.New(loggingConfig)
	if err != nil {
		return err
	}

	a.configManager = configManager
	a.logger = logger
	return nil
}

func (a *app) loadReference(cmd *cobra.Command) (*rules.ReferenceData, error) {
	return loader.LoadDirectory(cmd.Context(), a.logger, *a.configManager.GetReferenceConfig())
}

func evaluateCmd(a *app) *cobra.Command {
	var samplePath, outDir string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one patient record and write the multimorbidity and FORTA lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := readRecord(samplePath)
			if err != nil {
				return err
			}

			reference, err := a.loadReference(cmd)
			if err != nil {
				return err
			}

			evalConfig := a.configManager.GetEvaluationConfig()
			encoder, err := service.NewEncoder(evalConfig.MaxComorbidities, evalConfig.StrictSlots)
			if err != nil {
				return err
			}
			evaluator, err := service.NewEvaluator(a.logger, reference,
				service.WithEncoder(encoder),
				service.WithMedicationSlots(evalConfig.MedicationSlots),
			)
			if err != nil {
				return err
			}

			evaluation, err := evaluator.Evaluate(cmd.Context(), record)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			if err := writeJSON(filepath.Join(outDir, MultimorbidityFile), evaluation.Multimorbidity); err != nil {
				return err
			}
			if err := writeJSON(filepath.Join(outDir, FortaListFile), evaluation.Classification.Rows); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Comorbidities: %d\n", len(evaluation.Comorbidities))
			for _, label := range evaluation.Comorbidities {
				fmt.Fprintf(out, "  %s\n", label)
			}
			fmt.Fprintf(out, "FORTA rows: %d\n", len(evaluation.Classification.Matched()))
			for _, row := range evaluation.Classification.Rows {
				fmt.Fprintf(out, "  %-30s %-40s %s\n", row.Substance, row.Indication, row.Rating)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&samplePath, "sample", "", "patient record JSON file")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for "+MultimorbidityFile+" and "+FortaListFile)
	_ = cmd.MarkFlagRequired("sample")

	return cmd
}

func validateCmd(a *app) *cobra.Command {
	var failOnWarnings bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the reference tables and report structural warnings",
		RunE: func(cmd *cobra.Command, args []string) error {
			reference, err := a.loadReference(cmd)
			if err != nil {
				return err
			}

			warnings := reference.Validate()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Comorbidity labels: %d\n", reference.Comorbidities.Len())
			fmt.Fprintf(out, "Indication labels: %d\n", len(reference.Indications))
			fmt.Fprintf(out, "Classification rows: %d\n", len(reference.Classification))
			fmt.Fprintf(out, "Warnings: %d\n", len(warnings))
			for _, w := range warnings {
				fmt.Fprintf(out, "  %s\n", w)
			}

			if failOnWarnings && len(warnings) > 0 {
				return fmt.Errorf("%d reference data warnings: %w", len(warnings), domain.ErrReferenceData)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnWarnings, "fail-on-warnings", false, "exit non-zero when warnings are found")

	return cmd
}

// readRecord decodes one patient record, keeping numbers as json.Number.
func readRecord(path string) (domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample: %w", err)
	}
	defer f.Close()

	var record domain.Record
	decoder := json.NewDecoder(f)
	decoder.UseNumber()
	if err := decoder.Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode sample %s: %v: %w", path, err, domain.ErrMalformedInput)
	}
	if record == nil {
		return nil, fmt.Errorf("sample %s is not a JSON object: %w", path, domain.ErrMalformedInput)
	}
	return record, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
