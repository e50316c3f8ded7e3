package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kapu/sitcom-match-go/internal/catalog"
	"github.com/kapu/sitcom-match-go/internal/domain"
	"github.com/kapu/sitcom-match-go/internal/service/analysis"
	"github.com/kapu/sitcom-match-go/pkg/errors"
)

var analyzeOpts struct {
	strategy    string
	catalogFile string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file|-]",
	Short: "Parse a raw model completion offline",
	Long: `Runs the completion parser against a saved model response and prints
the resulting match, or the parse error kind when it is rejected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOpts.strategy, "strategy", "s", "json", "parser strategy: json or triple")
	analyzeCmd.Flags().StringVar(&analyzeOpts.catalogFile, "catalog", "", "character catalog YAML (default: embedded)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	strategy, err := domain.ParseStrategy(analyzeOpts.strategy)
	if err != nil {
		return err
	}

	cat, err := catalog.Load(analyzeOpts.catalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	result, err := analysis.Parse(string(raw), cat, strategy)
	if err != nil {
		var pe *errors.ParseError
		if stderrors.As(err, &pe) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", pe.Kind, pe.Message)
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read completion: %w", err)
	}
	return data, nil
}
