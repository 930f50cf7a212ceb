package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	verbose    bool
	rootCmd    = &cobra.Command{
		Use:   "vulnfix",
		Short: "Vulnfix Orchestrator - batch security analysis of source trees",
		Long: `Vulnfix Orchestrator runs a matrix of analysis prompts over source files
from a local folder or a GitHub repository. Each (file, prompt) pair is sent
to an OpenAI-compatible inference backend; extracted fixes are written to an
output directory and every run produces a JSON report.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
}

// newLogger builds the CLI logger; quiet by default so stdout stays
// reserved for the report.
func newLogger() *zap.SugaredLogger {
	if !verbose {
		return zap.NewNop().Sugar()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
