// Command contractgraph runs the contract pipeline stages from the shell.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/contractgraph"
)

var (
	configPath string
	verbose    bool

	pipeline *contractgraph.Pipeline
)

var rootCmd = &cobra.Command{
	Use:   "contractgraph",
	Short: "Turn PDF contracts into a Neo4j graph and Markdown summaries",
	Long: `contractgraph converts PDF contracts to JSON, Markdown and text,
extracts parties, articles and key terms, builds a Cypher import for Neo4j,
and renders a Markdown summary from the JSON or the graph.

Run "contractgraph run contract.pdf" for the whole pipeline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		cfg, err := contractgraph.LoadConfig(configPath)
		if err != nil {
			return err
		}
		pipeline, err = contractgraph.New(cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pipeline != nil {
			if err := pipeline.Close(); err != nil {
				slog.Warn("closing pipeline", "error", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONTRACTGRAPH_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}

// done prints a green check line.
func done(format string, args ...any) {
	fmt.Printf("%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Printf("%s %s\n", color.YellowString("⚠"), fmt.Sprintf(format, args...))
}
