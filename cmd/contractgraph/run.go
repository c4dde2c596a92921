package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/contractgraph"
)

var (
	runMethod string
	runForce  bool
)

var runCmd = &cobra.Command{
	Use:   "run <pdf>",
	Short: "Run the full pipeline for one PDF",
	Long: `Converts, extracts, generates Cypher, imports into Neo4j and renders the
summary. Outputs land in the data directory. An unchanged PDF reuses its
previous conversion unless --force is given. When Neo4j is unreachable the
import is skipped and the summary is rendered from JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := pipeline.Run(cmd.Context(), args[0], contractgraph.RunOptions{
			Method: runMethod,
			Force:  runForce,
		})
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n", cyan("=== "+res.DocumentID+" ==="))
		if res.SkippedParse {
			warn("PDF unchanged, reused previous conversion")
		}
		for _, p := range res.Outputs {
			done("converted %s", p)
		}
		done("extracted %s (%s source)", res.EnhancedPath, res.Source)
		done("cypher script %s", res.CypherPath)
		if res.Imported {
			done("imported into Neo4j")
		} else {
			warn("Neo4j unavailable, import skipped")
		}
		done("summary %s (from %s)", res.SummaryPath, res.SummarySource)
		fmt.Printf("  %s\n", color.HiBlackString("finished in %s", res.Elapsed))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runMethod, "method", "", "llamaparse, native or auto (default: configured)")
	runCmd.Flags().BoolVar(&runForce, "force", false, "convert even when the PDF is unchanged")
	rootCmd.AddCommand(runCmd)
}
