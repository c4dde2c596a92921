package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/contractgraph"
)

var (
	extractInput  string
	extractTxt    string
	extractOutput string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract and enhance contract structure from parsed JSON",
	Long: `Reads the parsed JSON (falling back to the text output when the JSON is
unusable), extracts metadata, parties and articles, runs the NLP
enhancement and writes the enhanced contract JSON.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := extractOutput
		if out == "" {
			out = contractgraph.EnhancedPath(extractInput)
		}
		c, err := pipeline.Extract(cmd.Context(), extractInput, extractTxt, out)
		if err != nil {
			return err
		}
		done("extracted %s (%s source): %d parties, %d articles, %d key provisions",
			color.CyanString(c.DocumentID), c.Source, len(c.Parties), len(c.Articles), len(c.KeyProvisions))
		done("wrote %s", out)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractInput, "input", "i", "", "parsed JSON file")
	extractCmd.Flags().StringVar(&extractTxt, "txt", "", "text fallback (default: beside the JSON)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "enhanced JSON output (default: <input>_enhanced.json)")
	extractCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(extractCmd)
}
