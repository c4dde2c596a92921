package main

import (
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/contractgraph"
	"github.com/brunobiangulo/contractgraph/parser"
)

var (
	convertFormat string
	convertMethod string
	convertOut    string
)

var convertCmd = &cobra.Command{
	Use:   "convert <pdf>",
	Short: "Convert a PDF to JSON, Markdown and/or text",
	Long: `Converts a PDF with LlamaParse (when LLAMAPARSE_API_KEY is set) or the
offline native extractor. Outputs are written next to the PDF unless
--output-dir is given.

Example:
  contractgraph convert nda.pdf -f all
  contractgraph convert nda.pdf -f json --method native`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formats, err := parser.ParseFormats(convertFormat)
		if err != nil {
			return err
		}
		written, err := pipeline.Convert(cmd.Context(), args[0], contractgraph.ConvertOptions{
			Formats: formats,
			Method:  convertMethod,
			OutDir:  convertOut,
		})
		for _, path := range written {
			done("wrote %s", path)
		}
		return err
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", "all", "json, markdown, text or all")
	convertCmd.Flags().StringVar(&convertMethod, "method", "", "llamaparse, native or auto (default: configured)")
	convertCmd.Flags().StringVarP(&convertOut, "output-dir", "o", "", "directory for outputs")
	rootCmd.AddCommand(convertCmd)
}
