package main

import (
	"errors"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/contractgraph"
)

var (
	summaryDocID  string
	summaryInput  string
	summaryOutput string
	summaryHTML   bool
	summaryRaw    bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Render a contract summary from Neo4j or an enhanced JSON file",
	Long: `Renders the Markdown summary (or sanitised HTML with --html). With
--document-id the contract is read back from Neo4j; with --input it is
read from the enhanced JSON. Without --output the summary goes to stdout,
styled for the terminal unless --raw is set or stdout is not a terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if summaryDocID == "" && summaryInput == "" {
			return errors.New("one of --document-id or --input is required")
		}
		out, err := pipeline.Summarize(cmd.Context(), contractgraph.SummaryRequest{
			DocumentID: summaryDocID,
			InputPath:  summaryInput,
			HTML:       summaryHTML,
		})
		if err != nil {
			return err
		}
		if summaryOutput == "" {
			if !summaryHTML && !summaryRaw && !color.NoColor {
				out = styled(out)
			}
			_, err = os.Stdout.Write(out)
			return err
		}
		if err := os.WriteFile(summaryOutput, out, 0644); err != nil {
			return err
		}
		done("wrote %s", summaryOutput)
		return nil
	},
}

// styled renders Markdown for the terminal, falling back to the plain text.
func styled(md []byte) []byte {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.RenderBytes(md)
	if err != nil {
		return md
	}
	return out
}

func init() {
	summarizeCmd.Flags().StringVarP(&summaryDocID, "document-id", "d", "", "document id in Neo4j")
	summarizeCmd.Flags().StringVarP(&summaryInput, "input", "i", "", "enhanced contract JSON")
	summarizeCmd.Flags().StringVarP(&summaryOutput, "output", "o", "", "output file (default: stdout)")
	summarizeCmd.Flags().BoolVar(&summaryHTML, "html", false, "render sanitised HTML")
	summarizeCmd.Flags().BoolVar(&summaryRaw, "raw", false, "print plain Markdown to the terminal")
	rootCmd.AddCommand(summarizeCmd)
}
