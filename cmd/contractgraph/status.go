package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/contractgraph"
	"github.com/brunobiangulo/contractgraph/store"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show processed contracts and recent stage runs",
	Long: `Without arguments, lists every registered contract and the most
recent stage runs. With a document id, shows that contract's full run
history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return showDocument(cmd, args[0])
		}
		st, err := pipeline.Status(cmd.Context(), statusLimit)
		if err != nil {
			return err
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Pipeline Status ==="))
		fmt.Printf("%s %d total, %d complete, %d failed\n\n",
			yellow("Documents:"), st.Stats.Documents, st.Stats.Complete, st.Stats.Failed)

		if len(st.Documents) == 0 {
			fmt.Printf("  %s\n", gray("No contracts processed yet"))
		}
		for _, d := range st.Documents {
			icon, paint := statusStyle(d.Status)
			fmt.Printf("  %s %-30s %s\n", paint(icon), d.DocumentID, gray(d.UpdatedAt))
		}

		fmt.Printf("\n%s\n", yellow("Recent runs:"))
		printRuns(st.Runs)
		fmt.Println()
		return nil
	},
}

func showDocument(cmd *cobra.Command, docID string) error {
	ds, err := pipeline.DocumentStatus(cmd.Context(), docID)
	if errors.Is(err, contractgraph.ErrDocumentNotFound) {
		return fmt.Errorf("no runs recorded for %q", docID)
	}
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	d := ds.Document
	icon, paint := statusStyle(d.Status)

	fmt.Printf("\n%s\n\n", cyan("=== "+d.DocumentID+" ==="))
	fmt.Printf("%s %s %s\n", yellow("Status:"), paint(icon), d.Status)
	fmt.Printf("%s %s\n", yellow("Path:  "), d.Path)
	if d.Source != "" {
		fmt.Printf("%s %s\n", yellow("Source:"), d.Source)
	}
	fmt.Printf("%s %s\n", yellow("Hash:  "), d.ContentHash)
	fmt.Printf("\n%s\n", yellow("Runs:"))
	printRuns(ds.Runs)
	fmt.Println()
	return nil
}

func printRuns(runs []store.StageRun) {
	if len(runs) == 0 {
		fmt.Printf("  %s\n", color.HiBlackString("No runs recorded"))
	}
	for _, r := range runs {
		icon, paint := statusStyle(r.Status)
		line := fmt.Sprintf("%-10s %s  %6s", r.Stage, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			(time.Duration(r.Duration) * time.Millisecond).String())
		fmt.Printf("  %s %s", paint(icon), line)
		if r.Error != "" {
			fmt.Printf("  %s", color.RedString(r.Error))
		}
		fmt.Println()
	}
}

func statusStyle(status string) (string, func(a ...interface{}) string) {
	switch status {
	case store.StatusComplete:
		return "✓", color.New(color.FgGreen).SprintFunc()
	case store.StatusFailed:
		return "✗", color.New(color.FgRed).SprintFunc()
	case store.StatusRunning:
		return "●", color.New(color.FgYellow).SprintFunc()
	default:
		return "○", color.New(color.FgHiBlack).SprintFunc()
	}
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(statusCmd)
}
