package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/contractgraph/contract"
)

var (
	cypherInput  string
	cypherOutput string
)

var cypherCmd = &cobra.Command{
	Use:   "cypher",
	Short: "Generate a cypher-shell import script from an enhanced contract",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := contract.Load(cypherInput)
		if err != nil {
			return err
		}
		out := cypherOutput
		if out == "" {
			out = scriptPath(cypherInput)
		}
		stmts, err := pipeline.GenerateCypher(c, out)
		if err != nil {
			return err
		}
		done("wrote %d statements to %s", len(stmts), out)
		return nil
	},
}

// scriptPath maps x_enhanced.json to x.cypher.
func scriptPath(input string) string {
	root := strings.TrimSuffix(input, filepath.Ext(input))
	return strings.TrimSuffix(root, "_enhanced") + ".cypher"
}

func init() {
	cypherCmd.Flags().StringVarP(&cypherInput, "input", "i", "", "enhanced contract JSON")
	cypherCmd.Flags().StringVarP(&cypherOutput, "output", "o", "", "script path (default: <input>.cypher)")
	cypherCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(cypherCmd)
}
