package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/contractgraph/contract"
)

var (
	importScript   string
	importContract string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a contract into Neo4j",
	Long: `Imports either a script written by "contractgraph cypher" (--input) or an
enhanced contract JSON directly (--contract). Re-importing a contract
replaces its previous nodes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		switch {
		case importScript != "" && importContract != "":
			return errors.New("use either --input or --contract, not both")
		case importScript != "":
			if err := pipeline.ImportScript(ctx, importScript); err != nil {
				return err
			}
			done("imported %s", importScript)
		case importContract != "":
			c, err := contract.Load(importContract)
			if err != nil {
				return err
			}
			stmts, err := pipeline.GenerateCypher(c, "")
			if err != nil {
				return err
			}
			if err := pipeline.Import(ctx, stmts); err != nil {
				return err
			}
			done("imported %s (%d statements)", c.DocumentID, len(stmts))
		default:
			return errors.New("one of --input or --contract is required")
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importScript, "input", "i", "", "cypher script")
	importCmd.Flags().StringVar(&importContract, "contract", "", "enhanced contract JSON")
	rootCmd.AddCommand(importCmd)
}
