package main

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var backupOutput string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Zip the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := backupOutput
		if out == "" {
			out = fmt.Sprintf("contractgraph-backup-%s.zip", time.Now().Format("20060102-150405"))
		}
		n, err := zipDir(pipeline.Config().DataDir, out)
		if err != nil {
			return err
		}
		done("backed up %d files to %s", n, out)
		return nil
	},
}

// zipDir archives every regular file under dir into out, with paths
// relative to dir. The archive itself is skipped when it lives inside dir.
func zipDir(dir, out string) (int, error) {
	outAbs, err := filepath.Abs(out)
	if err != nil {
		return 0, err
	}
	f, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	count := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == outAbs {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		if _, err := io.Copy(w, src); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		zw.Close()
		return count, fmt.Errorf("archiving %s: %w", dir, err)
	}
	return count, zw.Close()
}

func init() {
	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "archive path (default: contractgraph-backup-<time>.zip)")
	rootCmd.AddCommand(backupCmd)
}
