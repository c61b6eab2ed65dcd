package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/repo"
)

func newInitCmd(a *app) *cobra.Command {
	var defaultBranch string
	var root string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty repository on the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if a.v.GetString("backend") == "fs" {
				if err := os.MkdirAll(a.v.GetString("path"), 0o755); err != nil {
					return fmt.Errorf("create directory: %w", err)
				}
			}
			b, closeBackend, err := a.openBackend()
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeBackend(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			opts := a.repoOptions()
			if defaultBranch != "" {
				opts = append(opts, repo.WithDefaultBranch(defaultBranch))
			}
			if root != "" {
				opts = append(opts, repo.WithRoot(root))
			}
			r, err := repo.Init(cmd.Context(), b, opts...)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty repository (default branch %s)\n", r.Manifest.DefaultBranch)
			return nil
		},
	}

	cmd.Flags().StringVarP(&defaultBranch, "initial-branch", "b", "", "name of the initial branch (default: main)")
	cmd.Flags().StringVar(&root, "root", "", "subdirectory of the backend that holds the repository")

	return cmd
}
