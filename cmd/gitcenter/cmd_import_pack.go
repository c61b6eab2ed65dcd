package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/repo"
)

func newImportPackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-pack [file]",
		Short: "Import a pack file (or stdin) into the object store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read pack: %w", err)
			}

			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				res, err := r.ImportPack(cmd.Context(), data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d object(s))\n", res.Name, len(res.Objects))
				return nil
			})
		},
	}
}
