package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/repo"
)

func newExportPackCmd(a *app) *cobra.Command {
	var (
		haves  []string
		thin   bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "export-pack <rev>...",
		Short: "Write the objects reachable from revs as a pack file (or to stdout)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				var req repo.ExportRequest
				for _, arg := range args {
					id, err := resolveObject(ctx, r, arg)
					if err != nil {
						return err
					}
					req.Want = append(req.Want, id)
				}
				for _, arg := range haves {
					id, err := resolveObject(ctx, r, arg)
					if err != nil {
						return err
					}
					req.Have = append(req.Have, id)
				}
				req.Thin = thin

				res, err := r.ExportPack(ctx, req)
				if err != nil {
					return err
				}

				var out io.Writer = cmd.OutOrStdout()
				summary := cmd.ErrOrStderr()
				if output != "" && output != "-" {
					if err := os.WriteFile(output, res.Pack, 0o644); err != nil {
						return fmt.Errorf("write pack: %w", err)
					}
					summary = cmd.OutOrStdout()
				} else if _, err := out.Write(res.Pack); err != nil {
					return fmt.Errorf("write pack: %w", err)
				}
				fmt.Fprintf(summary, "exported pack-%s (%d object(s), %d delta(s))\n",
					res.Checksum, len(res.Objects), res.Deltas)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&haves, "have", nil, "revision the receiver already has (repeatable)")
	cmd.Flags().BoolVar(&thin, "thin", false, "allow deltas against objects the receiver has")
	cmd.Flags().StringVarP(&output, "output", "o", "", "pack file to write (default stdout)")

	return cmd
}
