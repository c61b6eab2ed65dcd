package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/repo"
)

func newTagCmd(a *app) *cobra.Command {
	var deleteTag string
	var force bool
	var showHash bool
	var message string

	cmd := &cobra.Command{
		Use:   "tag [name] [target]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()

				if strings.TrimSpace(deleteTag) != "" {
					if len(args) > 0 {
						return fmt.Errorf("tag --delete does not accept positional args")
					}
					return r.DeleteTag(ctx, deleteTag)
				}

				if len(args) == 0 {
					tags, err := r.ListTags(ctx)
					if err != nil {
						return err
					}
					for _, t := range tags {
						if showHash {
							fmt.Fprintf(out, "%s %s\n", t.Peeled, t.Name)
						} else {
							fmt.Fprintln(out, t.Name)
						}
					}
					return nil
				}

				targetArg := "HEAD"
				if len(args) == 2 {
					targetArg = strings.TrimSpace(args[1])
				}
				target, err := r.Refs.Lookup(ctx, targetArg)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", targetArg, err)
				}

				if message == "" {
					return r.CreateTag(ctx, args[0], target, force)
				}
				id, err := r.CreateAnnotatedTag(ctx, args[0], target, a.author("", ""), message, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "tag %s %s\n", args[0], shortID(id))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing tag")
	cmd.Flags().BoolVar(&showHash, "show-hash", false, "show peeled tag targets when listing")
	cmd.Flags().StringVarP(&message, "message", "m", "", "create an annotated tag with this message")

	return cmd
}
