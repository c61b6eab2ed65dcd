package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/refs"
	"github.com/odvcencio/gitcenter/pkg/repo"
)

func newLsTreeCmd(a *app) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "ls-tree [<rev>[:<path>]]",
		Short: "List the contents of a tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := "HEAD"
			if len(args) == 1 {
				arg = args[0]
			}
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				id, err := resolveObject(ctx, r, arg)
				if err != nil {
					return err
				}
				treeID, err := r.Peel(ctx, id, object.TypeTree)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !recursive {
					tree, err := r.Store.ReadTree(ctx, treeID)
					if err != nil {
						return err
					}
					printTree(out, tree.Entries, "")
					return nil
				}
				files, err := r.FlattenTree(ctx, treeID)
				if err != nil {
					return err
				}
				for _, f := range files {
					kind, _ := object.KindOfMode(f.Mode)
					fmt.Fprintf(out, "%s %s %s\t%s\n", padMode(f.Mode), kind.ObjectType(), f.ID, f.Path)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subtrees")

	return cmd
}

func newRevParseCmd(a *app) *cobra.Command {
	var symbolic bool

	cmd := &cobra.Command{
		Use:   "rev-parse <rev>...",
		Short: "Resolve revisions to object ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				for _, arg := range args {
					if symbolic {
						name, err := r.Refs.Follow(ctx, arg)
						if err != nil {
							return err
						}
						fmt.Fprintln(out, name)
						continue
					}
					id, err := resolveObject(ctx, r, arg)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, id)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&symbolic, "symbolic-full-name", false, "print the ref name a symbolic ref ends at")

	return cmd
}

func newShowRefCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show-ref [prefix]",
		Short: "List refs, loose and packed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := "refs/"
			if len(args) == 1 {
				prefix = args[0]
			}
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				list, err := r.Refs.ListPrefix(cmd.Context(), prefix)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, ref := range list {
					if ref.IsSymbolic() {
						fmt.Fprintf(out, "ref: %s %s\n", ref.Symbolic, ref.Name)
						continue
					}
					fmt.Fprintf(out, "%s %s\n", ref.Target, ref.Name)
				}
				return nil
			})
		},
	}
}

func newUpdateRefCmd(a *app) *cobra.Command {
	var deleteRef bool

	cmd := &cobra.Command{
		Use:   "update-ref <ref> <new> [<old>]",
		Short: "Point a ref at an object, optionally only if it still names <old>",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				name := args[0]
				if deleteRef {
					if len(args) != 1 {
						return fmt.Errorf("update-ref -d takes only the ref name")
					}
					return r.Refs.Delete(ctx, name)
				}
				if len(args) < 2 {
					return fmt.Errorf("update-ref needs a new value")
				}
				newID, err := r.Refs.Lookup(ctx, args[1])
				if err != nil {
					return err
				}
				if len(args) == 2 {
					return r.ForceUpdate(ctx, name, newID)
				}
				var old object.ID
				if args[2] != "" && args[2] != object.ZeroID.String() {
					if old, err = object.ParseID(args[2]); err != nil {
						return err
					}
				}
				return r.Publish(ctx, name, newID, old)
			})
		},
	}

	cmd.Flags().BoolVarP(&deleteRef, "delete", "d", false, "delete the ref")

	return cmd
}

func newSymbolicRefCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "symbolic-ref <name> [<target>]",
		Short: "Read or set a symbolic ref",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				if len(args) == 2 {
					return r.Refs.SetSymbolic(ctx, args[0], args[1])
				}
				ref, err := r.Refs.Read(ctx, args[0])
				if err != nil {
					return err
				}
				if !ref.IsSymbolic() {
					return fmt.Errorf("ref %s is not symbolic", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), ref.Symbolic)
				return nil
			})
		},
	}
}

func newPackRefsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pack-refs",
		Short: "Move loose refs into " + refs.PackedRefsPath,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				n, err := r.Refs.Pack(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "packed %d ref(s)\n", n)
				return nil
			})
		},
	}
}
