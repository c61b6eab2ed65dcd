package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/repo"
)

// resolveObject resolves "rev" or "rev:path" to an object id.
func resolveObject(ctx context.Context, r *repo.Repo, arg string) (object.ID, error) {
	rev, p, hasPath := strings.Cut(arg, ":")
	if rev == "" {
		rev = "HEAD"
	}
	if !hasPath {
		return r.Refs.Lookup(ctx, rev)
	}
	node, err := r.LookupRev(ctx, rev, p)
	if err != nil {
		return object.ZeroID, err
	}
	return node.ID, nil
}

func newCatFileCmd(a *app) *cobra.Command {
	var showType, showSize, pretty bool

	cmd := &cobra.Command{
		Use:   "cat-file (-t | -s | -p) <object>",
		Short: "Print the type, size or content of an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := 0
			for _, set := range []bool{showType, showSize, pretty} {
				if set {
					modes++
				}
			}
			if modes != 1 {
				return fmt.Errorf("exactly one of -t, -s or -p is required")
			}

			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				id, err := resolveObject(ctx, r, args[0])
				if err != nil {
					return err
				}
				objType, payload, err := r.Store.ReadRaw(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case showType:
					fmt.Fprintln(out, objType)
				case showSize:
					fmt.Fprintln(out, len(payload))
				case objType == object.TypeTree:
					tree, err := object.UnmarshalTree(payload)
					if err != nil {
						return err
					}
					printTree(out, tree.Entries, "")
				default:
					_, err = out.Write(payload)
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&showType, "type", "t", false, "show the object type")
	cmd.Flags().BoolVarP(&showSize, "size", "s", false, "show the payload size")
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print the object")

	return cmd
}

// printTree writes entries in ls-tree format.
func printTree(w io.Writer, entries []object.TreeEntry, prefix string) {
	for _, e := range entries {
		name := e.Name
		if prefix != "" {
			name = prefix + "/" + e.Name
		}
		fmt.Fprintf(w, "%s %s %s\t%s\n", padMode(e.Mode), e.Kind().ObjectType(), e.ID, name)
	}
}

func padMode(mode string) string {
	if len(mode) < 6 {
		return strings.Repeat("0", 6-len(mode)) + mode
	}
	return mode
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [<rev>[:<path>]]",
		Short: "Show a commit, tag, tree or file",
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
				obj, err := r.Store.Read(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch o := obj.(type) {
				case *object.Blob:
					_, err = out.Write(o.Data)
					return err
				case *object.Tree:
					printTree(out, o.Entries, "")
				case *object.Commit:
					printCommit(out, id, o)
					files, err := r.FlattenTree(ctx, o.Tree)
					if err != nil {
						return err
					}
					fmt.Fprintln(out)
					for _, f := range files {
						fmt.Fprintf(out, "    %s\n", f.Path)
					}
				case *object.Tag:
					fmt.Fprintf(out, "tag %s\n", o.Name)
					if o.Tagger != "" {
						fmt.Fprintf(out, "Tagger: %s\n", formatPerson(o.Tagger))
					}
					fmt.Fprintf(out, "\n%s\n", indent(o.MessageText()))
					fmt.Fprintf(out, "%s %s\n", o.TargetType, o.Target)
				}
				return nil
			})
		},
	}
}

func printCommit(w io.Writer, id object.ID, c *object.Commit) {
	fmt.Fprintf(w, "commit %s\n", id)
	if len(c.Parents) > 1 {
		short := make([]string, len(c.Parents))
		for i, p := range c.Parents {
			short[i] = shortID(p)
		}
		fmt.Fprintf(w, "Merge: %s\n", strings.Join(short, " "))
	}
	fmt.Fprintf(w, "Author: %s\n", formatPerson(c.AuthorText()))
	if ident, err := object.ParseIdentity(c.Author); err == nil {
		fmt.Fprintf(w, "Date:   %s\n", ident.When.Format(time.RFC1123Z))
	}
	if _, signed := object.CommitSignature(c); signed {
		fmt.Fprintln(w, "Signed: yes")
	}
	fmt.Fprintf(w, "\n%s\n", indent(c.MessageText()))
}

// formatPerson renders an identity line without its timestamp.
func formatPerson(line string) string {
	ident, err := object.ParseIdentity(line)
	if err != nil {
		return line
	}
	if ident.Email == "" {
		return ident.Name
	}
	return fmt.Sprintf("%s <%s>", ident.Name, ident.Email)
}

func indent(msg string) string {
	lines := strings.Split(strings.TrimRight(msg, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
