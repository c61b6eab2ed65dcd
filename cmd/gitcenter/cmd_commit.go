package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/repo"
)

func newCommitCmd(a *app) *cobra.Command {
	var (
		message     string
		branch      string
		authorName  string
		authorEmail string
		sets        []string
		deletes     []string
		sign        bool
		signingKey  string
	)

	cmd := &cobra.Command{
		Use:   "commit -m <message> [--set <path>=<file>]... [--delete <path>]...",
		Short: "Commit file changes on top of a branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}
			edits, err := parseEdits(sets, deletes)
			if err != nil {
				return err
			}

			req := repo.CommitRequest{
				Edits:   edits,
				Author:  a.author(authorName, authorEmail),
				Message: message,
			}
			if !strings.HasSuffix(req.Message, "\n") {
				req.Message += "\n"
			}
			if sign {
				signer, keyPath, err := newSSHCommitSigner(signingKey)
				if err != nil {
					return err
				}
				a.log.WithField("key", keyPath).Debug("signing commit")
				req.Signer = signer
			}

			return a.withRepo(cmd.Context(), func(r *repo.Repo) error {
				ctx := cmd.Context()
				target := branch
				if target == "" {
					current, err := r.CurrentBranch(ctx)
					if err != nil {
						return err
					}
					if current == "" {
						return fmt.Errorf("HEAD is detached; pass --branch")
					}
					target = current
				}

				id, err := r.CommitOnBranch(ctx, target, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", target, shortID(id), strings.TrimRight(message, "\n"))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "branch to commit on (default: current branch)")
	cmd.Flags().StringVar(&authorName, "author-name", "", "author name (default: author.name or $USER)")
	cmd.Flags().StringVar(&authorEmail, "author-email", "", "author email (default: author.email)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "store local <file> at <path> (repeatable)")
	cmd.Flags().StringArrayVar(&deletes, "delete", nil, "remove <path> (repeatable)")
	cmd.Flags().BoolVarP(&sign, "sign", "S", false, "sign the commit with an SSH key")
	cmd.Flags().StringVar(&signingKey, "signing-key", "", "SSH private key (default: ~/.ssh/id_ed25519, id_ecdsa or id_rsa)")

	return cmd
}

// parseEdits turns --set and --delete flags into tree edits. Local files with
// the executable bit are stored as executables.
func parseEdits(sets, deletes []string) ([]repo.Edit, error) {
	edits := make([]repo.Edit, 0, len(sets)+len(deletes))
	for _, s := range sets {
		p, local, ok := strings.Cut(s, "=")
		if !ok || p == "" || local == "" {
			return nil, fmt.Errorf("--set %q: want <path>=<file>", s)
		}
		info, err := os.Stat(local)
		if err != nil {
			return nil, fmt.Errorf("--set %q: %w", s, err)
		}
		data, err := os.ReadFile(local)
		if err != nil {
			return nil, fmt.Errorf("--set %q: %w", s, err)
		}
		mode := object.ModeFile
		if info.Mode()&0o111 != 0 {
			mode = object.ModeExecutable
		}
		edits = append(edits, repo.Edit{Path: p, Content: data, Mode: mode})
	}
	for _, p := range deletes {
		edits = append(edits, repo.Edit{Path: p, Delete: true})
	}
	return edits, nil
}
