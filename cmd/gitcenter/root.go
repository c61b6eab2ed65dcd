package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/odvcencio/gitcenter/pkg/object"
	"github.com/odvcencio/gitcenter/pkg/repo"
	"github.com/odvcencio/gitcenter/pkg/storage"
)

const version = "0.1.0-dev"

// app carries the configuration shared by every subcommand.
type app struct {
	v   *viper.Viper
	log *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), log: logrus.New()}

	root := &cobra.Command{
		Use:           "gitcenter",
		Short:         "Git-compatible object and ref engine over pluggable storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default: ~/.config/gitcenter/config.yaml)")
	flags.String("backend", "fs", "storage backend: fs, badger or http")
	flags.String("path", ".", "repository directory for the fs and badger backends")
	flags.String("url", "", "base URL for the http backend")
	flags.String("token", "", "bearer token for the http backend")
	flags.Int("cache-size", object.DefaultCacheSize, "object cache entries")
	flags.BoolP("verbose", "v", false, "log storage operations to stderr")

	a.v.BindPFlag("backend", flags.Lookup("backend"))
	a.v.BindPFlag("path", flags.Lookup("path"))
	a.v.BindPFlag("url", flags.Lookup("url"))
	a.v.BindPFlag("token", flags.Lookup("token"))
	a.v.BindPFlag("cache_size", flags.Lookup("cache-size"))
	a.v.BindPFlag("verbose", flags.Lookup("verbose"))

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newCatFileCmd(a))
	root.AddCommand(newShowCmd(a))
	root.AddCommand(newLsTreeCmd(a))
	root.AddCommand(newRevParseCmd(a))
	root.AddCommand(newShowRefCmd(a))
	root.AddCommand(newUpdateRefCmd(a))
	root.AddCommand(newSymbolicRefCmd(a))
	root.AddCommand(newPackRefsCmd(a))
	root.AddCommand(newCommitCmd(a))
	root.AddCommand(newBranchCmd(a))
	root.AddCommand(newTagCmd(a))
	root.AddCommand(newLogCmd(a))
	root.AddCommand(newVerifyCmd(a))
	root.AddCommand(newImportPackCmd(a))
	root.AddCommand(newExportPackCmd(a))
	root.AddCommand(newReflogCmd(a))
	root.AddCommand(newServeCmd(a))

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gitcenter %s\n", version)
		},
	}
}

func (a *app) initConfig(cmd *cobra.Command) error {
	if cfg, _ := cmd.Flags().GetString("config"); cfg != "" {
		a.v.SetConfigFile(cfg)
	} else {
		a.v.AddConfigPath(configDir())
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("GITCENTER")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	a.log.SetOutput(cmd.ErrOrStderr())
	a.log.SetLevel(logrus.WarnLevel)
	if a.v.GetBool("verbose") {
		a.log.SetLevel(logrus.DebugLevel)
	}
	return nil
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gitcenter")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "gitcenter")
	}
	return ".gitcenter"
}

// openBackend builds the configured storage backend. The returned close
// function releases it.
func (a *app) openBackend() (storage.Backend, func() error, error) {
	var (
		b       storage.Backend
		closeFn = func() error { return nil }
	)
	switch kind := strings.ToLower(a.v.GetString("backend")); kind {
	case "", "fs":
		b = storage.NewOS(a.v.GetString("path"))
	case "badger":
		db, err := storage.OpenBadger(a.v.GetString("path"))
		if err != nil {
			return nil, nil, err
		}
		b, closeFn = db, db.Close
	case "http":
		url := a.v.GetString("url")
		if url == "" {
			return nil, nil, fmt.Errorf("backend http needs --url")
		}
		var opts []storage.HTTPOption
		if token := a.v.GetString("token"); token != "" {
			opts = append(opts, storage.WithToken(token))
		}
		client, err := storage.NewHTTP(url, opts...)
		if err != nil {
			return nil, nil, err
		}
		b = client
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", kind)
	}

	if a.v.GetBool("verbose") {
		b = storage.WithLogging(b, a.log.WithField("backend", a.v.GetString("backend")))
	}
	return b, closeFn, nil
}

func (a *app) repoOptions() []repo.Option {
	who := a.author("", "")
	return []repo.Option{
		repo.WithCacheSize(a.v.GetInt("cache_size")),
		repo.WithReflogIdentity(who.Name, who.Email),
	}
}

// withRepo opens the configured repository, runs fn and releases the
// backend.
func (a *app) withRepo(ctx context.Context, fn func(*repo.Repo) error) (err error) {
	b, closeBackend, err := a.openBackend()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeBackend(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	r, err := repo.Open(ctx, b, a.repoOptions()...)
	if err != nil {
		return err
	}
	return fn(r)
}

// author returns the identity for new commits and tags, from flags, then
// config, then $USER.
func (a *app) author(name, email string) object.Identity {
	if name == "" {
		name = a.v.GetString("author.name")
	}
	if email == "" {
		email = a.v.GetString("author.email")
	}
	if name == "" {
		name = os.Getenv("USER")
		if name == "" {
			name = "unknown"
		}
	}
	return object.Identity{Name: name, Email: email}
}

func shortID(id object.ID) string {
	return id.String()[:8]
}
