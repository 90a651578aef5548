// Package cli implements the cadventory command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"cadventory/internal/database"
	"cadventory/internal/library"
	"cadventory/internal/startup"
)

// app holds the configuration shared by the commands of one invocation.
type app struct {
	v   *viper.Viper
	cfg *startup.Config
}

// cmdContext holds the resources opened for one command.
type cmdContext struct {
	Config  *startup.Config
	Library *library.Library
	Store   *database.Database
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Library != nil {
		c.Library.Close()
	}
}

// open opens the configured library and its store.
func (a *app) open(ctx context.Context) (*cmdContext, error) {
	opts := library.DefaultOptions()
	opts.Depth = a.cfg.Depth
	opts.IgnorePatterns = a.cfg.Ignore

	lib, err := library.New(a.cfg.LibraryName, a.cfg.Root, opts)
	if err != nil {
		return nil, err
	}
	db, err := lib.Store(ctx)
	if err != nil {
		lib.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &cmdContext{Config: a.cfg, Library: lib, Store: db}, nil
}

// NewRootCommand builds the command tree with a fresh configuration.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	startup.SetDefaults(a.v)

	rootCmd := &cobra.Command{
		Use:   "cadventory",
		Short: "Catalog a library of CAD models",
		Long: `CADventory indexes a directory tree of CAD files, extracts titles and
object lists from geometry databases, renders preview thumbnails with the
BRL-CAD toolkit and keeps the results in a SQLite store inside the library.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := startup.BindFlags(a.v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := startup.LoadConfig(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./cadventory.toml)")
	flags.StringP("root", "r", ".", "library root directory")
	flags.StringP("name", "n", "", "library name (default: recorded name or root base name)")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newIndexCmd(a),
		newProcessCmd(a),
		newModelsCmd(a),
		newShowCmd(a),
		newTagCmd(a),
		newSelectCmd(a),
		newAuditCmd(a),
		newSearchCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func parseModelID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid model id %q", s)
	}
	return id, nil
}
