// Package cli implements vmailctl, the administrative command line for the mail
// directory.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vmail/backend/internal/bootstrap"
	"vmail/backend/internal/config"
	"vmail/backend/internal/logger"
	"vmail/backend/internal/service"
	"vmail/backend/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
)

// storeOpener opens the directory store for a loaded configuration.
type storeOpener func(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error)

// session carries what commands share after flag parsing.
type session struct {
	configFile string
	logLevel   string
	output     string

	openStore storeOpener

	cfg       *config.Config
	log       *zap.Logger
	store     storage.Store
	directory *service.DirectoryService
}

// Execute runs vmailctl with the process arguments and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr, bootstrap.OpenStore)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, open storeOpener) int {
	rt := &session{openStore: open}
	defer rt.close()

	rootCmd := newRootCmd(rt)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(rt *session) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vmailctl",
		Short:         "Manage virtual mail domains, mailboxes and aliases",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&rt.configFile, "config", "", "path to a .env file (default ./.env, then ../.env)")
	rootCmd.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&rt.output, "output", "o", "table", "output format (table, json)")

	rootCmd.AddCommand(
		newAddMailboxCmd(rt),
		newSetPasswordCmd(rt),
		newChangePasswordCmd(rt),
		newDeactivateMailboxCmd(rt),
		newListMailboxesCmd(rt),
		newExportPassdbCmd(rt),
		newAddAliasCmd(rt),
		newListAliasesCmd(rt),
		newAddDomainCmd(rt),
		newListDomainsCmd(rt),
		newMigrateCmd(rt),
		newIssueTokenCmd(rt),
	)
	return rootCmd
}

func (rt *session) setup() error {
	if err := validateOutputFormat(rt.output); err != nil {
		return err
	}

	var (
		cfg *config.Config
		err error
	)
	if rt.configFile != "" {
		cfg, err = config.Load(rt.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if rt.logLevel != "" {
		cfg.Log.Level = rt.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt.cfg = cfg
	rt.log = log
	return nil
}

// directoryService opens the store on first use.
func (rt *session) directoryService(ctx context.Context) (*service.DirectoryService, error) {
	if rt.directory != nil {
		return rt.directory, nil
	}
	store, err := rt.openStore(ctx, rt.cfg, rt.log)
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.directory = bootstrap.NewDirectory(rt.cfg, store, nil, rt.log)
	return rt.directory, nil
}

func (rt *session) close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			rt.log.Warn("failed to close store", zap.Error(err))
		}
	}
	if rt.log != nil {
		_ = rt.log.Sync()
	}
}
