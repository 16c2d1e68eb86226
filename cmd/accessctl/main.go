// Command accessctl is the command-line client for the appaccess service.
//
// It keeps one session in a file, in Redis or in memory. Tokens are only
// rotated by the refresh command; a rejected token ends the session and a
// new login is needed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nerrad567/appaccess/internal/client"
	"github.com/nerrad567/appaccess/internal/infrastructure/config"
	"github.com/nerrad567/appaccess/internal/infrastructure/logging"
	"github.com/nerrad567/appaccess/internal/session"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

// describe turns client errors into the text shown to the operator.
func describe(err error) string {
	var ce *client.Error
	if errors.As(err, &ce) {
		return client.UserMessage(err)
	}
	return err.Error()
}

// cli carries state shared by every subcommand.
type cli struct {
	out        io.Writer
	configPath string
	jsonOut    bool

	cfg        *config.Config
	client     *client.Client
	closeStore func() error
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "accessctl",
		Short: "Manage users, applications and permissions",
		Long: `accessctl talks to an appaccess server.

Sign in with "accessctl login", then list and edit users, applications
and the permission grants between them. Mutations require the admin role.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.setup(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.closeStore != nil {
				return c.closeStore()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", configPathFromEnv(), "config file")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.refreshCmd(),
		c.usersCmd(),
		c.appsCmd(),
		c.permsCmd(),
		versionCmd(out),
	)
	return root
}

// setup loads configuration and opens the session store and client.
func (c *cli) setup(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.LoadClient(c.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg

	store, closeStore, err := session.Open(ctx, cfg.Client.Session, cfg.Redis)
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	c.closeStore = closeStore

	// Diagnostics go to stderr so table and JSON output stay clean.
	logCfg := config.LoggingConfig{Level: cfg.Logging.Level, Format: "text", Output: "stderr"}
	log := logging.New(logCfg, version).Component("client")
	cl, err := client.New(cfg.Client.BaseURL, store,
		client.WithTimeout(cfg.Client.RequestTimeout()),
		client.WithLogger(log.Logger),
		client.WithUserAgent("accessctl/"+version),
	)
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}
	c.client = cl
	return nil
}

func configPathFromEnv() string {
	if path := os.Getenv("APPACCESS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func versionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(out, "accessctl %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
