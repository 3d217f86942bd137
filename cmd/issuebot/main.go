// Command issuebot turns open GitHub issues into pull requests.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cexll/issuebot/internal/config"
	"github.com/cexll/issuebot/internal/provider"
	"github.com/cexll/issuebot/internal/tracing"
)

var (
	loadDotEnv  = godotenv.Load
	newProvider = provider.NewProvider
)

// app carries state shared by every subcommand.
type app struct {
	configFile string
	cfg        *config.Config

	stopTracing func(context.Context) error
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("issuebot: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "issuebot",
		Short: "Turn open GitHub issues into pull requests",
		Long: `issuebot reads the open issues of a repository, asks a completion provider for a change,
commits it on a per-issue branch and opens a pull request. Re-running is safe: unchanged
issues produce no commits.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.stopTracing == nil {
				return nil
			}
			return a.stopTracing(context.Background())
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")

	root.AddCommand(
		newRunCmd(a),
		newPlanCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
	)
	return root
}

// load reads .env and the configuration. A bad configuration aborts before any issue is touched.
func (a *app) load() error {
	// Missing .env is fine
	_ = loadDotEnv()

	cfg, err := config.Load(config.NewViper(), a.configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg

	stop, err := tracing.Setup(context.Background(), tracing.Options{
		Enabled:      cfg.Trace,
		Writer:       os.Stderr,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.stopTracing = stop
	return nil
}
