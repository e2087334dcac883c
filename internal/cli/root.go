// Package cli implements the command-line interface for mechmon.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/mechmon/internal/config"
	"github.com/kilupskalvis/mechmon/internal/history"
	"github.com/kilupskalvis/mechmon/internal/remote"
	"github.com/kilupskalvis/mechmon/internal/store"
)

// cmdContext holds common resources for CLI commands.
type cmdContext struct {
	Config  *config.Config
	History history.Store
	Ledgers *store.Store
}

// Close releases resources held by cmdContext.
func (c *cmdContext) Close() {
	if c.History != nil {
		c.History.Close()
	}
	if c.Ledgers != nil {
		c.Ledgers.Close()
	}
}

// initContext initializes config and the history store. A configured remote
// URL routes history access through the HTTP client with retries; otherwise
// the local store under .mechmon is used.
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	var h history.Store
	if cfg.UseRemote() {
		h = remote.NewRetryClient(remote.NewHTTPClient(cfg.Remote.URL, cfg.Remote.Token), nil)
	} else {
		h, err = history.NewLocal(cfg.HistoryPath())
		if err != nil {
			exitError("failed to open history store: %v", err)
		}
	}

	return &cmdContext{Config: cfg, History: h}
}

// initContextWithLedgers additionally opens the novelty ledger database.
func initContextWithLedgers() *cmdContext {
	c := initContext()

	ledgers, err := store.New(c.Config.LedgerPath())
	if err != nil {
		c.Close()
		exitError("failed to open ledger store: %v", err)
	}
	if err := ledgers.Initialize(); err != nil {
		ledgers.Close()
		c.Close()
		exitError("failed to initialize ledger store: %v", err)
	}
	c.Ledgers = ledgers

	return c
}

var rootCmd = &cobra.Command{
	Use:   "mechmon",
	Short: "Mechanistic model monitoring",
	Long: `mechmon tracks machine-maintained causal models over time. It captures
snapshots of model and test-run pipeline outputs, computes deltas and
time series between rounds, and classifies query results by novelty.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(pruneCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortHash returns the first 8 characters of a content hash
func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
