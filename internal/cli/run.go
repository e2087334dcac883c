package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kilupskalvis/mechmon/internal/core"
	"github.com/kilupskalvis/mechmon/internal/models"
	"github.com/kilupskalvis/mechmon/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest pipeline outputs and generate statistics",
	Long: `Ingest model and test-run pipeline outputs, store the resulting
snapshots, and generate a statistics document for every affected entity.

With no input files, statistics are regenerated for all configured
entities from the snapshots already in history.

Examples:
  mechmon run --model-output rasmodel.json
  mechmon run --model-output rasmodel.json --test-output rasmodel_large_corpus.json
  mechmon run --all`,
	Run: runRun,
}

var (
	runModelOutputs []string
	runTestOutputs  []string
	runAll          bool
	runVerbose      bool
)

func init() {
	runCmd.Flags().StringArrayVar(&runModelOutputs, "model-output", nil, "Model run output JSON file (repeatable)")
	runCmd.Flags().StringArrayVar(&runTestOutputs, "test-output", nil, "Test run output JSON file (repeatable)")
	runCmd.Flags().BoolVar(&runAll, "all", false, "Regenerate statistics for all configured entities")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose logging")
}

func runLogger() *slog.Logger {
	level := slog.LevelWarn
	if runVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := context.Background()
	logger := runLogger()

	entitySet := make(map[string]struct{})

	// Ingest model outputs
	for _, path := range runModelOutputs {
		var out models.ModelRunOutput
		if err := readJSONFile(path, &out); err != nil {
			exitError("read model output: %v", err)
		}

		snap, err := core.BuildModelSnapshot(&out)
		if err != nil {
			exitError("build snapshot from %s: %v", path, err)
		}
		if err := c.History.PutSnapshot(ctx, snap); err != nil {
			exitError("store snapshot for %s: %v", snap.EntityID, err)
		}

		entitySet[snap.EntityID] = struct{}{}
		fmt.Printf("Stored model snapshot %s @ %s (%d statements)\n",
			snap.EntityID, snap.Timestamp.Format("2006-01-02 15:04:05"),
			len(snap.ContentSet(models.SetStatements)))
	}

	// Ingest test outputs
	for _, path := range runTestOutputs {
		var out models.TestRunOutput
		if err := readJSONFile(path, &out); err != nil {
			exitError("read test output: %v", err)
		}

		snap, err := core.BuildTestSnapshot(&out)
		if err != nil {
			exitError("build snapshot from %s: %v", path, err)
		}
		if err := c.History.PutSnapshot(ctx, snap); err != nil {
			exitError("store snapshot for %s: %v", snap.EntityID, err)
		}

		entitySet[snap.EntityID] = struct{}{}
		fmt.Printf("Stored test snapshot %s @ %s (%d applied tests)\n",
			snap.EntityID, snap.Timestamp.Format("2006-01-02 15:04:05"),
			len(snap.ContentSet(models.SetAppliedTests)))
	}

	if runAll {
		for _, id := range c.Config.EntityIDs() {
			entitySet[id] = struct{}{}
		}
	}

	if len(entitySet) == 0 {
		fmt.Println("Nothing to do. Pass --model-output, --test-output, or --all.")
		return
	}

	entities := make([]string, 0, len(entitySet))
	for id := range entitySet {
		entities = append(entities, id)
	}
	sort.Strings(entities)

	// Local runs deliver webhooks directly; against a remote server the
	// document POST triggers them server-side instead.
	var webhooks *server.WebhookNotifier
	if !c.Config.UseRemote() && len(c.Config.WebhookURLs) > 0 {
		webhooks = server.NewWebhookNotifier(&server.WebhookConfig{URLs: c.Config.WebhookURLs}, logger)
	}

	const maxWorkers = 4

	type outcome struct {
		entity string
		doc    *models.StatsDocument
		state  core.State
		err    error
	}

	var mu sync.Mutex
	var outcomes []outcome

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for _, entity := range entities {
		entity := entity
		g.Go(func() error {
			gen := core.NewGenerator(c.History, logger)
			doc, err := gen.Run(gctx, entity)

			mu.Lock()
			outcomes = append(outcomes, outcome{entity: entity, doc: doc, state: gen.State(), err: err})
			mu.Unlock()

			// Per-entity failures are reported, not fatal for the batch.
			return nil
		})
	}
	g.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].entity < outcomes[j].entity })

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	failed := 0
	fmt.Println()
	for _, o := range outcomes {
		switch {
		case errors.Is(o.err, core.ErrNoSnapshot):
			yellow.Printf("- %s: no snapshots yet, skipped\n", o.entity)
		case o.err != nil:
			failed++
			red.Printf("✗ %s: %v\n", o.entity, o.err)
		default:
			changed := 0
			for _, d := range o.doc.Delta {
				if !d.IsEmpty() {
					changed++
				}
			}
			green.Printf("✓ %s", o.entity)
			if changed > 0 {
				yellow.Printf(" (%d content sets changed)", changed)
			}
			fmt.Println()

			if webhooks != nil {
				webhooks.NotifyStats(o.doc)
			}
		}
	}

	// Deliveries are async; wait for them before the process exits.
	webhooks.Close()

	fmt.Printf("\n%d entities processed, %d failed\n", len(outcomes), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
