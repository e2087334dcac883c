package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/mechmon/internal/core"
	"github.com/kilupskalvis/mechmon/internal/models"
	"github.com/kilupskalvis/mechmon/internal/server"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [result.json...]",
	Short: "Classify query results by novelty",
	Long: `Classify freshly computed query results against the per-key novelty
ledger. Each input file holds one query result:

  {"key": "rasmodel:query:braf-to-erk", "timestamp": "...", "hashes": ["..."]}

Results may also be given inline with --key and --hash, which is handy
for scripting:

  mechmon classify --key rasmodel:query:braf-to-erk --hash abc123 --hash def456`,
	Run: runClassify,
}

var (
	classifyKey    string
	classifyHashes []string
)

func init() {
	classifyCmd.Flags().StringVar(&classifyKey, "key", "", "Result key for an inline result")
	classifyCmd.Flags().StringArrayVar(&classifyHashes, "hash", nil, "Item hash for an inline result (repeatable)")
}

func runClassify(cmd *cobra.Command, args []string) {
	if classifyKey == "" && len(args) == 0 {
		exitError("nothing to classify: pass result files or --key")
	}

	c := initContextWithLedgers()
	defer c.Close()

	ctx := context.Background()
	logger := runLogger()
	tracker := core.NewTracker(c.Ledgers, logger)

	// Classification runs against the local ledger DB, so novelty events
	// are always delivered from here.
	var webhooks *server.WebhookNotifier
	if len(c.Config.WebhookURLs) > 0 {
		webhooks = server.NewWebhookNotifier(&server.WebhookConfig{URLs: c.Config.WebhookURLs}, logger)
	}

	var results []*models.QueryResult
	for _, path := range args {
		var r models.QueryResult
		if err := readJSONFile(path, &r); err != nil {
			exitError("read result: %v", err)
		}
		results = append(results, &r)
	}
	if classifyKey != "" {
		results = append(results, &models.QueryResult{
			Key:       classifyKey,
			Timestamp: time.Now().UTC(),
			Hashes:    classifyHashes,
		})
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	failed := 0
	for _, r := range results {
		report, err := tracker.Classify(ctx, r)
		if err != nil {
			failed++
			color.New(color.FgRed).Printf("✗ %s: %v\n", r.Key, err)
			continue
		}

		switch report.Classification {
		case models.ClassFirstEver:
			cyan.Printf("%-18s", report.Classification)
		case models.ClassUnchanged:
			fmt.Printf("%-18s", report.Classification)
		default:
			green.Printf("%-18s", report.Classification)
		}
		fmt.Printf(" %s", report.Key)

		if len(report.NewVsEver) > 0 {
			yellow.Printf("  +%d never seen", len(report.NewVsEver))
			for _, h := range report.NewVsEver.Sorted() {
				fmt.Printf(" %s", shortHash(h))
			}
		} else if len(report.NewVsLatest) > 0 {
			fmt.Printf("  +%d reappeared", len(report.NewVsLatest))
		}
		fmt.Println()

		webhooks.NotifyNovelty(report)
	}

	webhooks.Close()

	if failed > 0 {
		exitError("%d of %d results failed to classify", failed, len(results))
	}
}
