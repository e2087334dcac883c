package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kilupskalvis/mechmon/internal/models"
)

var showCmd = &cobra.Command{
	Use:   "show <entity> [timestamp]",
	Short: "Show a statistics document",
	Long: `Show the statistics document for an entity: summary metrics, content
deltas, and metric time series. Defaults to the latest document; pass an
RFC 3339 timestamp to show a historical round.`,
	Args: cobra.RangeArgs(1, 2),
	Run:  runShowCmd,
}

var showFullHashes bool

func init() {
	showCmd.Flags().BoolVar(&showFullHashes, "full-hashes", false, "Print full content hashes instead of abbreviations")
}

func runShowCmd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := context.Background()
	entity := args[0]

	var doc *models.StatsDocument
	var err error
	if len(args) == 2 {
		ts, perr := time.Parse(time.RFC3339, args[1])
		if perr != nil {
			exitError("invalid timestamp %q: %v", args[1], perr)
		}
		doc, err = c.History.DocumentAt(ctx, entity, ts)
	} else {
		doc, err = c.History.LatestDocument(ctx, entity)
	}
	if err != nil {
		exitError("document not found for %s: %v", entity, err)
	}

	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	yellow.Printf("round %s", doc.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf(" (%s, %s)\n\n", doc.EntityID, doc.Kind)

	// Scalars in stable order
	cyan.Println("Metrics:")
	metrics := make([]string, 0, len(doc.Summary.Scalars))
	for name := range doc.Summary.Scalars {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)
	for _, name := range metrics {
		fmt.Printf("    %-36s %g", name, doc.Summary.Scalars[name])
		if n := doc.SeriesLength(name); n > 1 {
			fmt.Printf("  (%d rounds)", n)
		}
		fmt.Println()
	}

	// Deltas
	sets := make([]string, 0, len(doc.Delta))
	for name := range doc.Delta {
		sets = append(sets, name)
	}
	sort.Strings(sets)

	fmt.Println()
	cyan.Println("Changes since previous round:")
	anyChange := false
	for _, name := range sets {
		d := doc.Delta[name]
		if d.IsEmpty() {
			continue
		}
		anyChange = true
		fmt.Printf("    %s\n", name)
		for _, h := range d.Added.Sorted() {
			green.Printf("        + %s\n", displayHash(h))
		}
		for _, h := range d.Removed.Sorted() {
			red.Printf("        - %s\n", displayHash(h))
		}
	}
	if !anyChange {
		fmt.Println("    none")
	}

	// Distributions, top entries only
	if len(doc.Summary.Distributions) > 0 {
		fmt.Println()
		cyan.Println("Distributions:")
		dists := make([]string, 0, len(doc.Summary.Distributions))
		for name := range doc.Summary.Distributions {
			dists = append(dists, name)
		}
		sort.Strings(dists)
		for _, name := range dists {
			fmt.Printf("    %s:", name)
			for i, nc := range doc.Summary.Distributions[name] {
				if i == 5 {
					fmt.Printf(" …")
					break
				}
				fmt.Printf(" %s=%d", nc.Name, nc.Count)
			}
			fmt.Println()
		}
	}
}

func displayHash(h string) string {
	if showFullHashes {
		return h
	}
	return shortHash(h)
}
