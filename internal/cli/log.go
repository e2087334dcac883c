package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log <entity>",
	Short: "Show statistics history for an entity",
	Long:  `Display the stored statistics documents of an entity, newest first.`,
	Args:  cobra.ExactArgs(1),
	Run:   runLogCmd,
}

var (
	logOneline bool
	logLimit   int
)

func init() {
	logCmd.Flags().BoolVar(&logOneline, "oneline", false, "Show each document on a single line")
	logCmd.Flags().IntVarP(&logLimit, "n", "n", 0, "Limit the number of documents to show")
}

func runLogCmd(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	ctx := context.Background()
	entity := args[0]

	refs, err := c.History.ListDocuments(ctx, entity, logLimit)
	if err != nil {
		exitError("failed to list documents: %v", err)
	}

	if len(refs) == 0 {
		fmt.Println("No statistics documents yet")
		return
	}

	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for i, ref := range refs {
		doc, err := c.History.DocumentAt(ctx, entity, ref.Timestamp)
		if err != nil {
			exitError("failed to load document: %v", err)
		}

		added, removed := 0, 0
		var changed []string
		for name, d := range doc.Delta {
			added += len(d.Added)
			removed += len(d.Removed)
			if !d.IsEmpty() {
				changed = append(changed, name)
			}
		}
		sort.Strings(changed)

		if logOneline {
			yellow.Printf("%s ", ref.Timestamp.Format("2006-01-02 15:04:05"))
			if i == 0 {
				color.New(color.FgCyan).Print("(latest) ")
			}
			green.Printf("+%d ", added)
			red.Printf("-%d ", removed)
			fmt.Printf("%d sets changed\n", len(changed))
			continue
		}

		yellow.Printf("round %s", ref.Timestamp.Format("2006-01-02 15:04:05"))
		if i == 0 {
			color.New(color.FgCyan).Print(" (latest)")
		}
		fmt.Println()
		fmt.Printf("Blob:   %s\n", shortHash(ref.BlobHash))
		for _, name := range changed {
			d := doc.Delta[name]
			fmt.Printf("    %s: ", name)
			green.Printf("+%d ", len(d.Added))
			red.Printf("-%d", len(d.Removed))
			fmt.Println()
		}
		if len(changed) == 0 {
			fmt.Printf("    no content changes\n")
		}
		fmt.Println()
	}
}
