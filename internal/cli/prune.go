package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/mechmon/internal/history"
	"github.com/kilupskalvis/mechmon/internal/server"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove unreferenced payload blobs from local history",
	Long: `Remove payload blobs no snapshot or statistics document references.
History entries themselves are never rewritten. Only meaningful for the
local store; remotes prune on the server side.`,
	Run: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	local, ok := c.History.(*history.Local)
	if !ok {
		exitError("prune operates on the local history store, not a remote")
	}

	result, err := server.Prune(context.Background(), local, runLogger())
	if err != nil {
		exitError("prune failed: %v", err)
	}

	fmt.Printf("Scanned %d blobs, %d referenced, %d deleted\n",
		result.BlobsScanned, result.ReferencedBlobs, result.BlobsDeleted)
}
