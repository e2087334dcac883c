package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilupskalvis/mechmon/internal/config"
	"github.com/kilupskalvis/mechmon/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new mechmon workspace",
	Long: `Initialize a new mechmon workspace in the current directory.
This creates a .mechmon directory holding the configuration, the local
history store, and the novelty ledger database.

Models are declared as NAME or NAME:CORPUS1,CORPUS2 to register the test
corpora the model runs against.

Examples:
  mechmon init --model rasmodel
  mechmon init --model rasmodel:large_corpus,rasmachine_tests --model marm_model`,
	Run: runInitCmd,
}

var initModels []string

func init() {
	initCmd.Flags().StringArrayVar(&initModels, "model", nil, "Model to track, NAME or NAME:CORPUS1,CORPUS2 (repeatable)")
}

// parseModelSpec parses NAME or NAME:CORPUS1,CORPUS2.
func parseModelSpec(spec string) (config.ModelConfig, error) {
	name, rest, found := strings.Cut(spec, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return config.ModelConfig{}, fmt.Errorf("empty model name in %q", spec)
	}

	mc := config.ModelConfig{Name: name}
	if !found {
		return mc, nil
	}
	for _, corpus := range strings.Split(rest, ",") {
		corpus = strings.TrimSpace(corpus)
		if corpus == "" {
			return config.ModelConfig{}, fmt.Errorf("empty corpus name in %q", spec)
		}
		mc.Corpora = append(mc.Corpora, corpus)
	}
	return mc, nil
}

func runInitCmd(cmd *cobra.Command, args []string) {
	// Check if already initialized
	if _, err := config.FindRoot(); err == nil {
		exitError("mechmon workspace already exists")
	}

	var mcs []config.ModelConfig
	for _, spec := range initModels {
		mc, err := parseModelSpec(spec)
		if err != nil {
			exitError("%v", err)
		}
		mcs = append(mcs, mc)
	}

	fmt.Printf("Initializing mechmon workspace...\n")

	cfg, err := config.Initialize(mcs)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	// Create the ledger database up front so the first classify run does
	// not race on schema creation.
	ledgers, err := store.New(cfg.LedgerPath())
	if err != nil {
		exitError("failed to create ledger store: %v", err)
	}
	defer ledgers.Close()

	if err := ledgers.Initialize(); err != nil {
		exitError("failed to initialize ledger store: %v", err)
	}

	fmt.Printf("\nInitialized empty mechmon workspace in .mechmon/\n")
	for _, mc := range mcs {
		if len(mc.Corpora) > 0 {
			fmt.Printf("Tracking model %s (corpora: %s)\n", mc.Name, strings.Join(mc.Corpora, ", "))
		} else {
			fmt.Printf("Tracking model %s\n", mc.Name)
		}
	}
	if len(mcs) == 0 {
		fmt.Printf("\nNo models declared yet. Edit .mechmon/config to add [[models]] entries.\n")
	}
}
