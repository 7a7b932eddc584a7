// Package main implements the fenixrpa operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fenixrpa/internal/config"
	"fenixrpa/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded by PersistentPreRunE
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fenixrpa",
	Short: "Submit field damage assessments to the Fenix portal",
	Long: `fenixrpa reads a table of evaluated production units, computes the
recommendation for each one and files them as reports on the Fenix forest
portal, one report per nucleus or property.

Confirmed units are written back to a copy of the table so the next run only
picks up what is still pending.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if _, err := logging.Initialize(cfg.Logging.Options(verbose)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if _, err := os.Stat(configPath); err != nil {
			logging.BootWarn("no config at %s, using defaults (see fenixrpa config init)", configPath)
		} else {
			logging.Boot("config loaded from %s", configPath)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")

	// Run flags
	runCmd.Flags().BoolVar(&includeExisting, "include-existing", false, "Also submit rows already flagged as filed")
	runCmd.Flags().BoolVar(&continueAll, "continue-all", false, "Process every selected group without asking between groups")
	runCmd.Flags().StringSliceVarP(&groupSelectors, "group", "g", nil, "Group id or name to submit (repeatable)")
	runCmd.Flags().StringVar(&regionFilter, "region", "", "Only groups resolving to this region code")
	runCmd.Flags().StringVar(&groupBy, "by", "", "Group by nucleus or property (default from config)")
	runCmd.Flags().StringVarP(&outPath, "out", "o", "", "Reconciled table path (default <table>_atualizado.<ext>)")
	runCmd.Flags().StringVar(&visitDate, "date", "", "Visit date in the form's date format (default today)")

	// Groups flags
	groupsCmd.Flags().BoolVar(&includeExisting, "include-existing", false, "Include rows already flagged as filed")
	groupsCmd.Flags().StringVar(&groupBy, "by", "", "Group by nucleus or property (default from config)")
	groupsCmd.Flags().StringVar(&regionFilter, "region", "", "Only groups resolving to this region code")

	// Recommend flags
	recommendCmd.Flags().StringVar(&recSeverity, "severity", "", "Predominant severity (Baixa, Média, Alta, ...)")
	recommendCmd.Flags().StringVar(&recIncidence, "incidence", "0", "Incidence, as percent or fraction")
	recommendCmd.Flags().Float64Var(&recAge, "age", 0, "Stand age in years")
	recommendCmd.MarkFlagRequired("severity")

	// Reconcile flags
	reconcileCmd.Flags().StringVar(&reconcileRun, "run", "", "Run id (or unique prefix) whose confirmed ids to apply")
	reconcileCmd.Flags().StringVarP(&outPath, "out", "o", "", "Reconciled table path (default <table>_atualizado.<ext>)")
	reconcileCmd.MarkFlagRequired("run")

	// History flags
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")

	// Config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	// Add commands to root
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
