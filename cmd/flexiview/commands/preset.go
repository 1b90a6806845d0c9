package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/FlexiView/internal/preset"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Inspect saved presets",
	Long:  `List and inspect the display presets stored in the presets directory.`,
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved presets",
	RunE:  runPresetList,
}

var presetShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show a preset",
	Long: `Decode a preset and print the fields it sets. Fields that could not be
read are reported as warnings.`,
	Example: `  # Show a preset as YAML (default)
  flexiview preset show stage

  # Show a preset as JSON
  flexiview preset show stage.yaml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runPresetShow,
}

var presetFormat string

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetListCmd)
	presetCmd.AddCommand(presetShowCmd)

	presetShowCmd.Flags().StringVarP(&presetFormat, "format", "f", "yaml", "output format (yaml or json)")
}

func openPresets() (*preset.Store, error) {
	configMgr, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return preset.NewStore(configMgr.Get().Media.PresetsDir)
}

func runPresetList(cmd *cobra.Command, args []string) error {
	store, err := openPresets()
	if err != nil {
		return err
	}
	infos, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list presets: %w", err)
	}
	if len(infos) == 0 {
		fmt.Printf("No presets in %s\n", store.Dir())
		return nil
	}
	return table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
		fmt.Fprintln(w, "----\t----\t--------")
		for _, info := range infos {
			fmt.Fprintf(w, "%s\t%d\t%s\n", info.Name, info.Size, info.Modified.Format("2006-01-02 15:04:05"))
		}
	})
}

func runPresetShow(cmd *cobra.Command, args []string) error {
	store, err := openPresets()
	if err != nil {
		return err
	}
	p, warnings, err := store.Load(args[0])
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return encode(p, presetFormat)
}
