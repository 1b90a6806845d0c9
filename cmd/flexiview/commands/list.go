package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/FlexiView/internal/app"
	"github.com/bryanchriswhite/FlexiView/internal/infrared"
	"github.com/bryanchriswhite/FlexiView/internal/infrared/v4l2"
	"github.com/bryanchriswhite/FlexiView/internal/monitor"
	"github.com/bryanchriswhite/FlexiView/internal/source/opencv"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitors and capture devices",
	Long: `List the monitors, webcams and infrared cameras FlexiView can use.

Monitor indices and camera IDs are the values accepted by the API and by
presets.`,
}

var listMonitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "List connected monitors",
	Example: `  # List monitors in table format (default)
  flexiview list monitors

  # List monitors in JSON format
  flexiview list monitors --format json`,
	RunE: runListMonitors,
}

var listCamerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List usable webcams",
	RunE:  runListCameras,
}

var listInfraredCmd = &cobra.Command{
	Use:   "infrared",
	Short: "List infrared cameras",
	RunE:  runListInfrared,
}

var (
	listFormat string
	listProbe  int
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.AddCommand(listMonitorsCmd)
	listCmd.AddCommand(listCamerasCmd)
	listCmd.AddCommand(listInfraredCmd)

	listCmd.PersistentFlags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
	listCamerasCmd.Flags().IntVar(&listProbe, "probe", app.DefaultCameraProbe, "number of camera indices to probe")
}

func table(fn func(w *tabwriter.Writer)) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fn(w)
	return w.Flush()
}

func runListMonitors(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	monitors, err := monitorRegistry(configMgr.Get().Display).List()
	if err != nil {
		return fmt.Errorf("failed to enumerate monitors: %w", err)
	}
	if len(monitors) == 0 {
		monitors = []monitor.Descriptor{monitor.Fallback}
	}
	if listFormat == "json" {
		return encode(monitors, "json")
	}
	return table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "INDEX\tNAME\tGEOMETRY\tPRIMARY")
		fmt.Fprintln(w, "-----\t----\t--------\t-------")
		for _, m := range monitors {
			primary := "No"
			if m.Primary {
				primary = "Yes"
			}
			fmt.Fprintf(w, "%d\t%s\t%dx%d+%d+%d\t%s\n", m.Index, m.Name, m.Width, m.Height, m.X, m.Y, primary)
		}
	})
}

func runListCameras(cmd *cobra.Command, args []string) error {
	ids := opencv.ProbeCameras(listProbe)
	if listFormat == "json" {
		return encode(nonNilInts(ids), "json")
	}
	if len(ids) == 0 {
		fmt.Println("No cameras found")
		return nil
	}
	return table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "ID\tNAME")
		fmt.Fprintln(w, "--\t----")
		for _, id := range ids {
			fmt.Fprintf(w, "%d\tCamera %d\n", id, id)
		}
	})
}

func runListInfrared(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	devices, err := v4l2.NewProvider(opencv.OpenDevice).Devices(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate infrared cameras: %w", err)
	}
	if listFormat == "json" {
		if devices == nil {
			devices = []infrared.DeviceInfo{}
		}
		return encode(devices, "json")
	}
	if len(devices) == 0 {
		fmt.Println("No infrared cameras found")
		return nil
	}
	return table(func(w *tabwriter.Writer) {
		fmt.Fprintln(w, "INDEX\tNAME\tPATH")
		fmt.Fprintln(w, "-----\t----\t----")
		for _, d := range devices {
			fmt.Fprintf(w, "%d\t%s\t%s\n", d.Index, d.Name, d.Path)
		}
	})
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}
