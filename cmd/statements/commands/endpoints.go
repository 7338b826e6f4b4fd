package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/DotIN13/statements"
	"github.com/spf13/cobra"
)

// newEndpointsCmd lists the platform presets and whether their keys are set.
func newEndpointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List platform presets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadEnv(envFile); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLATFORM\tPROXIES\tKEY ENV\tKEY SET")
			for _, p := range statements.Platforms() {
				preset, _ := statements.Preset(p)
				keySet := "-"
				if preset.KeyEnv != "" {
					keySet = fmt.Sprint(os.Getenv(preset.KeyEnv) != "")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p, strings.Join(preset.Proxies, ","), preset.KeyEnv, keySet)
			}
			return tw.Flush()
		},
	}
}
