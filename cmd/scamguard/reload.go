// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/scamguard/internal/admin"
	"github.com/pdiddy/scamguard/internal/usage"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask a running service to rebuild its knowledge cache",
	Long: `Reload calls the admin API of a running "scamguard serve" and waits for
the rebuild to finish. The running service keeps answering from its
previous snapshot until the new one is ready.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		res, err := admin.NewClient(adminAddr(cmd)).Reload(cmd.Context(), force)
		if err != nil {
			return err
		}
		source := "rebuilt"
		if res.FromCache {
			source = "reloaded from cache"
		}
		fmt.Printf("✅ Knowledge cache manually %s: %d items, fingerprint %.12s, %.1f ms\n",
			source, res.Items, res.Fingerprint, res.DurationMS)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the running service's usage counters for the current period",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := admin.NewClient(adminAddr(cmd)).Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(usage.Report(*stats))
		return nil
	},
}

func adminAddr(cmd *cobra.Command) string {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		return addr
	}
	return viper.GetString("admin.addr")
}

func init() {
	reloadCmd.Flags().Bool("force", false, "re-embed every line even if the cache is current")
	reloadCmd.Flags().String("addr", "", "admin address of the running service (default: admin.addr)")
	reportCmd.Flags().String("addr", "", "admin address of the running service (default: admin.addr)")

	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(reportCmd)
}
