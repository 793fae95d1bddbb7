// pagectl is the operator CLI: batch cataloguing, CRM sync, inventory
// export and admin maintenance.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/page-inventory/pkg/config"
	"github.com/user/page-inventory/pkg/logger"
	"github.com/user/page-inventory/pkg/metrics"
)

func main() {
	root := &cobra.Command{
		Use:           "pagectl",
		Short:         "Manage the landing page inventory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "config directory (default: working directory)")

	root.AddCommand(
		newBatchCmd(),
		newSyncCmd(),
		newUncataloguedCmd(),
		newRecatalogueCmd(),
		newPurgeCmd(),
		newExportCmd(),
		newScheduleCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// appContext loads config and builds the logger shared by all commands.
func appContext(cmd *cobra.Command) (context.Context, *app, error) {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	metrics.Init()
	return cmd.Context(), &app{cfg: cfg, log: log}, nil
}
