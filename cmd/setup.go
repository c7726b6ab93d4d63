package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/8asic/mlpc2025-sound-event-detection/dataset"
)

var setupTasks []int

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Download and extract the course datasets",
	Long: `Downloads the datasets for the selected tasks (2: exploration,
3: classification, 4: challenge), verifies checksums where configured,
extracts the archives, and checks the extracted contents. Datasets that
are already present and valid are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return dataset.NewDownloader(cfg).SetupTasks(ctx, setupTasks)
	},
}

func init() {
	setupCmd.Flags().IntSliceVar(&setupTasks, "tasks", nil, "task numbers to set up (default: 2,3,4)")
	rootCmd.AddCommand(setupCmd)
}
