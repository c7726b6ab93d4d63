package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/8asic/mlpc2025-sound-event-detection/config"
	"github.com/8asic/mlpc2025-sound-event-detection/logging"
)

var (
	cfgFile string
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mlpc",
	Short: "MLPC2025 sound-event coursework tooling",
	Long: `Tooling for the MLPC2025 sound-event coursework: dataset download
and setup, installation verification, and region feature extraction
from annotated audio.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log := logrus.New()
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		logging.SetGlobalLogger(logging.NewLogrusLogger(log))

		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}
		} else {
			cfg = config.Default()
		}
		return nil
	},
}

// Execute runs the CLI
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
