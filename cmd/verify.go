package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/8asic/mlpc2025-sound-event-detection/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the installation and datasets",
	Long: `Runs the installation checklist: host environment detection,
required external tools, and dataset integrity. Exits non-zero when any
check fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report := verify.Run(cfg)

		for _, section := range report.Sections {
			fmt.Printf("=== %s ===\n", section.Name)
			for _, r := range section.Results {
				mark := "OK "
				if !r.OK {
					mark = "FAIL"
				}
				fmt.Printf("  [%s] %-16s %s\n", mark, r.Name, r.Detail)
			}
		}

		fmt.Println("=== Summary ===")
		for _, section := range report.Sections {
			fmt.Printf("  %s: %d/%d OK\n", section.Name, section.Passed(), len(section.Results))
		}

		if !report.OK() {
			return fmt.Errorf("found %d problems", report.Failures())
		}
		fmt.Println("All checks passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
