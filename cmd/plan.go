package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JamesWheadon/Carbon-Intensity/pkg/export"
)

var planOpts struct {
	forecast string
	duration int
	format   string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the best start for every slot of a forecast file",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOpts.forecast, "forecast", "f", "", "forecast json file")
	planCmd.Flags().IntVarP(&planOpts.duration, "duration", "d", 30, "task length in minutes")
	planCmd.Flags().StringVar(&planOpts.format, "format", "csv", "output format: csv or json")
	_ = planCmd.MarkFlagRequired("forecast")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planOpts.format != "csv" && planOpts.format != "json" {
		return fmt.Errorf("format must be json or csv")
	}
	adv, err := offlineAdvisor(cmd.Context(), planOpts.forecast, planOpts.duration)
	if err != nil {
		return err
	}
	p, err := adv.Plan(planOpts.duration)
	if err != nil {
		return err
	}
	if planOpts.format == "json" {
		return export.WriteJSON(cmd.OutOrStdout(), p)
	}
	return export.WriteCSV(cmd.OutOrStdout(), p)
}
