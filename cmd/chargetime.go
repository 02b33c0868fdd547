package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JamesWheadon/Carbon-Intensity/core/advisor"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

var chargeOpts struct {
	forecast string
	current  string
	end      string
	duration int
}

var chargeTimeCmd = &cobra.Command{
	Use:   "charge-time",
	Short: "Recommend a start time against a forecast file",
	RunE:  runChargeTime,
}

func init() {
	f := chargeTimeCmd.Flags()
	f.StringVarP(&chargeOpts.forecast, "forecast", "f", "", "forecast json file")
	f.StringVar(&chargeOpts.current, "current", "", "earliest start, "+model.TimestampLayout)
	f.StringVar(&chargeOpts.end, "end", "", "deadline, "+model.TimestampLayout)
	f.IntVarP(&chargeOpts.duration, "duration", "d", 30, "task length in minutes")
	_ = chargeTimeCmd.MarkFlagRequired("forecast")
	_ = chargeTimeCmd.MarkFlagRequired("current")
	rootCmd.AddCommand(chargeTimeCmd)
}

func runChargeTime(cmd *cobra.Command, args []string) error {
	current, err := model.ParseTimestamp(chargeOpts.current)
	if err != nil {
		return fmt.Errorf("current must match %s", model.TimestampLayout)
	}
	req := advisor.Request{Current: current, DurationMinutes: chargeOpts.duration}
	if chargeOpts.end != "" {
		end, err := model.ParseTimestamp(chargeOpts.end)
		if err != nil {
			return fmt.Errorf("end must match %s", model.TimestampLayout)
		}
		req.End = &end
	}
	adv, err := offlineAdvisor(cmd.Context(), chargeOpts.forecast, chargeOpts.duration)
	if err != nil {
		return err
	}
	ans, err := adv.ChargeTime(cmd.Context(), req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ans.Found {
		_, err = fmt.Fprintln(out, "No data for time slot")
		return err
	}
	_, err = fmt.Fprintf(out, "%s\tsaving %.1f gCO2/kWh\n", model.FormatTimestamp(ans.ChargeTime), ans.Saving)
	return err
}
