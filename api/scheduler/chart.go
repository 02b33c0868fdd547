package scheduler

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// ForecastChartHTML renders the coarse forecast as a line chart with its
// minimum and maximum marked.
func ForecastChartHTML(in model.Intensities, trained []model.DurationBucket) (string, error) {
	line := charts.NewLine()
	subtitle := "no trained durations"
	if len(trained) > 0 {
		subtitle = fmt.Sprintf("trained: %v", trained)
	}
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Carbon intensity forecast " + model.FormatTimestamp(in.Date),
			Subtitle: subtitle,
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Slot start"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "gCO2/kWh"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	xAxis := make([]string, 0, len(in.Values))
	yAxis := make([]opts.LineData, 0, len(in.Values))
	for i, v := range in.Values {
		xAxis = append(xAxis, in.Date.Add(model.CoarseSlot*time.Duration(i)).Format("15:04"))
		yAxis = append(yAxis, opts.LineData{Value: v})
	}
	line.SetXAxis(xAxis).AddSeries("Forecast", yAxis,
		charts.WithMarkPointNameTypeItemOpts(
			opts.MarkPointNameTypeItem{Name: "Minimum", Type: "min"},
			opts.MarkPointNameTypeItem{Name: "Maximum", Type: "max"},
		),
	)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.String(), nil
}
