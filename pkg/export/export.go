// Package export writes day plans for offline use.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
)

type jsonEntry struct {
	From      model.Timestamp `json:"from"`
	Start     model.Timestamp `json:"start"`
	Intensity int             `json:"intensity"`
	Saving    float64         `json:"saving"`
}

type jsonPlan struct {
	Date            model.Timestamp `json:"date"`
	DurationMinutes int             `json:"duration_minutes"`
	MeanSaving      float64         `json:"mean_saving"`
	StdSaving       float64         `json:"std_saving"`
	Entries         []jsonEntry     `json:"entries"`
}

// WriteJSON writes the plan to w in JSON format with zone-less timestamps.
func WriteJSON(w io.Writer, p scheduler.Plan) error {
	out := jsonPlan{
		Date:            model.Timestamp{Time: p.Date},
		DurationMinutes: p.Bucket.Minutes(),
		MeanSaving:      p.MeanSaving,
		StdSaving:       p.StdSaving,
		Entries:         make([]jsonEntry, 0, len(p.Entries)),
	}
	for _, e := range p.Entries {
		out.Entries = append(out.Entries, jsonEntry{
			From:      model.Timestamp{Time: e.From},
			Start:     model.Timestamp{Time: e.Start},
			Intensity: e.Intensity,
			Saving:    e.Saving,
		})
	}
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

// WriteCSV writes one row per ready slot.
func WriteCSV(w io.Writer, p scheduler.Plan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"from", "start", "duration_minutes", "intensity", "saving"}); err != nil {
		return err
	}
	minutes := strconv.Itoa(p.Bucket.Minutes())
	for _, e := range p.Entries {
		rec := []string{
			model.FormatTimestamp(e.From),
			model.FormatTimestamp(e.Start),
			minutes,
			strconv.Itoa(e.Intensity),
			strconv.FormatFloat(e.Saving, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
