// Package scheduler exposes the charge time advisor over HTTP.
package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JamesWheadon/Carbon-Intensity/core/advisor"
	"github.com/JamesWheadon/Carbon-Intensity/core/decisionlog"
	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	"github.com/JamesWheadon/Carbon-Intensity/core/logger"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/savings"
	"github.com/JamesWheadon/Carbon-Intensity/pkg/export"
)

// DefaultDurationMinutes applies when a request omits duration.
const DefaultDurationMinutes = 30

// Options configures the router.
type Options struct {
	// Token guards the reporting routes with "Bearer <token>" when set.
	Token string
	// PowerKW converts savings to grams of CO2 in /savings.
	PowerKW float64
	Metrics *HTTPMetrics
	Logger  logger.Logger
}

type handler struct {
	adv     *advisor.Advisor
	powerKW float64
	log     logger.Logger
}

// NewRouter builds the API routes on top of adv.
func NewRouter(adv *advisor.Advisor, o Options) http.Handler {
	h := &handler{adv: adv, powerKW: o.PowerKW, log: o.Logger}
	if h.log == nil {
		h.log = logger.Nop{}
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if o.Metrics != nil {
		r.Use(o.Metrics.Middleware)
	}

	r.Post("/intensities", h.postIntensities)
	r.Get("/intensities", h.getIntensities)
	r.Delete("/intensities", h.deleteIntensities)
	r.Patch("/intensities/train", h.train)
	r.Get("/intensities/chart", h.chart)
	r.Get("/charge-time", h.chargeTime)
	r.Get("/plan", h.plan)
	r.Group(func(r chi.Router) {
		r.Use(bearer(o.Token))
		r.Get("/decisions", h.decisions)
		r.Get("/savings", h.savings)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func bearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *handler) postIntensities(w http.ResponseWriter, r *http.Request) {
	var p model.IntensitiesPayload
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, decodeMessage(err))
		return
	}
	if err := h.adv.LoadForecast(r.Context(), p.ToIntensities(), events.SourceHTTP); err != nil {
		writeSchedulerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type)
	}
	return err.Error()
}

func (h *handler) getIntensities(w http.ResponseWriter, _ *http.Request) {
	in, ok := h.adv.Forecast()
	if !ok {
		writeError(w, http.StatusNotFound, "No intensity data for scheduler")
		return
	}
	writeJSON(w, http.StatusOK, in.Payload())
}

func (h *handler) deleteIntensities(w http.ResponseWriter, r *http.Request) {
	h.adv.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) train(w http.ResponseWriter, r *http.Request) {
	minutes, err := durationParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.adv.Train(r.Context(), minutes); err != nil {
		writeSchedulerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) chargeTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("current")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "current is required")
		return
	}
	current, err := model.ParseTimestamp(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("current must match %s", model.TimestampLayout))
		return
	}
	req := advisor.Request{Current: current}
	if s := q.Get("end"); s != "" {
		end, err := model.ParseTimestamp(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("end must match %s", model.TimestampLayout))
			return
		}
		req.End = &end
	}
	if req.DurationMinutes, err = durationParam(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ans, err := h.adv.ChargeTime(r.Context(), req)
	if err != nil {
		writeSchedulerError(w, r, err)
		return
	}
	if !ans.Found {
		writeError(w, http.StatusNotFound, MsgNoData)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"chargeTime": model.FormatTimestamp(ans.ChargeTime)})
}

func durationParam(r *http.Request) (int, error) {
	s := r.URL.Query().Get("duration")
	if s == "" {
		return DefaultDurationMinutes, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("duration must be a positive integer")
	}
	return n, nil
}

func (h *handler) plan(w http.ResponseWriter, r *http.Request) {
	minutes, err := durationParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.adv.Plan(minutes)
	if err != nil {
		writeSchedulerError(w, r, err)
		return
	}
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		err = export.WriteJSON(w, p)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		err = export.WriteCSV(w, p)
	default:
		writeError(w, http.StatusBadRequest, "format must be json or csv")
		return
	}
	if err != nil {
		h.log.Errorf("plan export: %v", err)
	}
}

func (h *handler) chart(w http.ResponseWriter, r *http.Request) {
	in, ok := h.adv.Forecast()
	if !ok {
		writeError(w, http.StatusNotFound, "No intensity data for scheduler")
		return
	}
	html, err := ForecastChartHTML(in, h.adv.Scheduler().Trained())
	if err != nil {
		writeSchedulerError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

// timeRange reads start and end as timestamps or RFC 3339.
func timeRange(r *http.Request) (time.Time, time.Time, error) {
	var out [2]time.Time
	for i, name := range []string{"start", "end"} {
		s := r.URL.Query().Get(name)
		if s == "" {
			continue
		}
		t, err := model.ParseTimestamp(s)
		if err != nil {
			if t, err = time.Parse(time.RFC3339, s); err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("%s must match %s", name, model.TimestampLayout)
			}
		}
		out[i] = t.UTC()
	}
	return out[0], out[1], nil
}

type decisionOut struct {
	Timestamp       string  `json:"timestamp"`
	Current         string  `json:"current"`
	End             string  `json:"end,omitempty"`
	DurationMinutes int     `json:"duration_minutes"`
	ChargeTime      string  `json:"chargeTime,omitempty"`
	Outcome         string  `json:"outcome"`
	Saving          float64 `json:"saving"`
	Error           string  `json:"error,omitempty"`
}

func (h *handler) decisions(w http.ResponseWriter, r *http.Request) {
	start, end, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := decisionlog.Query{Start: start, End: end, Outcome: r.URL.Query().Get("outcome")}
	if r.URL.Query().Get("duration") != "" {
		minutes, err := durationParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Bucket = model.BucketForMinutes(minutes)
	}
	recs, err := h.adv.Decisions(r.Context(), q)
	if err != nil {
		writeSchedulerError(w, r, err)
		return
	}
	out := make([]decisionOut, 0, len(recs))
	for _, rec := range recs {
		d := decisionOut{
			Timestamp:       rec.Timestamp.UTC().Format(time.RFC3339),
			Current:         model.FormatTimestamp(rec.Current),
			DurationMinutes: rec.DurationMinutes,
			Outcome:         rec.Outcome,
			Saving:          rec.Saving,
			Error:           rec.Error,
		}
		if rec.End != nil {
			d.End = model.FormatTimestamp(*rec.End)
		}
		if rec.ChargeTime != nil {
			d.ChargeTime = model.FormatTimestamp(*rec.ChargeTime)
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}

type savingsOut struct {
	Date        string  `json:"date"`
	Queries     int     `json:"queries"`
	Recommended int     `json:"recommended"`
	HitRate     float64 `json:"hit_rate"`
	SlotSaving  float64 `json:"slot_saving"`
	CO2Avoided  float64 `json:"co2_avoided_g"`
}

func (h *handler) savings(w http.ResponseWriter, r *http.Request) {
	start, end, err := timeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	recs, err := h.adv.Savings(start, end)
	if err != nil {
		writeSchedulerError(w, r, err)
		return
	}
	out := make([]savingsOut, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toSavingsOut(rec, h.powerKW))
	}
	writeJSON(w, http.StatusOK, out)
}

func toSavingsOut(r savings.Record, powerKW float64) savingsOut {
	return savingsOut{
		Date:        r.Date.Format("2006-01-02"),
		Queries:     r.Queries,
		Recommended: r.Recommended,
		HitRate:     r.HitRate(),
		SlotSaving:  r.SlotSaving,
		CO2Avoided:  r.CO2Avoided(powerKW),
	}
}
