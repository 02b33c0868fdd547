package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/JamesWheadon/Carbon-Intensity/core/metrics"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/infra/logger"
)

// InfluxSink writes scheduler events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordChargeTime writes one point per answered query.
func (s *InfluxSink) RecordChargeTime(ev coremetrics.ChargeTimeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("charge_time_query").
		AddTag("duration", strconv.Itoa(ev.Bucket.Minutes())).
		AddTag("outcome", ev.Outcome).
		AddTag("component", "scheduler").
		AddField("saving", round3(ev.Saving)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTraining writes one point per training run.
func (s *InfluxSink) RecordTraining(ev coremetrics.TrainingEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("training_run").
		AddTag("duration", strconv.Itoa(ev.Bucket.Minutes())).
		AddTag("component", "scheduler").
		AddField("episodes", ev.Episodes).
		AddField("epsilon", round3(ev.Epsilon)).
		AddField("elapsed_ms", round3(ev.Elapsed.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordForecast writes the installed forecast as one point per half hour so
// it can be graphed next to the recommendations.
func (s *InfluxSink) RecordForecast(ev coremetrics.ForecastEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if !ev.Loaded {
		p := write.NewPointWithMeasurement("forecast_cleared").
			AddTag("component", "scheduler").
			AddField("cleared", true).
			SetTime(ev.Time)
		return s.writeAPI.WritePoint(ctx, p)
	}
	points := make([]*write.Point, 0, len(ev.Values))
	for i, v := range ev.Values {
		points = append(points, write.NewPointWithMeasurement("carbon_intensity_forecast").
			AddTag("source", ev.Source).
			AddField("intensity", v).
			SetTime(ev.Date.Add(time.Duration(i)*model.CoarseSlot)))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
