package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/JamesWheadon/Carbon-Intensity/core/advisor"
	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
	"github.com/JamesWheadon/Carbon-Intensity/infra/logger"
)

// offlineAdvisor loads the forecast file at path into a fresh scheduler and
// trains the bucket for minutes.
func offlineAdvisor(ctx context.Context, path string, minutes int) (*advisor.Advisor, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("duration must be a positive integer")
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read forecast: %w", err)
	}
	var p model.IntensitiesPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	s, err := scheduler.New(cfg.Scheduler, scheduler.WithLogger(logger.New("scheduler")))
	if err != nil {
		return nil, err
	}
	adv := advisor.New(scheduler.NewSynchronized(s))
	if _, err := adv.LoadAndTrain(ctx, p.ToIntensities(), events.SourceCLI, []model.DurationBucket{model.BucketForMinutes(minutes)}); err != nil {
		return nil, err
	}
	return adv, nil
}
