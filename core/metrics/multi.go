package metrics

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordChargeTime forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordChargeTime(ev ChargeTimeEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordChargeTime(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordTraining forwards training events to sinks that support them.
func (m *MultiSink) RecordTraining(ev TrainingEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TrainingRecorder); ok {
			if err := rec.RecordTraining(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordForecast forwards forecast events to sinks that support them.
func (m *MultiSink) RecordForecast(ev ForecastEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ForecastRecorder); ok {
			if err := rec.RecordForecast(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
