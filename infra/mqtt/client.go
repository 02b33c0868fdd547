// Package mqtt ingests forecasts over MQTT and reports the resulting
// scheduler state.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/JamesWheadon/Carbon-Intensity/core/events"
	"github.com/JamesWheadon/Carbon-Intensity/core/logger"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	"github.com/JamesWheadon/Carbon-Intensity/core/monitoring"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
	infralogger "github.com/JamesWheadon/Carbon-Intensity/infra/logger"
)

// Loader installs a forecast and trains buckets against it.
type Loader interface {
	LoadAndTrain(ctx context.Context, in model.Intensities, source string, buckets []model.DurationBucket) ([]scheduler.TrainingStats, error)
}

// Status is published on the status topic after every forecast message.
type Status struct {
	ID      string          `json:"id"`
	Date    model.Timestamp `json:"date"`
	Trained []int           `json:"trained"`
	Error   string          `json:"error,omitempty"`
	SentAt  int64           `json:"sent_at"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient subscribes to the forecast topic and feeds a Loader.
type PahoClient struct {
	cli           pahoClient
	loader        Loader
	forecastTopic string
	statusTopic   string
	buckets       []model.DurationBucket
	qos           map[string]byte
	logger        logger.Logger
	maxRetries    int
	backoff       time.Duration
	timeout       time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker and subscribes to the forecast
// topic. The subscription is renewed on every reconnect.
func NewPahoClient(cfg Config, loader Loader) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := infralogger.New("mqtt-forecast")
	pc := &PahoClient{
		loader:        loader,
		forecastTopic: cfg.ForecastTopic,
		statusTopic:   cfg.StatusTopic,
		qos:           cfg.QoS,
		logger:        log,
		maxRetries:    cfg.MaxRetries,
		backoff:       time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout:       5 * time.Minute,
	}
	for _, m := range cfg.TrainDurations {
		pc.buckets = append(pc.buckets, model.BucketForMinutes(m))
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(pc.forecastTopic, pc.qosFor("forecast"), pc.onForecast); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	pc.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return pc, nil
}

func (p *PahoClient) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoClient) onForecast(_ paho.Client, msg paho.Message) {
	var payload model.IntensitiesPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		p.logger.Errorf("failed to decode forecast: %v", err)
		p.report(Status{Error: err.Error()})
		return
	}
	in := payload.ToIntensities()
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	stats, err := p.loader.LoadAndTrain(ctx, in, events.SourceMQTT, p.buckets)
	st := Status{Date: model.Timestamp{Time: in.Date}, Trained: make([]int, 0, len(stats))}
	for _, s := range stats {
		st.Trained = append(st.Trained, s.Bucket.Minutes())
	}
	if err != nil {
		p.logger.Errorf("forecast rejected: %v", err)
		st.Error = err.Error()
	} else {
		p.logger.Infof("forecast for %s installed, trained %v", model.FormatTimestamp(in.Date), st.Trained)
	}
	p.report(st)
}

func (p *PahoClient) report(st Status) {
	if err := p.PublishStatus(st); err != nil {
		monitoring.CaptureException(err, map[string]string{"module": "mqtt", "topic": p.statusTopic})
	}
}

// PublishStatus publishes st on the status topic, retrying with exponential
// backoff. An empty ID is replaced by a fresh UUID.
func (p *PahoClient) PublishStatus(st Status) error {
	if p.statusTopic == "" {
		return nil
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	st.SentAt = time.Now().UnixMilli()
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(p.statusTopic, p.qosFor("status"), true, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("status %s published", st.ID)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < p.maxRetries {
			time.Sleep(p.backoff * time.Duration(1<<attempt))
		}
	}
	return errors.Join(errors.New("status publish failed"), publishErr)
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
