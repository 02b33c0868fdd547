package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/JamesWheadon/Carbon-Intensity/core/model"
	coremon "github.com/JamesWheadon/Carbon-Intensity/core/monitoring"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	for path, data := range map[string][]byte{certFile: certPEM, keyFile: keyPEM, caFile: certPEM} {
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestLoadTLSConfigMissingFiles(t *testing.T) {
	if _, err := (Config{UseTLS: true}).LoadTLSConfig(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.ForecastTopic == "" || cfg.StatusTopic == "" || len(cfg.TrainDurations) == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled config must validate: %v", err)
	}
	cfg.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing broker error")
	}
	cfg.Broker = "tcp://localhost:1883"
	cfg.TrainDurations = []int{0}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duration error")
	}
}

type fakeLoader struct {
	mu      sync.Mutex
	got     []model.Intensities
	buckets []model.DurationBucket
	err     error
}

func (f *fakeLoader) LoadAndTrain(_ context.Context, in model.Intensities, _ string, buckets []model.DurationBucket) ([]scheduler.TrainingStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, in)
	f.buckets = buckets
	if f.err != nil {
		return nil, f.err
	}
	stats := make([]scheduler.TrainingStats, 0, len(buckets))
	for _, b := range buckets {
		stats = append(stats, scheduler.TrainingStats{Bucket: b})
	}
	return stats, nil
}

func withMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestForecastMessageLoadsAndPublishesStatus(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	loader := &fakeLoader{}
	cfg := Config{
		Broker:         "tcp://localhost:1883",
		ForecastTopic:  "f",
		StatusTopic:    "s",
		TrainDurations: []int{30, 60},
		QoS:            map[string]byte{"forecast": 1, "status": 2},
	}
	if _, err := NewPahoClient(cfg, loader); err != nil {
		t.Fatalf("client: %v", err)
	}
	if len(mc.subscribed) != 1 || mc.subscribed[0].topic != "f" || mc.subscribed[0].qos != 1 {
		t.Fatalf("forecast subscription not applied: %+v", mc.subscribed)
	}

	values := make([]int, 48)
	payload, _ := json.Marshal(map[string]any{"intensities": values, "date": "2024-09-28T01:00:00"})
	mc.deliver(payload)

	if len(loader.got) != 1 {
		t.Fatalf("forecast not loaded")
	}
	want := time.Date(2024, 9, 28, 1, 0, 0, 0, time.UTC)
	if !loader.got[0].Date.Equal(want) {
		t.Fatalf("date = %v", loader.got[0].Date)
	}
	if len(loader.buckets) != 2 || loader.buckets[0] != 2 || loader.buckets[1] != 4 {
		t.Fatalf("buckets = %v", loader.buckets)
	}
	if len(mc.published) != 1 || mc.published[0].topic != "s" || mc.published[0].qos != 2 {
		t.Fatalf("status not published: %+v", mc.published)
	}
	var st Status
	if err := json.Unmarshal(mc.published[0].payload, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.ID == "" || st.Error != "" {
		t.Fatalf("unexpected status %+v", st)
	}
	if len(st.Trained) != 2 || st.Trained[0] != 30 || st.Trained[1] != 60 {
		t.Fatalf("trained = %v", st.Trained)
	}
}

func TestMalformedForecastReportsError(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	loader := &fakeLoader{}
	if _, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, loader); err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.deliver([]byte(`{"intensities":[1],"date":"yesterday"}`))
	if len(loader.got) != 0 {
		t.Fatalf("malformed forecast must not be loaded")
	}
	var st Status
	if err := json.Unmarshal(mc.published[0].payload, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Error == "" {
		t.Fatalf("expected error in status")
	}
}

func TestRejectedForecastReportsError(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	loader := &fakeLoader{err: &scheduler.ValidationError{Msg: "intensities must contain 48 values, got 1"}}
	if _, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"}, loader); err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.deliver([]byte(`{"intensities":[1],"date":"2024-09-28T01:00:00"}`))
	var st Status
	if err := json.Unmarshal(mc.published[0].payload, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Error != "intensities must contain 48 values, got 1" {
		t.Fatalf("status error = %q", st.Error)
	}
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestStatusRetryAndCapture(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMockClient(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, &fakeLoader{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.PublishStatus(Status{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries, got %d publishes", len(mc.published))
	}

	mc.publishErrs = []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})
	mc.deliver([]byte(`not json`))
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["module"] != "mqtt" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewPahoClient(cfg, &fakeLoader{})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	cli.Disconnect()
	if len(mc.published) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	handler     paho.MessageHandler
	published   []published
	publishErrs []error
}

func (m *mockClient) deliver(payload []byte) {
	m.handler(m, mockMessage{payload})
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, published{topic, qos, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	m.handler = h
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
