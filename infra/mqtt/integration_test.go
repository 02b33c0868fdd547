package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JamesWheadon/Carbon-Intensity/core/advisor"
	"github.com/JamesWheadon/Carbon-Intensity/core/scheduler"
)

func waitForMQTTReady(broker string, timeout time.Duration) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		lastErr = token.Error()
		time.Sleep(100 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for broker")
	}
	return lastErr
}

func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	conf := "listener 1883\nallow_anonymous true\npersistence false\n"
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		t.Fatalf("write conf: %v", err)
	}
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{{
			HostFilePath:      path,
			ContainerFilePath: "/mosquitto/config/mosquitto.conf",
			FileMode:          0644,
		}},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("container start: %v", err)
	}
	host, err := cont.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())
	if err := waitForMQTTReady(broker, 5*time.Second); err != nil {
		t.Skipf("mosquitto not ready at %s: %v", broker, err)
	}
	return cont, broker
}

func TestForecastIngestionWithMosquitto(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()
	cont, broker := startMosquitto(ctx, t)
	defer func() { _ = cont.Terminate(ctx) }()

	s, err := scheduler.New(scheduler.DefaultConfig(), scheduler.WithRand(rand.New(rand.NewSource(1))))
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	adv := advisor.New(scheduler.NewSynchronized(s))
	cfg := Config{Enabled: true, Broker: broker, ClientID: "scheduler", ForecastTopic: "forecast", StatusTopic: "status", TrainDurations: []int{30}}
	cli, err := NewPahoClient(cfg, adv)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer cli.Disconnect()

	statuses := make(chan Status, 1)
	probe := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("probe-sub"))
	if token := probe.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("probe connect: %v", token.Error())
	}
	defer probe.Disconnect(100)
	if token := probe.Subscribe("status", 1, func(_ paho.Client, m paho.Message) {
		var st Status
		if err := json.Unmarshal(m.Payload(), &st); err == nil {
			statuses <- st
		}
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}

	payload, _ := json.Marshal(map[string]any{"intensities": make([]int, 48), "date": "2024-09-28T01:00:00"})
	if token := probe.Publish("forecast", 1, false, payload); token.Wait() && token.Error() != nil {
		t.Fatalf("publish: %v", token.Error())
	}

	select {
	case st := <-statuses:
		if st.Error != "" || len(st.Trained) != 1 || st.Trained[0] != 30 {
			t.Fatalf("unexpected status %+v", st)
		}
	case <-time.After(30 * time.Second):
		t.Fatalf("no status received")
	}
	if !adv.Scheduler().IsTrained(2) {
		t.Fatalf("bucket not trained")
	}
}
