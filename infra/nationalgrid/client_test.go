package nationalgrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JamesWheadon/Carbon-Intensity/config"
)

func fw48h(n int) response {
	var r response
	for i := 0; i < n; i++ {
		r.Data = append(r.Data, halfHour{Intensity: intensity{Forecast: 100 + i, Index: "moderate"}})
	}
	return r
}

func TestClientFetchDropsLeadingHalfHour(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(fw48h(97))
	}))
	defer srv.Close()

	c := NewClient(config.ForecastConfig{BaseURL: srv.URL + "/"}, 48)
	day := time.Date(2024, 9, 28, 0, 0, 0, 0, time.UTC)
	in, err := c.Fetch(context.Background(), day)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/intensity/2024-09-28T00:00Z/fw48h" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if len(in.Values) != 48 || in.Values[0] != 101 || in.Values[47] != 148 {
		t.Fatalf("unexpected values %v", in.Values)
	}
	if !in.Date.Equal(day) {
		t.Fatalf("date %v", in.Date)
	}
}

func TestClientFetchShortForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(fw48h(10))
	}))
	defer srv.Close()

	c := NewClient(config.ForecastConfig{BaseURL: srv.URL}, 48)
	if _, err := c.Fetch(context.Background(), time.Now()); err == nil {
		t.Fatalf("expected error for short forecast")
	}
}

func TestClientFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.ForecastConfig{BaseURL: srv.URL}, 48)
	_, err := c.Fetch(context.Background(), time.Now())
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestClientUsesClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/intensity/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer abc" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(fw48h(49))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.ForecastConfig{
		BaseURL: srv.URL,
		Auth:    config.AuthConfig{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL + "/token"},
	}
	c := NewClient(cfg, 48)
	if _, err := c.Fetch(context.Background(), time.Now()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}
