// Package nationalgrid fetches forecasts from the GB carbon intensity API.
package nationalgrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/JamesWheadon/Carbon-Intensity/config"
	"github.com/JamesWheadon/Carbon-Intensity/core/forecast"
	"github.com/JamesWheadon/Carbon-Intensity/core/model"
)

// DefaultBaseURL is the public carbon intensity API.
const DefaultBaseURL = "https://api.carbonintensity.org.uk"

const pathTimeLayout = "2006-01-02T15:04Z"

type intensity struct {
	Forecast int    `json:"forecast"`
	Actual   *int   `json:"actual"`
	Index    string `json:"index"`
}

type halfHour struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Intensity intensity `json:"intensity"`
}

type response struct {
	Data []halfHour `json:"data"`
}

// Client implements forecast.Provider against the fw48h endpoint.
type Client struct {
	baseURL string
	slots   int
	http    *http.Client
}

var _ forecast.Provider = (*Client)(nil)

// NewClient builds a client returning slots coarse values per forecast. When
// cfg.Auth carries client credentials, requests are authorised through an
// OAuth2 token source.
func NewClient(cfg config.ForecastConfig, slots int) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if cfg.Auth.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			TokenURL:     cfg.Auth.TokenURL,
		}
		hc = cc.Client(context.Background())
		hc.Timeout = timeout
	}
	return &Client{baseURL: base, slots: slots, http: hc}
}

// Fetch requests the 48 hour forecast starting at day, drops the half hour
// ending at day and keeps the next slots values anchored at day.
func (c *Client) Fetch(ctx context.Context, day time.Time) (model.Intensities, error) {
	day = day.UTC()
	url := fmt.Sprintf("%s/intensity/%s/fw48h", c.baseURL, day.Format(pathTimeLayout))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Intensities{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Intensities{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.Intensities{}, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}
	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return model.Intensities{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(r.Data) > 0 {
		r.Data = r.Data[1:]
	}
	if len(r.Data) < c.slots {
		return model.Intensities{}, fmt.Errorf("forecast has %d half hours, need %d", len(r.Data), c.slots)
	}
	values := make([]int, c.slots)
	for i := range values {
		values[i] = r.Data[i].Intensity.Forecast
	}
	return model.Intensities{Values: values, Date: day}, nil
}
