package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/phillip-england/staffplan/internal/pto"
	"github.com/phillip-england/staffplan/internal/weather"
)

var ErrNotConfigured = errors.New("feed url is not configured")

// Client reads the weather and PTO feeds as JSON over HTTP.
type Client struct {
	http       *http.Client
	weatherURL string
	ptoURL     string
}

func NewClient(weatherURL, ptoURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		weatherURL: weatherURL,
		ptoURL:     ptoURL,
	}
}

func (c *Client) FetchWeather(ctx context.Context) (weather.Feed, error) {
	var feed weather.Feed
	if err := c.getJSON(ctx, c.weatherURL, &feed); err != nil {
		return weather.Feed{}, errors.Wrap(err, "fetch weather")
	}
	return feed, nil
}

type ptoPayload struct {
	Requests []pto.Request `json:"requests"`
}

func (c *Client) FetchPTO(ctx context.Context) ([]pto.Request, error) {
	var payload ptoPayload
	if err := c.getJSON(ctx, c.ptoURL, &payload); err != nil {
		return nil, errors.Wrap(err, "fetch pto")
	}
	return pto.Dedupe(payload.Requests), nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if url == "" {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
