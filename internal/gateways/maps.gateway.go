package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/swiftdrop/delivery-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrRouteNotFound = errors.New("no route between the given points")
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Route is the distance-matrix answer for one origin/destination pair.
type Route struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}

type Config struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// MapsClient talks to the external distance-matrix API. Lookups are advisory:
// callers must be prepared for failure and fall back to a distance-free fee.
type MapsClient struct {
	config *Config
	client *fasthttp.Client

	totalRequests atomic.Int64
	failedReqs    atomic.Int64
}

func NewMapsClient(config *Config) (*MapsClient, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("maps base url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 200 * time.Millisecond
	}

	c := &MapsClient{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		},
	}

	logger.Info("Maps client initialized", "url", config.BaseURL, "timeout", config.Timeout)

	return c, nil
}

// Distance resolves the driving distance and duration between two points,
// retrying transient failures up to MaxRetries.
func (c *MapsClient) Distance(ctx context.Context, origin, dest LatLng) (*Route, error) {
	q := url.Values{}
	q.Set("origin", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	q.Set("destination", fmt.Sprintf("%f,%f", dest.Lat, dest.Lng))
	if c.config.APIKey != "" {
		q.Set("key", c.config.APIKey)
	}
	path := "/api/v1/distance?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		startTime := time.Now()
		body, status, err := c.doRequest(ctx, "GET", path)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			c.failedReqs.Add(1)
			logger.Warn("Distance lookup failed, retrying", "error", err, "attempt", attempt+1)
			lastErr = err
			continue
		}

		if status == fasthttp.StatusNotFound {
			// No route is a definitive answer, not a transient fault.
			return nil, ErrRouteNotFound
		}

		var resp struct {
			DistanceKm      float64 `json:"distance_km"`
			DurationMinutes float64 `json:"duration_minutes"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		logger.Debug("Distance resolved", "distance_km", resp.DistanceKm, "latency_ms", latency)

		return &Route{
			DistanceKm:      resp.DistanceKm,
			DurationMinutes: resp.DurationMinutes,
		}, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *MapsClient) doRequest(ctx context.Context, method, path string) ([]byte, int, error) {
	c.totalRequests.Add(1)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode == fasthttp.StatusNotFound {
		return nil, statusCode, nil
	}
	if statusCode != fasthttp.StatusOK {
		return nil, statusCode, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, statusCode, nil
}

// Stats reports lifetime request counters.
func (c *MapsClient) Stats() (total, failed int64) {
	return c.totalRequests.Load(), c.failedReqs.Load()
}
