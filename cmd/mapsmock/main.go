package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DistanceResponse is the answer for one origin/destination pair.
type DistanceResponse struct {
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes float64   `json:"duration_minutes"`
	ServerID        string    `json:"server_id"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	ServerID    string    `json:"server_id"`
	Timestamp   time.Time `json:"timestamp"`
	SuccessRate float64   `json:"success_rate"`
}

// MockMaps simulates a distance-matrix API. Distances are great-circle
// kilometres scaled by a road factor, durations assume a fixed average speed.
type MockMaps struct {
	successRate    float64
	unroutableRate float64
	roadFactor     float64
	avgSpeedKmh    float64
	minDelay       time.Duration
	maxDelay       time.Duration
	serverID       string
	rng            *rand.Rand
}

func NewMockMaps(successRate, unroutableRate float64, minDelay, maxDelay time.Duration) *MockMaps {
	return &MockMaps{
		successRate:    successRate,
		unroutableRate: unroutableRate,
		roadFactor:     1.3,
		avgSpeedKmh:    40,
		minDelay:       minDelay,
		maxDelay:       maxDelay,
		serverID:       "MOCK_MAPS_" + uuid.New().String()[:8],
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const earthRadiusKm = 6371.0

// haversine returns the great-circle distance between two points in km.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// resolve computes a plausible road distance and duration for the pair.
func (m *MockMaps) resolve(originLat, originLng, destLat, destLng float64) DistanceResponse {
	// Simulate network delay
	time.Sleep(m.randomDelay())

	crow := haversine(originLat, originLng, destLat, destLng)

	// Jitter the road factor a little so repeated lookups are not identical
	factor := m.roadFactor + m.rng.Float64()*0.1
	distance := crow * factor
	duration := distance / m.avgSpeedKmh * 60

	return DistanceResponse{
		DistanceKm:      math.Round(distance*100) / 100,
		DurationMinutes: math.Round(duration*100) / 100,
		ServerID:        m.serverID,
		ProcessedAt:     time.Now(),
	}
}

func (m *MockMaps) randomDelay() time.Duration {
	if m.maxDelay <= m.minDelay {
		return m.minDelay
	}
	delta := m.maxDelay - m.minDelay
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockMaps) shouldSucceed() bool {
	return m.rng.Float64() < m.successRate
}

func (m *MockMaps) isUnroutable() bool {
	return m.rng.Float64() < m.unroutableRate
}

// Handler struct holds the mock maps service and routes
type Handler struct {
	maps *MockMaps
}

func NewHandler(maps *MockMaps) *Handler {
	return &Handler{maps: maps}
}

// parseLatLng parses a "lat,lng" query value.
func parseLatLng(value string) (lat, lng float64, err error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected lat,lng, got %q", value)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

// GetDistance handles distance lookups
func (h *Handler) GetDistance(c *gin.Context) {
	originLat, originLng, err := parseLatLng(c.Query("origin"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid origin",
			"details": err.Error(),
		})
		return
	}

	destLat, destLng, err := parseLatLng(c.Query("destination"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid destination",
			"details": err.Error(),
		})
		return
	}

	if h.maps.isUnroutable() {
		log.Warn().
			Str("origin", c.Query("origin")).
			Str("destination", c.Query("destination")).
			Msg("No route between points")
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no route found",
		})
		return
	}

	if !h.maps.shouldSucceed() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "upstream routing engine unavailable",
		})
		return
	}

	response := h.maps.resolve(originLat, originLng, destLat, destLng)

	log.Info().
		Str("origin", c.Query("origin")).
		Str("destination", c.Query("destination")).
		Float64("distance_km", response.DistanceKm).
		Float64("duration_minutes", response.DurationMinutes).
		Msg("Distance resolved")

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		ServerID:    h.maps.serverID,
		Timestamp:   time.Now(),
		SuccessRate: h.maps.successRate,
	})
}

// UpdateConfig allows changing failure rates at runtime
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		SuccessRate    *float64 `json:"success_rate"`
		UnroutableRate *float64 `json:"unroutable_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.SuccessRate != nil && *config.SuccessRate >= 0 && *config.SuccessRate <= 1.0 {
		h.maps.successRate = *config.SuccessRate
		log.Info().Float64("rate", *config.SuccessRate).Msg("Updated success rate")
	}
	if config.UnroutableRate != nil && *config.UnroutableRate >= 0 && *config.UnroutableRate <= 1.0 {
		h.maps.unroutableRate = *config.UnroutableRate
		log.Info().Float64("rate", *config.UnroutableRate).Msg("Updated unroutable rate")
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Configuration updated",
		"success_rate":    h.maps.successRate,
		"unroutable_rate": h.maps.unroutableRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/distance", handler.GetDistance)
		v1.GET("/health", handler.HealthCheck)
		v1.PUT("/config", handler.UpdateConfig)
	}

	// Root health check
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8082")
	successRate := getEnvFloat("SUCCESS_RATE", 1)
	unroutableRate := getEnvFloat("UNROUTABLE_RATE", 0)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 300*time.Millisecond)

	log.Info().
		Str("port", port).
		Float64("success_rate", successRate).
		Float64("unroutable_rate", unroutableRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Maps API")

	// Create mock maps service
	maps := NewMockMaps(successRate, unroutableRate, minDelay, maxDelay)
	handler := NewHandler(maps)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
