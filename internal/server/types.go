package server

import (
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/models"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK          bool       `json:"ok"`                     // Service health status
	Launches    int        `json:"launches"`               // Size of the last snapshot
	LastRefresh *time.Time `json:"last_refresh,omitempty"` // When the last snapshot was captured
	Cache       string     `json:"cache,omitempty"`        // Shared cache status: ok, down or empty when not configured
}

// FlagUpsertRequest represents a request to create or update a runtime setting
type FlagUpsertRequest struct {
	Key   string `json:"key"`   // failure_policy or max_progress
	Value string `json:"value"` // Validated per key
}

// FlagUpdateRequest represents a request to update the setting named in the path
type FlagUpdateRequest struct {
	Value string `json:"value"`
}

// PriceResponse represents the native-currency quote
type PriceResponse struct {
	Asset      string    `json:"asset"`       // Quote asset id
	Symbol     string    `json:"symbol"`      // Native currency symbol
	Price      float64   `json:"price"`       // USD per unit
	CapturedAt time.Time `json:"captured_at"` // Zero while serving the bootstrap value
	Bootstrap  bool      `json:"bootstrap"`   // True until the first successful fetch
}

// FeedMessage is one websocket frame on the live launch feed
type FeedMessage struct {
	Type     string          `json:"type"` // always "launches"
	SentAt   time.Time       `json:"sent_at"`
	Launches []models.Launch `json:"launches"`
}
