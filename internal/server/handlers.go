package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/aggregator"
	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/aman-zulfiqar/arena-terminal/internal/flags"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/aman-zulfiqar/arena-terminal/internal/pricing"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// LaunchProvider serves the launch list. *aggregator.Aggregator satisfies it.
type LaunchProvider interface {
	Launches(ctx context.Context) ([]models.Launch, error)
	Snapshot() ([]models.Launch, time.Time, error)
}

// QuoteProvider exposes the cached native-currency quote. *pricing.QuoteCache satisfies it.
type QuoteProvider interface {
	Current() pricing.Quote
}

// FlagStore manages runtime settings. *flags.Store satisfies it.
type FlagStore interface {
	Upsert(ctx context.Context, key, value string) (*flags.Flag, error)
	Get(ctx context.Context, key string) (*flags.Flag, error)
	List(ctx context.Context) ([]*flags.Flag, error)
	Delete(ctx context.Context, key string) error
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Launches      LaunchProvider            // Launch aggregator
	Quotes        QuoteProvider             // Native-currency quote cache
	Cache         storage.LaunchCache       // Shared Redis cache (optional)
	Hub           *Hub                      // Websocket live feed (optional)
	Flags         FlagStore                 // Redis-backed runtime settings (optional)
	Deployers     storage.DeployerDirectory // Postgres deployment registry (optional)
	LaunchTimeout time.Duration             // Longest wait for a refresh; must exceed the refresh timeout
	AssetID       string                    // Quote asset id reported by /prices/avax
	DevMode       bool                      // Enable detailed error responses in development
	Logger        *logrus.Logger            // Structured logger
}

func (h *Handlers) launchTimeout() time.Duration {
	if h.LaunchTimeout <= 0 {
		return constants.DefaultRefreshTimeout + 5*time.Second
	}
	return h.LaunchTimeout
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health reports the age of the last snapshot and, when configured, whether
// the shared cache answers
func (h *Handlers) Health(c echo.Context) error {
	resp := HealthResponse{OK: true}

	launches, capturedAt, err := h.Launches.Snapshot()
	if err == nil {
		resp.Launches = len(launches)
		resp.LastRefresh = &capturedAt
	} else if !errors.Is(err, aggregator.ErrNoSnapshot) {
		return h.err(c, http.StatusInternalServerError, "failed to read snapshot", map[string]any{"err": err.Error()})
	}

	if h.Cache != nil {
		ctx, cancel := h.withTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.Cache.Ping(ctx); err != nil {
			resp.Cache = "down"
		} else {
			resp.Cache = "ok"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// LaunchesList returns the freshest early-bonding launches, newest first, as a
// bare JSON array. Accepts limit query parameter (default: all, range: 1-100).
// A failed or abandoned refresh yields an empty array with status 200.
func (h *Handlers) LaunchesList(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		if n < 1 || n > 100 {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
		}
		limit = n
	}

	items := h.currentLaunches(c.Request().Context())
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return c.JSON(http.StatusOK, items)
}

// currentLaunches never fails: a wait that ends before the refresh does is
// logged and reported as no data.
func (h *Handlers) currentLaunches(ctx context.Context) []models.Launch {
	ctx, cancel := h.withTimeout(ctx, h.launchTimeout())
	defer cancel()

	items, err := h.Launches.Launches(ctx)
	if err != nil {
		h.Logger.WithError(err).Warn("launch list unavailable, serving empty list")
		return []models.Launch{}
	}
	if items == nil {
		return []models.Launch{}
	}
	return items
}

// LaunchStream upgrades to a websocket that receives the current list
// immediately and every refreshed list after it.
func (h *Handlers) LaunchStream(c echo.Context) error {
	if h.Hub == nil {
		return h.err(c, http.StatusNotFound, "live feed is not configured", nil)
	}

	initial := h.currentLaunches(c.Request().Context())
	if err := h.Hub.Serve(c.Response(), c.Request(), initial); err != nil {
		h.Logger.WithError(err).Debug("feed client rejected")
	}
	return nil
}

// NativePrice returns the cached USD quote used for launch volumes
func (h *Handlers) NativePrice(c echo.Context) error {
	q := h.Quotes.Current()
	asset := h.AssetID
	if asset == "" {
		asset = constants.DefaultPriceAssetID
	}
	return c.JSON(http.StatusOK, PriceResponse{
		Asset:      asset,
		Symbol:     constants.NativeCurrencySymbol,
		Price:      q.Price,
		CapturedAt: q.CapturedAt,
		Bootstrap:  q.Bootstrap,
	})
}

// DeployerGet returns registry statistics for one deployer wallet
// Returns 404 if the wallet has no recorded launch
func (h *Handlers) DeployerGet(c echo.Context) error {
	if h.Deployers == nil {
		return h.err(c, http.StatusNotFound, "deployment registry is not configured", nil)
	}
	wallet := c.Param("wallet")
	if !common.IsHexAddress(wallet) {
		return h.err(c, http.StatusBadRequest, "invalid wallet", map[string]any{"wallet": "must be a hex address"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Deployers.Deployer(ctx, wallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "deployer not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get deployer", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsUpsert creates or updates a runtime setting
// Validates key and value and returns the stored flag
func (h *Handlers) FlagsUpsert(c echo.Context) error {
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	return h.upsertFlag(c, req.Key, req.Value)
}

// FlagsUpdate updates the runtime setting named in the path
func (h *Handlers) FlagsUpdate(c echo.Context) error {
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	return h.upsertFlag(c, c.Param("key"), req.Value)
}

func (h *Handlers) upsertFlag(c echo.Context, key, value string) error {
	if _, err := flags.Normalize(key, value); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid flag", map[string]any{"err": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	h.Logger.WithFields(logrus.Fields{"key": out.Key, "value": out.Value}).Info("runtime setting changed")
	return c.JSON(http.StatusOK, out)
}

// FlagsGet retrieves a runtime setting by its key
// Returns 404 if the setting is not overridden
func (h *Handlers) FlagsGet(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, c.Param("key"))
	if err != nil {
		switch {
		case errors.Is(err, flags.ErrUnknownKey):
			return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"err": err.Error()})
		case errors.Is(err, flags.ErrNotFound):
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsList returns every overridden runtime setting
func (h *Handlers) FlagsList(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// FlagsDelete removes an override so the environment value applies again
// Returns 204 No Content on successful deletion
func (h *Handlers) FlagsDelete(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, c.Param("key")); err != nil {
		if errors.Is(err, flags.ErrUnknownKey) {
			return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"err": err.Error()})
		}
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
