// Package ticker maintains the per-instance polling and state-reconciliation
// engine behind the ticker badges. Each visible widget instance gets its own
// refresh timer, cached last-good display state, and manual-refresh cooldown;
// upstream failures are absorbed here and never reach the host.
package ticker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pawish/deck-ticker/market"
)

// Default timings. The refresh interval and the manual cooldown are both one
// minute, matching the upstream API's statistics window granularity.
const (
	DefaultRefreshInterval = 60 * time.Second
	DefaultManualCooldown  = 60 * time.Second
	DefaultFetchTimeout    = 10 * time.Second
	DefaultErrorClearDelay = 3 * time.Second
)

// MarketData provides 24-hour statistics for a symbol.
type MarketData interface {
	Stats24h(ctx context.Context, symbol string) (market.Stats24h, error)
}

// Surface renders badges and titles on the button surface.
type Surface interface {
	SetImage(id, image string) error
	SetTitle(id, title string) error
}

// Config holds configuration for creating a new ticker Service.
type Config struct {
	Market  MarketData   // required
	Surface Surface      // required
	Logger  *slog.Logger // optional

	RefreshInterval time.Duration // optional, defaults to DefaultRefreshInterval
	ManualCooldown  time.Duration // optional, defaults to DefaultManualCooldown
	FetchTimeout    time.Duration // optional, defaults to DefaultFetchTimeout
	ErrorClearDelay time.Duration // optional, defaults to DefaultErrorClearDelay
}

// instance is the bookkeeping record for one visible widget. All fields are
// guarded by the Service mutex; the refresh goroutine owns nothing directly
// and always looks state up by id.
type instance struct {
	id         string
	settings   Settings
	lastGood   *DisplayPayload
	manual     *rate.Limiter
	appearedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// manualAllowed reports whether a manual refresh at now is outside the
// rolling cooldown window. A rejected press consumes nothing.
func (i *instance) manualAllowed(now time.Time) bool {
	return i.manual.AllowN(now, 1)
}

// Service tracks all visible ticker instances. It implements the deck
// ActionHandler event surface on one side and drives the market client and
// the rendering surface on the other.
type Service struct {
	market  MarketData
	surface Surface
	logger  *slog.Logger

	interval     time.Duration
	cooldown     time.Duration
	fetchTimeout time.Duration
	errorClear   time.Duration

	mu        sync.RWMutex
	instances map[string]*instance
}

// New creates a new ticker Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.ManualCooldown <= 0 {
		cfg.ManualCooldown = DefaultManualCooldown
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.ErrorClearDelay <= 0 {
		cfg.ErrorClearDelay = DefaultErrorClearDelay
	}
	return &Service{
		market:       cfg.Market,
		surface:      cfg.Surface,
		logger:       logger,
		interval:     cfg.RefreshInterval,
		cooldown:     cfg.ManualCooldown,
		fetchTimeout: cfg.FetchTimeout,
		errorClear:   cfg.ErrorClearDelay,
		instances:    make(map[string]*instance),
	}
}

// HandleWillAppear registers an instance, refreshes it immediately, and arms
// its periodic refresh timer. A duplicate appear for a known id replaces the
// old timer, so at most one timer is ever live per id.
func (s *Service) HandleWillAppear(id string, settings json.RawMessage) {
	s.mu.Lock()
	if old, ok := s.instances[id]; ok {
		old.cancel()
		s.logger.Debug("Replacing timer for re-appearing instance", "instance", id)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.instances[id] = &instance{
		id:         id,
		settings:   ParseSettings(settings),
		manual:     rate.NewLimiter(rate.Every(s.cooldown), 1),
		appearedAt: time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.mu.Unlock()

	s.logger.Info("Instance appeared", "instance", id)
	go s.runTimer(ctx, id)
}

// HandleDidReceiveSettings stores the new configuration and refreshes out of
// band. The periodic timer keeps its cadence.
func (s *Service) HandleDidReceiveSettings(id string, settings json.RawMessage) {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("Settings for unknown instance", "instance", id)
		return
	}
	inst.settings = ParseSettings(settings)
	ctx := inst.ctx
	s.mu.Unlock()

	go s.refresh(ctx, id)
}

// HandleKeyDown triggers a manual refresh, accepted at most once per rolling
// cooldown window per instance. Rejected presses are dropped, not queued, and
// leave all bookkeeping untouched.
func (s *Service) HandleKeyDown(id string, settings json.RawMessage) {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if !inst.manualAllowed(time.Now()) {
		s.mu.Unlock()
		s.logger.Info("Manual refresh throttled", "instance", id)
		return
	}
	inst.settings = ParseSettings(settings)
	ctx := inst.ctx
	s.mu.Unlock()

	s.logger.Debug("Manual refresh accepted", "instance", id)
	go s.refresh(ctx, id)
}

// HandleWillDisappear cancels the instance timer and removes all bookkeeping.
// Safe to call for an unknown id.
func (s *Service) HandleWillDisappear(id string) {
	s.mu.Lock()
	inst, ok := s.instances[id]
	if ok {
		inst.cancel()
		delete(s.instances, id)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Info("Instance disappeared", "instance", id)
	}
}

// runTimer refreshes once immediately, then on every interval tick. Each tick
// looks the current settings up by id rather than using a snapshot captured
// at appear time, so edits between ticks take effect on the next one.
func (s *Service) runTimer(ctx context.Context, id string) {
	s.refresh(ctx, id)

	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.refresh(ctx, id)
		}
	}
}

// currentSettings looks up the live configuration for an id.
func (s *Service) currentSettings(id string) (Settings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return Settings{}, false
	}
	return inst.settings, true
}

// refresh performs one fetch-and-render attempt for an instance. All failure
// modes are absorbed here; the caller never sees an error.
func (s *Service) refresh(ctx context.Context, id string) {
	settings, ok := s.currentSettings(id)
	if !ok {
		return
	}
	symbol := settings.NormalizedSymbol()

	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	stats, err := s.market.Stats24h(fctx, symbol)
	cancel()
	if err != nil {
		s.recover(id, symbol, err)
		return
	}

	payload, err := buildPayload(symbol, stats)
	if err != nil {
		s.recover(id, symbol, err)
		return
	}

	if !s.commit(id, payload) {
		// The instance disappeared while the fetch was in flight. Do not
		// resurrect its bookkeeping or touch the surface.
		s.logger.Debug("Discarding refresh for removed instance", "instance", id)
		return
	}

	s.render(id, payload)
	s.logger.Debug("Refreshed instance",
		"instance", id,
		"symbol", symbol,
		"price", payload.FormattedPrice,
		"trend", payload.Trend.String(),
	)
}

// commit stores the payload as the instance's last good state. Returns false
// when the id has been torn down since the fetch started.
func (s *Service) commit(id string, payload DisplayPayload) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[id]
	if !ok {
		return false
	}
	inst.lastGood = &payload
	return true
}

// render pushes the badge image to the surface.
func (s *Service) render(id string, payload DisplayPayload) {
	if err := s.surface.SetImage(id, payload.ImageDataURI()); err != nil {
		s.logger.Warn("Failed to set badge image", "instance", id, "error", err)
	}
}

// recover handles a failed refresh. The last good payload, when present, is
// re-rendered and any visible error title cleared; otherwise a transient
// "Error" title is shown and auto-cleared. The failure never propagates.
func (s *Service) recover(id, symbol string, err error) {
	s.logger.Warn("Ticker refresh failed", "instance", id, "symbol", symbol, "error", err)

	s.mu.RLock()
	inst, ok := s.instances[id]
	var cached *DisplayPayload
	if ok && inst.lastGood != nil {
		p := *inst.lastGood
		cached = &p
	}
	s.mu.RUnlock()
	if !ok {
		return
	}

	if cached != nil {
		s.render(id, *cached)
		if err := s.surface.SetTitle(id, ""); err != nil {
			s.logger.Warn("Failed to clear title", "instance", id, "error", err)
		}
		return
	}

	if err := s.surface.SetTitle(id, "Error"); err != nil {
		s.logger.Warn("Failed to set error title", "instance", id, "error", err)
	}
	time.AfterFunc(s.errorClear, func() {
		if !s.has(id) {
			return
		}
		if err := s.surface.SetTitle(id, ""); err != nil {
			s.logger.Warn("Failed to clear error title", "instance", id, "error", err)
		}
	})
}

func (s *Service) has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.instances[id]
	return ok
}

// Count returns the number of tracked instances.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances)
}

// InstanceInfo is a summary of one tracked instance for the ops endpoints.
type InstanceInfo struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	AppearedAt time.Time `json:"appeared_at"`
	HasPayload bool      `json:"has_payload"`
	LastPrice  string    `json:"last_price,omitempty"`
	Trend      string    `json:"trend,omitempty"`
}

// ListAll returns a summary of all tracked instances.
func (s *Service) ListAll() []InstanceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InstanceInfo, 0, len(s.instances))
	for _, inst := range s.instances {
		info := InstanceInfo{
			ID:         inst.id,
			Symbol:     inst.settings.NormalizedSymbol(),
			AppearedAt: inst.appearedAt,
			HasPayload: inst.lastGood != nil,
		}
		if inst.lastGood != nil {
			info.LastPrice = inst.lastGood.FormattedPrice
			info.Trend = inst.lastGood.Trend.String()
		}
		out = append(out, info)
	}
	return out
}

// Shutdown cancels all instance timers and clears the registry.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, inst := range s.instances {
		inst.cancel()
		s.logger.Debug("Instance timer stopped during shutdown", "instance", id)
	}
	s.instances = make(map[string]*instance)
	s.logger.Info("Ticker service shutdown complete")
}
