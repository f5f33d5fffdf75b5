// Package aggregator builds the list of fresh Arena launches from ledger events.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aman-zulfiqar/arena-terminal/internal/constants"
	"github.com/aman-zulfiqar/arena-terminal/internal/ledger"
	"github.com/aman-zulfiqar/arena-terminal/internal/models"
	"github.com/aman-zulfiqar/arena-terminal/internal/observability"
	"github.com/aman-zulfiqar/arena-terminal/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrNoSnapshot is returned by Snapshot before the first successful refresh.
var ErrNoSnapshot = errors.New("no launch snapshot yet")

// Quoter returns the current USD price of the native currency.
// *pricing.QuoteCache satisfies it.
type Quoter interface {
	Price(ctx context.Context) float64
}

// Overrides supplies runtime values that take precedence over Config.
// A lookup error means no override is set. *flags.Store satisfies it.
type Overrides interface {
	FailurePolicy(ctx context.Context) (string, error)
	MaxProgress(ctx context.Context) (float64, error)
}

// Config holds configuration for the aggregator
type Config struct {
	Ledger ledger.Ledger
	Quotes Quoter

	CacheTTL        time.Duration
	ScanWindow      uint64
	HolderWindow    uint64
	ConfirmationLag uint64
	MaxLaunches     int
	MaxProgress     float64
	EnrichWorkers   int
	CallTimeout     time.Duration
	// RefreshTimeout bounds one refresh; it is detached from any single caller.
	RefreshTimeout  time.Duration
	FailurePolicy   string
	LogoURLTemplate string

	Sinks []storage.LaunchSink
	// CreationSinks receive every creation and pair event of the scan window.
	CreationSinks []storage.CreationSink
	Overrides     Overrides

	Metrics *observability.Metrics
	Logger  *logrus.Logger
	Now     func() time.Time
}

type snapshot struct {
	launches   []models.Launch
	capturedAt time.Time
}

// Aggregator serves the launch list from a short-lived snapshot cache and
// recomputes it from the ledger when the cache is stale.
type Aggregator struct {
	cfg     Config
	logger  *logrus.Logger
	metrics *observability.Metrics
	now     func() time.Time

	group singleflight.Group

	mu   sync.RWMutex
	snap *snapshot
}

func New(cfg Config) (*Aggregator, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if cfg.Quotes == nil {
		return nil, fmt.Errorf("quote source is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = constants.DefaultCacheTTL
	}
	if cfg.ConfirmationLag == 0 {
		cfg.ConfirmationLag = constants.DefaultConfirmationLag
	}
	if cfg.MaxProgress <= 0 {
		cfg.MaxProgress = constants.DefaultMaxProgress
	}
	if cfg.ScanWindow == 0 {
		cfg.ScanWindow = constants.DefaultScanWindow
	}
	if cfg.HolderWindow == 0 {
		cfg.HolderWindow = constants.DefaultHolderWindow
	}
	if cfg.MaxLaunches <= 0 {
		cfg.MaxLaunches = constants.DefaultMaxLaunches
	}
	if cfg.EnrichWorkers <= 0 {
		cfg.EnrichWorkers = constants.DefaultEnrichWorkers
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = constants.DefaultCallTimeout
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = constants.DefaultRefreshTimeout
	}
	switch cfg.FailurePolicy {
	case "":
		cfg.FailurePolicy = constants.FailurePolicyEmpty
	case constants.FailurePolicyEmpty, constants.FailurePolicyStale:
	default:
		return nil, fmt.Errorf("unknown failure policy %q", cfg.FailurePolicy)
	}

	return &Aggregator{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}, nil
}

// result is what one singleflight call yields. cached marks a call that found
// a fresh snapshot and did not recompute.
type result struct {
	launches []models.Launch
	cached   bool
}

// Launches returns the current launch list. A cached list younger than the
// cache TTL is returned as is; otherwise one shared refresh runs for all
// concurrent callers. A failed refresh yields an empty list under the empty
// policy, or the last successful list under the stale policy. The error is
// non-nil only when ctx ends before a result is available.
func (a *Aggregator) Launches(ctx context.Context) ([]models.Launch, error) {
	if s := a.fresh(); s != nil {
		a.metrics.RecordCacheLookup(true)
		return clone(s.launches), nil
	}
	a.metrics.RecordCacheLookup(false)

	ch := a.group.DoChan("refresh", func() (interface{}, error) {
		if s := a.fresh(); s != nil {
			return result{launches: s.launches, cached: true}, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.RefreshTimeout)
		defer cancel()
		launches, err := a.refresh(rctx)
		return result{launches: launches}, err
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return a.onFailure(ctx, res.Err), nil
		}
		return clone(res.Val.(result).launches), nil
	}
}

// Refresh recomputes the list regardless of cache age and reports failures.
// Joining a concurrent call that was served from the cache does not count;
// Refresh then starts its own computation.
func (a *Aggregator) Refresh(ctx context.Context) ([]models.Launch, error) {
	for {
		v, err, _ := a.group.Do("refresh", func() (interface{}, error) {
			rctx, cancel := context.WithTimeout(ctx, a.cfg.RefreshTimeout)
			defer cancel()
			launches, err := a.refresh(rctx)
			return result{launches: launches}, err
		})
		if err != nil {
			return nil, err
		}
		res := v.(result)
		if !res.cached {
			return clone(res.launches), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// Snapshot returns the last successful list and when it was captured.
func (a *Aggregator) Snapshot() ([]models.Launch, time.Time, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.snap == nil {
		return nil, time.Time{}, ErrNoSnapshot
	}
	return clone(a.snap.launches), a.snap.capturedAt, nil
}

func (a *Aggregator) fresh() *snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.snap != nil && a.now().Sub(a.snap.capturedAt) < a.cfg.CacheTTL {
		return a.snap
	}
	return nil
}

func (a *Aggregator) onFailure(ctx context.Context, err error) []models.Launch {
	if a.failurePolicy(ctx) == constants.FailurePolicyStale {
		if launches, capturedAt, serr := a.Snapshot(); serr == nil {
			a.logger.WithError(err).WithField("captured_at", capturedAt).Warn("launch refresh failed, serving last snapshot")
			return launches
		}
	}
	a.logger.WithError(err).Error("launch refresh failed, serving empty list")
	return []models.Launch{}
}

func (a *Aggregator) failurePolicy(ctx context.Context) string {
	if a.cfg.Overrides == nil {
		return a.cfg.FailurePolicy
	}
	octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.CallTimeout)
	defer cancel()
	policy, err := a.cfg.Overrides.FailurePolicy(octx)
	if err != nil {
		return a.cfg.FailurePolicy
	}
	return policy
}

func (a *Aggregator) maxProgress(ctx context.Context) float64 {
	if a.cfg.Overrides == nil {
		return a.cfg.MaxProgress
	}
	octx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()
	v, err := a.cfg.Overrides.MaxProgress(octx)
	if err != nil || v <= 0 {
		return a.cfg.MaxProgress
	}
	return v
}

// candidate carries the purchase-derived economics of one created token.
type candidate struct {
	event  models.TokenCreated
	bonded decimal.Decimal
	launch models.Launch
}

// scan is the raw event window of one refresh.
type scan struct {
	created []models.TokenCreated
	pairs   []models.PairCreated
}

func (a *Aggregator) refresh(ctx context.Context) ([]models.Launch, error) {
	start := a.now()
	launches, window, err := a.compute(ctx)
	a.metrics.RecordRefresh(a.now().Sub(start), len(launches), err)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.snap = &snapshot{launches: launches, capturedAt: a.now()}
	a.mu.Unlock()

	a.logger.WithFields(logrus.Fields{
		"launches": len(launches),
		"took":     a.now().Sub(start),
	}).Info("launch snapshot refreshed")

	a.fanOut(ctx, launches)
	a.recordCreations(ctx, window)
	return launches, nil
}

func (a *Aggregator) compute(ctx context.Context) ([]models.Launch, scan, error) {
	latest, err := a.cfg.Ledger.LatestBlockNumber(ctx)
	if err != nil {
		return nil, scan{}, fmt.Errorf("latest block: %w", err)
	}
	a.metrics.SetLatestBlock(latest)

	toBlock := sub(latest, a.cfg.ConfirmationLag)
	fromBlock := sub(latest, a.cfg.ScanWindow)

	var (
		created   []models.TokenCreated
		pairs     []models.PairCreated
		purchases []models.Purchase
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		created, err = a.cfg.Ledger.TokenCreatedEvents(gctx, fromBlock, toBlock)
		return err
	})
	g.Go(func() error {
		var err error
		pairs, err = a.cfg.Ledger.PairCreatedEvents(gctx, fromBlock, toBlock)
		return err
	})
	g.Go(func() error {
		var err error
		purchases, err = a.cfg.Ledger.PurchaseEvents(gctx, fromBlock, toBlock)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, scan{}, err
	}

	a.logger.WithFields(logrus.Fields{
		"from":      fromBlock,
		"to":        toBlock,
		"created":   len(created),
		"pairs":     len(pairs),
		"purchases": len(purchases),
	}).Debug("fetched launch events")

	pairIndex := indexPairs(pairs)
	byToken := groupPurchases(purchases)
	quote := a.cfg.Quotes.Price(ctx)
	maxProgress := a.maxProgress(ctx)

	candidates := make([]*candidate, 0, len(created))
	for _, ev := range created {
		c := a.evaluate(ev, pairIndex, byToken, quote)
		if !WithinProgress(c.bonded, maxProgress) {
			continue
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].event.BlockNumber > candidates[j].event.BlockNumber
	})
	if len(candidates) > a.cfg.MaxLaunches {
		candidates = candidates[:a.cfg.MaxLaunches]
	}

	holderFrom := sub(latest, a.cfg.HolderWindow)
	a.enrich(ctx, candidates, holderFrom, toBlock)

	out := make([]models.Launch, len(candidates))
	for i, c := range candidates {
		out[i] = c.launch
	}
	return out, scan{created: created, pairs: pairs}, nil
}

// evaluate fills the purchase-derived fields of one launch.
func (a *Aggregator) evaluate(ev models.TokenCreated, pairIndex map[string]models.PairCreated, byToken map[string][]models.Purchase, quote float64) *candidate {
	var bought []models.Purchase
	if ev.TokenID != nil {
		bought = byToken[ev.TokenID.String()]
	}
	costs := make([]*big.Int, len(bought))
	for i, p := range bought {
		costs[i] = p.Cost
	}

	bondedDec := FromWei(sumWei(costs))
	progress := Progress(bondedDec)
	clamped := Clamp(progress)
	price := Price(clamped)
	bonded, _ := bondedDec.Float64()
	supply, _ := FromWei(ev.TotalSupply).Float64()

	l := models.Launch{
		Logo:           a.logo(ev.TokenContractAddress),
		Creator:        ev.CreatorAddress,
		TokenAddress:   ev.TokenContractAddress,
		TokenSupply:    supply,
		SalePercentage: int(ev.SalePercentage),
		PercentChange:  PercentChange(price),
		Price:          price,
		MarketCap:      MarketCap(price, supply),
		TxCount:        len(bought),
		Progress:       clamped * 100,
		Volume:         bonded * quote,
		TotalBonded:    bonded,
		BondingRatio:   clamped,
		BlockNumber:    ev.BlockNumber,
		RawProgress:    progress,
		HoldersStatus:  models.HoldersUnavailable,
		MetadataStatus: models.MetadataFallback,
	}
	if ev.TokenID != nil {
		l.TokenID = ev.TokenID.String()
	}
	if p, ok := pairIndex[strings.ToLower(ev.TokenContractAddress)]; ok {
		l.Pair = p.PairAddress
		l.Token0 = p.Token0
		l.Token1 = p.Token1
	} else if !isZeroAddress(ev.PairAddress) {
		l.Pair = ev.PairAddress
	}
	return &candidate{event: ev, bonded: bondedDec, launch: l}
}

// enrich resolves metadata, holder counts and block times with bounded
// concurrency. Each lookup is best effort and marks its own outcome.
func (a *Aggregator) enrich(ctx context.Context, candidates []*candidate, holderFrom, holderTo uint64) {
	var g errgroup.Group
	g.SetLimit(a.cfg.EnrichWorkers)

	for _, c := range candidates {
		c := c
		g.Go(func() error {
			a.enrichOne(ctx, c, holderFrom, holderTo)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Aggregator) enrichOne(ctx context.Context, c *candidate, holderFrom, holderTo uint64) {
	l := &c.launch
	token := c.event.TokenContractAddress
	log := a.logger.WithField("token", token)

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	meta, err := a.cfg.Ledger.TokenMetadata(callCtx, token)
	cancel()
	if err == nil && meta.Name != "" {
		l.Name = meta.Name
		l.Symbol = meta.Symbol
		if l.Symbol == "" {
			l.Symbol = constants.PlaceholderSymbol
		}
		l.MetadataStatus = models.MetadataResolved
	} else {
		if err != nil {
			log.WithError(err).Debug("token metadata unavailable")
			a.metrics.RecordEnrichmentError("metadata")
		}
		l.Name = shortAddress(token)
		l.Symbol = constants.PlaceholderSymbol
	}

	callCtx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
	holders, err := a.cfg.Ledger.HolderCount(callCtx, token, holderFrom, holderTo)
	cancel()
	if err == nil {
		l.Holders = &holders
		l.HoldersStatus = models.HoldersCounted
	} else {
		log.WithError(err).Debug("holder count unavailable")
		a.metrics.RecordEnrichmentError("holders")
	}

	callCtx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
	ts, err := a.cfg.Ledger.BlockTime(callCtx, c.event.BlockNumber)
	cancel()
	if err != nil {
		log.WithError(err).WithField("block", c.event.BlockNumber).Debug("block time unavailable")
		a.metrics.RecordEnrichmentError("block_time")
		return
	}
	l.Timestamp = ts.Unix()
	l.CreatedAt = ts.UTC()
	l.TimeAgo = TimeAgo(a.now(), ts)
}

func (a *Aggregator) fanOut(ctx context.Context, launches []models.Launch) {
	if len(a.cfg.Sinks) == 0 {
		return
	}
	var wg sync.WaitGroup
	for _, sink := range a.cfg.Sinks {
		sink := sink
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
			defer cancel()
			if err := sink.StoreLaunches(sctx, clone(launches)); err != nil {
				name := fmt.Sprintf("%T", sink)
				a.metrics.RecordSinkError(name)
				a.logger.WithError(err).WithField("sink", name).Warn("failed to store launches")
			}
		}()
	}
	wg.Wait()
}

// recordCreations hands the unfiltered event window to the creation sinks,
// with whatever block times resolve within the call timeout.
func (a *Aggregator) recordCreations(ctx context.Context, window scan) {
	if len(a.cfg.CreationSinks) == 0 || (len(window.created) == 0 && len(window.pairs) == 0) {
		return
	}

	blocks := make(map[uint64]struct{})
	for _, ev := range window.created {
		blocks[ev.BlockNumber] = struct{}{}
	}
	for _, p := range window.pairs {
		blocks[p.BlockNumber] = struct{}{}
	}

	var (
		mu    sync.Mutex
		times = make(map[uint64]time.Time, len(blocks))
		g     errgroup.Group
	)
	g.SetLimit(a.cfg.EnrichWorkers)
	for n := range blocks {
		n := n
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
			defer cancel()
			ts, err := a.cfg.Ledger.BlockTime(callCtx, n)
			if err != nil {
				a.metrics.RecordEnrichmentError("block_time")
				return nil
			}
			mu.Lock()
			times[n] = ts.UTC()
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	batch := models.CreationBatch{Created: window.created, Pairs: window.pairs, BlockTimes: times}
	var wg sync.WaitGroup
	for _, sink := range a.cfg.CreationSinks {
		sink := sink
		wg.Add(1)
		go func() {
			defer wg.Done()
			sctx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
			defer cancel()
			if err := sink.StoreCreations(sctx, batch); err != nil {
				name := fmt.Sprintf("%T", sink)
				a.metrics.RecordSinkError(name)
				a.logger.WithError(err).WithField("sink", name).Warn("failed to store creations")
			}
		}()
	}
	wg.Wait()
}

func (a *Aggregator) logo(token string) string {
	tmpl := a.cfg.LogoURLTemplate
	if tmpl == "" || token == "" {
		return ""
	}
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, strings.ToLower(token))
}

// indexPairs maps both constituents of every pair to it; later events win.
func indexPairs(pairs []models.PairCreated) map[string]models.PairCreated {
	idx := make(map[string]models.PairCreated, len(pairs)*2)
	for _, p := range pairs {
		idx[strings.ToLower(p.Token0)] = p
		idx[strings.ToLower(p.Token1)] = p
	}
	return idx
}

// groupPurchases keys purchases by the decimal form of their token id.
func groupPurchases(purchases []models.Purchase) map[string][]models.Purchase {
	out := make(map[string][]models.Purchase)
	for _, p := range purchases {
		if p.TokenID == nil {
			continue
		}
		k := p.TokenID.String()
		out[k] = append(out[k], p)
	}
	return out
}

func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func isZeroAddress(addr string) bool {
	return addr == "" || strings.EqualFold(addr, constants.ZeroAddress)
}

func sub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

func clone(in []models.Launch) []models.Launch {
	out := make([]models.Launch, len(in))
	copy(out, in)
	return out
}
