package delivery

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/radiusdt/game-ads/internal/config"
	"github.com/radiusdt/game-ads/internal/models"
	"go.uber.org/zap"
)

// State is the lifecycle position of a Client.
type State int

const (
	StateUninitialized State = iota
	StateWaitingForHost
	StateReady
	StateBannerRotating
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateWaitingForHost:
		return "waiting_for_host"
	case StateReady:
		return "ready"
	case StateBannerRotating:
		return "banner_rotating"
	case StateIdle:
		return "idle"
	default:
		return "uninitialized"
	}
}

// Host is the rendering surface ads are drawn on. Its methods are only
// called from the client's run loop.
type Host interface {
	// Ready reports whether the surface exists yet.
	Ready() bool
	ShowBanner(ad models.Ad)
	ShowInterstitial(ad models.Ad)
	HideInterstitial()
	// Open navigates a new browsing context to url.
	Open(url string)
}

// Options tunes the client timers and fallbacks.
type Options struct {
	HostPollInterval     time.Duration
	RotationInterval     time.Duration
	InterstitialDuration time.Duration
	GameOverThreshold    int
	RetryAttempts        int
	RetryDelay           time.Duration
	ClickDebounce        time.Duration

	// FallbackBanner is shown when the banner list cannot be used.
	FallbackBanner *models.Ad
	// FallbackFullscreen replaces the fullscreen list when its fetch fails.
	FallbackFullscreen *models.Ad

	// Pick chooses an interstitial index in [0, n). Defaults to rand.Intn.
	Pick func(n int) int
}

// OptionsFromConfig maps the client configuration onto Options.
func OptionsFromConfig(cfg *config.ClientConfig) Options {
	return Options{
		HostPollInterval:     cfg.HostPollInterval,
		RotationInterval:     cfg.RotationInterval,
		InterstitialDuration: cfg.InterstitialDuration,
		GameOverThreshold:    cfg.GameOverThreshold,
		RetryAttempts:        cfg.RetryAttempts,
		RetryDelay:           cfg.RetryDelay,
		ClickDebounce:        cfg.ClickDebounce,
		FallbackBanner: &models.Ad{
			Title:     "Fallback banner",
			ImageURL:  cfg.Ads.FallbackBannerImage,
			TargetURL: cfg.Ads.FallbackTargetURL,
		},
		FallbackFullscreen: &models.Ad{
			Title:     "Fallback fullscreen",
			ImageURL:  cfg.Ads.FallbackFullscreenImage,
			TargetURL: cfg.Ads.FallbackTargetURL,
		},
	}
}

func (o Options) withDefaults() Options {
	d := config.DefaultClient()
	if o.HostPollInterval <= 0 {
		o.HostPollInterval = d.HostPollInterval
	}
	if o.RotationInterval <= 0 {
		o.RotationInterval = d.RotationInterval
	}
	if o.InterstitialDuration <= 0 {
		o.InterstitialDuration = d.InterstitialDuration
	}
	if o.GameOverThreshold < 1 {
		o.GameOverThreshold = d.GameOverThreshold
	}
	if o.RetryAttempts < 1 {
		o.RetryAttempts = d.RetryAttempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.Pick == nil {
		o.Pick = rand.Intn
	}
	return o
}

type fetchResult struct {
	adType models.AdType
	ads    []models.Ad
	err    error
}

type report struct {
	kind   models.EventKind
	adType models.AdType
	id     string
}

// Client drives banner rotation and interstitials for one game session.
// All state transitions happen on the goroutine running Run; the exported
// action methods only enqueue work for it.
type Client struct {
	api    AdAPI
	host   Host
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	cmds    chan func()
	reports chan report
	done    chan struct{}

	mu                sync.Mutex
	state             State
	fullscreenVisible bool

	// Owned by the run loop.
	banners               []models.Ad
	fullscreen            []models.Ad
	bannerIdx             int
	current               *models.Ad
	interstitial          *models.Ad
	gameOvers             int
	lastBannerClick       time.Time
	lastInterstitialClick time.Time
	rotation              *time.Ticker
	dismiss               *time.Timer
}

// NewClient creates a client rendering on host and reporting through api.
func NewClient(api AdAPI, host Host, opts Options, logger *zap.Logger) *Client {
	return &Client{
		api:     api,
		host:    host,
		opts:    opts.withDefaults(),
		logger:  logger,
		now:     time.Now,
		cmds:    make(chan func(), 16),
		reports: make(chan report, 64),
		done:    make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// FullscreenVisible reports whether an interstitial is on screen.
func (c *Client) FullscreenVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fullscreenVisible
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.logger.Debug("delivery state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

func (c *Client) setFullscreenVisible(v bool) {
	c.mu.Lock()
	c.fullscreenVisible = v
	c.mu.Unlock()
}

// Run polls for the host, loads both ad lists and serves timers and user
// actions until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if c.host == nil || c.api == nil {
		return errors.New("delivery: host and api are required")
	}
	defer close(c.done)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer c.stopTimers()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.reportLoop(ctx)
	}()

	c.setState(StateWaitingForHost)
	fetched := make(chan fetchResult, 2)

	poll := time.NewTicker(c.opts.HostPollInterval)
	defer poll.Stop()
	pollC := poll.C

	hostReady := func() {
		poll.Stop()
		pollC = nil
		c.setState(StateReady)
		c.logger.Info("host surface found, loading ads")
		for _, t := range models.AdTypes {
			wg.Add(1)
			go func(t models.AdType) {
				defer wg.Done()
				ads, err := c.fetchWithRetry(ctx, t)
				fetched <- fetchResult{adType: t, ads: ads, err: err}
			}(t)
		}
	}

	if c.host.Ready() {
		hostReady()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollC:
			if c.host.Ready() {
				hostReady()
			}
		case res := <-fetched:
			c.onFetched(res)
		case <-tickerC(c.rotation):
			c.rotateBanner()
		case <-timerC(c.dismiss):
			c.dismiss = nil
			c.hideInterstitial("timeout")
		case fn := <-c.cmds:
			fn()
		}
	}
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (c *Client) stopTimers() {
	if c.rotation != nil {
		c.rotation.Stop()
		c.rotation = nil
	}
	if c.dismiss != nil {
		c.dismiss.Stop()
		c.dismiss = nil
	}
}

func (c *Client) send(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

// ---- Loading ----

func (c *Client) fetchWithRetry(ctx context.Context, t models.AdType) ([]models.Ad, error) {
	for attempt := 1; ; attempt++ {
		ads, err := c.api.FetchAds(ctx, t)
		if err == nil {
			return ads, nil
		}

		c.logger.Warn("failed to fetch ads",
			zap.String("ad_type", t.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.opts.RetryAttempts),
			zap.Error(err),
		)
		if attempt >= c.opts.RetryAttempts {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.RetryDelay):
		}
	}
}

func (c *Client) onFetched(res fetchResult) {
	switch res.adType {
	case models.AdTypeBanner:
		c.onBanners(res)
	case models.AdTypeFullscreen:
		c.onFullscreen(res)
	}
}

func (c *Client) onBanners(res fetchResult) {
	if res.err != nil || len(res.ads) == 0 {
		if res.err != nil {
			c.logger.Error("banner list unavailable, using fallback", zap.Error(res.err))
		}
		if c.opts.FallbackBanner != nil {
			fb := *c.opts.FallbackBanner
			c.current = &fb
			c.host.ShowBanner(fb)
		}
		c.setState(StateIdle)
		return
	}

	c.banners = res.ads
	c.bannerIdx = 0
	c.showBanner()
	c.rotation = time.NewTicker(c.opts.RotationInterval)
	c.setState(StateBannerRotating)
	c.logger.Info("banner rotation started", zap.Int("banners", len(c.banners)))
}

func (c *Client) onFullscreen(res fetchResult) {
	if res.err != nil {
		c.logger.Error("fullscreen list unavailable", zap.Error(res.err))
		if c.opts.FallbackFullscreen != nil {
			c.fullscreen = []models.Ad{*c.opts.FallbackFullscreen}
		}
		return
	}
	c.fullscreen = res.ads
	c.logger.Info("fullscreen ads loaded", zap.Int("count", len(c.fullscreen)))
}

// ---- Banners ----

func (c *Client) showBanner() {
	ad := c.banners[c.bannerIdx]
	c.current = &ad
	c.host.ShowBanner(ad)
	c.enqueue(models.EventImpression, models.AdTypeBanner, ad.ID)
}

func (c *Client) rotateBanner() {
	if len(c.banners) == 0 {
		return
	}
	c.bannerIdx = (c.bannerIdx + 1) % len(c.banners)
	c.showBanner()
}

// ClickBanner handles a click on the visible banner. Repeated calls within
// the debounce window count as the same click.
func (c *Client) ClickBanner() {
	c.send(func() {
		if c.current == nil {
			return
		}
		now := c.now()
		if !c.lastBannerClick.IsZero() && now.Sub(c.lastBannerClick) < c.opts.ClickDebounce {
			return
		}
		c.lastBannerClick = now
		c.enqueue(models.EventClick, models.AdTypeBanner, c.current.ID)
		c.host.Open(c.current.TargetURL)
	})
}

// ---- Interstitials ----

// GameOver counts a finished game and shows an interstitial every
// GameOverThreshold calls.
func (c *Client) GameOver() {
	c.send(c.onGameOver)
}

func (c *Client) onGameOver() {
	c.gameOvers++
	if c.gameOvers < c.opts.GameOverThreshold {
		return
	}
	c.gameOvers = 0

	if c.interstitial != nil {
		c.logger.Debug("interstitial already visible")
		return
	}
	if len(c.fullscreen) == 0 {
		c.logger.Debug("no fullscreen ads to show")
		return
	}

	ad := c.fullscreen[c.opts.Pick(len(c.fullscreen))]
	c.interstitial = &ad
	c.setFullscreenVisible(true)
	c.host.ShowInterstitial(ad)
	c.enqueue(models.EventImpression, models.AdTypeFullscreen, ad.ID)
	c.dismiss = time.NewTimer(c.opts.InterstitialDuration)
}

// ClickInterstitial reports a click on the visible interstitial, opens its
// target and dismisses it.
func (c *Client) ClickInterstitial() {
	c.send(func() {
		if c.interstitial == nil {
			return
		}
		now := c.now()
		if !c.lastInterstitialClick.IsZero() && now.Sub(c.lastInterstitialClick) < c.opts.ClickDebounce {
			return
		}
		c.lastInterstitialClick = now
		ad := *c.interstitial
		c.enqueue(models.EventClick, models.AdTypeFullscreen, ad.ID)
		c.host.Open(ad.TargetURL)
		c.hideInterstitial("click")
	})
}

// CloseInterstitial dismisses the visible interstitial without a click.
func (c *Client) CloseInterstitial() {
	c.send(func() { c.hideInterstitial("closed") })
}

func (c *Client) hideInterstitial(reason string) {
	if c.interstitial == nil {
		return
	}
	if c.dismiss != nil {
		c.dismiss.Stop()
		c.dismiss = nil
	}
	c.interstitial = nil
	c.setFullscreenVisible(false)
	c.host.HideInterstitial()
	c.logger.Debug("interstitial dismissed", zap.String("reason", reason))
}

// ---- Reporting ----

// enqueue hands an event to the reporter. Fallback ads have no id and are
// never reported.
func (c *Client) enqueue(kind models.EventKind, t models.AdType, id string) {
	if id == "" {
		return
	}
	select {
	case c.reports <- report{kind: kind, adType: t, id: id}:
	default:
		c.logger.Warn("report queue full, dropping event",
			zap.String("kind", string(kind)),
			zap.String("ad_type", t.String()),
			zap.String("ad_id", id),
		)
	}
}

func (c *Client) reportLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-c.reports:
			if err := c.api.Report(ctx, r.kind, r.adType, r.id); err != nil {
				c.logger.Warn("failed to report event",
					zap.String("kind", string(r.kind)),
					zap.String("ad_type", r.adType.String()),
					zap.String("ad_id", r.id),
					zap.Error(err),
				)
			}
		}
	}
}
