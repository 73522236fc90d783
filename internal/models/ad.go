package models

import (
	"fmt"
	"math"
	"time"
)

// AdType identifies one of the two ad collections.
type AdType string

const (
	AdTypeBanner     AdType = "banner"
	AdTypeFullscreen AdType = "fullscreen"
)

// AdTypes lists every collection in display order.
var AdTypes = []AdType{AdTypeBanner, AdTypeFullscreen}

// ParseAdType converts a raw value into an AdType.
func ParseAdType(s string) (AdType, error) {
	switch AdType(s) {
	case AdTypeBanner, AdTypeFullscreen:
		return AdType(s), nil
	}
	return "", fmt.Errorf("invalid ad type %q: must be banner or fullscreen", s)
}

// Valid reports whether t is a known ad type.
func (t AdType) Valid() bool {
	return t == AdTypeBanner || t == AdTypeFullscreen
}

func (t AdType) String() string { return string(t) }

// Label is the human name used by the dashboard.
func (t AdType) Label() string {
	if t == AdTypeFullscreen {
		return "Fullscreen"
	}
	return "Banner"
}

// EventKind is an engagement event recorded against an ad.
type EventKind string

const (
	EventImpression EventKind = "impression"
	EventClick      EventKind = "click"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	return k == EventImpression || k == EventClick
}

// Ad is a single banner or fullscreen ad record.
type Ad struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"imageUrl"`
	TargetURL string    `json:"targetUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy that callers may mutate freely.
func (a *Ad) Clone() *Ad {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// AdInput carries the mutable fields of an ad for create and update.
type AdInput struct {
	Title     string `json:"title" validate:"required,max=200"`
	ImageURL  string `json:"imageUrl" validate:"required,max=2048"`
	TargetURL string `json:"targetUrl" validate:"required,weburl,max=2048"`
}

// CounterKey builds the "{type}_{id}" key used by the counter table.
func CounterKey(t AdType, id string) string {
	return string(t) + "_" + id
}

// CounterTable holds impression and click counters keyed by CounterKey.
// A missing key counts as zero.
type CounterTable struct {
	Impressions map[string]int64 `json:"impressions"`
	Clicks      map[string]int64 `json:"clicks"`
}

// NewCounterTable returns an empty table with both maps allocated.
func NewCounterTable() *CounterTable {
	return &CounterTable{
		Impressions: make(map[string]int64),
		Clicks:      make(map[string]int64),
	}
}

// Get returns the impression and click counts for one ad.
func (c *CounterTable) Get(t AdType, id string) (impressions, clicks int64) {
	if c == nil {
		return 0, 0
	}
	key := CounterKey(t, id)
	return c.Impressions[key], c.Clicks[key]
}

// Add increments the counter for kind by delta.
func (c *CounterTable) Add(t AdType, id string, kind EventKind, delta int64) {
	if c.Impressions == nil {
		c.Impressions = make(map[string]int64)
	}
	if c.Clicks == nil {
		c.Clicks = make(map[string]int64)
	}
	key := CounterKey(t, id)
	switch kind {
	case EventImpression:
		c.Impressions[key] += delta
	case EventClick:
		c.Clicks[key] += delta
	}
}

// AdStats is an ad enriched with its engagement counters.
type AdStats struct {
	Ad
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	CTR         float64 `json:"ctr"`
}

// TypeSnapshot aggregates one collection.
type TypeSnapshot struct {
	Type             AdType    `json:"-"`
	AdsCount         int       `json:"ads_count"`
	TotalImpressions int64     `json:"total_impressions"`
	TotalClicks      int64     `json:"total_clicks"`
	CTR              float64   `json:"ctr"`
	Ads              []AdStats `json:"ads"`
}

// Snapshot is the dashboard view of both collections. It is derived on
// every read and never stored.
type Snapshot struct {
	Banner      TypeSnapshot `json:"banner"`
	Fullscreen  TypeSnapshot `json:"fullscreen"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ForType returns the snapshot of collection t.
func (s *Snapshot) ForType(t AdType) *TypeSnapshot {
	if t == AdTypeFullscreen {
		return &s.Fullscreen
	}
	return &s.Banner
}

// CTR returns clicks/impressions as a percentage rounded to two decimals,
// or 0 when there are no impressions.
func CTR(clicks, impressions int64) float64 {
	if impressions <= 0 {
		return 0
	}
	return math.Round(float64(clicks)/float64(impressions)*100*100) / 100
}
