package forecast

import (
	"sync"
	"time"

	"github.com/dcshock/planpipe/plan"
)

// Key identifies one cached prediction.
type Key struct {
	SKU      string
	Location string
	Period   int
	Model    string
}

// Entry is a cached prediction with its provenance and store time.
type Entry struct {
	Quantity   float64
	Confidence float64
	Provenance plan.Provenance
	StoredAt   time.Time
}

// Stats reports cache effectiveness for one run.
type Stats struct {
	Hits   int
	Misses int
}

// Cache holds predictions for the duration of a run so repeated requests for
// the same (SKU, location, period, model) never trigger a second external
// call. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	hits    int
	misses  int
}

// NewCache returns an empty forecast cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]Entry)}
}

// GetSeries returns the cached result for every horizon period of req, or
// ok=false if any period is missing. A miss for any period counts as one
// series miss. Cached provenance is returned as stored, never rewritten.
func (c *Cache) GetSeries(req Request) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	last := req.lastPeriod()
	points := make([]Point, 0, req.Horizon)
	var confidence float64
	var provenance plan.Provenance
	var reason string
	for i := 1; i <= req.Horizon; i++ {
		key := Key{SKU: req.SKU, Location: req.Location, Period: last + i, Model: req.Model}
		entry, ok := c.entries[key]
		if !ok {
			c.misses++
			return Result{}, false
		}
		points = append(points, Point{Period: key.Period, Quantity: entry.Quantity})
		confidence = entry.Confidence
		provenance = entry.Provenance
		if provenance == plan.ProvenanceFallback {
			reason = "cached fallback forecast"
		}
	}
	c.hits++
	return Result{Points: points, Confidence: confidence, Provenance: provenance, FallbackReason: reason}, true
}

// PutSeries stores every point of res under the request's series key.
func (c *Cache) PutSeries(req Request, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, p := range res.Points {
		key := Key{SKU: req.SKU, Location: req.Location, Period: p.Period, Model: req.Model}
		c.entries[key] = Entry{
			Quantity:   p.Quantity,
			Confidence: res.Confidence,
			Provenance: res.Provenance,
			StoredAt:   now,
		}
	}
}

// Stats returns the hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}

// Len returns the number of cached predictions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
