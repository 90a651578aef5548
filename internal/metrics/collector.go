package metrics

import (
	"context"
	"time"

	"cadventory/internal/logging"
)

// StatsProvider supplies catalog counts for the periodic collector.
type StatsProvider interface {
	CatalogStats(ctx context.Context) (Stats, error)
}

// Stats holds catalog counts for one library.
type Stats struct {
	Models        int `json:"models"`
	Processed     int `json:"processed"`
	WithThumbnail int `json:"withThumbnail"`
	Selected      int `json:"selected"`
	Tags          int `json:"tags"`
}

// Collector periodically collects and updates catalog metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.CatalogStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogModelsTotal.WithLabelValues("total").Set(float64(stats.Models))
	CatalogModelsTotal.WithLabelValues("processed").Set(float64(stats.Processed))
	CatalogModelsTotal.WithLabelValues("thumbnail").Set(float64(stats.WithThumbnail))
	CatalogModelsTotal.WithLabelValues("selected").Set(float64(stats.Selected))
	CatalogTagsTotal.Set(float64(stats.Tags))

	logging.Debug("Metrics collected: models=%d, processed=%d, thumbnails=%d, tags=%d",
		stats.Models, stats.Processed, stats.WithThumbnail, stats.Tags)
}
