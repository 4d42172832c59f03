package metrics

import "time"

// StoreSizer is the minimal contract Collector needs from a kvstore.Store —
// kept narrow so pkg/metrics never imports pkg/kvstore directly, only the
// one method it actually calls.
type StoreSizer interface {
	OpenMapCount() int
}

// Collector periodically samples store-wide gauges on a background ticker.
type Collector struct {
	store  StoreSizer
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector for store.
func NewCollector(store StoreSizer) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection on a 15 second tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.store == nil {
		return
	}
	OpenMapsTotal.Set(float64(c.store.OpenMapCount()))
}
