package collector

import "time"

type Status struct {
	Running            bool          `json:"running" yaml:"running"`
	Interval           time.Duration `json:"interval" yaml:"interval"`
	LastCollectionTime time.Time     `json:"lastCollectionTime" yaml:"lastCollectionTime"`
	TotalCollections   int           `json:"totalCollections" yaml:"totalCollections"`
}

// Status reads the collector's bookkeeping back from the metric store.
func (c *Collector) Status() Status {
	s := Status{Interval: c.cfg.Interval}

	if p, ok := c.store.Last("metrics_collector_running"); ok {
		s.Running = p.Value == 1
	}
	if p, ok := c.store.Last("metrics_last_collection_timestamp_ms"); ok {
		s.LastCollectionTime = time.UnixMilli(int64(p.Value))
	}
	if p, ok := c.store.Last("metrics_collections_total"); ok {
		s.TotalCollections = int(p.Value)
	}

	return s
}
