package stripe

import (
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/striper"
)

// Distributor is a distributor over every shard.
type Distributor struct {
	part  *Partitioner
	dists []collector.Distributor
	stats *stats.Stats

	addedOnce   sync.Once
	added       *provider
	removedOnce sync.Once
	removed     *provider

	closed atomic.Bool
}

var _ collector.Distributor = (*Distributor)(nil)

// buildDistributor returns the single shard distributor when the filter
// intersects exactly one shard, and a striped Distributor otherwise.
func buildDistributor(shards []collector.Collector, s striper.Striper, part *Partitioner, opts collector.DistributorOptions, st *stats.Stats) collector.Distributor {
	stripes := s.IntersectingStripes(opts.Filter)
	if striper.CountStripes(stripes, len(shards)) == 1 {
		return shards[firstStripe(stripes)].BuildDistributor(opts)
	}
	d := &Distributor{
		part:  part,
		dists: make([]collector.Distributor, len(shards)),
		stats: st,
	}
	for i, shard := range shards {
		d.dists[i] = shard.BuildDistributor(opts)
	}
	return d
}

// Process implements collector.Distributor. Each shard receives only the
// records it owns, in their original order.
func (d *Distributor) Process(src record.Source) {
	b := d.part.Partition(src)
	defer d.part.Release(b)
	for i, dist := range d.dists {
		if buf := b.Shard(i); buf != nil {
			dist.Process(buf)
			buf.Clear()
		}
	}
}

// AddedRecordProvider implements collector.Distributor
func (d *Distributor) AddedRecordProvider() collector.RecordProvider {
	d.addedOnce.Do(func() {
		d.added = d.fanIn(collector.Distributor.AddedRecordProvider)
	})
	return d.added
}

// RemovedRecordProvider implements collector.Distributor
func (d *Distributor) RemovedRecordProvider() collector.RecordProvider {
	d.removedOnce.Do(func() {
		d.removed = d.fanIn(collector.Distributor.RemovedRecordProvider)
	})
	return d.removed
}

func (d *Distributor) fanIn(get func(collector.Distributor) collector.RecordProvider) *provider {
	providers := make([]collector.RecordProvider, len(d.dists))
	for i, dist := range d.dists {
		providers[i] = get(dist)
	}
	return newProvider(providers[0].Mode(), nil, providers, d.stats)
}

// Close implements collector.Distributor
func (d *Distributor) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	for _, dist := range d.dists {
		dist.Close()
	}
}

// Distributors returns the shard distributors
func (d *Distributor) Distributors() []collector.Distributor {
	return d.dists
}
