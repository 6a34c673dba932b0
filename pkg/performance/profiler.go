// Package performance measures feed throughput, delivery latency and the
// resources the process consumes while a feed runs.
package performance

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Metrics is a summary of a profiled run.
type Metrics struct {
	RecordsProduced  int64
	RecordsDelivered int64
	Batches          int64
	RecordsPerSecond float64

	MinLatency time.Duration
	MaxLatency time.Duration
	P50Latency time.Duration
	P95Latency time.Duration
	P99Latency time.Duration

	CPUUsagePercent float64
	HeapMB          uint64
	GoroutineCount  int
	GCCount         uint32
	GCPauseTotal    time.Duration
}

// ProfilerConfig configures a Profiler.
type ProfilerConfig struct {
	Name string
	// SamplingInterval is how often CPU and heap usage are sampled. Zero
	// disables sampling.
	SamplingInterval time.Duration
	// MaxLatencySamples bounds the latency window.
	MaxLatencySamples int
}

// DefaultProfilerConfig returns the default configuration
func DefaultProfilerConfig(name string) ProfilerConfig {
	return ProfilerConfig{
		Name:              name,
		SamplingInterval:  100 * time.Millisecond,
		MaxLatencySamples: 10000,
	}
}

// Profiler collects counters, latency samples and resource usage of a run.
// Counters are safe for concurrent use.
type Profiler struct {
	name      string
	interval  time.Duration
	startTime time.Time
	memStats  runtime.MemStats

	produced  atomic.Int64
	delivered atomic.Int64
	batches   atomic.Int64

	latency *LatencyTracker
	monitor *ResourceMonitor

	mu      sync.Mutex
	cpu     float64
	heapMB  uint64
	maxGor  int
	stop    chan struct{}
	stopped chan struct{}
}

// NewProfiler creates a profiler. Call Start before recording.
func NewProfiler(config ProfilerConfig) *Profiler {
	if config.MaxLatencySamples <= 0 {
		config.MaxLatencySamples = 10000
	}
	return &Profiler{
		name:     config.Name,
		interval: config.SamplingInterval,
		latency:  NewLatencyTracker(config.MaxLatencySamples),
		monitor:  NewResourceMonitor(),
	}
}

// Start begins profiling
func (p *Profiler) Start() {
	p.startTime = time.Now()
	runtime.ReadMemStats(&p.memStats)
	if p.interval > 0 {
		p.stop = make(chan struct{})
		p.stopped = make(chan struct{})
		go p.sample()
	}
}

// Stop stops sampling and returns the summary
func (p *Profiler) Stop() *Metrics {
	if p.stop != nil {
		close(p.stop)
		<-p.stopped
		p.stop = nil
	}
	return p.Metrics()
}

// AddProduced counts records handed to a distributor.
func (p *Profiler) AddProduced(n int) {
	p.produced.Add(int64(n))
	p.batches.Add(1)
}

// AddDelivered counts records retrieved by an agent.
func (p *Profiler) AddDelivered(n int) {
	p.delivered.Add(int64(n))
}

// RecordLatency records the delay between producing and retrieving a record.
func (p *Profiler) RecordLatency(d time.Duration) {
	p.latency.Record(d)
}

// Metrics returns the current summary
func (p *Profiler) Metrics() *Metrics {
	m := &Metrics{
		RecordsProduced:  p.produced.Load(),
		RecordsDelivered: p.delivered.Load(),
		Batches:          p.batches.Load(),
	}
	if elapsed := time.Since(p.startTime).Seconds(); elapsed > 0 {
		m.RecordsPerSecond = float64(m.RecordsProduced) / elapsed
	}
	m.MinLatency, m.MaxLatency = p.latency.Bounds()
	m.P50Latency, m.P95Latency, m.P99Latency = p.latency.Percentiles()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.GCCount = ms.NumGC - p.memStats.NumGC
	m.GCPauseTotal = time.Duration(ms.PauseTotalNs - p.memStats.PauseTotalNs)

	p.mu.Lock()
	m.CPUUsagePercent = p.cpu
	m.HeapMB = p.heapMB
	m.GoroutineCount = p.maxGor
	p.mu.Unlock()
	if m.HeapMB == 0 {
		m.HeapMB = ms.HeapAlloc / 1024 / 1024
	}
	if n := runtime.NumGoroutine(); n > m.GoroutineCount {
		m.GoroutineCount = n
	}
	return m
}

func (p *Profiler) sample() {
	defer close(p.stopped)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		pct, _ := cpu.Percent(0, false)

		p.mu.Lock()
		if len(pct) > 0 {
			p.cpu = pct[0]
		}
		p.heapMB = ms.HeapAlloc / 1024 / 1024
		if n := runtime.NumGoroutine(); n > p.maxGor {
			p.maxGor = n
		}
		p.mu.Unlock()
	}
}

// Report formats the summary together with the process resource usage.
func (p *Profiler) Report() string {
	m := p.Metrics()
	report := fmt.Sprintf(`
Feed Profile: %s
========================
Duration: %v

Throughput:
- Produced: %d (%.2f/sec) in %d batches
- Delivered: %d

Latency:
- Min: %v
- Max: %v
- P50: %v
- P95: %v
- P99: %v

Runtime:
- CPU: %.2f%%
- Heap: %d MB
- Goroutines: %d
- GC Count: %d
- GC Pause: %v
`,
		p.name,
		time.Since(p.startTime).Round(time.Millisecond),
		m.RecordsProduced, m.RecordsPerSecond, m.Batches,
		m.RecordsDelivered,
		m.MinLatency, m.MaxLatency, m.P50Latency, m.P95Latency, m.P99Latency,
		m.CPUUsagePercent, m.HeapMB, m.GoroutineCount, m.GCCount, m.GCPauseTotal,
	)
	if usage, err := p.monitor.Usage(); err == nil {
		report += fmt.Sprintf(`
Process:
- CPU: %.2f%%
- RSS: %d MB
- Threads: %d
- System memory used: %.1f%%
`,
			usage.CPUPercent, usage.MemoryRSS/1024/1024, usage.ThreadCount, usage.SystemMemoryPercent)
	}
	return report
}

// ResourceMonitor reports the resource usage of the current process.
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
}

// NewResourceMonitor creates a resource monitor for this process.
func NewResourceMonitor() *ResourceMonitor {
	rm := &ResourceMonitor{startTime: time.Now()}
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pids fit in int32
	if err != nil {
		return rm
	}
	rm.process = proc
	if t, err := proc.Times(); err == nil {
		rm.startCPUTime = t.Total()
	}
	return rm
}

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	CPUPercent            float64
	MemoryRSS             uint64
	MemoryVMS             uint64
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
	GoroutineCount        int
	ThreadCount           int32
}

// Usage returns the usage since the monitor was created.
func (rm *ResourceMonitor) Usage() (*ResourceUsage, error) {
	usage := &ResourceUsage{GoroutineCount: runtime.NumGoroutine()}
	if rm.process == nil {
		return usage, fmt.Errorf("process %d is not observable", os.Getpid())
	}
	if t, err := rm.process.Times(); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = (t.Total() - rm.startCPUTime) / elapsed * 100
		}
	}
	if info, err := rm.process.MemoryInfo(); err == nil {
		usage.MemoryRSS = info.RSS
		usage.MemoryVMS = info.VMS
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vm.UsedPercent
		usage.SystemMemoryAvailable = vm.Available
	}
	usage.ThreadCount, _ = rm.process.NumThreads()
	return usage, nil
}

// LatencyTracker keeps a window of the most recent latency samples.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	limit   int
	seen    bool
	min     time.Duration
	max     time.Duration
}

// NewLatencyTracker creates a tracker keeping at most limit samples.
func NewLatencyTracker(limit int) *LatencyTracker {
	return &LatencyTracker{
		samples: make([]time.Duration, 0, min(limit, 1024)),
		limit:   limit,
	}
}

// Record records a latency sample
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if !lt.seen || d < lt.min {
		lt.min = d
		lt.seen = true
	}
	if d > lt.max {
		lt.max = d
	}
	lt.samples = append(lt.samples, d)
	if len(lt.samples) > lt.limit {
		lt.samples = append(lt.samples[:0], lt.samples[len(lt.samples)-lt.limit:]...)
	}
}

// Bounds returns the smallest and largest sample ever recorded.
func (lt *LatencyTracker) Bounds() (lo, hi time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.min, lt.max
}

// Percentiles returns the 50th, 95th and 99th percentile of the window.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 time.Duration) {
	lt.mu.Lock()
	sorted := make([]time.Duration, len(lt.samples))
	copy(sorted, lt.samples)
	lt.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)*50/100], sorted[len(sorted)*95/100], sorted[len(sorted)*99/100]
}
