package feed

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/collector/memory"
	"github.com/ajitpratap0/quasar/pkg/compression"
	"github.com/ajitpratap0/quasar/pkg/errors"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/stats"
	"github.com/ajitpratap0/quasar/pkg/stripe"
	"github.com/ajitpratap0/quasar/pkg/striper"
	"github.com/ajitpratap0/quasar/pkg/tape"
)

var symbols = []string{"IBM", "MSFT", "AAPL", "GOOG", "AMZN", "ORCL", "INTC", "CSCO"}

func striped(t *testing.T, contract collector.Contract, name string, stripes int, mutate ...func(*collector.Options)) collector.Collector {
	t.Helper()
	log := zaptest.NewLogger(t)
	scheme := Scheme()
	f := stripe.NewFactory(memory.Factory{}, stripe.WithLogger(log))
	opts := collector.Options{
		Name:    name,
		Scheme:  scheme,
		Stats:   stats.New(name),
		Striper: striper.New(scheme.Codec(), stripes),
		Logger:  log,
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := f.NewCollector(contract, opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestRun_StreamDeliversEverything(t *testing.T) {
	c := striped(t, collector.StreamContract, "feed_stream", 4)
	h, err := New(c, Config{
		Symbols:   symbols,
		Agents:    3,
		Producers: 2,
		BatchSize: 50,
		Batches:   20,
		Seed:      7,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2*20*50), res.Produced)
	assert.Equal(t, res.Produced, res.Delivered, "every symbol has exactly one subscriber")
	assert.Equal(t, res.Produced, res.Stats.Processed)
	assert.Equal(t, int64(40), res.Metrics.Batches)
	assert.Contains(t, res.Report, "Feed Profile: feed")
}

func TestRun_TickerCoalesces(t *testing.T) {
	c := striped(t, collector.TickerContract, "feed_ticker", 3)
	kept := striped(t, collector.TickerContract, "feed_ticker_kept", 3, func(o *collector.Options) {
		o.StoreEverything = true
	})
	h, err := New(c, Config{
		Symbols:   symbols[:4],
		Agents:    2,
		Producers: 1,
		BatchSize: 100,
		Batches:   5,
		Seed:      11,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Produced)
	assert.Positive(t, res.Delivered)
	assert.LessOrEqual(t, res.Delivered, res.Produced)

	cipher, sym := c.Scheme().Cipher("IBM")
	assert.False(t, c.(collector.Ticker).IsAvailable(Quote, cipher, sym), "closed agents release their symbols")

	h, err = New(kept, Config{
		Symbols:   symbols[:4],
		Agents:    2,
		Producers: 1,
		BatchSize: 100,
		Batches:   1,
		Seed:      11,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = h.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, kept.(collector.Ticker).IsAvailable(Quote, cipher, sym), "store-everything keeps the last quote")
}

func TestRun_SharedSymbols(t *testing.T) {
	c := striped(t, collector.StreamContract, "feed_shared", 2)
	h, err := New(c, Config{
		Symbols:   symbols[:2],
		Agents:    4,
		Producers: 1,
		BatchSize: 10,
		Batches:   3,
		Seed:      3,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2*res.Produced, res.Delivered, "each symbol has two subscribers")
}

func TestRun_Duration(t *testing.T) {
	c := striped(t, collector.StreamContract, "feed_duration", 2)
	h, err := New(c, Config{
		Symbols:   symbols,
		Agents:    2,
		Producers: 2,
		BatchSize: 10,
		Duration:  50 * time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	start := time.Now()
	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Positive(t, res.Produced)
	assert.Equal(t, res.Produced, res.Delivered)
}

func TestRun_RecordsTape(t *testing.T) {
	c := striped(t, collector.StreamContract, "feed_tape", 2)
	var out bytes.Buffer
	w, err := tape.NewWriter(&out, c.Scheme(), compression.Snappy)
	require.NoError(t, err)

	h, err := New(c, Config{
		Symbols:   symbols,
		Agents:    2,
		Producers: 2,
		BatchSize: 25,
		Batches:   4,
		Seed:      5,
		Tape:      w,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	res, err := h.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, res.Produced, w.Count())

	r, err := tape.NewReader(&out, c.Scheme(), compression.Snappy)
	require.NoError(t, err)
	buf := record.NewBuffer(record.ModeData)
	n, err := r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int(res.Produced), n)
	_, err = r.Read(buf, 0)
	assert.Equal(t, io.EOF, err)
	assert.Same(t, Quote, buf.At(0).Type)
	assert.Len(t, buf.At(0).Ints, 4)
}

func TestNew_Validation(t *testing.T) {
	c := striped(t, collector.StreamContract, "feed_validation", 2)
	valid := Config{Symbols: symbols, Agents: 1, Producers: 1, BatchSize: 1, Batches: 1}

	for name, mutate := range map[string]func(*Config){
		"no symbols":   func(c *Config) { c.Symbols = nil },
		"no agents":    func(c *Config) { c.Agents = 0 },
		"no producers": func(c *Config) { c.Producers = 0 },
		"no batch":     func(c *Config) { c.BatchSize = 0 },
		"unbounded":    func(c *Config) { c.Batches = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			_, err := New(c, cfg, nil)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}

	other, err := memory.NewStream(collector.Options{
		Scheme: record.NewScheme(nil, record.NewType("Trade", false, nil, nil)),
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	_, err = New(other, valid, nil)
	require.Error(t, err)
}

func TestRun_BoundedBuffers(t *testing.T) {
	c := striped(t, collector.StreamContract, "feed_bounded", 2)
	h, err := New(c, Config{
		Symbols:       symbols[:1],
		Agents:        1,
		Producers:     1,
		BatchSize:     100,
		Batches:       1,
		Seed:          1,
		MaxBufferSize: 10,
		Overflow:      collector.DropNewest,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Produced)
	assert.GreaterOrEqual(t, res.Delivered, int64(10))
	assert.Equal(t, res.Produced, res.Delivered+res.Stats.Dropped)
}
