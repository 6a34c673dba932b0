package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/quasar/internal/feed"
	"github.com/ajitpratap0/quasar/pkg/collector"
	"github.com/ajitpratap0/quasar/pkg/config"
	"github.com/ajitpratap0/quasar/pkg/logger"
	"github.com/ajitpratap0/quasar/pkg/observability"
	"github.com/ajitpratap0/quasar/pkg/record"
	"github.com/ajitpratap0/quasar/pkg/striper"
	"github.com/ajitpratap0/quasar/pkg/symbol"
	"github.com/ajitpratap0/quasar/pkg/tape"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	var configFile, logLevel string

	root := &cobra.Command{
		Use:   "quasar",
		Short: "Quasar - striped market data collectors",
		Long: `Quasar partitions market data collectors into stripes by symbol so that
producers and consumers of unrelated symbols never contend on the same lock.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	load := func() (*config.Config, error) {
		cfg := config.Default()
		if configFile != "" {
			var err error
			if cfg, err = config.LoadFile(configFile); err != nil {
				return nil, err
			}
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := logger.Init(cfg.Logging); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Quasar v%s\n", version)
				fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
				fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
		newStriperCommand(),
		newRunCommand(load),
		newReplayCommand(load),
	)
	return root
}

func newStriperCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "striper <spec> [symbols...]",
		Short: "Describe a striper and route symbols to stripes",
		Long: `Describe a striper given by its specification and print the stripe of
each symbol.

Example:
  quasar striper byhash4 IBM MSFT
  quasar striper byrange-G-N- AAPL IBM ORCL`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := striper.ValueOf(symbol.Default, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Striper: %s (%d stripes)\n", s.Name(), s.StripeCount())
			for i := 0; i < s.StripeCount(); i++ {
				fmt.Fprintf(out, "  [%d] %s\n", i, s.StripeFilter(i))
			}
			for _, sym := range args[1:] {
				fmt.Fprintf(out, "%s -> %d\n", sym, s.IndexBytes([]byte(sym)))
			}
			return nil
		},
	}
}

func newRunCommand(load func() (*config.Config, error)) *cobra.Command {
	var (
		contract, striperSpec, recordPath string
		agents, producers, batchSize      int
		duration                          time.Duration
		metricsAddr                       string
		tracing                           bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic feed through a striped collector",
		Long: `Run a synthetic quote feed: producers publish random quotes through
distributors and agents subscribed to slices of the symbol universe consume
them. Flags override the configuration file.

Example:
  quasar run --contract stream --striper byhash4 --duration 10s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("contract") {
				cfg.Collector.Contract = contract
			}
			if flags.Changed("striper") {
				cfg.Collector.Striper = striperSpec
			}
			if flags.Changed("agents") {
				cfg.Feed.Agents = agents
			}
			if flags.Changed("producers") {
				cfg.Feed.Producers = producers
			}
			if flags.Changed("batch-size") {
				cfg.Feed.BatchSize = batchSize
			}
			if flags.Changed("duration") {
				cfg.Feed.Duration = duration
			}
			if flags.Changed("record") {
				cfg.Feed.Record = recordPath
			}
			if flags.Changed("metrics-addr") {
				cfg.Metrics.Enabled = metricsAddr != ""
				cfg.Metrics.ListenAddr = metricsAddr
			}
			if flags.Changed("tracing") {
				cfg.Tracing.Enabled = tracing
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runFeed(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&contract, "contract", "ticker", "Collector contract (ticker, stream, history)")
	flags.StringVar(&striperSpec, "striper", "", "Striper specification (by1, byhashN, byrange...)")
	flags.IntVar(&agents, "agents", 4, "Number of consuming agents")
	flags.IntVar(&producers, "producers", 2, "Number of producing distributors")
	flags.IntVar(&batchSize, "batch-size", 100, "Records per produced batch")
	flags.DurationVar(&duration, "duration", 5*time.Second, "How long producers publish")
	flags.StringVar(&recordPath, "record", "", "Record produced batches to a tape (extension selects compression)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.BoolVar(&tracing, "tracing", false, "Export spans to stdout")
	return cmd
}

func runFeed(cmd *cobra.Command, cfg *config.Config) error {
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := startAmbient(cfg, log)
	if err != nil {
		return err
	}
	defer shutdown()

	c, err := feed.NewCollector(cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	fc, err := feed.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	if cfg.Feed.Record != "" {
		w, err := tape.Create(cfg.Feed.Record, c.Scheme())
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				log.Error("failed to close tape", zap.Error(err))
			}
		}()
		fc.Tape = w
	}

	h, err := feed.New(c, fc, log)
	if err != nil {
		return err
	}
	res, err := h.Run(ctx)
	if res != nil {
		fmt.Fprint(cmd.OutOrStdout(), res.Report)
		fmt.Fprintf(cmd.OutOrStdout(), "\nCollector:\n- Processed: %d\n- Retrieved: %d\n- Dropped: %d\n- Notifications: %d\n",
			res.Stats.Processed, res.Stats.Retrieved, res.Stats.Dropped, res.Stats.Notifications)
	}
	return err
}

func newReplayCommand(load func() (*config.Config, error)) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "replay <tape>",
		Short: "Replay a recorded tape into a striped collector",
		Long: `Replay a tape recorded by "quasar run --record" into the configured
collector. An agent subscribed to the configured symbols reports what it
received.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.Tape.BatchSize = batchSize
			}
			cfg.Tape.Path = args[0]
			if err := cfg.Validate(); err != nil {
				return err
			}
			return replayTape(cmd, cfg)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 1000, "Records per replayed batch")
	return cmd
}

func replayTape(cmd *cobra.Command, cfg *config.Config) error {
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := startAmbient(cfg, log)
	if err != nil {
		return err
	}
	defer shutdown()

	c, err := feed.NewCollector(cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	r, err := tape.Open(cfg.Tape.Path, c.Scheme())
	if err != nil {
		return err
	}
	defer r.Close()

	agent := c.BuildAgent(collector.AgentOptions{Name: "replay"})
	defer agent.Close()
	sub := record.NewBuffer(c.Contract().SubscriptionMode())
	for _, s := range cfg.Feed.Symbols {
		cipher, sym := c.Scheme().Cipher(s)
		sub.Add(record.Record{Type: feed.Quote, Cipher: cipher, Symbol: sym})
	}
	agent.AddSubscription(sub)

	dist := c.BuildDistributor(collector.DistributorOptions{Name: "replay"})
	defer dist.Close()
	start := time.Now()
	n, err := tape.Replay(ctx, r, dist, cfg.Tape.BatchSize)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	buf := record.NewBuffer(record.ModeData)
	delivered := 0
	for more := true; more; {
		buf.Clear()
		more = agent.Retrieve(buf)
		delivered += buf.Len()
	}
	snap := c.Stats().Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Replayed %d records from %s in %v\n", n, cfg.Tape.Path, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(out, "Delivered: %d\nProcessed: %d\nDropped: %d\n", delivered, snap.Processed, snap.Dropped)
	return nil
}

// startAmbient starts tracing and the metrics endpoint when configured and
// returns a function that stops them.
func startAmbient(cfg *config.Config, log *zap.Logger) (func(), error) {
	if err := observability.InitTracing(observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		SamplingRate:   cfg.Tracing.SampleRate,
	}); err != nil {
		return nil, err
	}

	var srv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
		srv = &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		log.Info("serving metrics", zap.String("addr", cfg.Metrics.ListenAddr), zap.String("path", cfg.Metrics.Path))
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if srv != nil {
			_ = srv.Shutdown(ctx)
		}
		if err := observability.Shutdown(ctx); err != nil {
			log.Warn("failed to shut down tracing", zap.Error(err))
		}
	}, nil
}
