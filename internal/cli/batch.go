package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
	"github.com/wesleyorama2/tether/internal/metrics"
	"github.com/wesleyorama2/tether/internal/output"
	"github.com/wesleyorama2/tether/internal/pacing"
)

type batchFlags struct {
	requests    []string
	repeat      int
	concurrency int
	rate        float64
	metricsAddr string
	timeout     time.Duration
	retries     int
	noColor     bool
	format      string
}

// job is one scheduled execution of a named request.
type job struct {
	name      string
	iteration int
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	flags := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the collection's requests concurrently through one client",
		Long: `Run every named request in the collection file, or those selected with
--request, repeated -n times, with at most --concurrency in flight and at
most --rate started per second. All
requests share one connection pool, so the pool caps apply across the batch.

Prints one line per result and a latency summary. With --metrics-addr the
client metrics are served in the Prometheus format while the batch runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts, flags)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&flags.requests, "request", nil, "Run only the named request (repeatable)")
	f.IntVarP(&flags.repeat, "repeat", "n", 1, "Times to run each request")
	f.IntVar(&flags.concurrency, "concurrency", 10, "Maximum requests in flight")
	f.Float64Var(&flags.rate, "rate", 0, "Maximum requests started per second (0 = unlimited)")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	f.DurationVarP(&flags.timeout, "timeout", "t", 10*time.Second, "Per-attempt timeout")
	f.IntVarP(&flags.retries, "retries", "r", 2, "Retries after a failed attempt")
	f.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	f.StringVarP(&flags.format, "output", "o", "text", "Summary format: text, json or yaml")

	return cmd
}

func runBatch(cmd *cobra.Command, opts *rootOptions, flags *batchFlags) error {
	cfg, err := opts.requireConfig()
	if err != nil {
		return err
	}
	if flags.repeat < 1 || flags.concurrency < 1 {
		return errors.New("--repeat and --concurrency must be at least 1")
	}
	if flags.rate < 0 {
		return errors.New("--rate cannot be negative")
	}
	format, err := output.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	names := flags.requests
	if len(names) == 0 {
		names = cfg.RequestNames()
	}
	for _, name := range names {
		if _, ok := cfg.Requests[name]; !ok {
			return fmt.Errorf("request not found: %s", name)
		}
	}
	if len(names) == 0 {
		return errors.New("the collection file defines no requests")
	}

	collector := metrics.NewCollector()
	clientOpts, err := cfg.ClientOptions(opts.environment)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		clientOpts = append(clientOpts, tetherhttp.WithTimeout(flags.timeout))
	}
	if cmd.Flags().Changed("retries") {
		clientOpts = append(clientOpts, tetherhttp.WithMaxRetries(flags.retries))
	}
	clientOpts = append(clientOpts, tetherhttp.WithLogger(opts.logger), tetherhttp.WithObserver(collector))
	client := tetherhttp.NewClient(clientOpts...)

	if flags.metricsAddr != "" {
		stop, err := serveMetrics(flags.metricsAddr, collector, opts.logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	out := cmd.OutOrStdout()
	noColor := !colorEnabled(flags.noColor, out)
	formatter := output.GetFormatter(format, false, noColor)
	recorder := metrics.NewRecorder()
	vars := cfg.Vars(opts.environment)

	jobs := make([]job, 0, len(names)*flags.repeat)
	for i := 0; i < flags.repeat; i++ {
		for _, name := range names {
			jobs = append(jobs, job{name: name, iteration: i + 1})
		}
	}

	pacer := pacing.New(flags.rate)
	var mu sync.Mutex
	err = client.Use(cmd.Context(), func(ctx context.Context, client *tetherhttp.Client) error {
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(flags.concurrency)
		for _, j := range jobs {
			if err := pacer.Wait(ctx); err != nil {
				break
			}
			j := j
			g.Go(func() error {
				result := client.Do(ctx, cfg.Requests[j.name].Build(vars))
				recorder.Record(result.Elapsed(), result.Success(), result.Attempts())

				if format == output.FormatText {
					mu.Lock()
					fmt.Fprintln(out, resultLine(j, result, noColor))
					mu.Unlock()
				}
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return err
	}

	summary := recorder.Summary()
	fmt.Fprint(out, ensureNewline(formatter.FormatSummary(summary)))

	if summary.Failed > 0 {
		if format == output.FormatText {
			fmt.Fprintf(out, "%s %d of %d requests failed\n", output.ErrorIcon(noColor), summary.Failed, summary.Total)
		}
		return errFailed
	}
	return nil
}

func resultLine(j job, result *tetherhttp.Result, noColor bool) string {
	icon := output.SuccessIcon(noColor)
	if !result.Success() {
		icon = output.ErrorIcon(noColor)
	}

	status := "---"
	if code, ok := result.Status(); ok {
		status = fmt.Sprintf("%d", code)
	}

	line := fmt.Sprintf("%s %-20s #%-3d %s %8s  attempts=%d",
		icon, j.name, j.iteration, status, result.Elapsed().Round(time.Millisecond), result.Attempts())
	if result.Error() != "" {
		line += "  " + result.Error()
	}
	return line
}

// serveMetrics exposes the collector on addr until stop is called.
func serveMetrics(addr string, collector *metrics.Collector, logger *zap.Logger) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error starting metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", listener.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
