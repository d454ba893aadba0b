package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/taskextract/internal/config"
	opshttp "github.com/fyrsmithlabs/taskextract/internal/http"
	"github.com/fyrsmithlabs/taskextract/internal/logging"
	"github.com/fyrsmithlabs/taskextract/pkg/task"
)

type streamFlags struct {
	metricsAddr string
	concurrency int
	watchConfig bool
}

func newStreamCmd(g *globalFlags) *cobra.Command {
	f := &streamFlags{}
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Extract tasks from JSONL requests on stdin",
		Long: `Read one JSON request per line from stdin and write one JSON result
per line to stdout, in input order.

Request:  {"text": "...", "source_type": "EMAIL", "use_cache": true}
Result:   {"line": 1, "valid": true, "final_confidence": 0.93, ...}

use_cache defaults to true. A malformed or invalid line yields a result
with "error" set. With --metrics-addr (or metrics.addr in config) the
process also serves /metrics, /healthz and /api/v1/stats.

With --watch-config, edits to the --config file that change weights or
extraction.confidence_threshold apply to the requests that follow. Other
settings need a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if f.watchConfig && g.configPath == "" {
				return task.NewInputError("watch-config", "needs --config")
			}

			a, err := newApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			if f.watchConfig {
				w, err := config.NewWatcher(g.configPath)
				if err != nil {
					return err
				}
				defer w.Close()
				go watchScoring(ctx, w, a.extractor, a.logger)
			}

			addr := f.metricsAddr
			if addr == "" {
				addr = a.cfg.Metrics.Addr
			}
			if addr != "" {
				srv, err := opshttp.NewServer(a.extractor, a.logger, opshttp.Config{Addr: addr, Version: version})
				if err != nil {
					return err
				}
				go func() {
					if err := srv.Start(); err != nil {
						a.logger.Error(ctx, "ops server stopped", zap.Error(err))
					}
				}()
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(sctx)
				}()
			}

			concurrency := f.concurrency
			if concurrency == 0 {
				concurrency = a.extractor.Concurrency()
			}
			n, err := processStream(ctx, a.extractor, cmd.InOrStdin(), cmd.OutOrStdout(), concurrency, a.logger)
			a.logger.Info(ctx, "stream finished", zap.Int("requests", n))
			return err
		},
	}
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve ops endpoints on host:port")
	cmd.Flags().IntVarP(&f.concurrency, "concurrency", "j", 0, "maximum pipelines in flight (default from config)")
	cmd.Flags().BoolVar(&f.watchConfig, "watch-config", false, "apply scoring changes from the config file while streaming")
	return cmd
}

type rescorer interface {
	Rescore(ctx context.Context, w config.WeightsConfig, threshold float64) error
}

// watchScoring applies weight and threshold edits from the watched file to
// ex until ctx is done.
func watchScoring(ctx context.Context, w *config.Watcher, ex rescorer, logger *logging.Logger) {
	w.Run(ctx, func(cfg *config.Config) {
		if err := ex.Rescore(ctx, cfg.Weights, cfg.Extraction.ConfidenceThreshold); err != nil {
			logger.Warn(ctx, "config reload rejected", zap.Error(err))
		}
	}, func(err error) {
		logger.Warn(ctx, "config reload failed, keeping current scoring", zap.Error(err))
	})
}

type streamRequest struct {
	Text       string          `json:"text"`
	SourceType task.SourceType `json:"source_type"`
	UseCache   *bool           `json:"use_cache,omitempty"`
}

type streamResult struct {
	Line int `json:"line"`
	task.ExtractionResult
}

type singleExtractor interface {
	Extract(ctx context.Context, req task.ExtractionRequest) (task.ExtractionResult, error)
}

// processStream extracts every non-blank JSONL line of r with at most
// concurrency extractions in flight, writing results to w in input order.
// It stops reading when ctx is done; requests already read still complete.
func processStream(ctx context.Context, ex singleExtractor, r io.Reader, w io.Writer, concurrency int, logger *logging.Logger) (int, error) {
	if concurrency < 1 {
		return 0, task.NewInputError("concurrency", fmt.Sprintf("must be at least 1, got %d", concurrency))
	}

	pending := make(chan chan streamResult, concurrency)
	writeErr := make(chan error, 1)
	go func() {
		bw := bufio.NewWriter(w)
		enc := json.NewEncoder(bw)
		var err error
		for slot := range pending {
			res := <-slot
			if err != nil {
				continue
			}
			if err = enc.Encode(res); err == nil {
				err = bw.Flush()
			}
		}
		writeErr <- err
	}()

	itemCtx := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(concurrency)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line, count := 0, 0
	for ctx.Err() == nil && sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		count++
		n, payload := line, bytes.Clone(raw)
		slot := make(chan streamResult, 1)
		pending <- slot
		g.Go(func() error {
			slot <- handleLine(itemCtx, ex, n, payload, logger)
			return nil
		})
	}
	_ = g.Wait()
	close(pending)

	if err := <-writeErr; err != nil {
		return count, fmt.Errorf("writing results: %w", err)
	}
	if err := sc.Err(); err != nil {
		return count, fmt.Errorf("reading requests: %w", err)
	}
	return count, ctx.Err()
}

func handleLine(ctx context.Context, ex singleExtractor, line int, payload []byte, logger *logging.Logger) streamResult {
	var req streamRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		logger.Debug(ctx, "malformed stream request", zap.Int("line", line), zap.Error(err))
		return streamResult{Line: line, ExtractionResult: task.Failed(fmt.Errorf("decoding request: %w", err))}
	}
	useCache := req.UseCache == nil || *req.UseCache
	if st, err := task.ParseSourceType(string(req.SourceType)); err == nil {
		req.SourceType = st
	}

	res, err := ex.Extract(ctx, task.ExtractionRequest{Text: req.Text, SourceType: req.SourceType, UseCache: useCache})
	if err != nil {
		return streamResult{Line: line, ExtractionResult: task.Failed(err)}
	}
	return streamResult{Line: line, ExtractionResult: res}
}
