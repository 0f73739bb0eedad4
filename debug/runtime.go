package debug

// Periodic runtime logger, started only when config.Debug is true.
// Logs goroutine count, Go heap and stack usage and process RSS so native
// growth (capture buffers, OpenCV mats) can be told apart from heap growth.

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"
)

// Extra returns additional attributes logged with every sample.
type Extra func() []slog.Attr

// StartRuntimeLogger logs runtime stats every interval until ctx is done.
func StartRuntimeLogger(ctx context.Context, interval time.Duration, logger *slog.Logger, extra Extra) {
	if logger == nil {
		return
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		var rssErrLogged bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			attrs := sample()
			if rss, err := residentSet(); err == nil {
				attrs = append(attrs, slog.Uint64("rss", rss))
			} else if !rssErrLogged {
				logger.Warn("rss unavailable", slog.String("err", err.Error()))
				rssErrLogged = true
			}
			if extra != nil {
				attrs = append(attrs, extra()...)
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "runtime.stats", attrs...)
		}
	}()
}

func sample() []slog.Attr {
	samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
	metrics.Read(samples)
	var goroutines uint64
	if samples[0].Value.Kind() == metrics.KindUint64 {
		goroutines = samples[0].Value.Uint64()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return []slog.Attr{
		slog.Uint64("goroutines", goroutines),
		slog.Uint64("heap_alloc", ms.HeapAlloc),
		slog.Uint64("heap_inuse", ms.HeapInuse),
		slog.Uint64("stack_inuse", ms.StackInuse),
		slog.Uint64("num_gc", uint64(ms.NumGC)),
	}
}
