package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/time/rate"

	"orsdata/dataset"
)

// exporter drains dataset iterators into a store.
type exporter struct {
	ds    *dataset.Dataset
	st    *store
	seed  uint64
	limit int // per shard, 0 for no limit

	// progress throttles per-example debug lines.
	progress *rate.Limiter
	// out receives progress bars; nil means stdout.
	out io.Writer
}

func newExporter(ds *dataset.Dataset, st *store, seed uint64, limit int, every time.Duration) *exporter {
	lim := rate.NewLimiter(rate.Inf, 1)
	if every > 0 {
		lim = rate.NewLimiter(rate.Every(every), 1)
	}
	return &exporter{ds: ds, st: st, seed: seed, limit: limit, progress: lim}
}

func (e *exporter) shardRand(shard int) *rand.Rand {
	return rand.New(rand.NewPCG(e.seed, uint64(shard)+1))
}

func (e *exporter) newProgress() *mpb.Progress {
	opts := []mpb.ContainerOption{mpb.WithWidth(64)}
	if e.out != nil {
		opts = append(opts, mpb.WithOutput(e.out))
	}
	return mpb.New(opts...)
}

func addShardBar(p *mpb.Progress, name string) *mpb.Bar {
	return p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name(name),
			decor.CurrentNoUnit(" %d"),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
}

// exportShard writes every example of it as shard and returns the count.
func (e *exporter) exportShard(ctx context.Context, shard int, it dataset.Iterator, bar *mpb.Bar) (int, error) {
	defer bar.SetTotal(-1, true)
	if err := e.st.reset(shard); err != nil {
		return 0, err
	}
	n := 0
	for e.limit <= 0 || n < e.limit {
		if err := ctx.Err(); err != nil {
			bar.Abort(false)
			return n, err
		}
		ex, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			bar.Abort(false)
			return n, err
		}
		if err := e.st.put(shard, n, ex); err != nil {
			bar.Abort(false)
			return n, err
		}
		n++
		bar.Increment()
		if e.progress.Allow() {
			logDebug("shard %d: %d examples", shard, n)
		}
	}
	return n, nil
}

// runSingle exports the dataset's own stream, interleaved or not, as shard 0
// and drops any other shards left by an earlier parallel run.
func (e *exporter) runSingle(ctx context.Context) error {
	it, err := e.ds.Iter(e.shardRand(0))
	if err != nil {
		return err
	}
	if err := e.st.truncate(1); err != nil {
		return err
	}
	p := e.newProgress()
	bar := addShardBar(p, "examples:")
	n, err := e.exportShard(ctx, 0, it, bar)
	p.Wait()
	if err != nil {
		return err
	}
	logDebug("shard 0 done: %d examples", n)
	return nil
}

// runParallel splits the files into shards and exports them on up to workers
// goroutines. Each shard gets its own iterator and random source. Rows of
// shards that end up empty or no longer exist are dropped. The first error is
// returned once every started shard has finished.
func (e *exporter) runParallel(ctx context.Context, shards, workers int) error {
	files, err := e.ds.Shards(e.shardRand(0), shards)
	if err != nil {
		return err
	}
	if err := e.st.truncate(len(files)); err != nil {
		return err
	}
	for i, f := range files {
		if len(f) == 0 {
			if err := e.st.reset(i); err != nil {
				return err
			}
		}
	}
	p := e.newProgress()

	var (
		mu       sync.Mutex
		firstErr error
	)
	wg := sizedwaitgroup.New(workers)
	for i, f := range files {
		if len(f) == 0 {
			continue
		}
		bar := addShardBar(p, fmt.Sprintf("shard %d:", i))
		wg.Add()
		go func(shard int, files []string, bar *mpb.Bar) {
			defer wg.Done()
			it := e.ds.NewIterator(files, e.shardRand(shard+1))
			n, err := e.exportShard(ctx, shard, it, bar)
			if err != nil {
				logError("shard %d: %v", shard, err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			logDebug("shard %d done: %d examples from %d files", shard, n, len(files))
		}(i, f, bar)
	}
	wg.Wait()
	p.Wait()
	return firstErr
}
