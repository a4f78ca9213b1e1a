package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"orsdata/audio"
	"orsdata/dataset"
	"orsdata/osu"
	"orsdata/tokenizer"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

func main() {
	configPath := flag.String("config", "orsdata.json", "settings file")
	initConfig := flag.Bool("init", false, "write default settings to -config and exit")
	test := flag.Bool("test", false, "export the test split")
	out := flag.String("out", "examples.db", "sqlite output file")
	limit := flag.Int("limit", 0, "max examples per shard (0 = all)")
	workers := flag.Int("workers", 1, "parallel shard workers; 1 exports the interleaved stream")
	shards := flag.Int("shards", 0, "shard count for -workers > 1 (0 = cycle_length)")
	seed := flag.Uint64("seed", 1, "random seed")
	step := flag.Int64("step", 0, "training step for curriculum switches")
	verify := flag.Bool("verify", false, "check the rows of -out and exit")
	cpuProfile := flag.String("cpuprofile", "", "write a CPU profile to this file")
	debug := flag.Bool("debug", false, "verbose/debug logging")
	flag.Parse()

	setupLogging(*debug)

	if *initConfig {
		if err := saveSettings(*configPath, gsdef); err != nil {
			logError("write settings: %v", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *configPath)
		return
	}

	s, loaded := loadSettings(*configPath)
	if !loaded {
		logDebug("using default settings")
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			logError("create %s: %v", *cpuProfile, err)
			os.Exit(1)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			logError("start CPU profile: %v", err)
			os.Exit(1)
		}
		defer func() {
			pprof.StopCPUProfile()
			f.Close()
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, s, options{
		test:    *test,
		out:     *out,
		limit:   *limit,
		workers: *workers,
		shards:  *shards,
		seed:    *seed,
		step:    *step,
		verify:  *verify,
	}); err != nil {
		logError("%v", err)
		cancel()
		os.Exit(1)
	}
}

type options struct {
	test    bool
	out     string
	limit   int
	workers int
	shards  int
	seed    uint64
	step    int64
	verify  bool
}

func run(ctx context.Context, s settings, o options) error {
	st, err := openStore(o.out)
	if err != nil {
		return err
	}
	defer st.Close()

	if o.verify {
		n, err := verifyStore(st, s.Config)
		if err != nil {
			return err
		}
		fmt.Printf("%s examples verified\n", humanize.Comma(int64(n)))
		return nil
	}

	tok, err := tokenizer.New(s.NumClasses, s.MaxDifficulty)
	if err != nil {
		return err
	}
	var stepCounter atomic.Int64
	stepCounter.Store(o.step)
	src := dataset.Sources{
		Parser:  osu.Parser{},
		Encoder: tok,
		Audio:   audio.NewLoader(s.AudioCache),
		Step:    &stepCounter,
	}
	ds, err := dataset.New(s.Config, src, o.test)
	if err != nil {
		return err
	}

	start := time.Now()
	every := time.Duration(s.ProgressEvery * float64(time.Second))
	e := newExporter(ds, st, o.seed, o.limit, every)
	if o.workers > 1 {
		shards := o.shards
		if shards <= 0 {
			shards = max(s.CycleLength, o.workers)
		}
		logDebug("exporting %d shards on %d workers (%d CPUs)", shards, o.workers, runtime.NumCPU())
		err = e.runParallel(ctx, shards, o.workers)
	} else {
		err = e.runSingle(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s examples, %s of frames, in %s\n",
		humanize.Comma(st.examples.Load()),
		humanize.Bytes(uint64(st.frameBytes.Load())),
		durafmt.Parse(time.Since(start)).LimitFirstN(2).Format(shortUnits))
	return nil
}
