// Command sentinel runs the detection engine over a stream of multi-modal
// samples: JSONL from a file or stdin, or a synthetic stream for smoke
// testing. Decisions print to stdout; thresholds and decision history
// persist to sqlite when a database path is given.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/haven-media/sentinel/internal/config"
	"github.com/haven-media/sentinel/internal/engine"
	"github.com/haven-media/sentinel/internal/monitoring"
	"github.com/haven-media/sentinel/internal/signal"
	"github.com/haven-media/sentinel/internal/storage/sqlite"
	"github.com/haven-media/sentinel/internal/version"
)

var (
	tuningPath = flag.String("tuning", "", "Path to a JSON tuning config (defaults apply when empty)")
	inputPath  = flag.String("input", "-", "JSONL sample stream, or - for stdin")
	dbPath     = flag.String("db", "", "Sqlite database for thresholds and decision history (no persistence when empty)")
	synthetic  = flag.Int("synthetic", 0, "Generate N synthetic samples instead of reading input")
	verbose    = flag.Bool("v", false, "Enable diagnostic logging")
	trace      = flag.Bool("vv", false, "Enable trace logging (implies -v)")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	writers := monitoring.LogWriters{Ops: os.Stderr}
	if *verbose || *trace {
		writers.Diag = os.Stderr
	}
	if *trace {
		writers.Trace = os.Stderr
	}
	monitoring.SetLogWriters(writers)

	cfg := &config.TuningConfig{}
	if *tuningPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*tuningPath)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	eng, err := engine.New(cfg)
	if err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	defer eng.Close()

	var store *sqlite.Store
	if *dbPath != "" {
		store, err = sqlite.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()

		thresholds, err := store.LoadThresholds()
		if err != nil {
			log.Fatalf("failed to load thresholds: %v", err)
		}
		if len(thresholds) > 0 {
			eng.ImportThresholds(thresholds)
			log.Printf("loaded %d persisted thresholds", len(thresholds))
		}
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	samples := make(chan *signal.MultiModalInput)
	go func() {
		defer close(samples)
		if *synthetic > 0 {
			generateSamples(ctx, samples, *synthetic)
			return
		}
		if err := readSamples(ctx, samples, *inputPath); err != nil {
			log.Printf("failed to read samples: %v", err)
		}
	}()

	out := json.NewEncoder(os.Stdout)
	processed := 0
	for in := range samples {
		decisions, err := eng.Process(ctx, in)
		if err != nil {
			log.Printf("failed to process sample: %v", err)
			continue
		}
		processed++
		for _, d := range decisions {
			if err := out.Encode(d); err != nil {
				log.Fatalf("failed to encode decision: %v", err)
			}
			if store != nil {
				if err := store.RecordDecision(d, in.Timestamp); err != nil {
					log.Printf("failed to record decision: %v", err)
				}
			}
		}
	}

	if store != nil {
		if err := store.SaveThresholds(eng.ExportThresholds()); err != nil {
			log.Printf("failed to save thresholds: %v", err)
		}
	}

	stats := eng.Stats()
	log.Printf("processed %d samples: prefilter early-exit %.0f%%, cache hit %.0f%%, scheduler p95 %s",
		processed,
		100*stats.PreFilter.EarlyExitRate,
		100*stats.Cache[2].HitRate,
		stats.Scheduler.P95)
}

// readSamples decodes JSONL MultiModalInput records, one per line.
func readSamples(ctx context.Context, out chan<- *signal.MultiModalInput, path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %v", path, err)
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var in signal.MultiModalInput
		if err := json.Unmarshal(sc.Bytes(), &in); err != nil {
			log.Printf("skipping line %d: %v", line, err)
			continue
		}
		select {
		case out <- &in:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sc.Err()
}

// generateSamples emits a synthetic stream: mostly quiet frames with the
// occasional hot multi-modal burst, enough to exercise every stage.
func generateSamples(ctx context.Context, out chan<- *signal.MultiModalInput, n int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < n; i++ {
		in := &signal.MultiModalInput{Timestamp: time.Now()}
		digest := make([]byte, 128)
		rng.Read(digest)
		if rng.Float64() < 0.8 {
			in.Visual = &signal.ModalitySample{
				Confidence: rng.Float64() * 30,
				Features:   signal.FeatureBundle{Digest: digest},
			}
		} else {
			in.Visual = &signal.ModalitySample{
				Confidence: 60 + rng.Float64()*40,
				Features:   signal.FeatureBundle{Digest: digest},
			}
			in.Text = &signal.ModalitySample{
				Confidence: 50 + rng.Float64()*50,
				Features:   signal.FeatureBundle{Text: "blood on the floor"},
			}
		}
		select {
		case out <- in:
		case <-ctx.Done():
			return
		}
	}
}
