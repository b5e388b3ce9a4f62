// Command chordcut partitions a spinal-cord mask into per-vertebra
// sub-segments using vertebra masks produced by an external segmentation
// model (TotalSegmentator's NIfTI output layout).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/radonc-tools/chordcut/internal/config"
	"github.com/radonc-tools/chordcut/internal/cordseg"
	"github.com/radonc-tools/chordcut/internal/export"
	"github.com/radonc-tools/chordcut/internal/runstore"
	"github.com/radonc-tools/chordcut/internal/segprovider"
	"github.com/radonc-tools/chordcut/internal/vertebrae"
	"github.com/radonc-tools/chordcut/internal/volume"
)

var (
	chordPath  = flag.String("chord", "", "Path to the spinal-cord NIfTI mask (required)")
	segDir     = flag.String("seg-dir", "", "Directory holding per-vertebra NIfTI masks (required)")
	outDir     = flag.String("out", "", "Directory for confined chord masks (required with -save-masks)")
	threshold  = flag.Float64("threshold", thresholdUnset, "Relative slice-density threshold in (0,1)")
	groups     = flag.String("groups", "", "Comma-separated vertebrae groups: cervical, thorax, lumbar")
	verts      = flag.String("vertebrae", "", "Comma-separated vertebra identifiers, e.g. C3,T5")
	saveMasks  = flag.Bool("save-masks", false, "Write one confined chord mask per overlapping vertebra")
	dbPath     = flag.String("db", "", "sqlite database recording runs (empty disables)")
	configPath = flag.String("config", "", "JSON run config file")
	verbose    = flag.Int("verbose", -1, "Verbosity: 0 silent, 1 conditions, 2 ranges")
	workers    = flag.Int("workers", -1, "Concurrent vertebrae (0 = one per CPU)")
	noFlip     = flag.Bool("no-flip", false, "Skip the TotalSegmentator x-flip on vertebra masks")
)

// thresholdUnset is the -threshold flag sentinel. Any other value, valid or
// not, is passed through so the engine's validation can reject it.
const thresholdUnset = -1

// resolveThreshold picks the flag value when one was given, otherwise the
// config value (or its default).
func resolveThreshold(flagValue float64, cfg *config.RunConfig) float64 {
	if flagValue != thresholdUnset {
		return flagValue
	}
	return cfg.GetThreshold()
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("chordcut: %v", err)
	}
}

func run() error {
	if *chordPath == "" || *segDir == "" {
		flag.Usage()
		return fmt.Errorf("-chord and -seg-dir are required")
	}

	cfg := config.EmptyRunConfig()
	if *configPath != "" {
		loaded, err := config.LoadRunConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags override config; unset flags keep their sentinel defaults.
	params := cordseg.Params{
		Threshold:            resolveThreshold(*threshold, cfg),
		ProduceConfinedMasks: *saveMasks || cfg.GetSaveMasks(),
		Workers:              cfg.GetWorkers(),
		Verbosity:            cfg.GetVerbosity(),
	}
	if *workers >= 0 {
		params.Workers = *workers
	}
	if *verbose >= 0 {
		params.Verbosity = *verbose
	}
	if params.ProduceConfinedMasks && *outDir == "" {
		return fmt.Errorf("-out is required with -save-masks")
	}

	registry := vertebrae.New()
	if *groups == "" && *verts == "" {
		// Default to the full spine.
		for _, g := range []string{"cervical", "thorax", "lumbar"} {
			if err := registry.AddGroup(g); err != nil {
				return err
			}
		}
	}
	for _, g := range splitList(*groups) {
		if err := registry.AddGroup(g); err != nil {
			return err
		}
	}
	for _, v := range splitList(*verts) {
		registry.Add(v)
	}

	provider, err := segprovider.NewDirProvider(*segDir)
	if err != nil {
		return err
	}
	provider.FlipX = !*noFlip

	order := registry.List()
	available := provider.Available(order)
	log.Printf("found %d of %d vertebra masks in %s", len(available), len(order), *segDir)

	masks, err := provider.Masks(order)
	if err != nil {
		return err
	}

	chord, err := volume.ReadNIfTI(*chordPath)
	if err != nil {
		return fmt.Errorf("load chord mask: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	res, err := cordseg.ComputeSegments(ctx, chord, masks, order, params)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	for _, v := range res.Order {
		r := res.Ranges[v]
		fmt.Printf("%s\t%d\t%d\n", v, r.Min, r.Max)
	}
	if len(res.Diagnostics) > 0 {
		log.Printf("%d vertebrae skipped or flagged (run with -verbose 1 for details)", len(res.Diagnostics))
	}

	if params.ProduceConfinedMasks {
		if err := export.Write(res, export.NIfTIWriter{}, *outDir); err != nil {
			return err
		}
		log.Printf("wrote %d confined chord masks to %s", len(res.Confined), *outDir)
	}

	storePath := *dbPath
	if storePath == "" {
		storePath = cfg.GetDatabasePath()
	}
	if storePath != "" {
		if err := recordRun(storePath, cfg, params, *chordPath, chord, res, elapsed); err != nil {
			return err
		}
	}

	log.Printf("segmented %d of %d vertebrae in %s", len(res.Order), len(order), elapsed)
	return nil
}

func recordRun(path string, cfg *config.RunConfig, params cordseg.Params, chordPath string, chord *volume.Volume, res *cordseg.Result, elapsed time.Duration) error {
	store, err := runstore.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := &runstore.Run{
		ChordPath:     chordPath,
		ChordName:     cfg.GetChordName(),
		Threshold:     params.Threshold,
		Workers:       params.GetWorkers(),
		GridNX:        chord.NX,
		GridNY:        chord.NY,
		GridNZ:        chord.NZ,
		VertebraCount: len(res.Order),
		DurationNs:    elapsed.Nanoseconds(),
	}
	var segments []runstore.Segment
	for _, v := range res.Order {
		r := res.Ranges[v]
		_, overlap := res.Confined[v]
		segments = append(segments, runstore.Segment{
			Vertebra:   v,
			MinSlice:   r.Min,
			MaxSlice:   r.Max,
			HasOverlap: overlap,
		})
	}
	var diagnostics []runstore.Diagnostic
	for _, d := range res.Diagnostics {
		diagnostics = append(diagnostics, runstore.Diagnostic{
			Vertebra:  d.Vertebra,
			Condition: d.Condition.String(),
		})
	}
	if err := store.InsertRun(run, segments, diagnostics); err != nil {
		return err
	}
	log.Printf("recorded run %s in %s", run.RunID, path)
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
