// Map bake tool - runs the herd headlessly and writes the baked maps as PNG.
//
// Usage: go run ./cmd/mapbake -ticks 600 -out maps/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pthm-cable/herd/bake"
	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
	"github.com/pthm-cable/herd/sim"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	ticks := flag.Int64("ticks", 600, "Ticks to simulate before writing")
	seed := flag.Int64("seed", 1, "RNG seed")
	outDir := flag.String("out", ".", "Output directory")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(*configPath, *ticks, *seed, *outDir); err != nil {
		slog.Error("map bake failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, ticks, seed int64, outDir string) error {
	if err := config.Init(configPath); err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	s, err := sim.New(config.Cfg(), sim.Options{Seed: seed, SyncBake: true})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Run(context.Background(), ticks); err != nil {
		return err
	}

	p := s.Pipeline()
	if err := writeMap(filepath.Join(outDir, "terrain.png"), p.Terrain().Layer()); err != nil {
		return err
	}

	movement, ok := p.Movement.Acquire()
	if !ok {
		return maps.ErrClosed
	}
	defer movement.Release()
	if err := writeMap(filepath.Join(outDir, "movement.png"), movement.Value()); err != nil {
		return err
	}

	input, ok := p.Input.Acquire()
	if !ok {
		return maps.ErrClosed
	}
	defer input.Release()
	if err := writeMap(filepath.Join(outDir, "input.png"), input.Value().Map); err != nil {
		return err
	}

	slog.Info("maps written", "dir", outDir, "tick", s.Tick(), "version", movement.Version())
	return nil
}

func writeMap(path string, m *maps.SpatialMap) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bake.WritePNG(f, m); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
