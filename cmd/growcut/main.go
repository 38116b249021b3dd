package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"growcut/internal/logging"
	"growcut/internal/models"
	"growcut/pkg/compute"
	"growcut/pkg/config"
	"growcut/pkg/filter"
	"growcut/pkg/growcut"
	"growcut/pkg/loader"
	"growcut/pkg/threshold"
	"growcut/pkg/visualization"
)

func main() {
	configPath := flag.String("config", "growcut.yaml", "YAML configuration file (defaults are used if missing)")
	inputDir := flag.String("input", "", "Directory containing 2D grayscale slices")
	phantomSize := flag.Int("phantom", 32, "Edge length of the synthetic test volume used when -input is empty")
	iterations := flag.Int("iterations", -1, "Override filter.iterationCount")
	workers := flag.Int("workers", 0, "Override compute.workers")
	slicesDir := flag.String("slices-dir", "", "Directory to save label, strength, occupancy and intensity slices along z")
	writeConfig := flag.Bool("write-config", false, "Write the effective configuration to -config and exit")
	initConfig := flag.Bool("init-config", false, "Create -config with default values if it does not exist and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *iterations >= 0 {
		cfg.Filter.IterationCount = *iterations
	}
	if *workers > 0 {
		cfg.Compute.Workers = *workers
	}
	if *slicesDir != "" {
		cfg.Output.SlicesDir = *slicesDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *writeConfig {
		if err := config.SaveConfig(cfg, *configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Configuration written to %s\n", *configPath)
		return
	}

	logger, err := logging.New("growcut", cfg.Output.LogLevel, cfg.Output.Verbose)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger, *inputDir, *phantomSize); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, inputDir string, phantomSize int) error {
	var (
		intensity *models.Volume
		err       error
	)
	if inputDir != "" {
		fmt.Printf("Loading slices from %s...\n", inputDir)
		intensity, err = loader.LoadDir(inputDir)
		if err != nil {
			return fmt.Errorf("failed to load slices: %w", err)
		}
	} else {
		fmt.Printf("Generating %d³ phantom volume...\n", phantomSize)
		intensity, err = phantom(phantomSize)
		if err != nil {
			return err
		}
	}
	fmt.Printf("Volume dimensions: %s\n", intensity.Dims)

	backend, err := compute.New(cfg)
	if err != nil {
		return err
	}

	engine := growcut.NewEngine(backend, logger.Named("engine"))
	engine.SetObserver(func(iteration, changed int) {
		if iteration > 0 {
			fmt.Printf("\rIteration %d/%d: %d labels changed", iteration, cfg.Filter.IterationCount-1, changed)
		}
	})

	start := time.Now()
	out, err := filter.Apply[growcut.Inputs, *growcut.Outputs](ctx, engine, cfg.Filter, growcut.Inputs{Intensity: intensity})
	if err != nil {
		return fmt.Errorf("grow-cut failed: %w", err)
	}
	elapsed := time.Since(start)
	fmt.Println()

	fmt.Printf("\nGrow-cut completed in %.3f seconds (%d dispatches on %s backend)\n",
		elapsed.Seconds(), out.Dispatches, cfg.Compute.Backend)
	summary := growcut.Summarize(out)
	fmt.Println(summary)
	fmt.Printf("Background (label %g): %.1f%%, foreground (label %g): %.1f%%\n",
		growcut.LabelBackground, 100*summary.Fraction(growcut.LabelBackground),
		growcut.LabelForeground, 100*summary.Fraction(growcut.LabelForeground))

	occupancy, err := filter.Apply[*models.Volume, *models.Volume](ctx,
		threshold.New(backend, logger.Named("threshold")), cfg.Filter, intensity)
	if err != nil {
		return fmt.Errorf("threshold failed: %w", err)
	}
	fractional := threshold.ScaleFractional(occupancy)
	fmt.Printf("Mean occupancy in [%g, %g] at %dx oversampling: %.3f (fractional %.1f)\n",
		cfg.Filter.MinThreshold, cfg.Filter.MaxThreshold, cfg.Filter.OversamplingFactor,
		stat.Mean(occupancy.Data, nil), stat.Mean(fractional.Data, nil))

	if cfg.Output.SlicesDir != "" {
		outputs := map[string]*visualization.Viewer{
			"label":     visualization.NewViewer(out.Label, growcut.LabelUnlabeled, growcut.LabelForeground),
			"strength":  visualization.NewViewer(out.Strength, 0, growcut.MaxStrength),
			"occupancy": visualization.NewViewer(fractional, threshold.FractionalMin, threshold.FractionalMax),
			"intensity": visualization.NewAutoViewer(intensity),
		}
		for name, viewer := range outputs {
			dir := filepath.Join(cfg.Output.SlicesDir, name)
			n, err := viewer.SaveSliceSequence("z", dir, name)
			if err != nil {
				logger.Warn("failed to save slices", zap.String("output", name), zap.Int("written", n), zap.Error(err))
				continue
			}
			fmt.Printf("Saved %d %s slices to: %s\n", n, name, dir)
		}
	}

	return nil
}
