// Copyright 2026 The Throne Authors
// SPDX-License-Identifier: Apache-2.0

// Throne-king is the central coordinator process. It loads the YAML
// configuration and the skill manifest directory, restores state from
// the last checkpoint when one exists, and runs the king event loop
// over an in-process event bus until interrupted.
//
// On startup:
//  1. Loads configuration (--config flag, or the THRONE_CONFIG
//     environment variable).
//  2. Loads skill manifests from the configured skills directory.
//  3. Restores tasks, pipeline runs, and memories from the checkpoint
//     file, if present.
//  4. Runs the event loop, checkpointing at the configured interval
//     and once more on shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/throne-labs/throne/lib/bus"
	"github.com/throne-labs/throne/lib/codec"
	"github.com/throne-labs/throne/lib/config"
	"github.com/throne-labs/throne/lib/king"
	"github.com/throne-labs/throne/lib/skill"
	"github.com/throne-labs/throne/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the YAML configuration file (defaults to $THRONE_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("throne-king " + version.Full())
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log.Info("starting throne-king",
		"version", version.Info(), "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	skills, err := skill.LoadDir(cfg.Skills.Dir)
	if err != nil {
		return fmt.Errorf("loading skills from %s: %w", cfg.Skills.Dir, err)
	}
	log.Info("skills loaded", "dir", cfg.Skills.Dir, "count", len(skills))

	interval, err := time.ParseDuration(cfg.Checkpoint.Interval)
	if err != nil {
		return fmt.Errorf("parsing checkpoint interval: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Checkpoint.Path), 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	eventBus := bus.New()
	defer eventBus.Close()

	k := king.New(king.Options{
		Bus:                eventBus,
		Log:                log,
		Skills:             skills,
		CheckpointPath:     cfg.Checkpoint.Path,
		CheckpointInterval: interval,
	})

	checkpoint, err := codec.Read(cfg.Checkpoint.Path)
	switch {
	case err == nil:
		k.Restore(checkpoint)
	case errors.Is(err, os.ErrNotExist):
		log.Info("no checkpoint found, starting fresh", "path", cfg.Checkpoint.Path)
	default:
		return fmt.Errorf("reading checkpoint: %w", err)
	}

	return k.Run(ctx)
}
