// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/sqlrecall"
	"github.com/poiesic/sqlrecall/ai"
	"github.com/poiesic/sqlrecall/ai/openai"
	"github.com/poiesic/sqlrecall/config"
	"github.com/poiesic/sqlrecall/core"
	"github.com/poiesic/sqlrecall/ingestion"
	"github.com/poiesic/sqlrecall/storage"
	"github.com/poiesic/sqlrecall/vectorstore"
)

// newEngine builds the engine for a command. Tests replace it.
var newEngine = func(cfg *config.Config) (*sqlrecall.Engine, error) {
	return sqlrecall.NewEngine(cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sqlrecall",
		Usage: "Train and query a retrieval store for text-to-SQL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Value:   config.DefaultConfigFile,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write a default config file",
				Action: initCommand,
			},
			{
				Name:   "probe",
				Usage:  "Check that the embedding service answers",
				Action: probeCommand,
			},
			{
				Name:   "train",
				Usage:  "Train from a directory of DDL, documentation, SQL and text plan files",
				Action: trainCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "Directory of training files, searched recursively",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N items",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "skip-probe",
						Usage: "Do not check the embedding service before training",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Generate SQL for a question",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print the retrieved training context to stderr",
					},
				},
			},
			{
				Name:   "count",
				Usage:  "Show how many training records are stored",
				Action: countCommand,
			},
			{
				Name:   "reset",
				Usage:  "Delete stored training records",
				Action: resetCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "kind",
						Usage: "Kind to delete (ddl, documentation, question_sql); repeatable, default all",
					},
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm deletion",
					},
				},
			},
		},
	}
}

// loadConfig reads the config file named by --config. Without an explicit
// flag a missing default file falls back to defaults and the environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if c.IsSet("config") || config.Exists(path) {
		return config.Load(path)
	}
	slog.Debug("no config file, using defaults and environment", "path", path)
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openEngine(c *cli.Context) (*sqlrecall.Engine, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func initCommand(c *cli.Context) error {
	path := c.String("config")
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func probeCommand(c *cli.Context) error {
	ctx := c.Context
	w := c.App.Writer

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "[embedding]")
	aiCfg := cfg.ToAIConfig()
	if err := aiCfg.Validate(); err != nil {
		// Nothing can be opened without embedding settings.
		printProbe(w, openai.Probe(ctx, aiCfg, openai.DefaultProbeText))
		return errors.New("embedding service check failed")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var failed []string
	embedding := engine.ProbeEmbedding(ctx)
	printProbe(w, embedding)
	if !embedding.Success {
		failed = append(failed, "embedding")
	}

	fmt.Fprintf(w, "\n[storage: %s]\n", cfg.Storage.Backend)
	n, err := engine.ProbeStorage(ctx)
	if err != nil {
		fmt.Fprintf(w, "Success: false\nMessage: %v\n", err)
		failed = append(failed, "storage")
	} else {
		fmt.Fprintf(w, "Success: true\nRecords: %d\n", n)
	}

	fmt.Fprintf(w, "\n[chat: %s]\n", cfg.Chat.Provider)
	if engine.ChatBackend() == nil {
		fmt.Fprintln(w, "Not configured, running embedding-only")
	} else {
		chat := engine.ProbeChat(ctx)
		printProbe(w, chat)
		if !chat.Success {
			failed = append(failed, "chat")
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("connection check failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func printProbe(w io.Writer, result ai.ProbeResult) {
	fmt.Fprintf(w, "Model: %s\n", result.Model)
	fmt.Fprintf(w, "Endpoint: %s\n", result.BaseURL)
	fmt.Fprintf(w, "Success: %t\n", result.Success)
	if result.ActualDimension > 0 {
		fmt.Fprintf(w, "Dimension: %d (expected %d)\n", result.ActualDimension, result.ExpectedDimension)
	}
	fmt.Fprintf(w, "Message: %s\n", result.Message)
}

func trainCommand(c *cli.Context) error {
	ctx := c.Context
	dataPath := c.String("data")

	entries, reports, err := loadDir(dataPath)
	if err != nil {
		return err
	}
	printReports(c.App.ErrWriter, reports)
	if len(reports) == 0 {
		return fmt.Errorf("no training files found in %s", dataPath)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if !c.Bool("skip-probe") {
		result := engine.ProbeEmbedding(ctx)
		if !result.Success {
			printProbe(c.App.ErrWriter, result)
			return errors.New("embedding service check failed, training aborted")
		}
		slog.Info("embedding service ok", "model", result.Model, "dimension", result.ActualDimension)
	}

	tracker := newProgressTracker(c.App.ErrWriter, len(entries), c.Int("report-interval"))
	trainer, err := engine.NewTrainer(ingestion.WithResultHook(tracker.Observe))
	if err != nil {
		return err
	}

	tracker.Start()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			break
		}
		if e.needsQuestion() {
			err = trainer.TrainSQL(ctx, e.sql)
		} else {
			err = trainer.Train(ctx, e.item)
		}
		if err != nil {
			slog.Warn("skipping training entry", "err", err)
			tracker.Increment(1, true)
		}
	}

	// Drain in-flight batches even if the run was interrupted.
	if err := trainer.Shutdown(context.WithoutCancel(ctx)); err != nil {
		slog.Error("error shutting down trainer", "err", err)
	}
	tracker.Finish()

	stats := trainer.Stats()
	fmt.Fprintf(c.App.ErrWriter, "Stored %d, failed %d, %d batches (%d fell back to single items) in %s\n",
		stats.Succeeded, tracker.Failed(), stats.Batches, stats.Fallbacks, tracker.Elapsed().Round(time.Millisecond))
	return ctx.Err()
}

func printReports(w io.Writer, reports []fileReport) {
	perType := map[fileType]int{}
	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(w, "  %s: %v\n", r.Path, r.Err)
			continue
		}
		perType[r.Type]++
		fmt.Fprintf(w, "  %s: %d entries (%s)", r.Path, r.Entries, r.Type)
		if r.Skipped > 0 {
			fmt.Fprintf(w, ", %d skipped", r.Skipped)
		}
		fmt.Fprintln(w)
	}
	for _, t := range []fileType{fileDDL, fileDocumentation, fileSQLExamples, fileSQLPairs, fileJSONPairs, fileTextPlan} {
		fmt.Fprintf(w, "%s files: %d\n", t, perType[t])
	}
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var monitor vectorstore.RetrievalMonitor
	if c.Bool("verbose") {
		monitor = &printMonitor{w: c.App.ErrWriter}
	}

	sql, err := engine.AskWithMonitor(c.Context, question, monitor)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, sql)
	return nil
}

func countCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	total := 0
	for _, kind := range core.Kinds() {
		n, err := engine.Count(c.Context, kind)
		if err != nil {
			return err
		}
		total += n
		fmt.Fprintf(c.App.Writer, "%-14s %d\n", kind, n)
	}
	fmt.Fprintf(c.App.Writer, "%-14s %d\n", "total", total)
	return nil
}

func resetCommand(c *cli.Context) error {
	var kinds []core.Kind
	for _, name := range c.StringSlice("kind") {
		kind, err := core.ParseKind(name)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}
	if !c.Bool("yes") {
		return errors.New("reset deletes training data; pass --yes to confirm")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Reset(c.Context, kinds...); err != nil {
		return err
	}
	n, err := engine.Count(c.Context, storage.AllKinds)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Reset complete, %d records remain\n", n)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
