// Dungeonmind is a data-driven NPC decision and consequence engine for
// turn-based dungeon games.
// Usage: dungeonmind [--version] [--plain] [--script <file>] [--trace] [--config <file>] [content_directory]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nathoo/dungeonmind/cli"
	"github.com/nathoo/dungeonmind/config"
	"github.com/nathoo/dungeonmind/engine"
	"github.com/nathoo/dungeonmind/engine/reputation"
	"github.com/nathoo/dungeonmind/loader"
	"github.com/nathoo/dungeonmind/sim"
	"github.com/nathoo/dungeonmind/store"
	"github.com/nathoo/dungeonmind/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	plain := false
	trace := false
	var contentDir string
	var scriptFile string
	configFile := "dungeonmind.yaml"

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("dungeonmind %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--trace":
			trace = true
		case "--script":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--script requires a file path\n")
				os.Exit(1)
			}
			i++
			scriptFile = args[i]
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--config requires a file path\n")
				os.Exit(1)
			}
			i++
			configFile = args[i]
		default:
			if contentDir == "" {
				contentDir = args[i]
			}
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if contentDir != "" {
		cfg.ContentDir = contentDir
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	// Load and compile Lua content.
	defs, err := loader.Load(cfg.ContentDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading content: %v\n", err)
		os.Exit(1)
	}

	world := sim.NewWorld(1)
	ledger := reputation.NewLedger()
	eng := engine.New(defs, ledger, world, world, logger)

	var st store.Storage
	if cfg.RedisAddr != "" {
		rs := store.NewRedisStore(cfg.RedisAddr, logger)
		if err := rs.Ping(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error reaching redis at %s: %v\n", cfg.RedisAddr, err)
			os.Exit(1)
		}
		st = rs
	} else {
		st = store.NewMemoryStore()
	}
	defer st.Close()

	// Script mode: open file, force plain, echo commands.
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		c := newConsole(eng, world, st, cfg, trace)
		c.In = f
		c.EchoInput = true
		c.Run()
		return
	}

	// Use plain CLI if --plain flag or stdout is not a terminal.
	if plain || !isTerminal() {
		newConsole(eng, world, st, cfg, trace).Run()
		return
	}

	console := newConsole(eng, world, st, cfg, trace)
	if err := tui.Run(console); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newConsole(eng *engine.Engine, world *sim.World, st store.Storage, cfg *config.Config, trace bool) *cli.CLI {
	c := cli.New(eng, world, st)
	c.Trace = trace
	c.SavePath = cfg.SavePath
	c.TickLimit = cfg.TickLimit
	return c
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
