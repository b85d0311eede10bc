// Copyright 2025 The SubServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package main implements the buffer suggestion server and CLI [DBG] application.
//
// Note: This is a BETA release. APIs and functionality may rapidly change.
//
// SubServe keeps a live word index for every buffer an editor has open and
// answers subsequence queries against it: typing "qsrt" offers "quicksort"
// when that word appears near the cursor. Scope rules from the config add
// literal suggestions and type tags depending on where the cursor sits.
//
// It can operate as a MessagePack IPC server for integration with text
// editors, or as a CLI application for testing and debugging.
//
// # Usage
//
// Start the server with default settings:
//
//	subserve
//
// Run in CLI mode over a set of files, re-indexing them as they change:
//
//	subserve -c -files "src/**/*.js" -limit 10
//
// # Configuration
//
// Runtime configuration is managed through a TOML file:
//
//	[suggest]
//	minimum_word_length = 3
//	include_completions_from_all_buffers = false
//	enable_extended_unicode_support = false
//	max_index_range_lines = 3000
//	max_results_per_buffer = 20
//
//	[server]
//	max_limit = 64
//	max_prefix = 60
//
//	[[scope]]
//	selector = ".source.js .comment"
//	completions = ["TODO", "FIXME"]
//
// The config file is automatically created with defaults if it doesn't exist.
// Flags given on the command line override the file for the current run.
//
// # Command Line Flags
//
//	-version
//	    Show current version
//	-d  Enable debug mode with detailed logging
//	-c  Run in CLI mode instead of server mode
//	-config string
//	    Path to a config.toml
//	-rebuild-config
//	    Overwrite the config file with the defaults and exit
//	-files string
//	    Doublestar glob of files to load in CLI mode
//	-limit int
//	    Number of suggestions to return in CLI mode
//	-minlen int
//	    Minimum word length
//	-all
//	    Include words from every buffer of the session
//	-unicode
//	    Extended unicode word characters
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bastiangx/subserve/internal/cli"
	"github.com/bastiangx/subserve/internal/logger"
	"github.com/bastiangx/subserve/pkg/config"
	"github.com/bastiangx/subserve/pkg/scope"
	"github.com/bastiangx/subserve/pkg/server"
	"github.com/bastiangx/subserve/pkg/suggest"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.1.0-beta"
	AppName = "subserve"
	gh      = "https://github.com/bastiangx/subserve"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main loads config, builds the provider and hands it to the server or
// the CLI. It does not implement logic for them and only manages the flow.
func main() {
	sigHandler()
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	configPath := flag.String("config", "", "Path to a config.toml (default: user config dir)")
	rebuildConfig := flag.Bool("rebuild-config", false, "Overwrite the config file with the defaults and exit")
	files := flag.String("files", "", "Doublestar glob of files to load in CLI mode")
	limit := flag.Int("limit", defaultConfig.CLI.DefaultLimit, "Number of suggestions to return")
	minLen := flag.Int("minlen", defaultConfig.Suggest.MinimumWordLength, "Minimum word length for prefixes and suggestions")
	allBuffers := flag.Bool("all", defaultConfig.Suggest.IncludeCompletionsFromAllBuffers, "Include words from every buffer of the session")
	unicode := flag.Bool("unicode", defaultConfig.Suggest.EnableExtendedUnicodeSupport, "Treat all unicode letters as word characters")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger.Setup(*debugMode)

	if *rebuildConfig {
		path, err := config.RebuildConfigFile(*configPath)
		if err != nil {
			log.Fatalf("Failed to rebuild config: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote default config to %s\n", path)
		os.Exit(0)
	}

	appConfig, activePath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(activePath))

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "minlen":
			appConfig.Suggest.MinimumWordLength = *minLen
		case "all":
			appConfig.Suggest.IncludeCompletionsFromAllBuffers = *allBuffers
		case "unicode":
			appConfig.Suggest.EnableExtendedUnicodeSupport = *unicode
		case "limit":
			appConfig.CLI.DefaultLimit = *limit
		case "files":
			appConfig.CLI.Files = *files
		}
	})

	resolver := scope.FromConfig(appConfig.Scopes)
	provider := suggest.NewProvider(appConfig.Options(), resolver)
	log.Debug("Provider ready", "scopeRules", resolver.Len(), "options", fmt.Sprintf("%+v", provider.Options()))

	// CLI would be mainly used for testing and dbg purposes.
	if *cliMode {
		if err := runCLI(provider, appConfig); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(provider, appConfig, activePath)
	showStartupInfo(activePath)

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func runCLI(provider *suggest.Provider, cfg *config.Config) error {
	ws := cli.NewWorkspace(provider, "cli")
	if cfg.CLI.Files == "" {
		log.Warn("No -files given, running with no buffers...")
	} else {
		n, err := ws.Load(cfg.CLI.Files)
		if err != nil {
			return err
		}
		log.Debugf("Loaded %d files", n)
	}

	watcher, err := cli.NewWatcher(ws, time.Duration(cfg.CLI.SettleDelayMs)*time.Millisecond)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	log.SetReportTimestamp(false)
	return cli.NewInputHandler(provider, ws, cfg.CLI.DefaultLimit).Start()
}

func printVersion() {
	out := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	out.SetStyles(styles)

	out.Print("")
	out.Print("[ SubServe ] Live subsequence suggestions from your open buffers")
	out.Print("", "version", Version)
	out.Print("")
	out.Print("use -h or --help to see available options")
	out.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(configPath string) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("===========")
	println(" SubServe ")
	println("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Infof("config: ( %s )", config.GetActiveConfigPath(configPath))
	log.Info("status: ready")
	println("===========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
