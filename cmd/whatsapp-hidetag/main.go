// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command whatsapp-hidetag keeps a WhatsApp account linked as a companion
// device and edits the account's own emoji-bearing group messages so that
// they mention every member of the group.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	flag "maunium.net/go/mauflag"

	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag"
	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag/termui"
	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag/waconn"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath         = flag.MakeFull("c", "config", "The path to your config file.", "config.yaml").String()
	dontSaveConfig     = flag.MakeFull("n", "no-update", "Don't save updated config to disk.", "false").Bool()
	writeExampleConfig = flag.MakeFull("e", "generate-example-config", "Save the example config to the config path and quit.", "false").Bool()
	noColor            = flag.Make().LongKey("no-color").Usage("Disable coloured terminal output.").Default("false").Bool()
	version            = flag.MakeFull("v", "version", "View version and quit.", "false").Bool()
	wantHelp, _        = flag.MakeHelpFlag()
)

const (
	exitOK = iota
	exitUsage
	exitConfig
	exitStore
	exitStopped
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.SetHelpTitles(
		"whatsapp-hidetag - mention every group member with your own emoji messages.",
		"whatsapp-hidetag [-hnev] [-c <path>]",
	)
	if err := flag.Parse(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		return exitUsage
	} else if *wantHelp {
		flag.PrintHelp()
		return exitOK
	} else if *version {
		fmt.Printf("whatsapp-hidetag %s (commit %s, built %s)\n", Tag, Commit, BuildTime)
		return exitOK
	} else if *writeExampleConfig {
		return generateExampleConfig(*configPath)
	}

	cfg, err := hidetag.LoadConfig(*configPath, !*dontSaveConfig)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		return exitConfig
	}
	logger, err := cfg.Logging.Compile()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		return exitConfig
	}
	log := *logger
	log.Info().
		Str("version", Tag).
		Str("commit", Commit).
		Str("built_at", BuildTime).
		Msg("Starting whatsapp-hidetag")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waconn.SetDeviceName(cfg.WhatsApp.OSName)
	container, err := waconn.OpenContainer(ctx, cfg.Database.Type, cfg.Database.URI, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open device store")
		_, _ = fmt.Fprintln(os.Stderr, err)
		return exitStore
	}

	metrics, shutdownMetrics := startMetrics(cfg.Metrics, log)
	defer shutdownMetrics()

	console := termui.NewConsole(os.Stdout, Tag, *noColor)
	console.Banner()

	dispatcher := hidetag.NewDispatcher(log, console, metrics)
	dispatcher.Timeout = cfg.Rewrite.Timeout
	dispatcher.Describe = cfg.FormatReport

	manager := hidetag.NewManager(hidetag.ManagerParams{
		Transport:  waconn.NewTransport(log),
		Store:      waconn.NewDeviceStore(container, log),
		Status:     console,
		Policy:     cfg.ReconnectPolicy(),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Log:        log,
	})
	err = manager.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("Shutting down")
		return exitOK
	}
	log.Error().Err(err).Msg("Session manager stopped")
	return exitStopped
}

func generateExampleConfig(path string) int {
	if path == "-" {
		fmt.Print(hidetag.ExampleConfig)
		return exitOK
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, path, "already exists, please remove it if you want to generate a new example")
		return exitConfig
	}
	if err := os.WriteFile(path, []byte(hidetag.ExampleConfig), 0o600); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Failed to write example config:", err)
		return exitConfig
	}
	fmt.Println("Wrote example config to", path)
	return exitOK
}

// startMetrics serves the Prometheus endpoint when enabled. The returned
// function stops the server.
func startMetrics(cfg hidetag.MetricsConfig, log zerolog.Logger) (*hidetag.Metrics, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := hidetag.NewMetrics(reg)
	srv := hidetag.NewMetricsServer(cfg.Listen, reg)
	go func() {
		log.Info().Str("listen", cfg.Listen).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return metrics, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
