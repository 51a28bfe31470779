// chamois-host drives a Chamois multi-material unit attached to a 3D
// printer. It connects to the MMU over TCP, registers the tool-change
// commands (T0..Tn, CHAMOIS_*) on an operator console read from stdin,
// and serves status and metrics over HTTP.
//
// Usage:
//
//	chamois-host -config ~/printer.cfg [options]
//
// Options:
//
//	-config string  Printer configuration file (required)
//	-api string     Status API listen address (default ":7125")
//	-debug          Enable debug logging
//	-no-home        Skip homing the MMU on startup
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"chamois-host/pkg/api"
	"chamois-host/pkg/chamois"
	"chamois-host/pkg/config"
	"chamois-host/pkg/gcode"
)

func main() {
	configFile := flag.String("config", "", "Printer configuration file (required)")
	apiAddr := flag.String("api", ":7125", "Status API listen address")
	debug := flag.Bool("debug", false, "Enable debug logging")
	noHome := flag.Bool("no-home", false, "Skip homing the MMU on startup")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		flag.Usage()
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if *debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	sec, err := cfg.GetSection("chamois")
	if err != nil {
		logger.Fatal().Err(err).Msg("missing [chamois] section")
	}
	mmuCfg, linkCfg, err := chamois.LoadConfig(sec)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid [chamois] configuration")
	}
	for _, opt := range sec.UnusedOptions() {
		logger.Warn().Str("option", opt).Msg("unused option in [chamois]")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := chamois.NewMetrics(registry)

	link := chamois.NewTCPLink(linkCfg, logger)
	hooks := chamois.NewHookRegistry()
	controller := chamois.NewController(mmuCfg, link, hooks, metrics, logger)

	dispatcher := gcode.NewDispatcher()
	dispatcher.SetResponder(func(msg string) { fmt.Println("// " + msg) })

	// Phase macros defined in config ([chamois_macro <name>] sections
	// with a gcode option) become console commands; the hook registry
	// resolves the CHAMOIS_<PHASE> names against them.
	for _, macroSec := range cfg.PrefixSections("chamois_macro ") {
		registerMacro(dispatcher, macroSec, logger)
	}
	chamois.BindMacroHooks(dispatcher, hooks)
	chamois.RegisterCommands(dispatcher, controller)

	logger.Info().Str("address", linkCfg.Address).Int("slots", mmuCfg.Slots).
		Msg("chamois-host starting")

	if !*noHome {
		if err := controller.Home(); err != nil {
			logger.Fatal().Err(err).Msg("initial homing failed")
		}
	}

	server := api.New(api.Config{Addr: *apiAddr, PushInterval: time.Second}, controller, registry, logger)
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start API server")
	}

	// Operator console: one command per line on stdin.
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := dispatcher.Run(scanner.Text()); err != nil {
				fmt.Println("!! " + err.Error())
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-done:
		logger.Info().Msg("console closed, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Stop(ctx)
	link.Close()
}

// registerMacro turns a [chamois_macro <name>] section into a console
// command running its gcode lines.
func registerMacro(d *gcode.Dispatcher, sec *config.Section, logger zerolog.Logger) {
	name := sec.Name()[len("chamois_macro "):]
	script, err := sec.Get("gcode", "")
	if err != nil || script == "" {
		logger.Warn().Str("macro", name).Msg("macro section has no gcode option")
		return
	}
	d.Register(name, "User macro "+name, func(cmd *gcode.Command) error {
		return d.RunScript(script)
	})
	logger.Debug().Str("macro", name).Msg("registered macro")
}
