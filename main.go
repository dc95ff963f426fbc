// ABOUTME: Entry point for the InkClock firmware core
// ABOUTME: Parses CLI flags, wires simulated hardware and starts the orchestrator
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/InkClock-Project/inkclock-go/internal/app"
	"github.com/InkClock-Project/inkclock-go/internal/battery"
	"github.com/InkClock-Project/inkclock-go/internal/config"
	"github.com/InkClock-Project/inkclock-go/internal/display"
	"github.com/InkClock-Project/inkclock-go/internal/monitor"
	"github.com/InkClock-Project/inkclock-go/internal/rtc"
	"github.com/InkClock-Project/inkclock-go/internal/store"
	"github.com/InkClock-Project/inkclock-go/internal/ui"
	"github.com/InkClock-Project/inkclock-go/internal/version"
	"github.com/InkClock-Project/inkclock-go/internal/watchdog"
	"github.com/InkClock-Project/inkclock-go/internal/wifi"
)

var (
	configPath = flag.String("config", "", "Path to YAML config (default: built-in defaults)")
	logFile    = flag.String("log-file", "inkclock.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable the panel TUI, stream logs instead")
	splashMs   = flag.Int("splash-ms", 5000, "Startup splash duration in milliseconds")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	cfg := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	st, err := store.NewFileStore(cfg.StateDir)
	if err != nil {
		log.Fatalf("state store: %v", err)
	}

	// Simulated hardware: the desktop build has no I2C bus or radio. On
	// device builds these are swapped for rtc.DS3231 and a real Radio.
	sim := rtc.NewSim()
	radio := wifi.NewSimRadio()
	for _, n := range cfg.Networks {
		radio.Passwords[n.SSID] = n.Password
	}

	wdt := watchdog.New(
		time.Duration(float64(cfg.Display.RefreshMs)*2.5)*time.Millisecond,
		0.8,
		func(label string) {
			log.Fatalf("watchdog expired, last feed %q", label)
		},
	)
	guard := rtc.NewGuard(sim, nil, wdt.Feed)

	var gauge *battery.Gauge
	if cfg.Battery.Enabled {
		gauge = battery.NewGauge(batterySim{}, cfg.Battery.WarningV)
	}

	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon = monitor.New(cfg.Monitor.Addr)
		if err := mon.Start(); err != nil {
			log.Printf("monitor: %v", err)
		}
	}

	// Panel setup
	var tuiProg *tea.Program
	var buttons *ui.ButtonControl
	var disp display.Display = display.LogDisplay{}
	if useTUI {
		buttons = ui.NewButtonControl()
		tuiProg, err = ui.Run(buttons)
		if err != nil {
			log.Fatalf("failed to start TUI: %v", err)
		}
		go tuiProg.Run()
		disp = ui.NewPanel(tuiProg)
	}

	deps := app.Deps{
		Config:   cfg,
		Store:    st,
		Backup:   guard,
		Radio:    radio,
		Display:  disp,
		Battery:  gauge,
		Monitor:  mon,
		Watchdog: wdt,
	}
	if buttons != nil {
		deps.Buttons = buttons.Presses
	}
	clock := app.New(deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Shutdown signal received")
		cancel()
	}()

	if *splashMs > 0 {
		time.Sleep(time.Duration(*splashMs) * time.Millisecond)
	}

	wdt.Start()
	if err := clock.Boot(ctx); err != nil {
		clock.Close()
		if mon != nil {
			mon.Stop()
		}
		log.Fatalf("boot: %v", err)
	}

	if err := clock.Run(ctx); err != nil {
		log.Printf("run: %v", err)
	}

	clock.Close()
	if mon != nil {
		mon.Stop()
	}
	log.Printf("Clock stopped")
}

// batterySim feeds the gauge a healthy fixed cell voltage on desktop builds.
type batterySim struct{}

func (batterySim) ReadVoltage() (float64, error) { return 3.9, nil }
