package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("spacemoused v%s\n", version)
	fmt.Println("SpaceMouse desktop navigation daemon (scroll/zoom emulation, desktop switching, per-app profiles)")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  spacemoused [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that turns 6DOF motion and button events from spacenavd into")
	fmt.Println("  scroll/zoom emulation (uinput) and virtual-desktop actions (KWin via")
	fmt.Println("  the session bus), under runtime-switchable per-application profiles.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Printf("        Profile document path (default %q)\n", defaultConfigPath())
	fmt.Println()
	fmt.Println("  -socket string")
	fmt.Printf("        Control socket path (default %q)\n", defaultSocketPath())
	fmt.Println()
	fmt.Println("  -spnav-socket string")
	fmt.Printf("        spacenavd event socket (default %q, or $SPNAV_SOCKET)\n", spnavSocketPath())
	fmt.Println()
	fmt.Println("  -state-ws-addr string")
	fmt.Println("        Listen address for the websocket state feed, e.g. 127.0.0.1:3124")
	fmt.Println("        (default: disabled)")
	fmt.Println()
	fmt.Println("  -max-raw int")
	fmt.Printf("        Maximum raw axis magnitude the device reports (default %d)\n", defaultMaxRaw)
	fmt.Println()
	fmt.Println("  -watch-config")
	fmt.Println("        Reload automatically when the profile document changes (default true)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version / -help")
	fmt.Println()
	fmt.Println("RUNTIME CONTROL:")
	fmt.Println("  spacemousectl profile <name> | reload | status   (or talk to the socket directly)")
	fmt.Println("  SIGHUP triggers the same deferred reload as the RELOAD command.")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - spacenavd must be running; the daemon exits if it cannot connect.")
	fmt.Println("  - /dev/uinput access is needed for scroll/zoom (group 'input' or a udev rule).")
	fmt.Println("  - Missing uinput or session bus disables that effect category only.")
}

func main() {
	var (
		configPath  = flag.String("config", defaultConfigPath(), "Profile document path")
		socketPath  = flag.String("socket", defaultSocketPath(), "Control socket path")
		spnavPath   = flag.String("spnav-socket", spnavSocketPath(), "spacenavd event socket path")
		stateWSAddr = flag.String("state-ws-addr", "", "Websocket state feed listen address (empty: disabled)")
		maxRaw      = flag.Int("max-raw", defaultMaxRaw, "Maximum raw axis magnitude the device reports")
		watchCfg    = flag.Bool("watch-config", true, "Reload automatically when the profile document changes")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}
	if *maxRaw <= 0 {
		fmt.Fprintln(os.Stderr, "error: -max-raw must be > 0")
		os.Exit(1)
	}

	logLevel, err := parseLogLevel(*logLevelStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := setupLogger(logLevel)

	if err := run(*configPath, *socketPath, *spnavPath, *stateWSAddr, *maxRaw, *watchCfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// run acquires every external resource, wires the daemon together and drives
// the loop. All handles are released via defers, so cleanup runs the same
// way on signal-driven, error and normal exits.
func run(configPath, socketPath, spnavPath, stateWSAddr string, maxRaw int, watchCfg bool, logger *slog.Logger) error {
	store := LoadProfiles(configPath, logger)

	// The device source is the one collaborator the daemon cannot live
	// without.
	device, err := DialSpnav(spnavPath, logger)
	if err != nil {
		return fmt.Errorf("device event source unavailable: %w", err)
	}
	defer device.Close()

	// Output collaborators degrade gracefully: one warning at startup, the
	// corresponding effect category stays off for the process lifetime.
	var emitter ScrollEmitter
	if ui, err := OpenUinput(logger); err != nil {
		logger.Warn("uinput unavailable, scroll/zoom disabled", "error", err)
	} else {
		emitter = ui
		defer ui.Close()
	}

	var desktop DesktopActions
	if kd, err := ConnectDesktopBus(logger); err != nil {
		logger.Warn("session bus unavailable, desktop actions disabled", "error", err)
	} else {
		desktop = kd
		defer kd.Close()
	}

	var control *ControlServer
	if cs, err := NewControlServer(socketPath, logger); err != nil {
		logger.Warn("control socket unavailable, runtime control disabled", "error", err)
	} else {
		control = cs
		defer cs.Close()
	}

	var feed *StateFeed
	if stateWSAddr != "" {
		snap := StateSnapshot{ActiveProfile: store.Active().Name, Profiles: store.Names()}
		if sf, err := StartStateFeed(stateWSAddr, snap, logger); err != nil {
			logger.Warn("state feed unavailable", "error", err)
		} else {
			feed = sf
			defer sf.Close()
		}
	}

	acc := &Accumulator{}
	dispatcher := NewDispatcher(emitter, desktop, acc, maxRaw, logger)

	d, err := newDaemon(configPath, store, acc, dispatcher, device, control, feed, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	if watchCfg {
		if w, err := watchConfig(configPath, d.requestReload, logger); err != nil {
			logger.Warn("config watcher unavailable, reload via SIGHUP/RELOAD only", "error", err)
		} else {
			defer w.Close()
		}
	}

	// Signals only set deferred flags; the loop does the actual work.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		for sig := range sigc {
			if sig == syscall.SIGHUP {
				d.requestReload()
			} else {
				d.requestTerminate()
			}
		}
	}()

	if err := d.run(); err != nil {
		return fmt.Errorf("daemon loop failed: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
