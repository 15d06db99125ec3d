// cmd/pvagent/main.go

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/pvagent/pkg/agent"
	"github.com/windowsadmins/pvagent/pkg/config"
	"github.com/windowsadmins/pvagent/pkg/installer"
	"github.com/windowsadmins/pvagent/pkg/logging"
	"github.com/windowsadmins/pvagent/pkg/orchestrator"
	"github.com/windowsadmins/pvagent/pkg/osinfo"
	"github.com/windowsadmins/pvagent/pkg/state"
	"github.com/windowsadmins/pvagent/pkg/version"
)

var logger *logging.Logger

func main() {
	// Define command-line flags.
	cleanOnly := pflag.Bool("clean", false, "Remove the legacy driver stack only; skip installation.")
	installOnly := pflag.Bool("install", false, "Install the driver bundles only; skip cleanup.")
	loop := pflag.Bool("loop", false, "Keep cleaning past the reboot gate in this run.")
	reboot := pflag.Bool("reboot", false, "Schedule a restart when the run needs one.")
	showState := pflag.Bool("show-state", false, "Print the recorded milestones and exit.")
	showConfig := pflag.Bool("show-config", false, "Display the current configuration and exit.")
	writeConfig := pflag.Bool("write-config", false, "Write the effective configuration to the config path and exit.")
	versionFlag := pflag.Bool("version", false, "Print the version and exit (with -v, full build details).")
	configPath := pflag.String("config", config.ConfigPath, "Path to the configuration file.")

	// Count the number of -v flags.
	var verbosity int
	pflag.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (e.g. -v, -vv, -vvv)")
	pflag.Parse()

	if *versionFlag {
		printVersion(os.Stdout, verbosity > 0)
		os.Exit(0)
	}

	if *cleanOnly && *installOnly {
		fmt.Fprintln(os.Stderr, "--clean and --install are mutually exclusive")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.LogLevel = logging.LevelForVerbosity(verbosity, cfg.LogLevel)
	if *loop {
		cfg.SkipRebootGate = true
	}

	if *showConfig {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Current configuration:\n%s\n", data)
		os.Exit(0)
	}

	if *writeConfig {
		if err := config.SaveConfig(cfg, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write configuration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Configuration written to %s\n", *configPath)
		os.Exit(0)
	}

	logger = logging.New(verbosity > 0)
	if err := logging.Init(cfg); err != nil {
		logger.Fatal("Error initializing logger: %v", err)
	}

	code := func() int {
		defer logging.CloseLogger()

		store, err := openStore(cfg)
		if err != nil {
			logger.Error("Failed to open state store: %v", err)
			return 1
		}
		defer store.Close()

		if *showState {
			return printState(store)
		}

		if err := checkAdmin(); err != nil {
			logger.Error("Administrative access required: %v", err)
			return 1
		}

		// Handle system signals for graceful shutdown. The agent re-checks the
		// context between cleaner calls, and milestones already written survive.
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer cancel()

		return run(ctx, cfg, store, *cleanOnly, *installOnly, *reboot)
	}()
	os.Exit(code)
}

// run wires the agent for this machine and maps the outcome to an exit code.
func run(ctx context.Context, cfg *config.Configuration, store state.Store, cleanOnly, installOnly, reboot bool) int {
	sys, driverDir, err := newSystem(cfg, store)
	if err != nil {
		logger.Error("Failed to inspect system: %v", err)
		return 1
	}
	logging.Info("Agent starting",
		"version", version.Version().Version,
		"state_backend", cfg.StateBackend,
		"log_dir", logging.GetCurrentLogDir())
	facts := osinfo.Summarize(sys.OS)
	logging.Debug("Operating system", "version", facts.Version, "64bit", facts.Arch64, "server", facts.Server, "server_2008", facts.Server08)

	cleaner := orchestrator.NewCleaner(sys, orchestrator.CleanOptions{
		Passes:       cfg.CleanupPasses,
		MSIAttempts:  cfg.MSIAttempts,
		ForceRemoval: cfg.ForceDeviceRemoval,
		DriverDir:    driverDir,
	})
	inst := orchestrator.NewInstaller(store, sys.Packages, sys.OS, cfg.DriverRoot)

	a := agent.New(cleaner, inst, agent.Options{
		SkipCleanup:    installOnly,
		SkipInstall:    cleanOnly,
		SkipRebootGate: cfg.SkipRebootGate,
	})
	outcome, err := a.Run(ctx)
	if err != nil {
		logger.Error("Run failed: %v", err)
		logging.Error("Run failed", "error", err)
		return 1
	}
	logging.Info("Run finished", "outcome", outcome.String())

	if outcome == agent.RebootRequired {
		logger.Warning("A restart is required to continue driver cleanup.")
		if reboot {
			delay := time.Duration(cfg.RebootDelaySeconds) * time.Second
			r := agent.NewShutdownRebooter(installer.Exec{})
			if err := r.Reboot(ctx, delay, "PV driver cleanup"); err != nil {
				logger.Error("Failed to schedule restart: %v", err)
				return 1
			}
			logger.Printf("Restart scheduled in %s", delay)
		}
	} else {
		logger.Success("PV driver stack is up to date.")
	}
	return outcome.ExitCode()
}

func printVersion(w io.Writer, full bool) {
	if full {
		version.FprintFull(w)
		return
	}
	version.Fprint(w)
}

func printState(store state.Store) int {
	snap, err := state.Snapshot(store)
	if err != nil {
		logger.Error("Failed to read state: %v", err)
		return 1
	}
	data, err := yaml.Marshal(state.NewReport(snap))
	if err != nil {
		logger.Error("Failed to render state: %v", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}
