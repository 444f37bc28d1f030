package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mbbridge/pkg/config"
	"mbbridge/pkg/engine"
	bridgeerrors "mbbridge/pkg/errors"
	"mbbridge/pkg/logger"
)

const version = "1.0.0"

func showUsage(execName string) {
	fmt.Printf("usage: %s -c<file-base> -d -h\n", execName)
	fmt.Println("  c = configuration file base name (.yaml is appended automatically)")
	fmt.Println("  d = enable debug logging")
	fmt.Println("  h = show this help")
}

// parseArguments implements SPEC_FULL.md §6's CLI: -c<file-base>, -d, -h,
// mirroring the switch-on-second-character parser of
// original_source/mbbridge.cpp's parseArguments().
func parseArguments(args []string) (cfgBase string, debug bool, ok bool) {
	cfgBase = "mbbridge"
	ok = true
	for _, arg := range args {
		if len(arg) < 2 || arg[0] != '-' {
			continue
		}
		switch arg[1] {
		case 'c':
			cfgBase = arg[2:]
		case 'd':
			debug = true
		case 'h':
			ok = false
		default:
			logger.LogWarn("unknown parameter: %s", arg)
			ok = false
		}
	}
	return cfgBase, debug, ok
}

func main() {
	execName := os.Args[0]
	cfgBase, debug, ok := parseArguments(os.Args[1:])
	if !ok {
		showUsage(execName)
		os.Exit(1)
	}

	errHandler := bridgeerrors.NewHandler(nil)

	cfgPath := cfgBase + ".yaml"
	cfg, err := config.Load(cfgPath)
	if err != nil {
		errHandler.Handle(context.Background(), bridgeerrors.NewConfigError("load", err, cfgPath))
		os.Exit(1)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	logger.GlobalLogging = &cfg.Logging

	logger.LogStartup("%s version %s, pid %d ppid %d", execName, version, os.Getpid(), os.Getppid())

	e, err := engine.New(cfg, version)
	if err != nil {
		errHandler.Handle(context.Background(), bridgeerrors.NewConfigError("engine init", err, ""))
		os.Exit(1)
	}

	// SIGINT is always honored. SIGTERM is only honored when running as a
	// daemon (parent pid 1, i.e. started by init/systemd) — on an
	// interactive shell SIGTERM stays a last-resort kill regardless of any
	// programming error, per original_source/mbbridge.cpp's main().
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)
	if os.Getppid() == 1 {
		signal.Notify(sigChan, syscall.SIGTERM)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sigChan
		logger.LogInfo("stop signal received")
		cancel()
	}()

	if err := e.Run(ctx); err != nil {
		errHandler.Handle(context.Background(), bridgeerrors.NewMQTTError("run", err, cfg.MQTT.Broker, ""))
		e.Shutdown(context.Background())
		os.Exit(1)
	}

	e.Shutdown(context.Background())
	logger.LogInfo("exiting")
}
