// bpfd multiplexes XDP programs onto shared per-interface dispatchers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frobware/go-bpfd/config"
	"github.com/frobware/go-bpfd/lock"
	"github.com/frobware/go-bpfd/logging"
	"github.com/frobware/go-bpfd/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bpfd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("bpfd", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "path to the config file")
	logSpec := fs.String("log", "", "log spec, e.g. \"info\" or \"info,manager=debug\" (overrides "+logging.EnvVar+" and the config file)")
	logFormat := fs.String("log-format", "", "log output format: text or json")
	runtimeDir := fs.String("runtime-dir", "", "runtime directory root (overrides the config file)")
	bytecodePath := fs.String("dispatcher-bytecode", "", "path to the compiled dispatcher object (overrides the config file)")
	grpcAddress := fs.String("grpc-address", "", "TCP listen address in addition to the unix socket (overrides the config file)")
	csiSupport := fs.Bool("csi-support", false, "enable the CSI map-export driver")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// CLI flags override both the environment and the config file.
	if *runtimeDir != "" {
		cfg.Runtime.Dir = *runtimeDir
	}
	if *bytecodePath != "" {
		cfg.Dispatcher.BytecodePath = *bytecodePath
	}
	if *grpcAddress != "" {
		cfg.GRPC.Address = *grpcAddress
	}
	if *csiSupport {
		cfg.CSI.Enabled = true
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		CLISpec:    *logSpec,
		EnvSpec:    os.Getenv(logging.EnvVar),
		ConfigSpec: cfg.Logging.Level,
		Format:     format,
	})
	if err != nil {
		return err
	}

	dirs, err := config.NewRuntimeDirs(cfg.Runtime.Dir)
	if err != nil {
		return fmt.Errorf("runtime dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The lock file lives in the runtime root, which may not exist
	// on first run.
	if err := os.MkdirAll(dirs.Base(), 0o755); err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}

	lk, err := lock.Acquire(ctx, dirs.LockPath())
	if err != nil {
		return err
	}
	defer lk.Close()

	logger.Info("starting bpfd",
		"runtimeDir", dirs.Base(),
		"config", *configPath,
		"csi", cfg.CSI.Enabled,
	)

	return server.Run(ctx, server.RunConfig{
		Dirs:   dirs,
		Config: cfg,
		Logger: logger,
	})
}
