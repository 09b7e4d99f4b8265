package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/layered-config/internal/application"
	"github.com/eugenenazirov/layered-config/internal/logging"
	"github.com/eugenenazirov/layered-config/internal/settings"
	"github.com/eugenenazirov/layered-config/layered"
)

var signalNotify = signal.Notify

var errKeyNotFound = errors.New("key not found")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "layeredconfig: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	kingpinApp := kingpin.New("layeredconfig", "Layered YAML configuration - merges YAML files, later files overriding earlier ones")
	kingpinApp.UsageWriter(stderr)
	kingpinApp.ErrorWriter(stderr)
	kingpinApp.Terminate(nil)
	flags := bindFlags(kingpinApp)

	filesCmd := kingpinApp.Command("files", "Print the configuration files in load order")
	filesArgs := filesCmd.Arg("files", "YAML files, lowest precedence first").Required().Strings()

	getCmd := kingpinApp.Command("get", "Print the merged value at a key path")
	getKey := getCmd.Arg("key", "Key path, e.g. server.tls.cert").Required().String()
	getArgs := getCmd.Arg("files", "YAML files, lowest precedence first").Required().Strings()

	dumpCmd := kingpinApp.Command("dump", "Print the merged configuration as YAML")
	dumpArgs := dumpCmd.Arg("files", "YAML files, lowest precedence first").Required().Strings()

	serveCmd := kingpinApp.Command("serve", "Serve the merged configuration over HTTP")
	serveArgs := serveCmd.Arg("files", "YAML files, lowest precedence first").Required().Strings()

	command, err := kingpinApp.Parse(args)
	if err != nil {
		return err
	}

	s, err := settings.Load(flags.overrides(), flags.settingsFiles...)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	logger, err := logging.New(s.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	switch command {
	case filesCmd.FullCommand():
		return printFiles(stdout, s, *filesArgs, logger)
	case getCmd.FullCommand():
		return printValue(stdout, s, *getKey, *getArgs, logger)
	case dumpCmd.FullCommand():
		return dump(stdout, s, *dumpArgs, logger)
	case serveCmd.FullCommand():
		return serve(s, *serveArgs, logger)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printFiles(w io.Writer, s settings.Settings, files []string, logger *zap.Logger) error {
	cfg, err := application.LoadConfig(s, files, logger)
	if err != nil {
		return err
	}
	for _, file := range cfg.Files() {
		if _, err := fmt.Fprintln(w, file); err != nil {
			return err
		}
	}
	return nil
}

func printValue(w io.Writer, s settings.Settings, key string, files []string, logger *zap.Logger) error {
	cfg, err := application.LoadConfig(s, files, logger)
	if err != nil {
		return err
	}

	value, ok := cfg.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", errKeyNotFound, key)
	}
	if layered.KindOf(value) == layered.KindScalar {
		_, err := fmt.Fprintln(w, value)
		return err
	}
	return writeYAML(w, value)
}

func dump(w io.Writer, s settings.Settings, files []string, logger *zap.Logger) error {
	cfg, err := application.LoadConfig(s, files, logger)
	if err != nil {
		return err
	}
	return writeYAML(w, cfg.All())
}

func writeYAML(w io.Writer, value any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return fmt.Errorf("encode YAML: %w", err)
	}
	return enc.Close()
}

func serve(s settings.Settings, files []string, logger *zap.Logger) error {
	app, err := application.New(s, files, logger)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return err
	}

	ctx, cancel := signalContext(context.Background(), logger)
	defer cancel()

	return app.Run(ctx)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-quit:
			logger.Info("signal received", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(quit)
	}()

	return ctx, cancel
}
