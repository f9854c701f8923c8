package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/hil-labs/wireship/internal/cliconfig"
	"github.com/hil-labs/wireship/internal/command"
	"github.com/hil-labs/wireship/internal/serialport"
	"github.com/hil-labs/wireship/internal/session"
	"github.com/hil-labs/wireship/pkg/log"
)

const helpDescription = `
Decode 64-byte telemetry frames from a serial link and drive the session over
a JSON line protocol on stdin/stdout.

stdout carries only JSON responses; all logging goes to stderr. Send
{"cmd":"start","port":"/dev/ttyUSB0"} to begin streaming, {"cmd":"status"}
for live counters, {"cmd":"export","output":"run.csv"} to dump the captured
frames, {"cmd":"quit"} to exit.

Configuration layers: flags > WIRESHIP_* environment > config file > defaults.
`

var exampleUsage = strings.TrimSpace(`
  wireshipd --port /dev/ttyUSB0
  wireshipd --config $HOME/.wireship/config.toml --log-level debug
  echo '{"cmd":"status"}' | wireshipd
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := log.NewZerologAdapter(os.Stderr, zerolog.InfoLevel)

	root := &cobra.Command{
		Use:     "wireshipd",
		Short:   "Serial telemetry frame decoder and session daemon",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Resolve the config file: --config wins, otherwise the default
			// location if it exists.
			cfgFile := cfgPath
			if cfgFile == "" {
				if p, err := cliconfig.DefaultConfigPath(); err == nil {
					cfgFile = p
				}
			}

			// Flags set explicitly keep precedence over file and env.
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// Env lands before the file and before the base snapshot, with
			// its names pinned in the changed map. The file then fills only
			// the remaining fields, and a reload reapplies it on top of
			// defaults+flags+env, so env values survive file changes.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			for k := range cliconfig.EnvOverrides() {
				changed[k] = true
			}

			base := cfg

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			level, err := cfg.Level()
			if err != nil {
				return err
			}
			logger.SetLevel(level)

			logger.Info("configuration loaded",
				log.String("port", cfg.Port),
				log.Int("baudrate", cfg.Baudrate),
				log.Duration("poll", cfg.PollInterval),
				log.Duration("stop_timeout", cfg.StopTimeout),
				log.String("log_level", cfg.LogLevel),
			)

			return run(cfg, base, changed, cfgFile, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.wireship/config.toml)")
	root.Flags().StringVar(&cfg.Port, "port", cfg.Port, "default serial port for start commands")
	root.Flags().IntVar(&cfg.Baudrate, "baudrate", cfg.Baudrate, "default baud rate for start commands")
	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "serial poll interval when no data is available")
	root.Flags().DurationVar(&cfg.StopTimeout, "stop-timeout", cfg.StopTimeout, "how long stop waits for the reader to finish")
	root.Flags().DurationVar(&cfg.StatusInterval, "status-interval", cfg.StatusInterval, "cadence of unsolicited status lines while streaming")
	root.Flags().IntVar(&cfg.ReadBufBytes, "read-buf", cfg.ReadBufBytes, "serial read buffer size in bytes")
	if err := root.Flags().MarkHidden("read-buf"); err != nil {
		logger.Info("failed to hide read-buf flag", log.Err(err))
	}
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		logger.Error("wireshipd", log.Err(err))
		os.Exit(1)
	}
}

// run wires the daemon together and blocks until the command loop ends or a
// termination signal arrives.
func run(cfg, base cliconfig.Config, changed map[string]bool, cfgFile string, logger *log.ZerologAdapter) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The poll interval doubles as the serial read timeout. It lives behind
	// a mutex so a config reload can adjust it for the next session.
	var pollMu sync.Mutex
	poll := cfg.PollInterval
	open := serialport.Opener(func(name string, baud int) (serialport.ByteSource, error) {
		pollMu.Lock()
		d := poll
		pollMu.Unlock()
		return serialport.NewOpener(d)(name, baud)
	})

	writer := command.NewWriter(os.Stdout)
	ctrl := session.New(sessionConfig(cfg), open, func(st session.Status) {
		writer.Data(st)
	}, logger)
	loop := command.NewLoop(command.Config{
		DefaultPort: cfg.Port,
		DefaultBaud: cfg.Baudrate,
	}, ctrl, writer, logger)

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		// changed already carries the env-named fields, and base carries
		// their values, so reloads preserve env precedence.
		watcher := cliconfig.NewWatcher(cfgFile, base, changed, func(next cliconfig.Config) {
			if level, err := next.Level(); err == nil {
				logger.SetLevel(level)
			}
			ctrl.UpdateTunables(sessionConfig(next))
			pollMu.Lock()
			poll = next.PollInterval
			pollMu.Unlock()
		}, logger)
		go watcher.Run(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(os.Stdin)
	}()

	select {
	case err := <-loopDone:
		return err
	case sig := <-sigCh:
		// Signals behave like a quit command: stop any active session,
		// acknowledge, exit.
		logger.Info("received signal, shutting down", log.String("signal", sig.String()))
		if snap, stopped, err := ctrl.StopIfStreaming(); stopped {
			if err != nil {
				writer.StoppedWithError(err.Error(), snap)
			} else {
				writer.Stopped(snap)
			}
		}
		writer.OK("Goodbye")
		return nil
	}
}

func sessionConfig(cfg cliconfig.Config) session.Config {
	return session.Config{
		PollInterval:   cfg.PollInterval,
		StopTimeout:    cfg.StopTimeout,
		StatusInterval: cfg.StatusInterval,
		ReadBufBytes:   cfg.ReadBufBytes,
	}
}
