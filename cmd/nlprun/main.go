package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/textlab/nlprun/internal/jobs"
	"github.com/textlab/nlprun/internal/log"
	"github.com/textlab/nlprun/internal/model"
	"github.com/textlab/nlprun/internal/pipe"
	"github.com/textlab/nlprun/internal/pool"
)

const configName = "nlprun.yaml"

var (
	userConfigPath string // /default/config/path/nlprun on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	settings       = model.NewViper()

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		d = "."
	}
	userConfigPath = filepath.Join(d, "nlprun")
}

// exitCode ends the process with the given status without logging an error.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

func main() {
	// root flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is "+configName+" in current directory or in "+userConfigPath)
	flags.BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	flags.Bool("silent", false, "never echo tool output to the console")
	if err := settings.BindPFlag("silent", flags.Lookup("silent")); err != nil {
		panic(err)
	}

	// never print messages
	rootCmd.SilenceErrors = true

	// parse the config, setup logging
	rootCmd.PersistentPreRunE = initNlprun

	rootCmd.AddCommand(pipeCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(workerCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	var code exitCode
	switch {
	case err == nil:
	case errors.As(err, &code):
		os.Exit(int(code))
	default:
		slog.Error("nlprun failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "nlprun",
	Short:        "Runs NLP command line tools over pipes and worker pools",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version of nlprun",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("nlprun: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config: %s\n", configPath)
		}
		fmt.Printf("nlprun: %s\n", info.Main.Version)
		fmt.Printf("go:     %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit: %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:   %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:  %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

var workerCmd = &cobra.Command{
	Use:    "_worker <job>",
	Short:  "internal command",
	Args:   cobra.ExactArgs(1),
	RunE:   doWorker,
	Hidden: true,
}

func doWorker(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("nlprun",
		slog.String("cmd", "_worker"),
		slog.Int("pid", os.Getpid()),
		slog.String("job_id", os.Getenv(pool.EnvJobID)),
	)
	ctx = log.ContextAttrs(ctx, attrs)
	return pool.Serve(ctx, jobs.Registry(config), args[0], os.Stdin, os.Stdout, os.Stderr)
}

func initNlprun(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv(model.EnvPrefix + "_CONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, configName)
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	cfg, err := model.Load(settings, configPath)
	if err != nil {
		var cerr *model.ConfigError
		if errors.As(err, &cerr) {
			for _, d := range cerr.Details {
				slog.Error("invalid configuration", d.Attr("detail"))
			}
		}
		return fmt.Errorf("parsing config: %w", err)
	}
	config = *cfg

	// --verbose has a precedence over config file
	if flagVerbose {
		config.Log.Level = "debug"
	}

	// initialize logging
	level, err := log.ParseLevel(config.Log.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(log.New(log.Options{
		Level:  level,
		Format: config.Log.Format,
		Writer: os.Stderr,
	}))

	slog.Debug("nlprun run", "configPath", configPath)
	slog.Debug("nlprun run", "config", config)
	return nil
}

// commandContext adds the invocation attributes of cmd to its context.
func commandContext(cmd *cobra.Command) context.Context {
	attrs := slog.Group("nlprun",
		slog.String("cmd", cmd.Name()),
		slog.Int("pid", os.Getpid()),
		slog.String("invocation", uuid.NewString()),
	)
	return log.ContextAttrs(cmd.Context(), attrs)
}

func newRunner() *pipe.Runner {
	return pipe.New(pipe.Config{
		Shell:  config.Shell,
		Silent: config.Silent,
		Logger: slog.Default(),
	})
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
