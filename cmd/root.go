package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vigil-cam/vigil/cmd/analyze"
	"github.com/vigil-cam/vigil/cmd/notify"
	"github.com/vigil-cam/vigil/cmd/version"
	"github.com/vigil-cam/vigil/internal/buildinfo"
	"github.com/vigil-cam/vigil/internal/conf"
	"github.com/vigil-cam/vigil/internal/errors"
	"github.com/vigil-cam/vigil/internal/logging"
	"github.com/vigil-cam/vigil/internal/notification"
	"github.com/vigil-cam/vigil/internal/telemetry"
)

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates the root command. settings is filled from the config
// file, environment and flags before any subcommand runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "vigil",
		Short:         "Vigil violence detection and alerting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configPath); err != nil {
		logging.Error("failed to set up flags", "error", err)
	}

	analyzeCmd := analyze.Command(settings)
	notifyCmd := notify.Command(settings)
	versionCmd := version.Command(build)
	rootCmd.AddCommand(analyzeCmd, notifyCmd, versionCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// Version works without a config file
		if cmd.Name() == versionCmd.Name() {
			return nil
		}

		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		*settings = *loaded
		return initialize(settings, build)
	}

	rootCmd.PersistentPostRun = func(cmd *cobra.Command, _ []string) {
		if cmd.Name() == versionCmd.Name() {
			return
		}
		telemetry.Shutdown(telemetryFlushTimeout)
		if err := notification.CloseFileLogger(); err != nil {
			logging.Warn("failed to close alert log", "error", err)
		}
	}

	return rootCmd
}

// initialize applies the loaded settings to the process wide services.
func initialize(settings *conf.Settings, build *buildinfo.Context) error {
	if settings.Debug {
		logging.SetLevel(logging.LevelTrace)
	}

	if l := settings.Main.Log; l.Enabled {
		err := notification.InitFileLogger(l.Path, logging.ParseLevel(l.Level), logging.FileConfig{
			Rotation: l.Rotation,
			MaxSize:  l.MaxSize,
		})
		if err != nil {
			return errors.New(err).
				Component("cmd").
				Category(errors.CategoryFileIO).
				FileContext(l.Path, 0).
				Context("operation", "init_alert_log").
				Build()
		}
	}

	if err := telemetry.InitSentry(settings, build.Version()); err != nil {
		// Telemetry is optional, keep running without it
		logging.Warn("error telemetry disabled", "error", err)
	}
	return nil
}

// setupFlags defines the global flags and binds them to their config keys.
func setupFlags(rootCmd *cobra.Command, configPath *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configPath, "config", "c", "", "Path to the config file")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.Int("threshold", 0, "Consecutive violent frames needed to confirm an event")
	flags.String("evidence", "", "Directory for evidence clips and key frames")
	flags.String("classifier", "", "Base URL of the inference service")
	flags.String("location", "", "Static location reported in alerts, skips the lookup")

	bindings := map[string]string{
		"debug":                      "debug",
		"detection.confirmthreshold": "threshold",
		"evidence.path":              "evidence",
		"classifier.url":             "classifier",
		"location.override":          "location",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return errors.New(err).
				Component("cmd").
				Category(errors.CategoryConfiguration).
				Context("flag", flag).
				Build()
		}
	}
	return nil
}
