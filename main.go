package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vigil-cam/vigil/cmd"
	"github.com/vigil-cam/vigil/internal/buildinfo"
	"github.com/vigil-cam/vigil/internal/conf"
	"github.com/vigil-cam/vigil/internal/logging"
)

// Set with -ldflags at build time.
var (
	version   string
	buildDate string
	commit    string
)

func main() {
	logging.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings, buildinfo.NewContext(version, buildDate, commit))

	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logging.Error("vigil exited with error", "error", err)
		os.Exit(1)
	}
}
