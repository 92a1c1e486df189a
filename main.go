// deck-ticker renders live market prices as badges on a button surface.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pawish/deck-ticker/app"
	"github.com/pawish/deck-ticker/ops"
)

var (
	// version is injected during the build process.
	version = "v0.0.0"

	// buildString is injected during the build process with build time and git info.
	buildString = "dev build"
)

func initLogger() (*slog.Logger, *ops.Buffer) {
	// Default to INFO level, can be overridden by LOG_LEVEL env var.
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	logBuffer := ops.NewBuffer(500)
	inner := slog.NewTextHandler(os.Stderr, opts)
	capture := ops.NewCaptureHandler(inner, logBuffer)
	return slog.New(capture), logBuffer
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("deck-ticker %s\n", version)
		fmt.Printf("Build: %s\n", buildString)
		os.Exit(0)
	}

	logger, logBuffer := initLogger()

	application := app.NewApp(logger)
	application.SetLogBuffer(logBuffer)

	if err := application.LoadConfig(); err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	application.SetVersion(version)

	logger.Info("Starting deck-ticker...", "version", version, "build", buildString)
	if err := application.RunServer(); err != nil {
		logger.Error("Plugin exited with error", "error", err)
		os.Exit(1)
	}
}
