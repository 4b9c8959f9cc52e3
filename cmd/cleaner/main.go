// Command cleaner runs the fuel transaction cleaning pipeline once over
// INPUT_PATH and writes the outputs to OUTPUT_DIR.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/fuelclean/internal/application"
	"github.com/JonMunkholm/fuelclean/internal/config"
	"github.com/JonMunkholm/fuelclean/internal/csvio"
	"github.com/JonMunkholm/fuelclean/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := application.New(ctx, cfg, false)
	if err != nil {
		slog.Error("failed to set up pipeline", "error", err)
		return 1
	}
	defer app.Close()

	input, err := csvio.ReadFile(cfg.Pipeline.InputPath, csvio.ReadOptions{})
	if err != nil {
		slog.Error("failed to read input", "path", cfg.Pipeline.InputPath, "error", err)
		return 1
	}

	res, err := app.Pipeline.Run(ctx, input)
	if res != nil {
		if werr := res.Summary.WriteText(os.Stdout); werr != nil {
			slog.Error("failed to write report", "error", werr)
		}
	}
	if err != nil {
		slog.Error("cleaning run failed", "error", err)
		return 1
	}
	if res.Summary.Interrupted {
		slog.Warn("run cancelled, outputs are incomplete", "dir", cfg.Pipeline.OutputDir)
		return 1
	}

	slog.Info("outputs written", "dir", cfg.Pipeline.OutputDir)
	return 0
}
