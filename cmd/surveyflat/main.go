package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"surveyflat/cmd/surveyflat/commands"
	"surveyflat/lib/telemetry"
	"surveyflat/lib/util/serviceutil"
	"time"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "surveyflat")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to setup telemetry, continuing without it", "err", err)
	}

	code := commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	err = tel.Shutdown(shutdownCtx)
	cancel()
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
	os.Exit(code)
}
