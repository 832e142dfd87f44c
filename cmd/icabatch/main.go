// icabatch runs batches of sequencing samples through the ICA platform.
package main

import (
	"errors"
	"log/slog"
	"os"

	"icabatch/internal/cmd"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, cmd.ErrBatchFailed) {
			slog.Error("Command failed", "error", err)
		}
		os.Exit(1)
	}
}
