package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	authUsecase "github.com/allisson/mediaportal/internal/auth/usecase"
)

// RunCleanSessions deletes login sessions that have outlived the configured
// session duration. Expired sessions are already invisible to lookups, so
// this only reclaims storage. Supports dry-run mode to preview the deletion
// count and both text/JSON output formats.
func RunCleanSessions(
	ctx context.Context,
	sessionUseCase authUsecase.SessionUseCase,
	logger *slog.Logger,
	out io.Writer,
	dryRun bool,
	format string,
) error {
	logger.Info("cleaning expired sessions",
		slog.Bool("dry_run", dryRun),
	)

	count, err := sessionUseCase.CleanupExpired(ctx, dryRun)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}

	if format == "json" {
		outputCleanSessionsJSON(out, count, dryRun)
	} else {
		outputCleanSessionsText(out, count, dryRun)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Bool("dry_run", dryRun),
	)

	return nil
}

// outputCleanSessionsText outputs the result in human-readable text format.
func outputCleanSessionsText(out io.Writer, count int64, dryRun bool) {
	if dryRun {
		fmt.Fprintf(out, "Dry-run mode: Would delete %d expired session(s)\n", count)
	} else {
		fmt.Fprintf(out, "Successfully deleted %d expired session(s)\n", count)
	}
}

// outputCleanSessionsJSON outputs the result in JSON format for machine consumption.
func outputCleanSessionsJSON(out io.Writer, count int64, dryRun bool) {
	result := map[string]interface{}{
		"count":   count,
		"dry_run": dryRun,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(out, string(jsonBytes))
}
