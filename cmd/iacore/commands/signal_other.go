//go:build !unix

package commands

import (
	"context"

	"github.com/slok/iacore/internal/log"
)

// handlePauseSignals waits for the context, there are no pause signals on this platform.
func handlePauseSignals(ctx context.Context, _ pauser, _ log.Logger) error {
	<-ctx.Done()
	return nil
}
