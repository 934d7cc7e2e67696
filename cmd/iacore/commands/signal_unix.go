//go:build unix

package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/slok/iacore/internal/log"
)

// handlePauseSignals pauses the engine on SIGUSR1 and resumes it on SIGUSR2
// until the context ends.
func handlePauseSignals(ctx context.Context, p pauser, logger log.Logger) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				logger.Infof("Pause signal received")
				p.Pause()
			case syscall.SIGUSR2:
				logger.Infof("Resume signal received")
				p.Resume()
			}
		}
	}
}
