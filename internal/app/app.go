// Package app runs the poll, filter and speak loop.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chattts/internal/intake"
	"github.com/dgnsrekt/chattts/internal/speaker"
)

const (
	// DefaultPollInterval is the wait between two intake cycles.
	DefaultPollInterval = time.Second
	// DefaultHeartbeatEvery is how many cycles pass between heartbeat logs.
	DefaultHeartbeatEvery = 30
	// DefaultFetchTimeout is how long a page read waits for messages.
	DefaultFetchTimeout = 10 * time.Second
	// FetchGrace is added on top of FetchTimeout for the whole fetch, so
	// the source's own wait always runs out first.
	FetchGrace = 5 * time.Second
)

// Session is the persisted seen-set of the current run.
type Session interface {
	Persist() error
	Clear() error
}

// App wires an intake cycle to a speaker.
type App struct {
	Cycle   *intake.Cycle
	Speaker *speaker.Speaker
	Session Session

	PollInterval   time.Duration
	HeartbeatEvery int

	// FetchTimeout is the source's wait window. A fetch is abandoned after
	// FetchTimeout plus FetchGrace.
	FetchTimeout time.Duration

	// OnHeartbeat, if set, receives the cumulative stats on every heartbeat.
	OnHeartbeat func(intake.Stats)

	total intake.Stats
}

// Run polls until ctx is done. The session state is removed on every exit
// path. Cancellation is a normal exit and returns nil.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	poll := a.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	timer := time.NewTimer(0)
	defer timer.Stop()

	for cycle := 0; ; cycle++ {
		select {
		case <-ctx.Done():
			log.Debug("Main loop stopped", "cycles", cycle)
			return nil
		case <-timer.C:
		}

		if a.HeartbeatEvery > 0 && cycle%a.HeartbeatEvery == 0 {
			a.heartbeat()
		}
		if err := a.step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		timer.Reset(poll)
	}
}

// Stats returns the counters accumulated so far.
func (a *App) Stats() intake.Stats {
	return a.total
}

// step runs one cycle. Only context errors are returned; everything else
// is logged and the loop carries on.
func (a *App) step(ctx context.Context) error {
	fetchCtx := ctx
	if a.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, a.FetchTimeout+FetchGrace)
		defer cancel()
	}

	batch, stats, err := a.Cycle.Run(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("Error in main loop", "err", err)
		return nil
	}
	a.total.Add(stats)

	if len(batch) > 0 {
		log.Debug("Speaking batch", "utterances", len(batch))
		if err := a.Speaker.SpeakAll(ctx, batch); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Error("Error in main loop", "err", err)
		}
	}

	if err := a.Session.Persist(); err != nil {
		log.Error("Failed to save spoken messages", "err", err)
	}
	return nil
}

func (a *App) heartbeat() {
	log.Info("Scanning for new messages…",
		"fetched", a.total.Fetched,
		"queued", a.total.Queued,
		"filtered", a.total.Filtered,
		"muted", a.total.Muted,
		"no_prefix", a.total.NoPrefix,
		"empty", a.total.Empty)
	if a.OnHeartbeat != nil {
		a.OnHeartbeat(a.total)
	}
}

func (a *App) cleanup() {
	if err := a.Session.Clear(); err != nil {
		log.Warn("Failed to remove session state", "err", err)
		return
	}
	log.Debug("Session state removed")
}
