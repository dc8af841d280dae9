package tonapi

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeAborted  Outcome = "aborted"
	OutcomeNotFound Outcome = "not_found"
	OutcomeUnknown  Outcome = "unknown"
)

type TrackerConfig struct {
	InitialDelay time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
}

func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		InitialDelay: 30 * time.Second,
		PollInterval: 5 * time.Second,
		MaxWait:      120 * time.Second,
	}
}

type TraceGetter interface {
	GetTrace(ctx context.Context, traceID string) (*Trace, error)
}

// Tracker polls the trace of a message until it's available or MaxWait
// has passed.
type Tracker struct {
	config *TrackerConfig
	client TraceGetter
	log    *slog.Logger
}

func NewTracker(config *TrackerConfig, client TraceGetter) *Tracker {
	return &Tracker{
		config: config,
		client: client,
		log:    slog.With("component", "tracker"),
	}
}

// Track returns OutcomeNotFound when the trace never showed up and
// OutcomeUnknown on any other error or when ctx is done.
func (t *Tracker) Track(ctx context.Context, hash string) (Outcome, string) {
	log := t.log.With("hash", hash)
	deadline := time.Now().Add(t.config.MaxWait)

	wait := t.config.InitialDelay

	for {
		select {
		case <-ctx.Done():
			return OutcomeUnknown, ctx.Err().Error()
		case <-time.After(wait):
		}
		wait = t.config.PollInterval

		trace, err := t.client.GetTrace(ctx, hash)
		switch {
		case errors.Is(err, ErrNotFound):
			log.Debug("trace is not found yet, retrying")
		case err != nil:
			log.Error("couldn't get trace", "error", err)
			return OutcomeUnknown, err.Error()
		default:
			if failed := Validate(trace); failed != nil {
				log.Info("trace has a failed transaction",
					"tx", failed.Hash,
					"bounced", failed.Bounced,
					"aborted", failed.Aborted,
				)
				return OutcomeAborted, failed.Hash
			}

			return OutcomeSuccess, trace.Transaction.Hash
		}

		if time.Now().Add(wait).After(deadline) {
			log.Info("trace is not confirmed within the max wait time")
			return OutcomeNotFound, ""
		}
	}
}

// Validate walks the trace depth first and returns the first transaction that
// bounced or did not succeed, nil when all of them are fine.
func Validate(trace *Trace) *Transaction {
	if trace.Transaction.Bounced || !trace.Transaction.Success {
		return &trace.Transaction
	}

	for i := range trace.Children {
		if failed := Validate(&trace.Children[i]); failed != nil {
			return failed
		}
	}

	return nil
}
