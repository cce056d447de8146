// Package scheduler runs the background loops: feed discovery of new
// identities, periodic roster resync and a liveness heartbeat. Phases run on
// independent elapsed-time timers inside one loop; a failing phase is logged
// and retried on its next tick, never crashing the loop.
package scheduler

import (
	"context"
	"log"
	"math/rand"
	"os"
	"time"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/feeds"
	"agent-trust-lab/internal/identity"
	"agent-trust-lab/internal/observability"
	"agent-trust-lab/internal/verification"
)

// interFetchDelay spaces out verifications triggered by one phase so the
// upstream APIs see at most one request per second.
const interFetchDelay = time.Second

// seenCap bounds the discovery dedupe set. When reached the set resets and
// known identities are re-filtered by the record freshness check instead.
const seenCap = 10000

// Verifier is the slice of the verification service the scheduler needs.
type Verifier interface {
	Verify(ctx context.Context, req verification.Request) (*domain.VerificationRecord, error)
}

// Options for creating a Runner.
type Options struct {
	Feeds    []feeds.Source
	Verifier Verifier

	// Roster is re-verified with force on every resync tick.
	Roster []string

	DiscoveryInterval time.Duration
	ResyncInterval    time.Duration
	HeartbeatInterval time.Duration
	LoopCooldown      time.Duration
	PollLimit         int

	// Now and Sleep are injectable for deterministic tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration)

	// Rand drives interval jitter. Nil uses the global source.
	Rand *rand.Rand

	Logger *log.Logger
}

// Runner owns the background loop.
type Runner struct {
	feeds    []feeds.Source
	verifier Verifier
	roster   []string

	discoveryInterval time.Duration
	resyncInterval    time.Duration
	heartbeatInterval time.Duration
	loopCooldown      time.Duration
	pollLimit         int

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
	jitter func(d time.Duration) time.Duration
	logger *log.Logger

	seen map[string]bool
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	if opts.DiscoveryInterval <= 0 {
		opts.DiscoveryInterval = 5 * time.Minute
	}
	if opts.ResyncInterval <= 0 {
		opts.ResyncInterval = time.Hour
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 15 * time.Minute
	}
	if opts.LoopCooldown <= 0 {
		opts.LoopCooldown = time.Second
	}
	if opts.PollLimit <= 0 {
		opts.PollLimit = 25
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = func(ctx context.Context, d time.Duration) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[scheduler] ", log.LstdFlags)
	}

	randomFloat := rand.Float64
	if opts.Rand != nil {
		randomFloat = opts.Rand.Float64
	}

	return &Runner{
		feeds:             opts.Feeds,
		verifier:          opts.Verifier,
		roster:            opts.Roster,
		discoveryInterval: opts.DiscoveryInterval,
		resyncInterval:    opts.ResyncInterval,
		heartbeatInterval: opts.HeartbeatInterval,
		loopCooldown:      opts.LoopCooldown,
		pollLimit:         opts.PollLimit,
		now:               opts.Now,
		sleep:             opts.Sleep,
		// Up to 10% jitter keeps phases from synchronizing across replicas.
		jitter: func(d time.Duration) time.Duration {
			return d + time.Duration(randomFloat()*0.1*float64(d))
		},
		logger: opts.Logger,
		seen:   make(map[string]bool),
	}
}

// Run executes the loop until ctx is cancelled. Discovery runs once up
// front, then all phases tick on elapsed time.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("starting: discovery=%v resync=%v heartbeat=%v",
		r.discoveryInterval, r.resyncInterval, r.heartbeatInterval)

	r.runPhase(ctx, "discovery", r.runDiscovery)

	lastDiscovery := r.now()
	lastResync := r.now()
	lastHeartbeat := r.now()

	nextDiscovery := r.jitter(r.discoveryInterval)
	nextResync := r.jitter(r.resyncInterval)
	nextHeartbeat := r.jitter(r.heartbeatInterval)

	for {
		if ctx.Err() != nil {
			r.logger.Printf("shutting down")
			return ctx.Err()
		}

		now := r.now()

		if now.Sub(lastDiscovery) >= nextDiscovery {
			r.runPhase(ctx, "discovery", r.runDiscovery)
			lastDiscovery = r.now()
			nextDiscovery = r.jitter(r.discoveryInterval)
		}

		if now.Sub(lastResync) >= nextResync {
			r.runPhase(ctx, "resync", r.runResync)
			lastResync = r.now()
			nextResync = r.jitter(r.resyncInterval)
		}

		if now.Sub(lastHeartbeat) >= nextHeartbeat {
			r.runPhase(ctx, "heartbeat", r.runHeartbeat)
			lastHeartbeat = r.now()
			nextHeartbeat = r.jitter(r.heartbeatInterval)
		}

		r.sleep(ctx, r.loopCooldown)
	}
}

// runPhase runs one phase, swallowing its error. A panicking phase is logged
// and retried on its next tick like any other failure.
func (r *Runner) runPhase(ctx context.Context, name string, phase func(ctx context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	started := r.now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("phase %s panicked: %v", name, rec)
			observability.RecordSchedulerPhase(name, "panic", r.now().Sub(started).Seconds())
		}
	}()
	err := phase(ctx)
	elapsed := r.now().Sub(started).Seconds()
	if err != nil {
		r.logger.Printf("phase %s failed: %v", name, err)
		observability.RecordSchedulerPhase(name, "error", elapsed)
		return
	}
	observability.RecordSchedulerPhase(name, "ok", elapsed)
}

// runDiscovery polls every feed and verifies authors not seen before.
func (r *Runner) runDiscovery(ctx context.Context) error {
	var lastErr error
	discovered := 0

	for _, feed := range r.feeds {
		entries, err := feed.Poll(ctx, r.pollLimit)
		if err != nil {
			r.logger.Printf("discovery: poll %s: %v", feed.Name(), err)
			lastErr = err
			continue
		}

		for _, e := range entries {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			author := identity.Normalize(e.Author)
			if author == "" || r.markSeen(author) {
				continue
			}

			r.logger.Printf("discovery: found new identity %q via %s", author, feed.Name())
			if _, err := r.verifier.Verify(ctx, verification.Request{
				Identifier: author,
				Class:      verification.TTLBatch,
			}); err != nil {
				r.logger.Printf("discovery: verify %s: %v", author, err)
			} else {
				discovered++
				observability.RecordIdentityDiscovered()
			}
			r.sleep(ctx, interFetchDelay)
		}
	}

	r.logger.Printf("discovery complete: %d new identities", discovered)
	return lastErr
}

// markSeen records an identity in the dedupe set, reporting whether it was
// already present.
func (r *Runner) markSeen(id string) bool {
	if r.seen[id] {
		return true
	}
	if len(r.seen) >= seenCap {
		r.seen = make(map[string]bool)
	}
	r.seen[id] = true
	return false
}

// runResync force-refreshes every roster identity.
func (r *Runner) runResync(ctx context.Context) error {
	var lastErr error
	for i, id := range r.roster {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := r.verifier.Verify(ctx, verification.Request{
			Identifier: id,
			Force:      true,
			Class:      verification.TTLBatch,
		}); err != nil {
			r.logger.Printf("resync: verify %s: %v", id, err)
			lastErr = err
		}
		if i < len(r.roster)-1 {
			r.sleep(ctx, interFetchDelay)
		}
	}
	if lastErr == nil {
		observability.DefaultMetrics.LastSuccessfulResync.SetToCurrentTime()
	}
	r.logger.Printf("resync complete: %d identities", len(r.roster))
	return lastErr
}

// runHeartbeat probes the first feed to report upstream liveness.
func (r *Runner) runHeartbeat(ctx context.Context) error {
	if len(r.feeds) == 0 {
		return nil
	}
	if _, err := r.feeds[0].Poll(ctx, 1); err != nil {
		r.logger.Printf("heartbeat: DEGRADED (%v)", err)
		return err
	}
	r.logger.Printf("heartbeat: ALIVE")
	return nil
}
