// Package commit implements C10: the debounced coalescing of filesystem
// mutations into coherent version-control commits, grounded on the
// teacher's goroutine+timer pattern for background maintenance
// (internal/mcpserver/server/session.go's cleanupExpired, which runs a
// single ticker-driven loop over shared mutable state under a mutex).
package commit

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/erauner12/vaultgw/internal/gateway/vcs"
	"github.com/rs/zerolog/log"
)

const maxPendingDescriptions = 1000

// repository is the subset of *vcs.Repo the coordinator drives, broken
// out so tests can substitute a fake rather than shell out to git.
type repository interface {
	AddAll(ctx context.Context) error
	Clean(ctx context.Context) (bool, error)
	Commit(ctx context.Context, message string) error
	PullRebase(ctx context.Context) error
	Push(ctx context.Context) error
}

var _ repository = (*vcs.Repo)(nil)

// Coordinator is the singleton PendingCommit record plus its debounce
// timer and single-writer sequence runner.
type Coordinator struct {
	mu             sync.Mutex
	pending        []string
	firstPendingAt time.Time
	timer          *time.Timer
	inProgress     bool

	debounce time.Duration
	repo     repository
	prefix   string

	wg sync.WaitGroup
}

// New constructs a Coordinator. debounce is the configured DEBOUNCE_SECONDS
// value (D); repo is the bound working tree/remote/branch; prefix names
// the vault for multi-description commit messages (e.g. "vault").
func New(debounce time.Duration, repo repository, prefix string) *Coordinator {
	return &Coordinator{debounce: debounce, repo: repo, prefix: prefix}
}

// Schedule records description as a pending mutation and (re)arms the
// debounce timer per the adaptive formula in §4.10.
func (c *Coordinator) Schedule(description string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) >= maxPendingDescriptions {
		log.Warn().Str("description", description).Msg("dropping pending commit description at capacity")
		return
	}
	c.pending = append(c.pending, description)

	now := time.Now()
	if c.firstPendingAt.IsZero() {
		c.firstPendingAt = now
	}

	c.rearmLocked(now)
}

// rearmLocked must be called with mu held.
func (c *Coordinator) rearmLocked(now time.Time) {
	ceiling := 3 * c.debounce
	elapsed := now.Sub(c.firstPendingAt)
	remaining := ceiling - elapsed
	if remaining < 0 {
		remaining = 0
	}
	delay := c.debounce
	if remaining < delay {
		delay = remaining
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, c.fire)
}

func (c *Coordinator) fire() {
	c.mu.Lock()
	if c.inProgress {
		c.mu.Unlock()
		return
	}
	c.inProgress = true
	c.mu.Unlock()

	c.wg.Add(1)
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		c.inProgress = false
		c.mu.Unlock()
	}()

	c.drainLoop(context.Background())
}

// drainLoop splices out every pending description and runs one mutation
// sequence, repeating while new descriptions accumulated during the
// sequence's own execution (§5's "picked up by the next loop iteration
// of the same sequence before it returns").
func (c *Coordinator) drainLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.mu.Unlock()
			return
		}
		batch := c.pending
		c.pending = nil
		c.firstPendingAt = time.Time{}
		c.mu.Unlock()

		if err := c.runSequence(ctx, batch); err != nil {
			log.Error().Err(err).Strs("batch", batch).Msg("commit sequence failed")
		}
	}
}

func (c *Coordinator) runSequence(ctx context.Context, batch []string) error {
	if err := c.repo.AddAll(ctx); err != nil {
		return err
	}

	clean, err := c.repo.Clean(ctx)
	if err != nil {
		return err
	}
	if clean {
		return nil
	}

	if err := c.repo.Commit(ctx, vcs.SanitizeCommitMessage(commitMessage(c.prefix, batch))); err != nil {
		return err
	}

	if err := c.repo.PullRebase(ctx); err != nil {
		log.Warn().Err(err).Msg("rebase-pull failed, proceeding to push anyway")
	}

	return c.repo.Push(ctx)
}

func commitMessage(prefix string, batch []string) string {
	if len(batch) == 1 {
		return batch[0]
	}
	return prefix + ": " + strconv.Itoa(len(batch)) + " operations - " + strings.Join(batch, ", ")
}

// Flush cancels the timer, waits for any in-flight sequence, then runs
// one more sequence synchronously if anything remains pending. Used at
// shutdown.
func (c *Coordinator) Flush(ctx context.Context) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	remaining := len(c.pending) > 0
	c.mu.Unlock()
	if remaining {
		c.drainLoop(ctx)
	}
}

// Stop cancels the timer, clears pending state, and detaches the bound
// repo. Test-only per §4.10.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.pending = nil
	c.firstPendingAt = time.Time{}
	c.repo = nil
}
