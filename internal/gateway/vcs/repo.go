package vcs

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// Repo wraps a Runner with the fixed sequence of git operations C10
// needs, bound to one working tree, remote and branch.
type Repo struct {
	runner    *Runner
	dir       string
	remote    string
	branch    string
	userName  string
	userEmail string
}

// NewRepo binds a Runner to a working tree, remote configuration, and the
// commit author identity (USER_NAME/USER_EMAIL) every commit is attributed
// to, since the process has no human operator to fall back to the
// machine's own git config.
func NewRepo(runner *Runner, dir, remote, branch, userName, userEmail string) *Repo {
	return &Repo{runner: runner, dir: dir, remote: remote, branch: branch, userName: userName, userEmail: userEmail}
}

// AddAll stages every change in the working tree.
func (r *Repo) AddAll(ctx context.Context) error {
	_, err := r.runner.Run(ctx, r.dir, "add", ".")
	return err
}

// Clean reports whether the staging index has nothing to commit.
func (r *Repo) Clean(ctx context.Context) (bool, error) {
	res, err := r.runner.Run(ctx, r.dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return res.Stdout == "", nil
}

// Commit records a commit with the given (already-sanitized) message,
// attributed to the configured USER_NAME/USER_EMAIL identity via git's
// per-invocation -c overrides rather than mutating the repo's on-disk
// config.
func (r *Repo) Commit(ctx context.Context, message string) error {
	_, err := r.runner.Run(ctx, r.dir,
		"-c", "user.name="+r.userName,
		"-c", "user.email="+r.userEmail,
		"commit", "-m", message)
	return err
}

// PullRebase performs a best-effort rebase-pull from the configured
// remote branch, retrying a couple of times with bounded backoff on
// transient failure (e.g. a momentary network blip to the remote) before
// giving up. Failures are the caller's to log and ignore either way.
func (r *Repo) PullRebase(ctx context.Context) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	return backoff.Retry(func() error {
		_, err := r.runner.Run(ctx, r.dir, "pull", "--rebase", r.remote, r.branch)
		return err
	}, policy)
}

// Push pushes the current branch to the configured remote.
func (r *Repo) Push(ctx context.Context) error {
	_, err := r.runner.Run(ctx, r.dir, "push", r.remote, r.branch)
	return err
}
