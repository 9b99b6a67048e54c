// Package session owns the on-disk state of one run: a unique run id, the
// output directory layout and the lock preventing two runs from sharing it.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/errdefs"
)

const (
	LockFile    = ".benchgrid.lock"
	BuildDir    = "build"
	ResultsDir  = "results"
	HistoryFile = "history.db"
)

// Options configure a new session.
type Options struct {
	// OutputDir receives builds, results and history.
	OutputDir string
	// Override removes a lock left by another run.
	Override bool
}

// Session is an open run. Close it to release the output directory.
type Session struct {
	RunID     string
	Dir       string
	StartedAt time.Time
	lockPath  string
}

// Open creates the output layout and takes the lock.
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := ctxlog.FromContext(ctx)
	if opts.OutputDir == "" {
		return nil, errdefs.Session(errors.New("no output directory"))
	}
	dir, err := filepath.Abs(opts.OutputDir)
	if err != nil {
		return nil, errdefs.Session(errors.Wrap(err, "failed to resolve output directory"))
	}
	for _, d := range []string{dir, filepath.Join(dir, BuildDir), filepath.Join(dir, ResultsDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, errdefs.Session(errors.Wrapf(err, "failed to create %s", d))
		}
	}

	s := &Session{
		RunID:     uuid.NewString(),
		Dir:       dir,
		StartedAt: time.Now(),
		lockPath:  filepath.Join(dir, LockFile),
	}
	if opts.Override {
		if err := os.Remove(s.lockPath); err == nil {
			logger.Warn("Removed existing session lock.", "path", s.lockPath)
		} else if !os.IsNotExist(err) {
			return nil, errdefs.Session(errors.Wrap(err, "failed to remove session lock"))
		}
	}
	if err := s.lock(); err != nil {
		return nil, err
	}
	logger.Debug("Session opened.", "run_id", s.RunID, "dir", dir)
	return s, nil
}

func (s *Session) lock() error {
	f, err := os.OpenFile(s.lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		owner, _ := os.ReadFile(s.lockPath)
		err := errors.Newf("output directory %s is used by another run (%s)", s.Dir, strings.TrimSpace(string(owner)))
		return errdefs.Session(errors.WithHint(err, "wait for it to finish, or pass --override if it is gone"))
	}
	if err != nil {
		return errdefs.Session(errors.Wrap(err, "failed to create session lock"))
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "pid=%s run=%s\n", strconv.Itoa(os.Getpid()), s.RunID)
	return errdefs.Session(err)
}

// BuildRoot is where test expressions are built, one directory per label.
func (s *Session) BuildRoot() string { return filepath.Join(s.Dir, BuildDir) }

// ResultsPath is the JSON lines file receiving the records of this run.
func (s *Session) ResultsPath() string {
	return filepath.Join(s.Dir, ResultsDir, s.RunID+".jsonl")
}

// HistoryPath is the default history database.
func (s *Session) HistoryPath() string { return filepath.Join(s.Dir, HistoryFile) }

// Close releases the lock.
func (s *Session) Close(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("Session closed.", "run_id", s.RunID, "elapsed", time.Since(s.StartedAt))
	if err := os.Remove(s.lockPath); err != nil && !os.IsNotExist(err) {
		return errdefs.Session(errors.Wrap(err, "failed to release session lock"))
	}
	return nil
}
