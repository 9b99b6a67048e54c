// Package errdefs defines the error taxonomy shared by every stage of a run.
//
// Errors are classified by marking them with one of the sentinel values below
// (cockroachdb/errors marks survive wrapping), so callers test the class with
// errors.Is regardless of how deep the original error was wrapped.
//
//   - ErrConfig: invalid descriptors or profiles, cycles, duplicate names,
//     dangling references. Fatal before any job runs.
//   - ErrResource: a job asks for more than the machine has. Fails that job.
//   - ErrRun: a job could not be launched.
//   - ErrPlugin: a filter or analysis plugin failed. Downgraded to a warning.
//   - ErrSession: the run state unit could not be created or locked.
package errdefs

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrConfig   = errors.New("configuration error")
	ErrResource = errors.New("resource error")
	ErrRun      = errors.New("run failure")
	ErrPlugin   = errors.New("plugin error")
	ErrSession  = errors.New("session error")
)

// Configf builds a new configuration error.
func Configf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

// Config marks err as a configuration error. A nil err stays nil.
func Config(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrConfig)
}

// Resourcef builds a new resource error.
func Resourcef(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrResource)
}

// Plugin marks err as coming from the named plugin.
func Plugin(name string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrapf(err, "plugin %q", name), ErrPlugin)
}

// Run marks err as a launch failure.
func Run(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrRun)
}

// Session marks err as a session failure.
func Session(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrSession)
}

func IsConfig(err error) bool   { return errors.Is(err, ErrConfig) }
func IsResource(err error) bool { return errors.Is(err, ErrResource) }
func IsPlugin(err error) bool   { return errors.Is(err, ErrPlugin) }
func IsSession(err error) bool  { return errors.Is(err, ErrSession) }

// Kind names the class of err for logs and result records.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrResource):
		return "resource"
	case errors.Is(err, ErrPlugin):
		return "plugin"
	case errors.Is(err, ErrSession):
		return "session"
	case errors.Is(err, ErrRun):
		return "run"
	default:
		return "internal"
	}
}

// Hints returns the user-facing hints attached anywhere in the chain.
func Hints(err error) []string {
	return errors.GetAllHints(err)
}
