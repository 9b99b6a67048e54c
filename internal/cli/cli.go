package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/vk/benchgrid/internal/errdefs"
)

// Exit codes returned by the benchgrid binary.
const (
	ExitFailure = 1
	ExitConfig  = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Execute runs the command line args against outW. Errors are returned as
// *ExitError carrying the process exit code.
func Execute(ctx context.Context, outW io.Writer, args []string) error {
	cmd := NewRootCmd(outW)
	cmd.SetArgs(args)
	return toExitError(cmd.ExecuteContext(ctx))
}

// toExitError maps configuration problems to ExitConfig and everything else
// to ExitFailure. Hints attached to the error are appended to the message.
func toExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	code := ExitFailure
	if errdefs.IsConfig(err) {
		code = ExitConfig
	}
	msg := err.Error()
	if hints := errdefs.Hints(err); len(hints) > 0 {
		msg += "\nhint: " + strings.Join(hints, "\nhint: ")
	}
	return &ExitError{Code: code, Message: fmt.Sprintf("Error: %s", msg)}
}
