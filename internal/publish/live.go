package publish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/job"
)

// Events emitted to the live viewer.
const (
	EventRunStart = "run_start"
	EventJob      = "job"
	EventRunEnd   = "run_end"
)

// LiveOptions configures the connection to a live viewer.
type LiveOptions struct {
	// URL is the viewer address, e.g. ws://localhost:8080/socket.io/.
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// Live streams job records to a socket.io server as they complete.
type Live struct {
	io    *socket.Socket
	runID string
}

// DialLive connects to the viewer and announces the run.
func DialLive(ctx context.Context, opts LiveOptions, runID string, total int) (*Live, error) {
	logger := ctxlog.FromContext(ctx).With("publisher", "live", "url", opts.URL)
	logger.Debug("Connecting to live viewer...")

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse report URI")
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, errors.Newf("report URI %q needs a scheme and a host", opts.URL)
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	sockOpts := socket.DefaultOptions()
	sockOpts.SetPath(parsedURL.Path)
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(opts.Namespace, sockOpts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("📡 Connected to live viewer", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, errors.Wrap(err, "socket.io connection failed")
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, errors.Wrap(ctx.Err(), "cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, errors.Newf("timed out after %s waiting for socket.io connection", timeout)
	}

	l := &Live{io: io, runID: runID}
	if err := l.emit(EventRunStart, map[string]any{"run_id": runID, "total": total}); err != nil {
		io.Disconnect()
		return nil, err
	}
	return l, nil
}

func (l *Live) Publish(_ context.Context, j *job.Job) error {
	payload, err := toPayload(j.Record())
	if err != nil {
		return err
	}
	return l.emit(EventJob, map[string]any{"run_id": l.runID, "record": payload})
}

// Close announces the end of the run with the final counts and disconnects.
func (l *Live) Close(counts map[string]int) error {
	err := l.emit(EventRunEnd, map[string]any{"run_id": l.runID, "counts": counts})
	l.io.Disconnect()
	return err
}

func (l *Live) emit(event string, data any) error {
	if !l.io.Connected() {
		return errors.Newf("live viewer disconnected, %s event dropped", event)
	}
	return l.io.Emit(event, data)
}

// toPayload turns v into plain maps and slices, the only shapes the
// socket.io encoder walks.
func toPayload(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode live payload")
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errors.Wrap(err, "failed to decode live payload")
	}
	return out, nil
}
