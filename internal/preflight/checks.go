package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"phototag/internal/detection"
	"phototag/internal/notifications"
)

const checkTimeout = 5 * time.Second

// StorePinger is satisfied by *queue.Store.
type StorePinger interface {
	CheckHealth(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStore verifies the queue database answers queries.
func CheckStore(ctx context.Context, store StorePinger) Result {
	const name = "Queue store"
	if store == nil {
		return Result{Name: name, Detail: "not opened"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := store.CheckHealth(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckDetector probes the detection backend.
func CheckDetector(ctx context.Context, detector detection.Detector) Result {
	const name = "Detector"
	if detector == nil {
		return Result{Name: name, Detail: "not configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	health := detection.CheckHealth(checkCtx, detector)
	detail := health.Provider
	if health.Endpoint != "" {
		detail += " " + health.Endpoint
	}
	if health.Detail != "" {
		detail += " (" + health.Detail + ")"
	}
	return Result{Name: name, Passed: health.Ready, Detail: detail}
}

// CheckNotifications pings the wakeup channel when it is backed by a remote
// broker. In-process notifiers always pass.
func CheckNotifications(ctx context.Context, notifier notifications.Service) Result {
	const name = "Notifications"
	if notifier == nil {
		return Result{Name: name, Passed: true, Detail: "disabled (polling only)"}
	}
	p, ok := notifier.(pinger)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "in-process"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := p.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "redis reachable"}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (unreachable)"
	}
	return err.Error()
}
