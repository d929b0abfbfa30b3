// internal/chaos/transport.go
package chaos

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPartitioned is the network failure returned for partitioned requests.
var ErrPartitioned = errors.New("chaos: network partition")

// FaultKind selects what happens to a matching request.
type FaultKind string

const (
	FaultLatency   FaultKind = "latency"
	FaultFailure   FaultKind = "failure"
	FaultPartition FaultKind = "partition"
)

// Fault describes one injected misbehaviour of the remote service.
type Fault struct {
	Kind        FaultKind
	PathPrefix  string        // empty matches every path
	Latency     time.Duration // FaultLatency
	Status      int           // FaultFailure, 503 when zero
	BlastRadius float64       // share of matching requests affected, 0 means all
}

func (f Fault) matches(req *http.Request) bool {
	return strings.HasPrefix(req.URL.Path, f.PathPrefix)
}

// Transport is an http.RoundTripper that applies the active faults before
// handing requests to the next transport.
type Transport struct {
	next     http.RoundTripper
	mu       sync.RWMutex
	faults   []Fault
	random   func() float64
	injected atomic.Int64
}

// NewTransport wraps next, or http.DefaultTransport when next is nil.
func NewTransport(next http.RoundTripper) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{next: next, random: rand.Float64}
}

// Inject activates f for subsequent requests.
func (t *Transport) Inject(f Fault) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faults = append(t.faults, f)
}

// Clear removes every active fault.
func (t *Transport) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.faults = nil
}

// Injected counts the requests a fault was applied to.
func (t *Transport) Injected() int64 {
	return t.injected.Load()
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.RLock()
	faults := append([]Fault(nil), t.faults...)
	t.mu.RUnlock()

	for _, f := range faults {
		if !f.matches(req) {
			continue
		}
		if f.BlastRadius > 0 && t.random() >= f.BlastRadius {
			continue
		}
		t.injected.Add(1)

		switch f.Kind {
		case FaultLatency:
			if err := sleep(req.Context(), f.Latency); err != nil {
				return nil, err
			}
		case FaultFailure:
			return failureResponse(req, f.Status), nil
		case FaultPartition:
			return nil, ErrPartitioned
		}
	}
	return t.next.RoundTrip(req)
}

// InjectAction activates f on t when executed.
func InjectAction(t *Transport, target string, f Fault) Action {
	return Action{
		Type:   string(f.Kind),
		Target: target,
		Execute: func(context.Context) error {
			t.Inject(f)
			return nil
		},
	}
}

// ClearAction removes every fault from t.
func ClearAction(t *Transport, target string) Action {
	return Action{
		Type:   "clear",
		Target: target,
		Execute: func(context.Context) error {
			t.Clear()
			return nil
		},
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func failureResponse(req *http.Request, status int) *http.Response {
	if status == 0 {
		status = http.StatusServiceUnavailable
	}
	body := http.StatusText(status)
	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
