// Package connectors holds one client per external event feed. Each
// connector pulls exactly one provider per Fetch, drops sub-threshold
// events, and maps the rest to candidate signals with a deterministic
// direction/strength/confidence and a template-built rationale.
package connectors

import (
	xhttp "SigPulse/pkg/http"
	"time"
)

// defaultTimeout bounds a single provider call when no config is given.
const defaultTimeout = 20 * time.Second

func newClient(timeout time.Duration) *xhttp.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return xhttp.NewClient(xhttp.WithTimeout(timeout))
}

// clamp bounds v to [lo, hi].
func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
