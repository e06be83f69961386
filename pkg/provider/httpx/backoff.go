// Package httpx wraps HTTP calls for providers with the framework's
// backoff policy, grounded on the circuit-breaker/retry package's use
// of github.com/cenkalti/backoff/v4 for exponential retry.
package httpx

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// ProgressFunc is notified before every backoff wait, naming the
// provider and how long the call is pausing.
type ProgressFunc func(providerTag string, wait time.Duration)

// RequestBuilder produces a fresh *http.Request for each attempt (the
// body must be re-readable, so callers rebuild rather than reuse).
type RequestBuilder func() (*http.Request, error)

// CallWithBackoff issues the request built by build, retrying per the
// framework policy:
//   - HTTP 429: respect Retry-After if present, else exponential backoff
//     from 1s doubling to a 60s cap, up to 8 retries.
//   - HTTP 5xx: up to 3 retries, doubling delay.
//   - HTTP 403: fails immediately (permission errors are not transient).
//   - 2xx: returns.
//
// Every wait invokes onWait (may be nil) with the provider tag and
// duration, matching the framework's progress-event requirement.
func CallWithBackoff(client *http.Client, log hclog.Logger, providerTag string, build RequestBuilder, onWait ProgressFunc) (*http.Response, error) {
	var resp *http.Response
	var attempt int

	operation := func() error {
		req, err := build()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request for %s: %w", providerTag, err))
		}

		r, err := client.Do(req)
		if err != nil {
			return err // transport errors are retryable
		}

		switch {
		case r.StatusCode >= 200 && r.StatusCode < 300:
			resp = r
			return nil
		case r.StatusCode == http.StatusForbidden:
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			r.Body.Close()
			return backoff.Permanent(fmt.Errorf("provider error (%d): %s", r.StatusCode, body))
		case r.StatusCode == http.StatusTooManyRequests:
			attempt++
			wait := retryAfterOr(r, exponentialWait(attempt, time.Second, 60*time.Second))
			drainAndClose(r)
			log.Debug("rate limited, waiting", "provider", providerTag, "wait", wait)
			if onWait != nil {
				onWait(providerTag, wait)
			}
			time.Sleep(wait)
			if attempt > 8 {
				return backoff.Permanent(fmt.Errorf("provider error (%d): exceeded 8 retries", r.StatusCode))
			}
			return fmt.Errorf("rate limited (429)")
		case r.StatusCode >= 500:
			attempt++
			wait := exponentialWait(attempt, time.Second, 30*time.Second)
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			drainAndClose(r)
			if onWait != nil {
				onWait(providerTag, wait)
			}
			if attempt > 3 {
				return backoff.Permanent(fmt.Errorf("provider error (%d): %s", r.StatusCode, body))
			}
			time.Sleep(wait)
			return fmt.Errorf("server error (%d)", r.StatusCode)
		default:
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			drainAndClose(r)
			return backoff.Permanent(fmt.Errorf("provider error (%d): %s", r.StatusCode, body))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 0 // our own sleeps above drive the actual wait
	bo.MaxElapsedTime = 0
	withMax := backoff.WithMaxRetries(bo, 8)

	if err := backoff.Retry(operation, withMax); err != nil {
		return nil, err
	}
	return resp, nil
}

func exponentialWait(attempt int, base, ceiling time.Duration) time.Duration {
	wait := base
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait > ceiling {
			return ceiling
		}
	}
	if wait > ceiling {
		return ceiling
	}
	return wait
}

func retryAfterOr(r *http.Response, fallback time.Duration) time.Duration {
	ra := r.Header.Get("Retry-After")
	if ra == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(ra); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(ra); err == nil {
		return time.Until(when)
	}
	return fallback
}

func drainAndClose(r *http.Response) {
	io.Copy(io.Discard, io.LimitReader(r.Body, 4096))
	r.Body.Close()
}
