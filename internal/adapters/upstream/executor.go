// internal/adapters/upstream/executor.go
package upstream

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"hoshizora/internal/adapters/observability"
	"hoshizora/internal/domain"
)

const (
	// MaxAttempts bounds every logical request.
	MaxAttempts = 3

	defaultAttemptTimeout = 10 * time.Second
	maxBodyBytes          = 8 << 20
)

var (
	ErrAttemptTimeout = errors.New("upstream: attempt timed out")
	ErrQuotaExceeded  = errors.New("upstream: shared quota exceeded")
)

// StatusError is a response whose status was not 2xx.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Request describes one outbound call. Method defaults to GET.
type Request struct {
	Method string
	URL    string
	Header http.Header
}

// Admitter gates attempts against a quota shared by every process using the
// same provider credential. Wait blocks until one call is admitted or ctx
// ends; waiting never consumes an attempt.
type Admitter interface {
	Wait(ctx context.Context, service string) error
}

// Policy configures retries for one provider.
type Policy struct {
	// MaxAttempts defaults to MaxAttempts when zero.
	MaxAttempts int
	// AttemptTimeout boxes each attempt independently.
	AttemptTimeout time.Duration
	// Backoff returns the pause before retry n (1-based); nil means none.
	Backoff func(retry int) time.Duration
	// RPS enables client-side rate limiting when positive.
	RPS int
	// Breaker wraps each logical request in a circuit breaker.
	Breaker bool
}

type Executor struct {
	service string
	hc      *http.Client
	policy  Policy
	rl      *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	quota   Admitter
}

type Option func(*Executor)

func WithHTTPClient(hc *http.Client) Option { return func(e *Executor) { e.hc = hc } }

func WithAdmitter(a Admitter) Option { return func(e *Executor) { e.quota = a } }

// New builds an Executor for the named provider; service labels logs and metrics.
func New(service string, p Policy, opts ...Option) *Executor {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = MaxAttempts
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = defaultAttemptTimeout
	}
	e := &Executor{
		service: service,
		hc:      &http.Client{},
		policy:  p,
	}
	if p.RPS > 0 {
		e.rl = rate.NewLimiter(rate.Limit(p.RPS), p.RPS)
	}
	if p.Breaker {
		e.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        service,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
			IsSuccessful: func(err error) bool {
				var ab *abandoned
				return err == nil || errors.As(err, &ab)
			},
		})
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Executor) Service() string { return e.service }

// Do performs r with bounded, sequential attempts and returns the body of the
// first 2xx response.
func (e *Executor) Do(ctx context.Context, r Request) ([]byte, error) {
	if e.cb == nil || ctx.Err() != nil {
		return e.run(ctx, r)
	}
	out, err := e.cb.Execute(func() (interface{}, error) {
		b, err := e.run(ctx, r)
		if err != nil && ctx.Err() != nil {
			return nil, &abandoned{err}
		}
		return b, err
	})
	if err != nil {
		var ab *abandoned
		if errors.As(err, &ab) {
			return nil, ab.err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().Str("service", e.service).Err(err).Msg("upstream circuit open")
			return nil, domain.Wrap(err, domain.KindTransient, e.service, "circuit open")
		}
		return nil, err
	}
	return out.([]byte), nil
}

// abandoned marks a failure caused by the caller's context ending. The
// breaker does not count it against the provider.
type abandoned struct{ err error }

func (a *abandoned) Error() string { return a.err.Error() }
func (a *abandoned) Unwrap() error { return a.err }

func (e *Executor) run(ctx context.Context, r Request) ([]byte, error) {
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	// malformed target: fail without attempting
	if _, err := http.NewRequest(r.Method, r.URL, nil); err != nil {
		return nil, domain.Wrap(err, domain.KindConfig, e.service, "invalid request target")
	}

	var last error
	attempts := 0
	for attempts < e.policy.MaxAttempts {
		if attempts > 0 && e.policy.Backoff != nil {
			if !sleepCtx(ctx, e.policy.Backoff(attempts)) {
				last = ctx.Err()
				break
			}
		}
		attempts++

		body, err := e.attempt(ctx, r)
		if err == nil {
			return body, nil
		}
		last = err
		log.Debug().Str("service", e.service).Int("attempt", attempts).Err(err).Msg("upstream attempt failed")

		if ctx.Err() != nil {
			break
		}
	}

	observability.ObserveExhausted(e.service)
	log.Error().
		Str("service", e.service).
		Int("attempts", attempts).
		Err(last).
		Msg("upstream request failed")
	return nil, domain.Wrap(last, domain.KindTransient, e.service,
		fmt.Sprintf("request failed after %d attempts", attempts))
}

// attempt runs one try under its own timeout. A timeout cancels only this
// attempt's call.
func (e *Executor) attempt(ctx context.Context, r Request) ([]byte, error) {
	if e.rl != nil {
		if err := e.rl.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if e.quota != nil {
		if err := e.quota.Wait(ctx, e.service); err != nil {
			return nil, err
		}
	}

	actx, cancel := context.WithTimeout(ctx, e.policy.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, r.Method, r.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "hoshizora/1.0")
	}

	start := time.Now()
	resp, err := e.hc.Do(req)
	if err != nil {
		observability.ObserveExternal(e.service, 0, time.Since(start))
		return nil, e.timeoutOr(ctx, actx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	observability.ObserveExternal(e.service, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, e.timeoutOr(ctx, actx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

// timeoutOr reports the attempt deadline as ErrAttemptTimeout unless the
// parent context was the one that ended.
func (e *Executor) timeoutOr(parent, attempt context.Context, err error) error {
	if parent.Err() == nil && errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, e.policy.AttemptTimeout, err)
	}
	return err
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ExponentialBackoff doubles base per retry (base, 2*base, 4*base...) and adds
// up to +50% jitter.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(retry int) time.Duration {
		if base <= 0 || retry <= 0 {
			return 0
		}
		d := time.Duration(1<<(retry-1)) * base
		var b [1]byte
		if _, err := crand.Read(b[:]); err != nil {
			return d
		}
		f := float64(b[0]) / 255.0
		return d + time.Duration(0.5*f*float64(d))
	}
}
