package upstream_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"hoshizora/internal/adapters/upstream"
	"hoshizora/internal/domain"
)

func TestExecutor_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			w.WriteHeader(500)
		default:
			_, _ = w.Write([]byte(`ok`))
		}
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{AttemptTimeout: time.Second})
	body, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestExecutor_ExhaustedSurfacesLastStatus(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		w.WriteHeader(501 + int(n)) // 502, 503, 504
		_, _ = w.Write([]byte("attempt " + strconv.Itoa(int(n))))
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{AttemptTimeout: time.Second})
	_, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.KindTransient) {
		t.Fatalf("expected transient kind, got %v", domain.KindOf(err))
	}
	var se *upstream.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError in chain, got %v", err)
	}
	if se.Code != 504 || se.Body != "attempt 3" {
		t.Fatalf("expected last status to surface, got %d %q", se.Code, se.Body)
	}
	if got := atomic.LoadInt32(&hits); got != upstream.MaxAttempts {
		t.Fatalf("expected %d calls, got %d", upstream.MaxAttempts, got)
	}
}

func TestExecutor_NotFoundIsRetriedToo(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{AttemptTimeout: time.Second})
	if _, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL}); err == nil {
		t.Fatalf("expected error for 404")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestExecutor_AttemptTimeout(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{AttemptTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	if !errors.Is(err, upstream.ErrAttemptTimeout) {
		t.Fatalf("expected attempt timeout, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if el := time.Since(start); el > 900*time.Millisecond {
		t.Fatalf("attempts were not individually bounded: %s", el)
	}
}

func TestExecutor_SlowFirstAttemptThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`fast`))
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{AttemptTimeout: 80 * time.Millisecond})
	body, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	if err != nil || string(body) != "fast" {
		t.Fatalf("unexpected: %q %v", body, err)
	}
}

func TestExecutor_AttemptsAreSequential(t *testing.T) {
	var inflight, peak int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inflight, 1)
		defer atomic.AddInt32(&inflight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(503)
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{AttemptTimeout: time.Second})
	_, _ = ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	if p := atomic.LoadInt32(&peak); p != 1 {
		t.Fatalf("expected one attempt in flight at a time, saw %d", p)
	}
}

func TestExecutor_BackoffBetweenAttempts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer ts.Close()

	var calls []int
	ex := upstream.New("test", upstream.Policy{
		AttemptTimeout: time.Second,
		Backoff: func(retry int) time.Duration {
			calls = append(calls, retry)
			return time.Millisecond
		},
	})
	_, _ = ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Fatalf("unexpected backoff calls: %v", calls)
	}
}

type countingAdmitter struct {
	n     int32
	block bool
}

func (a *countingAdmitter) Wait(ctx context.Context, _ string) error {
	atomic.AddInt32(&a.n, 1)
	if a.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func TestExecutor_AdmitterGatesEachAttempt(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer ts.Close()

	adm := &countingAdmitter{}
	ex := upstream.New("test", upstream.Policy{AttemptTimeout: time.Second}, upstream.WithAdmitter(adm))
	if _, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if atomic.LoadInt32(&hits) != 2 || atomic.LoadInt32(&adm.n) != 2 {
		t.Fatalf("unexpected counts: hits=%d admits=%d", hits, adm.n)
	}
}

func TestExecutor_QuotaWaitEndsWithCaller(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	adm := &countingAdmitter{block: true}
	ex := upstream.New("test", upstream.Policy{AttemptTimeout: time.Second}, upstream.WithAdmitter(adm))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := ex.Do(ctx, upstream.Request{URL: ts.URL})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected caller deadline, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 || atomic.LoadInt32(&adm.n) != 1 {
		t.Fatalf("waiting must not burn attempts: hits=%d admits=%d", hits, adm.n)
	}
}

func TestExecutor_ForwardsHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Client-Tag") != "1" {
			w.WriteHeader(400)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{MaxAttempts: 1, AttemptTimeout: time.Second})
	h := http.Header{}
	h.Set("X-Client-Tag", "1")
	if _, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL, Header: h}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestExecutor_InvalidTargetIsConfigError(t *testing.T) {
	ex := upstream.New("test", upstream.Policy{})
	_, err := ex.Do(context.Background(), upstream.Request{URL: "://bad"})
	if !domain.IsKind(err, domain.KindConfig) {
		t.Fatalf("expected config kind, got %v", err)
	}
}

func TestExecutor_BreakerPassesThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`ok`))
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{AttemptTimeout: time.Second, Breaker: true, RPS: 100})
	body, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	if err != nil || string(body) != "ok" {
		t.Fatalf("unexpected: %q %v", body, err)
	}
}

func TestExecutor_BreakerIgnoresCallerCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("hang") != "" {
			<-r.Context().Done()
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{AttemptTimeout: time.Second, Breaker: true})

	pre, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 6; i++ {
		if _, err := ex.Do(pre, upstream.Request{URL: ts.URL}); err == nil {
			t.Fatalf("cancelled call %d should fail", i)
		}
	}
	for i := 0; i < 6; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := ex.Do(ctx, upstream.Request{URL: ts.URL + "?hang=1"})
		cancel()
		if err == nil {
			t.Fatalf("abandoned call %d should fail", i)
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("breaker opened on abandoned call %d", i)
		}
	}

	body, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	if err != nil || string(body) != "ok" {
		t.Fatalf("healthy provider must stay reachable: %q %v", body, err)
	}
}

func TestExecutor_BreakerOpensOnProviderFailures(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{MaxAttempts: 1, AttemptTimeout: time.Second, Breaker: true})
	for i := 0; i < 5; i++ {
		_, _ = ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	}
	_, err := ex.Do(context.Background(), upstream.Request{URL: ts.URL})
	if !errors.Is(err, gobreaker.ErrOpenState) || !domain.IsKind(err, domain.KindTransient) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 5 {
		t.Fatalf("open breaker must not reach the provider, hits=%d", hits)
	}
}

type lengthEndpoint struct{ url string }

func (e lengthEndpoint) Request() (upstream.Request, error) { return upstream.Request{URL: e.url}, nil }

func (lengthEndpoint) Parse(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, errors.New("empty")
	}
	return len(b), nil
}

func TestFetch_ParsesBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`12345`))
	}))
	defer ts.Close()

	ex := upstream.New("test", upstream.Policy{AttemptTimeout: time.Second})
	n, err := upstream.Fetch[int](context.Background(), ex, lengthEndpoint{url: ts.URL})
	if err != nil || n != 5 {
		t.Fatalf("unexpected: %d %v", n, err)
	}
}

func TestExponentialBackoff(t *testing.T) {
	b := upstream.ExponentialBackoff(100 * time.Millisecond)
	if d := b(0); d != 0 {
		t.Fatalf("retry 0 should not wait, got %s", d)
	}
	for retry, lo := range map[int]time.Duration{1: 100 * time.Millisecond, 2: 200 * time.Millisecond, 3: 400 * time.Millisecond} {
		d := b(retry)
		if d < lo || d > lo+lo/2 {
			t.Fatalf("retry %d: %s outside [%s, %s]", retry, d, lo, lo+lo/2)
		}
	}
}
