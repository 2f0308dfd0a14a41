package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nstepanov/docqa/internal/answer"
	"github.com/nstepanov/docqa/internal/llm"
	"github.com/nstepanov/docqa/internal/log"
	"github.com/nstepanov/docqa/internal/retrieval"
)

// stubAsker returns a scripted result or error.
type stubAsker struct {
	result answer.Result
	err    error
	calls  int
}

func (s *stubAsker) Ask(_ context.Context, _ answer.Request) (answer.Result, error) {
	s.calls++
	if s.err != nil {
		return answer.Result{}, s.err
	}
	return s.result, nil
}

func newTestServer(asker Asker) *Server {
	return NewServer(asker, Config{
		ListenAddr: ":0",
		RateLimit:  1000,
		RateBurst:  1000,
	}, log.NewNop())
}

func doAsk(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestAsk_Success(t *testing.T) {
	asker := &stubAsker{result: answer.Result{
		Answer:         "Paris.",
		ChunkIDs:       []string{"doc1#0"},
		SessionID:      "abc",
		RetrievalTime:  42 * time.Millisecond,
		GenerationTime: 360 * time.Millisecond,
	}}
	srv := newTestServer(asker)

	rec := doAsk(t, srv, `{"question":"What is the capital of France?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != "Paris." || resp.SessionID != "abc" {
		t.Errorf("response = %+v", resp)
	}
	if resp.RetrievalMS != 42 || resp.GenerationMS != 360 {
		t.Errorf("latency fields = %d/%d", resp.RetrievalMS, resp.GenerationMS)
	}
}

func TestAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"empty question", answer.ErrEmptyQuestion, http.StatusBadRequest, "bad_request"},
		{"retrieval failed", retrieval.ErrRetrievalFailed, http.StatusBadGateway, "retrieval_failed"},
		{"generation timeout", llm.ErrGenerationTimeout, http.StatusGatewayTimeout, "generation_timeout"},
		{"generation unavailable", llm.ErrGenerationUnavailable, http.StatusBadGateway, "generation_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&stubAsker{err: tt.err})
			rec := doAsk(t, srv, `{"question":"q"}`)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if body := decodeError(t, rec); body.Error.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", body.Error.Kind, tt.kind)
			}
		})
	}
}

func TestAsk_WrappedErrorsStillMap(t *testing.T) {
	wrapped := errors.Join(errors.New("answering question"), retrieval.ErrRetrievalFailed)
	srv := newTestServer(&stubAsker{err: wrapped})

	rec := doAsk(t, srv, `{"question":"q"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestAsk_MalformedBody(t *testing.T) {
	asker := &stubAsker{result: answer.Result{Answer: "never"}}
	srv := newTestServer(asker)

	rec := doAsk(t, srv, `{"question": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if asker.calls != 0 {
		t.Error("malformed body must not reach the service")
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&stubAsker{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestUnknownRouteReturnsErrorEnvelope(t *testing.T) {
	srv := newTestServer(&stubAsker{})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Kind != "not_found" {
		t.Errorf("kind = %q", body.Error.Kind)
	}
}

func TestRateLimit_ExhaustedBucketReturns429(t *testing.T) {
	asker := &stubAsker{result: answer.Result{Answer: "ok"}}
	srv := NewServer(asker, Config{
		ListenAddr: ":0",
		RateLimit:  0.001, // effectively no refill during the test
		RateBurst:  2,
	}, log.NewNop())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = doAsk(t, srv, `{"question":"q"}`)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last.Code)
	}
	if got := last.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q", got)
	}
	if body := decodeError(t, last); body.Error.Kind != "rate_limited" {
		t.Errorf("kind = %q", body.Error.Kind)
	}
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	rl := newRateLimiter(0.001, 1)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request from first IP should pass")
	}
	if rl.allow("10.0.0.1") {
		t.Fatal("second request from first IP should be limited")
	}
	if !rl.allow("10.0.0.2") {
		t.Fatal("a different IP has its own bucket")
	}
}
