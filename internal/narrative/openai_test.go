package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cryptopulse/internal/news"
	logx "cryptopulse/pkg/logx"
)

func testSnapshot() news.Snapshot {
	var s news.Snapshot
	for i := 0; i < 4; i++ {
		s.Append(news.Item{Title: fmt.Sprintf("bull %d", i), Currencies: []string{"BTC"}, Sentiment: news.Bullish})
	}
	s.Append(news.Item{Title: "bear", Sentiment: news.Bearish})
	return s
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("auth header = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		user := req.Messages[1].Content
		if !strings.Contains(user, "Bullish News Count: 4") {
			t.Errorf("user prompt missing counts:\n%s", user)
		}
		// Digest caps at 3 bullish headlines.
		if strings.Contains(user, "bull 3") {
			t.Errorf("digest exceeded cap:\n%s", user)
		}
		if !strings.Contains(user, "bear (general market)") {
			t.Errorf("missing general market fallback:\n%s", user)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"  wagmi 🚀  "}}]}`)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL}, logx.Nop())
	got, err := c.Summarize(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got != "wagmi 🚀" {
		t.Fatalf("Summarize = %q", got)
	}
}

func TestSummarizeRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"third time lucky"}}]}`)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL, RetryDelay: time.Millisecond}, logx.Nop())
	got, err := c.Summarize(context.Background(), testSnapshot())
	if err != nil {
		t.Fatalf("Summarize error: %v", err)
	}
	if got != "third time lucky" || calls.Load() != 3 {
		t.Fatalf("got %q after %d calls", got, calls.Load())
	}
}

func TestSummarizeDoesNotRetryAuthErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL}, logx.Nop())
	_, err := c.Summarize(context.Background(), testSnapshot())
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (no retry on 401)", calls.Load())
	}
}

func TestDisabledGenerator(t *testing.T) {
	t.Parallel()

	gen := FromConfig(Config{}, logx.Nop())
	if _, err := gen.Summarize(context.Background(), testSnapshot()); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("err = %v, want ErrUnconfigured", err)
	}
}
