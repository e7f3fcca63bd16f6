package icy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newStreamServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_FetchTitle(t *testing.T) {
	t.Parallel()

	t.Run("title found", func(t *testing.T) {
		t.Parallel()
		var gotIcy, gotUA string
		srv := newStreamServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotIcy = r.Header.Get("Icy-Metadata")
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("icy-metaint", "64")
			_, _ = w.Write(buildStream(64, "StreamTitle='Song A';StreamUrl='';"))
		})

		c := NewClient(WithUserAgent("test-agent"))
		title, ok, err := c.FetchTitle(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("FetchTitle: %v", err)
		}
		if !ok || title != "Song A" {
			t.Errorf("FetchTitle = (%q, %v), want (Song A, true)", title, ok)
		}
		if gotIcy != "1" {
			t.Errorf("Icy-Metadata header = %q, want 1", gotIcy)
		}
		if gotUA != "test-agent" {
			t.Errorf("User-Agent = %q, want test-agent", gotUA)
		}
	})

	t.Run("no metaint header", func(t *testing.T) {
		t.Parallel()
		srv := newStreamServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("plain audio"))
		})
		title, ok, err := NewClient().FetchTitle(context.Background(), srv.URL)
		if err != nil || ok || title != "" {
			t.Errorf("FetchTitle = (%q, %v, %v), want (\"\", false, nil)", title, ok, err)
		}
	})

	t.Run("empty block", func(t *testing.T) {
		t.Parallel()
		srv := newStreamServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("icy-metaint", "8")
			_, _ = w.Write(append(make([]byte, 8), 0))
		})
		_, ok, err := NewClient().FetchTitle(context.Background(), srv.URL)
		if err != nil || ok {
			t.Errorf("FetchTitle ok=%v err=%v, want false nil", ok, err)
		}
	})

	t.Run("bad status", func(t *testing.T) {
		t.Parallel()
		srv := newStreamServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		if _, _, err := NewClient().FetchTitle(context.Background(), srv.URL); err == nil {
			t.Fatal("expected error for 503")
		}
	})

	t.Run("invalid metaint", func(t *testing.T) {
		t.Parallel()
		srv := newStreamServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("icy-metaint", "abc")
		})
		if _, _, err := NewClient().FetchTitle(context.Background(), srv.URL); err == nil {
			t.Fatal("expected error for invalid icy-metaint")
		}
	})

	t.Run("context timeout", func(t *testing.T) {
		t.Parallel()
		block := make(chan struct{})
		srv := newStreamServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("icy-metaint", strconv.Itoa(1024))
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			select {
			case <-block:
			case <-time.After(2 * time.Second):
			}
		})
		defer close(block)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if _, _, err := NewClient().FetchTitle(ctx, srv.URL); err == nil {
			t.Fatal("expected timeout error")
		}
	})
}
