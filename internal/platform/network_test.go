package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPNetworkFetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	n := NewHTTPNetwork(nil)
	deferred := n.Fetch(context.Background(), http.MethodGet, server.URL, http.Header{}, nil)

	resp, err := deferred.Resolve()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	defer resp.Body.Close()

	if resp.Status != http.StatusTeapot {
		t.Errorf("expected status %d, got %d", http.StatusTeapot, resp.Status)
	}
	if got := resp.Headers.Get("X-Test"); got != "yes" {
		t.Errorf("expected header X-Test=yes, got %q", got)
	}
}

func TestHTTPNetworkFetchInvalidURL(t *testing.T) {
	n := NewHTTPNetwork(nil)
	deferred := n.Fetch(context.Background(), http.MethodGet, "://not-a-url", http.Header{}, nil)

	_, err := deferred.Resolve()
	if err == nil {
		t.Fatal("expected an error for an invalid URL")
	}
	netErr, ok := err.(*NetworkError)
	if !ok || netErr.Code != NetworkErrorInvalidURL {
		t.Errorf("expected NetworkErrorInvalidURL, got %+v", err)
	}
}

func TestHTTPNetworkFetchConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.Listener.Addr().String()
	server.Close()

	n := NewHTTPNetwork(nil)
	n.client.RetryMax = 0
	deferred := n.Fetch(context.Background(), http.MethodGet, "http://"+addr, http.Header{}, nil)

	_, err := deferred.Resolve()
	if err == nil {
		t.Fatal("expected an error fetching from a closed listener")
	}
	if _, ok := err.(*NetworkError); !ok {
		t.Errorf("expected a *NetworkError, got %T", err)
	}
}
