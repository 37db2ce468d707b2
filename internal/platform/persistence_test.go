package platform

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInsightsPersistenceMetricsSendsAuthAndBody(t *testing.T) {
	var gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewInsightsPersistence(NewHTTPNetwork(nil), "tok123", server.URL, "onesdk-go/test", nil)
	if err := p.PersistMetrics(context.Background(), []string{`{"a":1}`, `{"b":2}`}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	if gotAuth != "SUPERFACE-SDK-TOKEN tok123" {
		t.Errorf("expected SDK token header, got %q", gotAuth)
	}
	if gotBody != `[{"a":1},{"b":2}]` {
		t.Errorf("expected batched JSON array body, got %q", gotBody)
	}
}

func TestInsightsPersistenceDeveloperDumpWritesTimestampedFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(wd)

	p := NewInsightsPersistence(NewHTTPNetwork(nil), "", "", "", nil)
	if err := p.PersistDeveloperDump([]string{"event one", "event two"}); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error reading dir: %s", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one dump file, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "onesdk_devlog_dump_") {
		t.Errorf("expected dump filename prefix, got %q", entries[0].Name())
	}

	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("unexpected error reading dump: %s", err)
	}
	if string(content) != "event oneevent two" {
		t.Errorf("expected concatenated events, got %q", content)
	}
}
