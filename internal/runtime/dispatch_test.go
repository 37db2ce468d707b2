package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/superfaceai/one-sdk-go/internal/platform"
	"github.com/superfaceai/one-sdk-go/internal/wasmengine"
	"github.com/superfaceai/one-sdk-go/internal/wasmhost"
)

// fakeFilesystem is a platform.Filesystem double driving handleFileOpen
// without touching the real OS filesystem.
type fakeFilesystem struct {
	openErrno wasmhost.Errno
	handle    uint32
}

func (f *fakeFilesystem) Open(path string, opts platform.OpenOptions) (uint32, wasmhost.Errno) {
	if f.openErrno != wasmhost.ErrnoSuccess {
		return 0, f.openErrno
	}
	return f.handle, wasmhost.ErrnoSuccess
}
func (f *fakeFilesystem) Read(handle uint32, count int) ([]byte, wasmhost.Errno) {
	return nil, wasmhost.ErrnoSuccess
}
func (f *fakeFilesystem) Write(handle uint32, data []byte) (int, wasmhost.Errno) {
	return len(data), wasmhost.ErrnoSuccess
}
func (f *fakeFilesystem) Close(handle uint32) wasmhost.Errno { return wasmhost.ErrnoSuccess }

// fakeNetwork is a platform.Network double returning a pre-built
// DeferredResponse regardless of the request, so handleHTTPCall/
// handleHTTPCallHead can be exercised without a real HTTP round trip.
type fakeNetwork struct {
	deferred *platform.DeferredResponse
}

func (n *fakeNetwork) Fetch(ctx context.Context, method, rawURL string, headers http.Header, body []byte) *platform.DeferredResponse {
	return n.deferred
}

func newDispatchTestApp(t *testing.T, fs platform.Filesystem, network platform.Network) *App {
	t.Helper()
	inst := &fakeInstance{mem: wasmhost.NewMemory(make([]byte, 64))}
	app := New(&fakeEngine{mod: &fakeModule{inst: inst}}, wasmengine.Config{}, fs, network, &noopPersistence{}, nil)
	if err := app.LoadCore(context.Background(), []byte{}); err != nil {
		t.Fatalf("unexpected LoadCore error: %s", err)
	}
	if err := app.Init(context.Background()); err != nil {
		t.Fatalf("unexpected Init error: %s", err)
	}
	// handleFileOpen/handleHTTPCall* only need perform-state to be
	// non-nil (HandleMessage's uninitialized-state guard), they don't
	// read any of its fields.
	app.state = &performState{usecase: "X"}
	return app
}

func decodeReply(t *testing.T, reply []byte) map[string]interface{} {
	t.Helper()
	var decoded map[string]interface{}
	if err := json.Unmarshal(reply, &decoded); err != nil {
		t.Fatalf("invalid JSON reply %s: %s", reply, err)
	}
	return decoded
}

func TestDispatchFileOpenSuccessInsertsStreamHandle(t *testing.T) {
	app := newDispatchTestApp(t, &fakeFilesystem{handle: 7}, &fakeNetwork{})

	reply := decodeReply(t, app.HandleMessage([]byte(`{"kind":"file-open","path":"/ok","read":true}`)))

	if reply["kind"] != "ok" {
		t.Fatalf("expected kind ok, got %v", reply["kind"])
	}
	streamHandle := uint32(reply["stream"].(float64))
	if streamHandle == 0 {
		t.Fatal("expected a non-zero stream handle")
	}
	if app.streams.Len() != 1 {
		t.Fatalf("expected exactly one stream registered, got %d", app.streams.Len())
	}
	if _, ok := app.streams.Get(streamHandle); !ok {
		t.Error("expected the returned handle to resolve in the stream registry")
	}
}

func TestDispatchFileOpenMissingPathReturnsNoent(t *testing.T) {
	app := newDispatchTestApp(t, &fakeFilesystem{openErrno: wasmhost.ErrnoNoent}, &fakeNetwork{})

	reply := decodeReply(t, app.HandleMessage([]byte(`{"kind":"file-open","path":"/missing","read":true}`)))

	if reply["kind"] != "err" {
		t.Fatalf("expected kind err, got %v", reply["kind"])
	}
	if uint32(reply["errno"].(float64)) != uint32(wasmhost.ErrnoNoent) {
		t.Errorf("expected errno %d, got %v", wasmhost.ErrnoNoent, reply["errno"])
	}
	if app.streams.Len() != 0 {
		t.Errorf("expected no stream registered on a failed open, got %d", app.streams.Len())
	}
}

func TestDispatchHTTPCallThenHeadYieldsBodyStreamHandle(t *testing.T) {
	resp := &platform.Response{
		Status:  200,
		Headers: http.Header{"Content-Type": []string{"application/json"}},
		Body:    http.NoBody,
	}
	app := newDispatchTestApp(t, &fakeFilesystem{}, &fakeNetwork{deferred: platform.NewResolvedResponse(resp)})

	callReply := decodeReply(t, app.HandleMessage([]byte(`{"kind":"http-call","url":"https://example.com","method":"GET"}`)))
	if callReply["kind"] != "ok" {
		t.Fatalf("expected kind ok from http-call, got %v", callReply["kind"])
	}
	requestHandle := uint32(callReply["handle"].(float64))
	if requestHandle == 0 {
		t.Fatal("expected a non-zero request handle")
	}
	if app.requests.Len() != 1 {
		t.Fatalf("expected exactly one deferred request registered, got %d", app.requests.Len())
	}

	headReply := decodeReply(t, app.HandleMessage([]byte(fmt.Sprintf(`{"kind":"http-call-head","handle":%d}`, requestHandle))))
	if headReply["kind"] != "ok" {
		t.Fatalf("expected kind ok from http-call-head, got %v", headReply["kind"])
	}
	if int(headReply["status"].(float64)) != 200 {
		t.Errorf("expected status 200, got %v", headReply["status"])
	}
	bodyHandle := uint32(headReply["body_stream"].(float64))
	if bodyHandle == 0 {
		t.Fatal("expected a non-zero body_stream handle")
	}
	if app.streams.Len() != 1 {
		t.Fatalf("expected exactly one stream registered for the body, got %d", app.streams.Len())
	}
	if app.requests.Len() != 0 {
		t.Errorf("expected http-call-head to consume the deferred request, got %d remaining", app.requests.Len())
	}
}

func TestDispatchHTTPCallHeadPropagatesNetworkError(t *testing.T) {
	netErr := &platform.NetworkError{Code: platform.NetworkErrorHostNotFound, Message: "no such host"}
	app := newDispatchTestApp(t, &fakeFilesystem{}, &fakeNetwork{deferred: platform.NewFailedResponse(netErr)})

	callReply := decodeReply(t, app.HandleMessage([]byte(`{"kind":"http-call","url":"https://example.com","method":"GET"}`)))
	requestHandle := uint32(callReply["handle"].(float64))

	headReply := decodeReply(t, app.HandleMessage([]byte(fmt.Sprintf(`{"kind":"http-call-head","handle":%d}`, requestHandle))))
	if headReply["kind"] != "err" {
		t.Fatalf("expected kind err, got %v", headReply["kind"])
	}
	if headReply["error_code"] != platform.NetworkErrorHostNotFound {
		t.Errorf("expected error_code %s, got %v", platform.NetworkErrorHostNotFound, headReply["error_code"])
	}
	if app.streams.Len() != 0 {
		t.Errorf("expected no stream registered when the fetch failed, got %d", app.streams.Len())
	}
}
