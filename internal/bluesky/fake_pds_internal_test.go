package bluesky

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakePDS answers XRPC calls with canned bodies keyed by method.
type fakePDS struct {
	mu        sync.Mutex
	calls     map[string]int
	auth      map[string]string
	bodies    map[string][]byte
	types     map[string]string
	responses map[string]string
}

func newFakePDS(t *testing.T, responses map[string]string) (*fakePDS, *Client) {
	t.Helper()

	pds := &fakePDS{
		calls:     map[string]int{},
		auth:      map[string]string{},
		bodies:    map[string][]byte{},
		types:     map[string]string{},
		responses: responses,
	}

	srv := httptest.NewServer(http.HandlerFunc(pds.serve))
	t.Cleanup(srv.Close)

	return pds, NewClient(srv.URL+"/", srv.Client(), slog.Default())
}

func (p *fakePDS) serve(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/xrpc/")
	body, _ := io.ReadAll(r.Body)

	p.mu.Lock()
	p.calls[method]++
	p.auth[method] = r.Header.Get("Authorization")
	p.bodies[method] = body
	p.types[method] = r.Header.Get("Content-Type")
	resp, ok := p.responses[method]
	p.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotImplemented)
		_, _ = io.WriteString(w, `{"error":"MethodNotImplemented"}`)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, resp)
}

func (p *fakePDS) count(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls[method]
}

func (p *fakePDS) body(method string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.bodies[method]
}

func (p *fakePDS) authFor(method string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.auth[method]
}

func (p *fakePDS) contentType(method string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.types[method]
}
