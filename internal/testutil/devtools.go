// Package testutil provides an in-process DevTools endpoint for tests that
// exercise the CDP client without a real browser.
package testutil

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// Target is a browser target known to the fake browser.
type Target struct {
	ID    string `json:"targetId"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Cookie is a cookie returned by Network.getCookies.
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Request is one protocol command received by the fake browser.
type Request struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// TargetID returns the target a session-scoped request was sent to.
func (r Request) TargetID() string {
	return strings.TrimPrefix(r.SessionID, sessionPrefix)
}

// Handler answers a protocol command. A non-nil error is sent back as a
// protocol error.
type Handler func(req Request) (any, error)

// EvalFunc answers Runtime.evaluate for a target. A non-nil error is reported
// as a JavaScript exception.
type EvalFunc func(targetID, expression string) (any, error)

const sessionPrefix = "session-"

// FakeBrowser serves /json/version and a browser websocket that speaks enough
// of the DevTools protocol for the client and harness tests.
type FakeBrowser struct {
	Server *httptest.Server

	mu       sync.Mutex
	targets  []Target
	cookies  map[string][]Cookie // url -> cookies
	handlers map[string]Handler
	eval     EvalFunc
	calls    []Request
	events   []any
	elements map[string]int // selector -> nodeId
	conns    []*websocket.Conn
	nextID   int
}

// NewFakeBrowser starts a fake browser that is shut down when the test ends.
func NewFakeBrowser(t testing.TB) *FakeBrowser {
	t.Helper()

	f := &FakeBrowser{
		cookies:  make(map[string][]Cookie),
		handlers: make(map[string]Handler),
		elements: make(map[string]int),
	}
	f.installDefaults()

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"Browser":              "FakeChrome/1.0",
			"webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/browser/fake",
		})
	})
	mux.HandleFunc("/devtools/browser/", f.serveWS)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.Drop()
		f.Server.Close()
	})
	return f
}

// Host returns the host the fake browser listens on.
func (f *FakeBrowser) Host() string {
	host, _, _ := net.SplitHostPort(f.Server.Listener.Addr().String())
	return host
}

// Port returns the port the fake browser listens on.
func (f *FakeBrowser) Port() int {
	_, port, _ := net.SplitHostPort(f.Server.Listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// AddTarget registers a target as if the browser had opened it.
func (f *FakeBrowser) AddTarget(t Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.Type == "" {
		t.Type = "page"
	}
	f.targets = append(f.targets, t)
}

// Targets returns a snapshot of the current targets.
func (f *FakeBrowser) Targets() []Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Target(nil), f.targets...)
}

// SetCookies replaces the cookies visible to url.
func (f *FakeBrowser) SetCookies(url string, cookies ...Cookie) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cookies[url] = cookies
}

// AddElement makes selector resolvable through DOM.querySelector.
func (f *FakeBrowser) AddElement(selector string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.elements[selector] = len(f.elements) + 2
}

// OnEval installs the Runtime.evaluate responder.
func (f *FakeBrowser) OnEval(fn EvalFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eval = fn
}

// Handle overrides the responder for a method.
func (f *FakeBrowser) Handle(method string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// Calls returns the methods received so far, in order.
func (f *FakeBrowser) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	methods := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		methods = append(methods, c.Method)
	}
	return methods
}

// CallCount returns how many times method was received.
func (f *FakeBrowser) CallCount(method string) int {
	n := 0
	for _, m := range f.Calls() {
		if m == method {
			n++
		}
	}
	return n
}

// Drop closes every open websocket connection.
func (f *FakeBrowser) Drop() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// emit queues an event to be written after the current response. Callers
// hold f.mu.
func (f *FakeBrowser) emit(sessionID, method string, params any) {
	f.events = append(f.events, map[string]any{
		"sessionId": sessionID,
		"method":    method,
		"params":    params,
	})
}

func (f *FakeBrowser) serveWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	defer conn.Close()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		f.mu.Lock()
		f.calls = append(f.calls, req)
		h, ok := f.handlers[req.Method]
		f.mu.Unlock()

		var resp map[string]any
		switch {
		case !ok:
			resp = errorResponse(req.ID, fmt.Sprintf("'%s' wasn't found", req.Method))
		default:
			result, err := h(req)
			if err != nil {
				resp = errorResponse(req.ID, err.Error())
			} else {
				if result == nil {
					result = map[string]any{}
				}
				resp = map[string]any{"id": req.ID, "result": result}
			}
		}
		if req.SessionID != "" {
			resp["sessionId"] = req.SessionID
		}

		if err := conn.WriteJSON(resp); err != nil {
			return
		}

		f.mu.Lock()
		events := f.events
		f.events = nil
		f.mu.Unlock()
		for _, ev := range events {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func errorResponse(id int64, msg string) map[string]any {
	return map[string]any{
		"id":    id,
		"error": map[string]any{"code": -32000, "message": msg},
	}
}

func (f *FakeBrowser) installDefaults() {
	ok := func(Request) (any, error) { return nil, nil }
	for _, m := range []string{
		"Page.enable",
		"Target.activateTarget",
		"DOM.scrollIntoViewIfNeeded",
		"DOM.focus",
		"Input.dispatchMouseEvent",
		"Input.dispatchKeyEvent",
	} {
		f.handlers[m] = ok
	}

	f.handlers["DOM.getDocument"] = func(Request) (any, error) {
		return map[string]any{"root": map[string]int{"nodeId": 1}}, nil
	}

	f.handlers["DOM.querySelector"] = func(req Request) (any, error) {
		var p struct {
			Selector string `json:"selector"`
		}
		json.Unmarshal(req.Params, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		return map[string]int{"nodeId": f.elements[p.Selector]}, nil
	}

	f.handlers["DOM.getBoxModel"] = func(Request) (any, error) {
		return map[string]any{"model": map[string]any{
			"content": []float64{10, 20, 30, 20, 30, 40, 10, 40},
		}}, nil
	}

	f.handlers["Target.getTargets"] = func(Request) (any, error) {
		return map[string]any{"targetInfos": f.Targets()}, nil
	}

	f.handlers["Target.attachToTarget"] = func(req Request) (any, error) {
		var p struct {
			TargetID string `json:"targetId"`
		}
		json.Unmarshal(req.Params, &p)
		if _, found := f.target(p.TargetID); !found {
			return nil, fmt.Errorf("No target with given id found")
		}
		return map[string]string{"sessionId": sessionPrefix + p.TargetID}, nil
	}

	f.handlers["Target.createTarget"] = func(req Request) (any, error) {
		var p struct {
			URL string `json:"url"`
		}
		json.Unmarshal(req.Params, &p)
		f.mu.Lock()
		f.nextID++
		id := fmt.Sprintf("TAB%d", f.nextID)
		f.targets = append(f.targets, Target{ID: id, Type: "page", URL: p.URL})
		f.mu.Unlock()
		return map[string]string{"targetId": id}, nil
	}

	f.handlers["Target.closeTarget"] = func(req Request) (any, error) {
		var p struct {
			TargetID string `json:"targetId"`
		}
		json.Unmarshal(req.Params, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, t := range f.targets {
			if t.ID == p.TargetID {
				f.targets = append(f.targets[:i], f.targets[i+1:]...)
				return map[string]bool{"success": true}, nil
			}
		}
		return nil, fmt.Errorf("No target with given id found")
	}

	f.handlers["Page.navigate"] = func(req Request) (any, error) {
		var p struct {
			URL string `json:"url"`
		}
		json.Unmarshal(req.Params, &p)
		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.targets {
			if f.targets[i].ID == req.TargetID() {
				f.targets[i].URL = p.URL
			}
		}
		f.nextID++
		f.emit(req.SessionID, "Page.loadEventFired", map[string]float64{"timestamp": 1})
		return map[string]string{
			"frameId":  req.TargetID(),
			"loaderId": fmt.Sprintf("LOADER%d", f.nextID),
		}, nil
	}

	f.handlers["Network.getCookies"] = func(req Request) (any, error) {
		var p struct {
			URLs []string `json:"urls"`
		}
		json.Unmarshal(req.Params, &p)
		if len(p.URLs) == 0 {
			if t, found := f.target(req.TargetID()); found {
				p.URLs = []string{t.URL}
			}
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		out := []Cookie{}
		for _, u := range p.URLs {
			out = append(out, f.cookies[u]...)
		}
		return map[string]any{"cookies": out}, nil
	}

	f.handlers["Storage.clearCookies"] = func(Request) (any, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cookies = make(map[string][]Cookie)
		return nil, nil
	}

	f.handlers["Runtime.evaluate"] = func(req Request) (any, error) {
		var p struct {
			Expression string `json:"expression"`
		}
		json.Unmarshal(req.Params, &p)
		f.mu.Lock()
		fn := f.eval
		f.mu.Unlock()

		var value any
		if fn != nil {
			v, err := fn(req.TargetID(), p.Expression)
			if err != nil {
				return map[string]any{
					"result": map[string]string{"type": "object"},
					"exceptionDetails": map[string]any{
						"text":      "Uncaught",
						"exception": map[string]string{"description": err.Error()},
					},
				}, nil
			}
			value = v
		}
		return map[string]any{"result": evalResult(value)}, nil
	}
}

func (f *FakeBrowser) target(id string) (Target, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.targets {
		if t.ID == id {
			return t, true
		}
	}
	return Target{}, false
}

func evalResult(v any) map[string]any {
	switch v.(type) {
	case nil:
		return map[string]any{"type": "object", "subtype": "null", "value": nil}
	case string:
		return map[string]any{"type": "string", "value": v}
	case bool:
		return map[string]any{"type": "boolean", "value": v}
	case int, float64:
		return map[string]any{"type": "number", "value": v}
	default:
		return map[string]any{"type": "object", "value": v}
	}
}
