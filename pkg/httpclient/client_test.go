package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type staticTokens struct {
	token string
	err   error
	calls atomic.Int32
}

func (s *staticTokens) Token(context.Context) (string, error) {
	s.calls.Add(1)
	return s.token, s.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, code int, cause string, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"rsCode":  code,
		"rsCause": cause,
		"data":    data,
	}); err != nil {
		t.Errorf("encode envelope: %v", err)
	}
}

func TestGetAttachesTokenAndUnwrapsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(HeaderAccessToken); got != "tok-1" {
			t.Errorf("access-token header = %q", got)
		}
		if r.URL.Path != "/users/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeEnvelope(t, w, 0, "", user{ID: 7, Name: "asha"})
	}))
	defer srv.Close()

	notes := &recordingNotifier{}
	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "tok-1"}), WithNotifier(notes))

	got, err := Get[user](context.Background(), c, "/users/7", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != (user{ID: 7, Name: "asha"}) {
		t.Fatalf("unexpected payload %+v", got)
	}
	if n := len(notes.all()); n != 0 {
		t.Fatalf("expected no notices, got %d", n)
	}
}

func TestMissingTokenWarnsOncePerCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if _, ok := r.Header[http.CanonicalHeaderKey(HeaderAccessToken)]; ok {
			t.Errorf("access-token header should be absent")
		}
		writeEnvelope(t, w, 0, "", "ok")
	}))
	defer srv.Close()

	notes := &recordingNotifier{}
	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{}), WithNotifier(notes))

	for i := 0; i < 2; i++ {
		if _, err := Get[string](context.Background(), c, "/ping", nil); err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
	}

	notices := notes.all()
	if len(notices) != 2 {
		t.Fatalf("expected one warning per call (2), got %d", len(notices))
	}
	for _, n := range notices {
		if n.Level != LevelWarning || n.Message != MsgMissingToken {
			t.Fatalf("unexpected notice %+v", n)
		}
	}
	if hits.Load() != 2 {
		t.Fatalf("expected both requests to be sent, got %d", hits.Load())
	}
}

func TestTokenProviderFailureIsRequestSetupError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	storeErr := errors.New("storage unavailable")
	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{err: storeErr}))

	_, err := Post[any](context.Background(), c, "/items", map[string]string{"a": "b"})
	if !IsKind(err, KindRequestSetup) {
		t.Fatalf("expected request setup error, got %v", err)
	}
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("request should not have been sent")
	}
}

func TestNonZeroCodeAlertsAndStillResolves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, 4001, "余额不足", map[string]int{"balance": 3})
	}))
	defer srv.Close()

	notes := &recordingNotifier{}
	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}), WithNotifier(notes))

	got, err := Get[map[string]int](context.Background(), c, "/wallet", nil)
	if err != nil {
		t.Fatalf("expected call to resolve, got %v", err)
	}
	if got["balance"] != 3 {
		t.Fatalf("expected data to be returned, got %v", got)
	}

	notices := notes.all()
	if len(notices) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(notices))
	}
	if notices[0].Level != LevelAlert || notices[0].Message != "余额不足" || notices[0].Code != 4001 {
		t.Fatalf("unexpected alert %+v", notices[0])
	}
}

func TestStrictEnvelopeReturnsApplicationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, 7, "denied", nil)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}), WithStrictEnvelope())

	_, err := Put[user](context.Background(), c, "/users/1", user{Name: "x"})
	if !IsApplication(err) {
		t.Fatalf("expected application error, got %v", err)
	}
	ce, _ := AsError(err)
	if ce.Code != 7 || ce.Message != "denied" || ce.Method != http.MethodPut {
		t.Fatalf("unexpected application error %+v", ce)
	}
}

func TestResultVariantExposesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, 12, "stale", "payload")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}))

	res, err := DeleteResult[string](context.Background(), c, "/items/1", nil)
	if err != nil {
		t.Fatalf("DeleteResult: %v", err)
	}
	if res.OK() || res.Code != 12 || res.Cause != "stale" || res.Data != "payload" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !IsApplication(res.Err()) {
		t.Fatalf("expected Err to report application kind")
	}

	ok := Result[string]{Data: "x"}
	if ok.Err() != nil {
		t.Fatalf("zero code must not produce an error")
	}
}

func TestVerbsPlaceQueryAndBody(t *testing.T) {
	type seen struct {
		method string
		query  string
		body   string
	}
	var (
		mu   sync.Mutex
		reqs []seen
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, seen{method: r.Method, query: r.URL.RawQuery, body: strings.TrimSpace(string(raw))})
		mu.Unlock()
		writeEnvelope(t, w, 0, "", nil)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}))
	ctx := context.Background()
	body := map[string]string{"name": "asha"}

	if _, err := Get[any](ctx, c, "/search", map[string]string{"q": "go"}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := Post[any](ctx, c, "/items", body); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if _, err := Put[any](ctx, c, "/items/1", body); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := Delete[any](ctx, c, "/items/1", body); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(reqs) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(reqs))
	}
	if reqs[0].method != http.MethodGet || reqs[0].query != "q=go" || reqs[0].body != "" {
		t.Fatalf("unexpected GET %+v", reqs[0])
	}
	for i, want := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		r := reqs[i+1]
		if r.method != want || r.body != `{"name":"asha"}` || r.query != "" {
			t.Fatalf("unexpected %s request %+v", want, r)
		}
	}
}

func TestCallOptionsApplyHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Trace") != "abc" || r.Header.Get("User-Agent") != "reqclient-test" {
			t.Errorf("missing headers: %v", r.Header)
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("missing extra query: %s", r.URL.RawQuery)
		}
		writeEnvelope(t, w, 0, "", nil)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}), WithUserAgent("reqclient-test"))
	if _, err := Get[any](context.Background(), c, "/list", nil, WithHeader("X-Trace", "abc"), WithQuery("page", "2")); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestNon2xxIsTransportErrorWithSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html><head><title>502 Bad Gateway</title></head><body><h1>nginx</h1></body></html>")
	}))
	defer srv.Close()

	notes := &recordingNotifier{}
	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}), WithNotifier(notes))

	_, err := Get[any](context.Background(), c, "/down", nil)
	ce, ok := AsError(err)
	if !ok || ce.Kind != KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if ce.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", ce.StatusCode)
	}
	if ce.Body != "502 Bad Gateway" {
		t.Fatalf("expected html title snippet, got %q", ce.Body)
	}
	if len(notes.all()) != 0 {
		t.Fatalf("transport errors must not raise notices")
	}
}

func TestUndecodableEnvelopeIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}))
	_, err := Get[any](context.Background(), c, "/plain", nil)
	if !IsKind(err, KindTransport) || !strings.Contains(err.Error(), "decode response envelope") {
		t.Fatalf("expected envelope decode error, got %v", err)
	}
}

func TestTimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, WithTokenProvider(&staticTokens{token: "t"}))
	_, err := Get[any](context.Background(), c, "/slow", nil)
	if !IsKind(err, KindTransport) || !IsTimeout(err) {
		t.Fatalf("expected transport timeout, got %v", err)
	}
}

func TestDefaultTimeoutApplied(t *testing.T) {
	c := New(Config{BaseURL: "http://example.invalid"})
	if c.Config().Timeout != 8*time.Second {
		t.Fatalf("expected 8s default timeout, got %v", c.Config().Timeout)
	}
}

func TestWithHTTPClientLeavesCallerClientUntouched(t *testing.T) {
	hc := &http.Client{Timeout: 30 * time.Second}
	New(Config{BaseURL: "http://example.invalid", Timeout: 2 * time.Second}, WithHTTPClient(hc))
	if hc.Timeout != 30*time.Second {
		t.Fatalf("caller's http.Client timeout changed to %v", hc.Timeout)
	}
}

func TestUploadSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		content, _ := io.ReadAll(f)
		if hdr.Filename != "notes.txt" || string(content) != "hello" {
			t.Errorf("unexpected file %s %q", hdr.Filename, content)
		}
		if r.FormValue("folder") != "docs" {
			t.Errorf("missing form field, got %q", r.FormValue("folder"))
		}
		writeEnvelope(t, w, 0, "", map[string]string{"id": "f-1"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}))
	got, err := Upload[map[string]string](context.Background(), c, "/files", UploadFile{
		Name:   "notes.txt",
		Reader: strings.NewReader("hello"),
	}, WithFormField("folder", "docs"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got["id"] != "f-1" {
		t.Fatalf("unexpected upload result %v", got)
	}
}

func TestUploadCancellation(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only notices a client disconnect once the body is consumed.
		_, _ = io.Copy(io.Discard, r.Body)
		once.Do(func() { close(started) })
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := Upload[any](ctx, c, "/files", UploadFile{Name: "a.bin", Reader: strings.NewReader("data")})
	if !IsCancellation(err) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}

func TestUploadRequiresReader(t *testing.T) {
	c := New(Config{BaseURL: "http://example.invalid"})
	if _, err := Upload[any](context.Background(), c, "/files", UploadFile{Name: "x"}); !IsKind(err, KindRequestSetup) {
		t.Fatalf("expected request setup error, got %v", err)
	}
}

func TestCancelledBeforeSendIsCancellation(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, WithTokenProvider(&staticTokens{token: "t"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Get[any](ctx, c, "/x", nil); !IsCancellation(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("cancelled request should not reach the server")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindTransport, Method: "get", URL: "/a", StatusCode: 404}, "GET /a: http 404 Not Found"},
		{&Error{Kind: KindApplication, Code: 3, Message: "bad"}, "application error rsCode=3: bad"},
		{&Error{Kind: KindCancellation, URL: "/c", Cause: context.Canceled}, "/c: cancellation failed: context canceled"},
		{&Error{Kind: KindTransport, TimedOut: true}, "request timed out"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("Error() = %q, want %q", got, tc.want)
		}
	}
}
