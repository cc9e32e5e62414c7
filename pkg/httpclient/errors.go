package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies failures surfaced by the client.
type Kind int

const (
	// KindTransport covers network failures, non-2xx statuses, timeouts and undecodable envelopes.
	KindTransport Kind = iota
	// KindRequestSetup means the request hook failed before anything was sent.
	KindRequestSetup
	// KindCancellation means the caller cancelled the request context.
	KindCancellation
	// KindApplication is a non-zero rsCode in an otherwise successful response.
	KindApplication
	// KindDownloadParse means no file name could be derived for a download.
	KindDownloadParse
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRequestSetup:
		return "request_setup"
	case KindCancellation:
		return "cancellation"
	case KindApplication:
		return "application"
	case KindDownloadParse:
		return "download_parse"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the single error type returned by client calls.
type Error struct {
	Kind   Kind
	Method string
	URL    string

	// StatusCode is the HTTP status. It is 0 when no response was received.
	StatusCode int

	// Code and Message carry rsCode / rsCause for KindApplication.
	Code    int
	Message string

	// Body is a truncated snippet of a non-2xx response body.
	Body string

	// TimedOut reports whether the transport gave up waiting.
	TimedOut bool

	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(strings.ToUpper(e.Method))
		b.WriteString(" ")
	}
	if e.URL != "" {
		b.WriteString(e.URL)
		b.WriteString(": ")
	}
	switch {
	case e.Kind == KindApplication:
		fmt.Fprintf(&b, "application error rsCode=%d", e.Code)
		if e.Message != "" {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
	case e.StatusCode != 0:
		fmt.Fprintf(&b, "http %d", e.StatusCode)
		if t := http.StatusText(e.StatusCode); t != "" {
			b.WriteString(" ")
			b.WriteString(t)
		}
		if e.Body != "" {
			b.WriteString(": ")
			b.WriteString(e.Body)
		}
	case e.TimedOut:
		b.WriteString("request timed out")
	default:
		b.WriteString(strings.ReplaceAll(e.Kind.String(), "_", " "))
		b.WriteString(" failed")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError extracts *Error.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	ce, ok := AsError(err)
	return ok && ce.Kind == k
}

// IsCancellation reports whether the caller cancelled the request.
func IsCancellation(err error) bool { return IsKind(err, KindCancellation) }

// IsApplication reports whether the server answered with a non-zero rsCode.
func IsApplication(err error) bool { return IsKind(err, KindApplication) }

// IsTimeout reports whether the transport gave up waiting for a response.
func IsTimeout(err error) bool {
	ce, ok := AsError(err)
	return ok && ce.TimedOut
}

// classify maps an error returned by resty onto the client taxonomy.
func classify(ctx context.Context, err error, method, url string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &Error{Kind: KindCancellation, Method: method, URL: url, Cause: context.Canceled}
	}
	if ce, ok := AsError(err); ok {
		return ce
	}

	ce := &Error{Kind: KindTransport, Method: method, URL: url, Cause: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		ce.TimedOut = true
	}
	return ce
}
