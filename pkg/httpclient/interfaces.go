package httpclient

import (
	"context"
	"errors"
	"time"
)

// TokenProvider supplies the access token attached to outgoing requests.
// An empty token with a nil error means no token is stored.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Notifier surfaces user-visible notices (missing token, non-zero rsCode).
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Downloader hands finished downloads to the platform.
type Downloader interface {
	SaveBlob(ctx context.Context, data []byte, fileName string) (string, error)
	SaveLink(ctx context.Context, href, fileName string) (string, error)
}

// Logger defines the logging surface the client relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// Level classifies a Notice.
type Level string

const (
	LevelWarning Level = "warning"
	LevelAlert   Level = "alert"
)

// Notice is a single user-facing notification raised by the client.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Code    int       `json:"code,omitempty"`
	Method  string    `json:"method,omitempty"`
	URL     string    `json:"url,omitempty"`
	At      time.Time `json:"at"`
}

// ErrNoDownloader is returned by download helpers when the client was built without a Downloader.
var ErrNoDownloader = errors.New("no downloader configured")

type noTokens struct{}

func (noTokens) Token(context.Context) (string, error) { return "", nil }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notice) {}

type noDownloader struct{}

func (noDownloader) SaveBlob(context.Context, []byte, string) (string, error) {
	return "", ErrNoDownloader
}

func (noDownloader) SaveLink(context.Context, string, string) (string, error) {
	return "", ErrNoDownloader
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}
