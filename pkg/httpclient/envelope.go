package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// envelope is the wire shape every non-binary response is expected to follow.
type envelope struct {
	RsCode  int             `json:"rsCode"`
	RsCause string          `json:"rsCause"`
	Data    json.RawMessage `json:"data"`
}

// Result is an unwrapped envelope: Data plus the application code the server reported.
type Result[T any] struct {
	Data  T
	Code  int
	Cause string
}

// OK reports whether the server signalled success (rsCode == 0).
func (r Result[T]) OK() bool { return r.Code == 0 }

// Err returns a KindApplication error for a non-zero code, nil otherwise.
func (r Result[T]) Err() error {
	if r.Code == 0 {
		return nil
	}
	return &Error{Kind: KindApplication, Code: r.Code, Message: r.Cause}
}

// callState travels with a request through the resty hooks via its context.
type callState struct {
	binary   bool
	envelope envelope
}

type callStateKey struct{}

func withCallState(ctx context.Context, st *callState) context.Context {
	return context.WithValue(ctx, callStateKey{}, st)
}

func callStateFrom(ctx context.Context) *callState {
	if ctx == nil {
		return nil
	}
	st, _ := ctx.Value(callStateKey{}).(*callState)
	return st
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("decode response envelope: %w", err)
	}
	return env, nil
}

func decodeData[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode response data: %w", err)
	}
	return out, nil
}
