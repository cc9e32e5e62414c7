package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

// CallOption adjusts a single request before it is sent.
type CallOption func(*resty.Request)

// WithHeader sets one request header.
func WithHeader(key, value string) CallOption {
	return func(r *resty.Request) { r.SetHeader(key, value) }
}

// WithHeaders sets several request headers.
func WithHeaders(headers map[string]string) CallOption {
	return func(r *resty.Request) {
		if len(headers) > 0 {
			r.SetHeaders(headers)
		}
	}
}

// WithQuery adds one query-string parameter.
func WithQuery(key, value string) CallOption {
	return func(r *resty.Request) { r.SetQueryParam(key, value) }
}

// WithFormField adds a multipart form field. Only meaningful for Upload.
func WithFormField(key, value string) CallOption {
	return func(r *resty.Request) { r.SetFormData(map[string]string{key: value}) }
}

// UploadFile describes the file part of a multipart upload.
type UploadFile struct {
	// Field is the form field name; "file" when empty.
	Field  string
	Name   string
	Reader io.Reader
}

const defaultUploadField = "file"

// Get issues a GET with query as the query string and returns the unwrapped data.
func Get[T any](ctx context.Context, c *Client, url string, query map[string]string, opts ...CallOption) (T, error) {
	res, err := GetResult[T](ctx, c, url, query, opts...)
	return unwrap(c, http.MethodGet, url, res, err)
}

// Post sends body as the JSON payload and returns the unwrapped data.
func Post[T any](ctx context.Context, c *Client, url string, body any, opts ...CallOption) (T, error) {
	res, err := PostResult[T](ctx, c, url, body, opts...)
	return unwrap(c, http.MethodPost, url, res, err)
}

// Put sends body as the JSON payload and returns the unwrapped data.
func Put[T any](ctx context.Context, c *Client, url string, body any, opts ...CallOption) (T, error) {
	res, err := PutResult[T](ctx, c, url, body, opts...)
	return unwrap(c, http.MethodPut, url, res, err)
}

// Delete sends body as the JSON payload and returns the unwrapped data.
func Delete[T any](ctx context.Context, c *Client, url string, body any, opts ...CallOption) (T, error) {
	res, err := DeleteResult[T](ctx, c, url, body, opts...)
	return unwrap(c, http.MethodDelete, url, res, err)
}

// Upload posts file as multipart/form-data. Cancelling ctx aborts the transfer.
func Upload[T any](ctx context.Context, c *Client, url string, file UploadFile, opts ...CallOption) (T, error) {
	if file.Reader == nil {
		var zero T
		return zero, &Error{Kind: KindRequestSetup, Method: http.MethodPost, URL: url, Cause: fmt.Errorf("upload file reader is nil")}
	}
	field := strings.TrimSpace(file.Field)
	if field == "" {
		field = defaultUploadField
	}
	res, err := send[T](ctx, c, http.MethodPost, url, opts, func(r *resty.Request) {
		r.SetFileReader(field, file.Name, file.Reader)
	})
	return unwrap(c, http.MethodPost, url, res, err)
}

// GetResult is Get returning the application code alongside the data.
func GetResult[T any](ctx context.Context, c *Client, url string, query map[string]string, opts ...CallOption) (Result[T], error) {
	return send[T](ctx, c, http.MethodGet, url, opts, func(r *resty.Request) {
		if len(query) > 0 {
			r.SetQueryParams(query)
		}
	})
}

// PostResult is Post returning the application code alongside the data.
func PostResult[T any](ctx context.Context, c *Client, url string, body any, opts ...CallOption) (Result[T], error) {
	return send[T](ctx, c, http.MethodPost, url, opts, withBody(body))
}

// PutResult is Put returning the application code alongside the data.
func PutResult[T any](ctx context.Context, c *Client, url string, body any, opts ...CallOption) (Result[T], error) {
	return send[T](ctx, c, http.MethodPut, url, opts, withBody(body))
}

// DeleteResult is Delete returning the application code alongside the data.
func DeleteResult[T any](ctx context.Context, c *Client, url string, body any, opts ...CallOption) (Result[T], error) {
	return send[T](ctx, c, http.MethodDelete, url, opts, withBody(body))
}

func withBody(body any) func(*resty.Request) {
	return func(r *resty.Request) {
		if body != nil {
			r.SetBody(body)
		}
	}
}

func send[T any](ctx context.Context, c *Client, method, url string, opts []CallOption, prepare func(*resty.Request)) (Result[T], error) {
	req, st := c.newRequest(ctx, false, opts)
	if prepare != nil {
		prepare(req)
	}
	if _, err := c.execute(req, method, url); err != nil {
		return Result[T]{}, err
	}

	data, err := decodeData[T](st.envelope.Data)
	if err != nil && st.envelope.RsCode == 0 {
		return Result[T]{}, &Error{Kind: KindTransport, Method: method, URL: url, Cause: err}
	}
	return Result[T]{Data: data, Code: st.envelope.RsCode, Cause: st.envelope.RsCause}, nil
}

// unwrap applies the envelope policy: by default a non-zero rsCode still resolves with data.
func unwrap[T any](c *Client, method, url string, res Result[T], err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	if c.strict && !res.OK() {
		return res.Data, &Error{Kind: KindApplication, Method: method, URL: url, Code: res.Code, Message: res.Cause}
	}
	return res.Data, nil
}
