package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

// FetchBlob issues a GET whose response bypasses envelope unwrapping.
// The resty response is returned exactly as received.
func (c *Client) FetchBlob(ctx context.Context, url string, query map[string]string, opts ...CallOption) (*resty.Response, error) {
	req, _ := c.newRequest(ctx, true, opts)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	return c.execute(req, http.MethodGet, url)
}

// StreamDownload fetches url as a blob and hands it to the Downloader under fileName, or under
// the name carried by the content-disposition header when fileName is empty.
// It returns the location reported by the Downloader.
func (c *Client) StreamDownload(ctx context.Context, url string, query map[string]string, fileName string, opts ...CallOption) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	resp, err := c.FetchBlob(ctx, url, query, opts...)
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", classify(ctx, ctx.Err(), http.MethodGet, url)
	}

	name := strings.TrimSpace(fileName)
	if name == "" {
		name, err = FileNameFromDisposition(resp.Header().Get("Content-Disposition"))
		if err != nil {
			derr := &Error{Kind: KindDownloadParse, Method: http.MethodGet, URL: url, StatusCode: resp.StatusCode(), Cause: err}
			c.log.ErrorObj("download file name unavailable", "download_error", map[string]any{
				"url":   url,
				"error": derr.Error(),
			})
			return "", derr
		}
	}

	location, err := c.downloader.SaveBlob(ctx, resp.Body(), name)
	if err != nil {
		c.log.ErrorObj("download save failed", "download_error", map[string]any{
			"url":       url,
			"file_name": name,
			"error":     err.Error(),
		})
		return "", fmt.Errorf("save download %q: %w", name, err)
	}

	c.log.InfoObj("download completed", "download", map[string]any{
		"url":      url,
		"location": location,
		"bytes":    len(resp.Body()),
	})
	return location, nil
}

// LinkDownload hands fileURL (prefixed by baseOverride when given) to the Downloader
// without any network call.
func (c *Client) LinkDownload(ctx context.Context, fileURL, fileName, baseOverride string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	href := fileURL
	if baseOverride != "" {
		href = baseOverride + fileURL
	}

	location, err := c.downloader.SaveLink(ctx, href, fileName)
	if err != nil {
		c.log.ErrorObj("link download failed", "download_error", map[string]any{
			"href":      href,
			"file_name": fileName,
			"error":     err.Error(),
		})
		return "", fmt.Errorf("link download %q: %w", fileName, err)
	}

	c.log.InfoObj("link download created", "download", map[string]any{
		"href":     href,
		"location": location,
	})
	return location, nil
}

// FileNameFromDisposition extracts the file name from a content-disposition header:
// the second ';' segment is split on '=' and its value percent-decoded.
func FileNameFromDisposition(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", fmt.Errorf("content-disposition header missing")
	}

	parts := strings.Split(header, ";")
	if len(parts) < 2 {
		return "", fmt.Errorf("content-disposition %q has no parameters", header)
	}
	kv := strings.SplitN(parts[1], "=", 2)
	if len(kv) < 2 {
		return "", fmt.Errorf("content-disposition %q has no file name", header)
	}

	value := strings.Trim(strings.TrimSpace(kv[1]), `"`)
	// filename*=UTF-8''name
	if idx := strings.Index(value, "''"); idx >= 0 {
		value = value[idx+2:]
	}

	decoded, err := url.PathUnescape(value)
	if err != nil {
		return "", fmt.Errorf("decode file name %q: %w", value, err)
	}
	if strings.TrimSpace(decoded) == "" {
		return "", fmt.Errorf("content-disposition %q has an empty file name", header)
	}
	return decoded, nil
}
