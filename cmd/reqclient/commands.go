package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/samvad-request-client/internal/app"
	"github.com/samvad-hq/samvad-request-client/pkg/httpclient"
)

type opener func(ctx context.Context) (*app.App, error)

// cli holds what every subcommand shares: a lazily opened runtime and the payload writer.
type cli struct {
	open    opener
	out     io.Writer
	headers map[string]string
}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	c := &cli{open: open, out: out}

	root := &cobra.Command{
		Use:   "reqclient",
		Short: "Call the API through the enveloped request client",
		Long: `reqclient sends requests to the configured API base URL, attaching the
stored access token and unwrapping the {rsCode, rsCause, data} envelope.

Examples:
  reqclient token set eyJhbGciOi...
  reqclient get /users/42 -q expand=roles
  reqclient post /orders -d '{"sku":"A-1","qty":2}'
  reqclient upload /avatars ./me.png --form userId=42
  reqclient download /reports/export -q month=2024-05
  reqclient link files/manual.pdf --name manual.pdf`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringToStringVarP(&c.headers, "header", "H", nil, "extra request header (key=value), repeatable")

	root.AddCommand(
		c.getCmd(),
		c.bodyCmd("post", "Send a POST with a JSON body", httpclient.Post[json.RawMessage]),
		c.bodyCmd("put", "Send a PUT with a JSON body", httpclient.Put[json.RawMessage]),
		c.bodyCmd("delete", "Send a DELETE with a JSON body", httpclient.Delete[json.RawMessage]),
		c.uploadCmd(),
		c.downloadCmd(),
		c.linkCmd(),
		c.tokenCmd(),
	)
	return root
}

// withApp opens the runtime for a single command and always closes it.
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (c *cli) callOptions() []httpclient.CallOption {
	if len(c.headers) == 0 {
		return nil
	}
	return []httpclient.CallOption{httpclient.WithHeaders(c.headers)}
}

func (c *cli) getCmd() *cobra.Command {
	var query map[string]string
	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Send a GET with query parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				data, err := httpclient.Get[json.RawMessage](cmd.Context(), a.Client(), args[0], query, c.callOptions()...)
				if err != nil {
					return err
				}
				return c.printPayload(data)
			})
		},
	}
	cmd.Flags().StringToStringVarP(&query, "query", "q", nil, "query parameter (key=value), repeatable")
	return cmd
}

type bodyVerb func(ctx context.Context, c *httpclient.Client, url string, body any, opts ...httpclient.CallOption) (json.RawMessage, error)

func (c *cli) bodyCmd(name, short string, verb bodyVerb) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   name + " <url>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body any
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				body = json.RawMessage(data)
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				out, err := verb(cmd.Context(), a.Client(), args[0], body, c.callOptions()...)
				if err != nil {
					return err
				}
				return c.printPayload(out)
			})
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	return cmd
}

func (c *cli) uploadCmd() *cobra.Command {
	var (
		field string
		form  map[string]string
	)
	cmd := &cobra.Command{
		Use:   "upload <url> <file>",
		Short: "Upload a file as multipart form data",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open upload file: %w", err)
			}
			defer f.Close()

			opts := c.callOptions()
			for k, v := range form {
				opts = append(opts, httpclient.WithFormField(k, v))
			}
			file := httpclient.UploadFile{Field: field, Name: filepath.Base(args[1]), Reader: f}

			return c.withApp(cmd.Context(), func(a *app.App) error {
				out, err := httpclient.Upload[json.RawMessage](cmd.Context(), a.Client(), args[0], file, opts...)
				if err != nil {
					return err
				}
				return c.printPayload(out)
			})
		},
	}
	cmd.Flags().StringVar(&field, "field", "file", "multipart field name for the file")
	cmd.Flags().StringToStringVar(&form, "form", nil, "extra form field (key=value), repeatable")
	return cmd
}

func (c *cli) downloadCmd() *cobra.Command {
	var (
		query map[string]string
		name  string
	)
	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Fetch a file and save it under the download directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				path, err := a.Client().StreamDownload(cmd.Context(), args[0], query, name, c.callOptions()...)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.out, path)
				return err
			})
		},
	}
	cmd.Flags().StringToStringVarP(&query, "query", "q", nil, "query parameter (key=value), repeatable")
	cmd.Flags().StringVar(&name, "name", "", "file name (default: from content-disposition)")
	return cmd
}

func (c *cli) linkCmd() *cobra.Command {
	var (
		name string
		base string
	)
	cmd := &cobra.Command{
		Use:   "link <file-url>",
		Short: "Save a shortcut to base URL + file URL without fetching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				// A shortcut on disk needs an absolute URL.
				if base == "" {
					base = a.Client().Config().BaseURL
				}
				path, err := a.Client().LinkDownload(cmd.Context(), args[0], name, base)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.out, path)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "file name for the shortcut")
	cmd.Flags().StringVar(&base, "base", "", "base URL override (default: api base URL)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored access token",
	}

	var ttl time.Duration
	set := &cobra.Command{
		Use:   "set <token>",
		Short: "Store the access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				return a.SetToken(args[0], ttl)
			})
		},
	}
	set.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (0 uses token_ttl_seconds)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				tok, err := a.Token(cmd.Context())
				if err != nil {
					return err
				}
				if tok == "" {
					return fmt.Errorf("no access token stored")
				}
				_, err = fmt.Fprintln(c.out, tok)
				return err
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				return a.ClearToken()
			})
		},
	}

	cmd.AddCommand(set, show, clearCmd)
	return cmd
}

// printPayload writes the unwrapped data as indented JSON.
func (c *cli) printPayload(data json.RawMessage) error {
	if len(data) == 0 {
		_, err := fmt.Fprintln(c.out, "null")
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	buf.WriteByte('\n')
	_, err := c.out.Write(buf.Bytes())
	return err
}
