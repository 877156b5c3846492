package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/telemetry"
	"github.com/unkn0wn-root/apiuse/internal/vars"
)

const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 2 * 1024 * 1024
)

type Options struct {
	Timeout      time.Duration
	MaxBodyBytes int64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

type FileSystem interface {
	ReadFile(name string) ([]byte, error)
}

type OSFileSystem struct{}

func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Client turns a request definition plus resolver and global headers into an
// executed HTTP call. Execute never returns an error: every failure path is
// normalized into RunResult.Error with a nil status.
type Client struct {
	fs          FileSystem
	httpFactory func(Options) *http.Client
	telemetry   telemetry.Instrumenter
}

func NewClient(fs FileSystem) *Client {
	if fs == nil {
		fs = OSFileSystem{}
	}
	c := &Client{fs: fs, telemetry: telemetry.Noop()}
	c.httpFactory = c.buildHTTPClient
	return c
}

// SetHTTPFactory overrides how http.Client instances are created. Passing
// nil restores the default factory.
func (c *Client) SetHTTPFactory(factory func(Options) *http.Client) {
	if factory == nil {
		factory = c.buildHTTPClient
	}
	c.httpFactory = factory
}

// SetTelemetry configures the span instrumenter. Passing nil restores the
// no-op implementation.
func (c *Client) SetTelemetry(instr telemetry.Instrumenter) {
	if instr == nil {
		instr = telemetry.Noop()
	}
	c.telemetry = instr
}

// Execute runs the full pipeline: merge global and request headers, resolve
// placeholders, attach query and auth, encode the body, perform the call
// under the timeout and normalize the outcome.
func (c *Client) Execute(
	ctx context.Context,
	def model.RequestDefinition,
	resolver *vars.Resolver,
	globalHeaders []model.KV,
	opts Options,
) model.RunResult {
	opts = opts.withDefaults()
	start := time.Now()

	httpReq, err := c.prepareRequest(ctx, def, resolver, globalHeaders)
	if err != nil {
		return failedResult(start, err)
	}

	callCtx, cancel := context.WithTimeout(httpReq.Context(), opts.Timeout)
	defer cancel()
	httpReq = httpReq.WithContext(callCtx)

	spanCtx, span := c.telemetry.Start(httpReq.Context(), telemetry.RequestStart{
		RequestName: def.Name,
		HTTPRequest: httpReq,
	})
	httpReq = httpReq.WithContext(spanCtx)

	client := c.httpFactory(opts)

	start = time.Now()
	httpResp, err := client.Do(httpReq)
	if err != nil {
		span.End(telemetry.RequestResult{Err: err})
		return failedResult(start, err)
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(httpResp.Body, opts.MaxBodyBytes+1))
	if readErr != nil {
		span.End(telemetry.RequestResult{Err: readErr})
		return failedResult(start, fmt.Errorf("read response body: %w", readErr))
	}

	text := string(body)
	if int64(len(body)) > opts.MaxBodyBytes {
		text = string(body[:opts.MaxBodyBytes])
		text += fmt.Sprintf("\n\n[Truncated: body exceeded %d bytes]", opts.MaxBodyBytes)
	}

	duration := roundedMillis(start)
	span.End(telemetry.RequestResult{StatusCode: httpResp.StatusCode})

	status := httpResp.StatusCode
	return model.RunResult{
		Status:     &status,
		DurationMs: duration,
		Headers:    flattenHeaders(httpResp.Header),
		Body:       text,
	}
}

// prepareRequest assembles the transport request. Global headers come first
// (enabled, named entries only), then the request's own list; because the
// header map applies entries in order with Set, request-level values win on
// key collisions.
func (c *Client) prepareRequest(
	ctx context.Context,
	def model.RequestDefinition,
	resolver *vars.Resolver,
	globalHeaders []model.KV,
) (*http.Request, error) {
	target, err := buildURL(def, resolver)
	if err != nil {
		return nil, err
	}

	bodyReader, contentType, err := c.prepareBody(def, resolver)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, def.Method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	merged := make([]model.KV, 0, len(globalHeaders)+len(def.Headers))
	for _, h := range globalHeaders {
		if h.Enabled && h.Key != "" {
			merged = append(merged, h)
		}
	}
	merged = append(merged, def.Headers...)

	for _, h := range merged {
		if !h.Enabled || h.Key == "" {
			continue
		}
		httpReq.Header.Set(resolver.Expand(h.Key), resolver.Expand(h.Value))
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if def.Auth.Type == model.AuthBearer && def.Auth.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+def.Auth.Token)
	}

	return httpReq, nil
}

func failedResult(start time.Time, err error) model.RunResult {
	return model.RunResult{
		Status:     nil,
		DurationMs: roundedMillis(start),
		Headers:    map[string]string{},
		Body:       "",
		Error:      describeFailure(err),
	}
}

func roundedMillis(start time.Time) int64 {
	return time.Since(start).Round(time.Millisecond).Milliseconds()
}

// flattenHeaders folds multi-value response headers into one comma-joined
// value per key.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for key, values := range h {
		out[key] = strings.Join(values, ",")
	}
	return out
}
