package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/unkn0wn-root/apiuse/internal/model"
	"github.com/unkn0wn-root/apiuse/internal/vars"
)

// buildURL resolves placeholders in the url and appends the enabled query
// entries, resolving their keys and values too.
func buildURL(def model.RequestDefinition, resolver *vars.Resolver) (string, error) {
	raw := strings.TrimSpace(resolver.Expand(def.URL))
	if raw == "" {
		return "", fmt.Errorf("request url is empty")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	values := parsed.Query()
	for _, q := range def.Query {
		if !q.Enabled || q.Key == "" {
			continue
		}
		values.Add(resolver.Expand(q.Key), resolver.Expand(q.Value))
	}
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}

// prepareBody selects the encoding by the body's tagged type and returns the
// reader plus a forced content type, if any. GET requests and bodyless types
// send nothing.
func (c *Client) prepareBody(
	def model.RequestDefinition,
	resolver *vars.Resolver,
) (io.Reader, string, error) {
	if strings.EqualFold(def.Method, "GET") || def.Body.Type == model.BodyNone {
		return nil, "", nil
	}

	switch def.Body.Type {
	case model.BodyJSON:
		return strings.NewReader(def.Body.RawString()), "application/json", nil
	case model.BodyForm:
		return c.prepareFormBody(def.Body.Form)
	default:
		// text, html, script: the raw value goes out verbatim and any
		// content type comes from the caller's headers.
		return strings.NewReader(def.Body.RawString()), "", nil
	}
}

// prepareFormBody renders url-encoded pairs, switching to a multipart form
// as soon as any enabled entry references a file. File entries that cannot
// be read are skipped rather than failing the request.
func (c *Client) prepareFormBody(entries []model.FormKV) (io.Reader, string, error) {
	hasFile := false
	for _, row := range entries {
		if row.Enabled && row.Key != "" && row.ValueType == model.FormValueFile {
			hasFile = true
			break
		}
	}

	if !hasFile {
		values := url.Values{}
		for _, row := range entries {
			if !row.Enabled || row.Key == "" {
				continue
			}
			values.Add(row.Key, row.Value)
		}
		return strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, row := range entries {
		if !row.Enabled || row.Key == "" {
			continue
		}
		if row.ValueType != model.FormValueFile {
			if err := writer.WriteField(row.Key, row.Value); err != nil {
				return nil, "", fmt.Errorf("write form field: %w", err)
			}
			continue
		}

		data, err := c.fs.ReadFile(row.Value)
		if err != nil {
			continue
		}
		part, err := writer.CreateFormFile(row.Key, filepath.Base(row.Value))
		if err != nil {
			return nil, "", fmt.Errorf("create form file part: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("write form file part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finish multipart form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
