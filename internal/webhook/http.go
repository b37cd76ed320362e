package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// maxErrorBody bounds how much of a failing response is kept in the error.
const maxErrorBody = 512

// runHTTP performs one substituted HTTP call. Any status in [200,300) is
// success; everything else fails the attempt with the status and a body
// excerpt.
func runHTTP(ctx context.Context, client *http.Client, act *HTTPAction, vars map[string]any) error {
	if act == nil {
		return fmt.Errorf("http action not configured")
	}
	reqURL := Substitute(act.URL, vars)
	if reqURL == "" {
		return fmt.Errorf("http action has no url")
	}
	method := act.Method
	if method == "" {
		method = http.MethodPost
	}

	body, contentType, err := buildBody(act.Body, vars)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range act.Headers {
		req.Header.Set(k, Substitute(v, vars))
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}

// buildBody serializes the configured body variant after substitution.
// A nil config means no body.
func buildBody(b *Body, vars map[string]any) (io.Reader, string, error) {
	if b == nil {
		return nil, "", nil
	}
	switch b.Type {
	case BodyJSON:
		var v any
		if err := json.Unmarshal(b.Data, &v); err != nil {
			return nil, "", fmt.Errorf("json body config: %w", err)
		}
		out, err := json.Marshal(substituteValue(v, vars))
		if err != nil {
			return nil, "", fmt.Errorf("json body: %w", err)
		}
		return bytes.NewReader(out), "application/json", nil

	case BodyForm:
		vals := url.Values{}
		for _, f := range b.Fields {
			vals.Set(f.Name, Substitute(f.Value, vars))
		}
		return strings.NewReader(vals.Encode()), "application/x-www-form-urlencoded", nil

	case BodyRaw:
		return strings.NewReader(Substitute(b.Raw, vars)), "", nil

	case BodyMultipart:
		return buildMultipart(b.Fields, vars)

	default:
		return nil, "", fmt.Errorf("unsupported body type %q", b.Type)
	}
}

func buildMultipart(fields []Field, vars map[string]any) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		value := Substitute(f.Value, vars)
		if f.Kind == FieldFile {
			file, err := os.Open(value)
			if err != nil {
				return nil, "", fmt.Errorf("multipart field %q: %w", f.Name, err)
			}
			part, err := w.CreateFormFile(f.Name, filepath.Base(value))
			if err == nil {
				_, err = io.Copy(part, file)
			}
			file.Close()
			if err != nil {
				return nil, "", fmt.Errorf("multipart field %q: %w", f.Name, err)
			}
			continue
		}
		if err := w.WriteField(f.Name, value); err != nil {
			return nil, "", fmt.Errorf("multipart field %q: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
