package harness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Probeable reports whether target is an http(s) URL the harness can probe.
func Probeable(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Probe issues a single GET against target+endpoint. Transport errors and
// 5xx responses mean the target cannot take load.
func Probe(ctx context.Context, client *http.Client, target, endpoint string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	full := strings.TrimRight(target, "/")
	if endpoint != "" {
		full += "/" + strings.TrimLeft(endpoint, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return fmt.Errorf("invalid probe url %q: %w", full, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("target unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("target unhealthy: %s returned %d", full, resp.StatusCode)
	}
	return nil
}
