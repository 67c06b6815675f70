package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the model hub the shipped artifact is published on.
	DefaultBaseURL        = "https://huggingface.co"
	defaultMaxAttempts    = 4
	defaultInitialBackoff = 200 * time.Millisecond
)

// RemoteProvider downloads Filename from Repository once and stores it under
// CacheDir. Later calls reuse the cached copy.
type RemoteProvider struct {
	BaseURL        string
	Repository     string
	Filename       string
	Revision       string
	CacheDir       string
	Token          string
	MaxAttempts    int
	InitialBackoff time.Duration
	Client         *http.Client
	Logger         *zap.Logger
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func (p *RemoteProvider) Name() string {
	return "remote"
}

// URL returns the download location, {base}/{repository}/resolve/{revision}/{filename}.
func (p *RemoteProvider) URL() (string, error) {
	if p.Repository == "" || p.Filename == "" {
		return "", fmt.Errorf("%w: remote repository or filename not configured", ErrNotFound)
	}
	base := p.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	rev := p.Revision
	if rev == "" {
		rev = "main"
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return u.JoinPath(p.Repository, "resolve", rev, p.Filename).String(), nil
}

func (p *RemoteProvider) target() string {
	dir := p.CacheDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "shipmonitor")
	}
	return filepath.Join(dir, filepath.Base(p.Filename))
}

func (p *RemoteProvider) Fetch(ctx context.Context) (string, error) {
	target := p.target()
	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
		return target, nil
	}

	src, err := p.URL()
	if err != nil {
		return "", err
	}

	resp, err := p.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		if p.Token != "" {
			req.Header.Set("Authorization", "Bearer "+p.Token)
		}
		return req, nil
	})
	if err != nil {
		var he *httpStatusError
		if errors.As(err, &he) && he.Code == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", ErrNotFound, src)
		}
		return "", fmt.Errorf("download %s: %w", src, err)
	}
	defer resp.Body.Close()

	if err := writeAtomic(target, resp.Body); err != nil {
		return "", err
	}
	p.logger().Info("model artifact downloaded", zap.String("url", src), zap.String("path", target))
	return target, nil
}

func (p *RemoteProvider) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *RemoteProvider) client() *http.Client {
	if p.Client == nil {
		return &http.Client{Timeout: 60 * time.Second}
	}
	return p.Client
}

func (p *RemoteProvider) do(req *http.Request) (*http.Response, error) {
	resp, err := p.client().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry retries network errors, 429 and 5xx responses with exponential
// backoff. It gives up after MaxAttempts or when ctx is done.
func (p *RemoteProvider) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = defaultInitialBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := p.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
				http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				retry = true
			}
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}
		p.logger().Warn("artifact download failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

func writeAtomic(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move artifact into place: %w", err)
	}
	return nil
}
