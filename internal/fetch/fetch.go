// Package fetch downloads remote source images to local disk.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Config bounds every download.
type Config struct {
	Timeout      time.Duration // whole request, including body
	MaxRedirects int
	MaxBytes     int64 // 0 means unlimited
}

// Error is the single failure type for a download. The coordinator treats
// it as fatal for the job.
type Error struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %v (status %d)", e.URL, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	errTooManyRedirects = errors.New("too many redirects")
	errTooLarge         = errors.New("response exceeds size limit")
	errBadStatus        = errors.New("unexpected status")
	errUnsupported      = errors.New("unsupported url scheme")
)

// Client downloads files over HTTP(S).
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates a client with the given limits. Zero values fall back to defaults.
func New(config Config) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRedirects < 0 {
		config.MaxRedirects = 0
	}

	c := &Client{config: config}
	c.httpClient = &http.Client{
		Timeout: config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > c.config.MaxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}
	return c
}

// Fetch streams rawURL into dest. The body is written to dest+".part" and
// renamed on success, so dest either holds the full file or does not exist.
func (c *Client) Fetch(ctx context.Context, rawURL, dest string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &Error{URL: rawURL, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &Error{URL: rawURL, Err: errUnsupported}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &Error{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", "imgtovideo/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, errTooManyRedirects) {
			return &Error{URL: rawURL, Err: errTooManyRedirects}
		}
		return &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{URL: rawURL, StatusCode: resp.StatusCode, Err: errBadStatus}
	}
	if c.config.MaxBytes > 0 && resp.ContentLength > c.config.MaxBytes {
		return &Error{URL: rawURL, StatusCode: resp.StatusCode, Err: errTooLarge}
	}

	partial := dest + ".part"
	if err := c.writeBody(resp.Body, partial); err != nil {
		os.Remove(partial)
		return &Error{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}
	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return &Error{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func (c *Client) writeBody(body io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	reader := body
	if c.config.MaxBytes > 0 {
		// One extra byte tells an exact-size body apart from an oversized one.
		reader = io.LimitReader(body, c.config.MaxBytes+1)
	}

	n, err := io.Copy(f, reader)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if c.config.MaxBytes > 0 && n > c.config.MaxBytes {
		return errTooLarge
	}
	return nil
}
