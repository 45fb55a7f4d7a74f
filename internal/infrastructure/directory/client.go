// Package directory enumerates the user population from the remote user service.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-notification-service/internal/domain"
	"golang.org/x/time/rate"
)

// TokenSource returns a bearer token for calls to the user service.
type TokenSource func() (string, error)

type Options struct {
	BaseURL  string
	PageSize int
	Timeout  time.Duration // per page request
	PageRPS  float64       // 0 disables throttling
	Token    TokenSource
	HTTP     *http.Client
}

// Client pages through GET /api/users. A response that is a bare JSON array is one
// complete page; an envelope with next_cursor is followed until the cursor is empty.
type Client struct {
	http     *http.Client
	baseURL  string
	pageSize int
	timeout  time.Duration
	limiter  *rate.Limiter
	token    TokenSource
}

func New(opts Options) *Client {
	c := &Client{
		http:     opts.HTTP,
		baseURL:  opts.BaseURL,
		pageSize: opts.PageSize,
		timeout:  opts.Timeout,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		token:    opts.Token,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.pageSize <= 0 {
		c.pageSize = 200
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if opts.PageRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.PageRPS), 1)
	}
	return c
}

type userDTO struct {
	ID   flexID `json:"id"`
	Role string `json:"role"`
}

type pageDTO struct {
	Data       []userDTO `json:"data"`
	NextCursor string    `json:"next_cursor"`
}

// flexID accepts numeric or string identifiers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id %s: %w", b, err)
	}
	*f = flexID(n.String())
	return nil
}

// Users yields every user lazily, one page in memory at a time. A failure is yielded
// once as ErrDirectoryUnavailable and ends the sequence.
func (c *Client) Users(ctx context.Context) iter.Seq2[domain.DirectoryUser, error] {
	return func(yield func(domain.DirectoryUser, error) bool) {
		cursor := ""
		for {
			if err := c.limiter.Wait(ctx); err != nil {
				yield(domain.DirectoryUser{}, fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err))
				return
			}
			page, err := c.fetchPage(ctx, cursor)
			if err != nil {
				yield(domain.DirectoryUser{}, fmt.Errorf("%w: %w", domain.ErrDirectoryUnavailable, err))
				return
			}
			for _, u := range page.Data {
				if !yield(domain.DirectoryUser{ID: string(u.ID), Role: u.Role}, nil) {
					return
				}
			}
			if page.NextCursor == "" {
				return
			}
			if page.NextCursor == cursor {
				yield(domain.DirectoryUser{}, fmt.Errorf("%w: cursor %q did not advance", domain.ErrDirectoryUnavailable, cursor))
				return
			}
			cursor = page.NextCursor
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, cursor string) (pageDTO, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/users?"+q.Encode(), nil)
	if err != nil {
		return pageDTO{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		tok, err := c.token()
		if err != nil {
			return pageDTO{}, fmt.Errorf("service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pageDTO{}, fmt.Errorf("request users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pageDTO{}, fmt.Errorf("user service status=%d body=%s", resp.StatusCode, bytes.TrimSpace(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pageDTO{}, fmt.Errorf("read users: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var users []userDTO
		if err := json.Unmarshal(raw, &users); err != nil {
			return pageDTO{}, fmt.Errorf("decode users: %w", err)
		}
		return pageDTO{Data: users}, nil
	}
	var page pageDTO
	if err := json.Unmarshal(raw, &page); err != nil {
		return pageDTO{}, fmt.Errorf("decode users page: %w", err)
	}
	return page, nil
}
