package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/classtrack/api/transport"
	"github.com/fastygo/classtrack/domain"
)

// Client talks to the classtrack HTTP API on behalf of one authenticated user.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *fasthttp.Client
}

type Option func(*Client)

// WithTimeout bounds requests whose context carries no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDialer replaces the network dialer, e.g. with an in-memory listener.
func WithDialer(dial fasthttp.DialFunc) Option {
	return func(c *Client) {
		c.http.Dial = dial
	}
}

func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: 10 * time.Second,
		http: &fasthttp.Client{
			Name:                "classtrack-client",
			MaxIdleConnDuration: time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToggleResult is the server's answer to a toggle.
type ToggleResult struct {
	State          domain.DerivedState
	FullyCompleted bool
	Archived       bool
	Statuses       []domain.CompletionRecord
}

func (c *Client) GetStatuses(ctx context.Context, taskID string) ([]domain.CompletionRecord, error) {
	var views []transport.StatusView
	if err := c.do(ctx, fasthttp.MethodGet, "/api/v1/tasks/"+url.PathEscape(taskID)+"/statuses", nil, &views); err != nil {
		return nil, err
	}
	return records(views), nil
}

func (c *Client) SetTaskStatus(ctx context.Context, taskID string, completed bool) (ToggleResult, error) {
	return c.toggle(ctx, "/api/v1/tasks/"+url.PathEscape(taskID)+"/status", completed)
}

func (c *Client) SetSubtaskStatus(ctx context.Context, taskID, subtaskID string, completed bool) (ToggleResult, error) {
	path := "/api/v1/tasks/" + url.PathEscape(taskID) + "/subtasks/" + url.PathEscape(subtaskID) + "/status"
	return c.toggle(ctx, path, completed)
}

// SetStatus writes one key and returns the statuses of its task as stored by the server.
func (c *Client) SetStatus(ctx context.Context, key domain.StatusKey, completed bool) ([]domain.CompletionRecord, error) {
	var (
		result ToggleResult
		err    error
	)
	if key.IsTaskLevel() {
		result, err = c.SetTaskStatus(ctx, key.TaskID, completed)
	} else {
		result, err = c.SetSubtaskStatus(ctx, key.TaskID, key.SubtaskID, completed)
	}
	if err != nil {
		return nil, err
	}
	return result.Statuses, nil
}

func (c *Client) GetGroupProgress(ctx context.Context, taskID string) (domain.GroupProgress, error) {
	var progress domain.GroupProgress
	err := c.do(ctx, fasthttp.MethodGet, "/api/v1/tasks/"+url.PathEscape(taskID)+"/progress", nil, &progress)
	return progress, err
}

func (c *Client) UncompletedCount(ctx context.Context) (int, error) {
	var view transport.CountView
	err := c.do(ctx, fasthttp.MethodGet, "/api/v1/me/uncompleted-count", nil, &view)
	return view.Count, err
}

func (c *Client) OverdueTasks(ctx context.Context) ([]domain.OverdueTask, error) {
	var overdue []domain.OverdueTask
	err := c.do(ctx, fasthttp.MethodGet, "/api/v1/me/overdue", nil, &overdue)
	return overdue, err
}

func (c *Client) History(ctx context.Context) ([]transport.HistoryView, error) {
	var entries []transport.HistoryView
	err := c.do(ctx, fasthttp.MethodGet, "/api/v1/me/history", nil, &entries)
	return entries, err
}

func (c *Client) toggle(ctx context.Context, path string, completed bool) (ToggleResult, error) {
	var view transport.ToggleView
	body := transport.ToggleRequest{IsCompleted: &completed}
	if err := c.do(ctx, fasthttp.MethodPut, path, body, &view); err != nil {
		return ToggleResult{}, err
	}
	return ToggleResult{
		State:          view.State,
		FullyCompleted: view.FullyCompleted,
		Archived:       view.Archived,
		Statuses:       records(view.Statuses),
	}, nil
}

// do sends one request. Failures to reach the server or to read its answer are
// TRANSIENT_NETWORK errors; error envelopes keep the server's code.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCodeTransientNetwork, "request canceled", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "encode request", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return domain.WrapError(domain.ErrCodeTransientNetwork, fmt.Sprintf("%s %s", method, path), err)
	}

	var env struct {
		Status string          `json:"status"`
		Code   string          `json:"code"`
		Data   json.RawMessage `json:"data"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		if resp.StatusCode() >= fasthttp.StatusInternalServerError {
			return domain.NewError(domain.ErrCodeInternal, fmt.Sprintf("server answered %d", resp.StatusCode()))
		}
		return domain.WrapError(domain.ErrCodeTransientNetwork, "decode response", err)
	}
	if env.Status != "success" {
		code := domain.ErrorCode(env.Code)
		if code == "" {
			code = domain.ErrCodeInternal
		}
		return domain.NewError(code, env.Error)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return domain.WrapError(domain.ErrCodeTransientNetwork, "decode response data", err)
	}
	return nil
}

func records(views []transport.StatusView) []domain.CompletionRecord {
	out := make([]domain.CompletionRecord, 0, len(views))
	for _, v := range views {
		out = append(out, v.Record(""))
	}
	return out
}
