// Package gateway is the only network boundary of the board client. It maps
// the server's wire records onto kanban types and classifies failures.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"kanbandash/internal/kanban"
)

const maxBody = 4 << 20

var codec = sonic.ConfigStd

// Gateway is what the cache and the optimistic engine depend on.
type Gateway interface {
	FetchBoardState(ctx context.Context) (*kanban.NormalizedState, error)
	CreateTask(ctx context.Context, fields kanban.TaskFields) (*kanban.Task, error)
	ArchiveTask(ctx context.Context, id string) error
	MoveTask(ctx context.Context, id, columnID string, order float64) (*kanban.Task, error)
}

var _ Gateway = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request. It applies to a copy of the HTTP client,
// so one passed to WithHTTPClient is not modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = &d }
}

func WithLogger(l log.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// WithWatchBackoff sets the pause between websocket reconnect attempts.
func WithWatchBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

type Client struct {
	baseURL string
	session Session
	http    *http.Client
	logger  log.FieldLogger
	backoff time.Duration
	timeout *time.Duration
}

func New(baseURL string, session Session, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  log.StandardLogger(),
		backoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout != nil {
		hc := *c.http
		hc.Timeout = *c.timeout
		c.http = &hc
	}
	return c
}

func (c *Client) Session() Session { return c.session }

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

// Login exchanges credentials for a Session. It does not need one.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out authResponse
	if err := c.send(ctx, "login", http.MethodPost, "/login", credentials{Email: email, Password: password}, &out, false); err != nil {
		return Session{}, err
	}
	return Session{Token: out.Token, UserID: out.User.ID}, nil
}

func (c *Client) Register(ctx context.Context, email, name, password string) (Session, error) {
	var out authResponse
	if err := c.send(ctx, "register", http.MethodPost, "/register", credentials{Email: email, Name: name, Password: password}, &out, false); err != nil {
		return Session{}, err
	}
	return Session{Token: out.Token, UserID: out.User.ID}, nil
}

// FetchBoardState returns the caller's board. The server creates the
// default board on the first call.
func (c *Client) FetchBoardState(ctx context.Context) (*kanban.NormalizedState, error) {
	var state kanban.NormalizedState
	if err := c.send(ctx, "fetch board", http.MethodGet, "/api/board", nil, &state, true); err != nil {
		return nil, err
	}
	if state.Columns == nil {
		state.Columns = map[string]*kanban.Column{}
	}
	if state.Tasks == nil {
		state.Tasks = map[string]*kanban.Task{}
	}
	return &state, nil
}

// ListTasks returns the non-archived tasks of the given columns, highest
// order first.
func (c *Client) ListTasks(ctx context.Context, columnIDs []string) ([]*kanban.Task, error) {
	if len(columnIDs) == 0 {
		return nil, &Error{Kind: KindValidation, Op: "list tasks", Err: errors.New("column ids are required")}
	}
	var records []kanban.TaskRecord
	path := "/api/tasks?columnIds=" + url.QueryEscape(strings.Join(columnIDs, ","))
	if err := c.send(ctx, "list tasks", http.MethodGet, path, nil, &records, true); err != nil {
		return nil, err
	}
	tasks := make([]*kanban.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, r.Task())
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, fields kanban.TaskFields) (*kanban.Task, error) {
	var rec kanban.TaskRecord
	if err := c.send(ctx, "create task", http.MethodPost, "/api/tasks", fields, &rec, true); err != nil {
		return nil, err
	}
	return rec.Task(), nil
}

func (c *Client) ArchiveTask(ctx context.Context, id string) error {
	var out struct {
		Success bool `json:"success"`
	}
	return c.send(ctx, "archive task", http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, &out, true)
}

func (c *Client) MoveTask(ctx context.Context, id, columnID string, order float64) (*kanban.Task, error) {
	body := struct {
		ColumnID string  `json:"columnId"`
		Order    float64 `json:"order"`
	}{columnID, order}
	var rec kanban.TaskRecord
	if err := c.send(ctx, "move task", http.MethodPatch, "/api/tasks/"+url.PathEscape(id)+"/move", body, &rec, true); err != nil {
		return nil, err
	}
	return rec.Task(), nil
}

func (c *Client) send(ctx context.Context, op, method, path string, in, out any, authed bool) error {
	if authed && !c.session.Valid() {
		return &Error{Kind: KindAuth, Op: op, Err: errors.New("no session")}
	}

	var body io.Reader
	if in != nil {
		data, err := codec.Marshal(in)
		if err != nil {
			return &Error{Kind: KindValidation, Op: op, Err: err}
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	c.logger.WithFields(log.Fields{
		"op":       op,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	}).Debug("gateway call")
	if err != nil {
		return &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 {
		return &Error{Kind: kindForStatus(resp.StatusCode), Op: op, Status: resp.StatusCode, Err: errors.New(serverMessage(data, resp.Status))}
	}
	if out == nil {
		return nil
	}
	if err := codec.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindTransport, Op: op, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func serverMessage(data []byte, fallback string) string {
	var body struct {
		Error string `json:"error"`
	}
	if codec.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return fallback
}
