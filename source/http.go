package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cppla/postboard/models"
)

// DefaultBaseURL is the public demo API the collection is read from.
const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

const (
	defaultHTTPTimeout        = 10 * time.Second
	defaultHTTPConnectTimeout = 5 * time.Second
	defaultHTTPTLSTimeout     = 5 * time.Second
)

func defaultClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	dialer := &net.Dialer{
		Timeout: defaultHTTPConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHTTPTLSTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// HTTP talks to a JSONPlaceholder-compatible REST API.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP returns a client for baseURL. An empty baseURL means DefaultBaseURL.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  defaultClient(timeout),
	}
}

func (h *HTTP) FetchAll(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := h.do(ctx, http.MethodGet, "/posts", nil, &posts); err != nil {
		return nil, loadError(msgFetchPosts, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

func (h *HTTP) FetchOne(ctx context.Context, id int) (models.Post, error) {
	var post models.Post
	if err := h.do(ctx, http.MethodGet, "/posts/"+strconv.Itoa(id), nil, &post); err != nil {
		return models.Post{}, loadError(msgFetchPost, err)
	}
	return post, nil
}

type createRequest struct {
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type updateRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	EditedAt string `json:"editedAt,omitempty"`
}

// Create posts the new post without its id; the remote assigns one.
func (h *HTTP) Create(ctx context.Context, post models.Post) (models.Post, error) {
	req := createRequest{UserID: post.UserID, Title: post.Title, Body: post.Body, CreatedAt: post.CreatedAt}
	var out models.Post
	if err := h.do(ctx, http.MethodPost, "/posts", req, &out); err != nil {
		return models.Post{}, fmt.Errorf("%s: %w", msgCreatePost, err)
	}
	return out, nil
}

func (h *HTTP) Update(ctx context.Context, post models.Post) (models.Post, error) {
	req := updateRequest{Title: post.Title, Body: post.Body, EditedAt: post.EditedAt}
	var out models.Post
	if err := h.do(ctx, http.MethodPatch, "/posts/"+strconv.Itoa(post.ID), req, &out); err != nil {
		return models.Post{}, fmt.Errorf("%s: %w", msgUpdatePost, err)
	}
	return out, nil
}

func (h *HTTP) Delete(ctx context.Context, id int) error {
	if err := h.do(ctx, http.MethodDelete, "/posts/"+strconv.Itoa(id), nil, nil); err != nil {
		return fmt.Errorf("%s: %w", msgDeletePost, err)
	}
	return nil
}

// statusError is returned for non-2xx responses.
type statusError struct {
	Status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}

func (h *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &statusError{Status: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func loadError(op string, err error) *LoadError {
	le := &LoadError{Op: op, Err: err}
	if se, ok := err.(*statusError); ok {
		le.Status = se.Status
		le.Err = nil
	}
	return le
}
