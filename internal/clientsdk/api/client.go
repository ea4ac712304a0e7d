package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	BaseURL string
	Token   string
	// Timeout bounds every request except the event stream.
	Timeout time.Duration
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client is a typed client for the course-gate API.
type Client struct {
	http   *resty.Client
	stream *resty.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	build := func() *resty.Client {
		var rc *resty.Client
		if cfg.HTTPClient != nil {
			rc = resty.NewWithClient(cfg.HTTPClient)
		} else {
			rc = resty.New()
		}
		rc.SetBaseURL(base).SetHeader("Accept", "application/json")
		if cfg.Token != "" {
			rc.SetAuthToken(cfg.Token)
		}
		return rc
	}
	return &Client{
		http:   build().SetTimeout(cfg.Timeout),
		stream: build(),
	}
}

// SetToken swaps the bearer token, e.g. after a refresh.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
	c.stream.SetAuthToken(token)
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, classifyTransportError(op, err)
	}
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return resp.Body(), nil
	}
	se := decodeServerError(status, resp.Body())
	if transientStatus(status) {
		return nil, &TransientNetworkError{Op: op, StatusCode: status, Err: se}
	}
	return nil, se
}

func progressPath(courseID uuid.UUID, rest ...string) string {
	p := "/api/course-progress/" + courseID.String()
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (c *Client) progressCall(ctx context.Context, op, method, path string, body any) (*Progress, error) {
	raw, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return nil, err
	}
	return decodeProgress(op, raw)
}

func (c *Client) GetProgress(ctx context.Context, courseID uuid.UUID) (*Progress, error) {
	return c.progressCall(ctx, "get progress", http.MethodGet, progressPath(courseID), nil)
}

func (c *Client) CompleteVideo(ctx context.Context, courseID, videoID uuid.UUID, watchPercentage *float64) (*Progress, error) {
	body := struct {
		WatchPercentage *float64 `json:"watchPercentage,omitempty"`
	}{watchPercentage}
	return c.progressCall(ctx, "complete video", http.MethodPost, progressPath(courseID, "video", videoID.String(), "complete"), body)
}

func (c *Client) CompleteExam(ctx context.Context, courseID, examID uuid.UUID, score *float64, passed *bool) (*Progress, error) {
	body := struct {
		Score  *float64 `json:"score,omitempty"`
		Passed *bool    `json:"passed,omitempty"`
	}{score, passed}
	return c.progressCall(ctx, "complete exam", http.MethodPost, progressPath(courseID, "exam", examID.String(), "complete"), body)
}

func (c *Client) UncompleteVideo(ctx context.Context, courseID, videoID uuid.UUID) (*Progress, error) {
	return c.progressCall(ctx, "uncomplete video", http.MethodDelete, progressPath(courseID, "video", videoID.String()), nil)
}

func (c *Client) UncompleteExam(ctx context.Context, courseID, examID uuid.UUID) (*Progress, error) {
	return c.progressCall(ctx, "uncomplete exam", http.MethodDelete, progressPath(courseID, "exam", examID.String()), nil)
}

func (c *Client) ListEnrollments(ctx context.Context) (*Enrollments, error) {
	raw, err := c.do(ctx, "list enrollments", http.MethodGet, "/api/enrollments", nil)
	if err != nil {
		return nil, err
	}
	return decodeEnrollments("list enrollments", raw)
}

// OpenEventStream opens the push channel. The body stays open until ctx is
// done or the server goes away; the caller closes it.
func (c *Client) OpenEventStream(ctx context.Context) (io.ReadCloser, error) {
	resp, err := c.stream.R().
		SetContext(ctx).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Get("/api/sse/stream")
	if err != nil {
		return nil, classifyTransportError("open event stream", err)
	}
	body := resp.RawBody()
	if status := resp.StatusCode(); status != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		_ = body.Close()
		se := decodeServerError(status, raw)
		if transientStatus(status) {
			return nil, &TransientNetworkError{Op: "open event stream", StatusCode: status, Err: se}
		}
		return nil, se
	}
	return body, nil
}
