// Package client is the HTTP client for the attendance API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error (HTTP %d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Client talks to the API under a base URL such as http://localhost:8080/api/v1.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the debug logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.token = token
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// send executes req and decodes the data field of the envelope into out.
func (c *Client) send(req *http.Request, out interface{}) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("api call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(raw) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		apiErr.Message = text
	}
	return apiErr
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	var res models.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var res models.LoginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Metrics fetches the dashboard snapshot.
func (c *Client) Metrics(ctx context.Context) (*models.MetricsSnapshot, error) {
	var res models.MetricsSnapshot
	if err := c.doJSON(ctx, http.MethodGet, "/metrics", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListStudents returns the roster, or the students matching name when it is not empty.
func (c *Client) ListStudents(ctx context.Context, name string) ([]models.Student, error) {
	query := url.Values{}
	if name != "" {
		query.Set("name", name)
	}
	var res []models.Student
	if err := c.doJSON(ctx, http.MethodGet, "/students", query, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateStudent adds a student to the roster.
func (c *Client) CreateStudent(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error) {
	var res models.Student
	if err := c.doJSON(ctx, http.MethodPost, "/students", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateStudent edits a student.
func (c *Client) UpdateStudent(ctx context.Context, id string, req models.UpdateStudentRequest) (*models.Student, error) {
	var res models.Student
	if err := c.doJSON(ctx, http.MethodPut, "/students/"+url.PathEscape(id), nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// MarkAttendance checks a student in.
func (c *Client) MarkAttendance(ctx context.Context, req models.MarkAttendanceRequest) (*models.MarkAttendanceResult, error) {
	var res models.MarkAttendanceResult
	if err := c.doJSON(ctx, http.MethodPost, "/attendance", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveAttendance deletes a check-in.
func (c *Client) RemoveAttendance(ctx context.Context, req models.RemoveAttendanceRequest) error {
	return c.doJSON(ctx, http.MethodDelete, "/attendance/remove", nil, req, nil)
}

// DailyAttendance lists the check-ins of date.
func (c *Client) DailyAttendance(ctx context.Context, date string) ([]models.DailyAttendanceEntry, error) {
	query := url.Values{}
	if date != "" {
		query.Set("date", date)
	}
	var res []models.DailyAttendanceEntry
	if err := c.doJSON(ctx, http.MethodGet, "/attendance/daily", query, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// TotalAttendances fetches check-in counts for ids in one request.
func (c *Client) TotalAttendances(ctx context.Context, ids []string) (map[string]int, error) {
	query := url.Values{}
	query.Set("studentIds", strings.Join(ids, ","))
	res := map[string]int{}
	if err := c.doJSON(ctx, http.MethodGet, "/attendance/total", query, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// AttendanceHistory fetches per-day counts. Empty bounds are open.
func (c *Client) AttendanceHistory(ctx context.Context, from, to string) ([]models.AttendanceHistoryPoint, error) {
	query := url.Values{}
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}
	var res []models.AttendanceHistoryPoint
	if err := c.doJSON(ctx, http.MethodGet, "/attendance/history", query, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Import uploads a roster file as the multipart field "file".
func (c *Client) Import(ctx context.Context, path string) (*models.ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer file.Close() //nolint:errcheck

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/import", nil, pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var res models.ImportResult
	if err := c.send(req, &res); err != nil {
		_ = pr.Close()
		return nil, err
	}
	return &res, nil
}

// Export is a downloaded roster file.
type Export struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportRoster downloads the roster in format (csv, xlsx or pdf).
func (c *Client) ExportRoster(ctx context.Context, format string) (*Export, error) {
	query := url.Values{}
	if format != "" {
		query.Set("format", format)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/students/export", query, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, raw)
	}

	out := &Export{ContentType: resp.Header.Get("Content-Type"), Content: raw, Filename: "roster"}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		out.Filename = filepath.Base(params["filename"])
	}
	return out, nil
}
