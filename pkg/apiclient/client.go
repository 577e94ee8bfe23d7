// apiclient — типизированный HTTP-клиент API блога.
//
// Один вызов = ровно один сетевой запрос: повторы здесь не делаются,
// политика ретраев живёт в pkg/querycache.
//
// Контракт ответа:
//   - 204 → Response{Empty: true}, тело не читается;
//   - 2xx → из тела извлекается поле "data"; если поля нет — используется всё тело;
//   - не-2xx → *Error с кодом из тела ошибки или UNKNOWN_ERROR, если тело не разобрать;
//   - сетевой сбой → *Error{StatusCode: 0, Code: NETWORK_ERROR}.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pribylovaa/go-blog/pkg/envelope"
)

// maxBodyBytes — верхняя граница читаемого тела ответа.
const maxBodyBytes = 10 << 20

// CredentialStore — источник bearer-токена. Отсутствие токена не ошибка.
type CredentialStore interface {
	Token(ctx context.Context) (string, bool)
}

// Client — клиент API. Безопасен для конкурентного использования.
type Client struct {
	base      string
	http      *http.Client
	creds     CredentialStore
	userAgent string
	requestID func() string
	log       *slog.Logger
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (таймауты, транспорт, тесты).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithCredentials подключает хранилище токена.
func WithCredentials(s CredentialStore) Option {
	return func(c *Client) { c.creds = s }
}

// WithUserAgent задаёт User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRequestIDFunc включает генерацию X-Request-ID на стороне клиента.
func WithRequestIDFunc(fn func() string) Option {
	return func(c *Client) { c.requestID = fn }
}

// WithLogger задаёт логгер для отладочных записей о запросах.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New создаёт клиента для базового адреса вида "http://host:4000/api/v1".
func New(baseURL string, opts ...Option) (*Client, error) {
	const op = "apiclient.New"

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: unsupported scheme %q", op, u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%s: empty host", op)
	}

	c := &Client{
		base: strings.TrimRight(u.String(), "/"),
		http: &http.Client{Timeout: 30 * time.Second},
		log:  slog.Default(),
	}

	for _, o := range opts {
		o(c)
	}

	return c, nil
}

// Response — разобранный успешный ответ.
type Response struct {
	StatusCode int
	// Empty — ответ без тела (204 или пустое тело).
	Empty bool
	// Data — содержимое поля "data" либо всё тело, если поля нет или оно null.
	Data json.RawMessage
	// Message — необязательное поле "message" конверта.
	Message string
	// Body — исходное тело ответа.
	Body      json.RawMessage
	RequestID string
}

// Decode разбирает Data в out. Для пустого ответа out не трогается.
func (r *Response) Decode(out any) error {
	const op = "apiclient.Response.Decode"

	if r == nil || r.Empty || out == nil {
		return nil
	}

	if err := json.Unmarshal(r.Data, out); err != nil {
		return &Error{
			StatusCode: r.StatusCode,
			Code:       envelope.CodeInvalidResponse,
			Message:    fmt.Sprintf("%s: %v", op, err),
			RequestID:  r.RequestID,
			Err:        err,
		}
	}

	return nil
}

func (c *Client) Get(ctx context.Context, endpoint string, params Params) (*Response, error) {
	return c.Do(ctx, http.MethodGet, endpoint, params, nil)
}

func (c *Client) Post(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, nil, body)
}

func (c *Client) Put(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, endpoint, nil, body)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, endpoint, nil, body)
}

func (c *Client) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, nil, nil)
}

// Do выполняет один запрос. body сериализуется в JSON, если не nil.
func (c *Client) Do(ctx context.Context, method, endpoint string, params Params, body any) (*Response, error) {
	const op = "apiclient.Do"

	target, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}

		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if c.requestID != nil {
		if rid := c.requestID(); rid != "" {
			req.Header.Set("X-Request-ID", rid)
		}
	}

	if c.creds != nil {
		if token, ok := c.creds.Token(ctx); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("api_request_failed",
			slog.String("method", method),
			slog.String("url", target),
			slog.String("err", err.Error()),
		)

		return nil, &Error{
			StatusCode: 0,
			Code:       envelope.CodeNetwork,
			Message:    "Network error",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	rid := resp.Header.Get("X-Request-ID")

	c.log.Debug("api_request",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("dur", time.Since(start)),
		slog.String("request_id", rid),
	)

	if resp.StatusCode == http.StatusNoContent {
		return &Response{StatusCode: resp.StatusCode, Empty: true, RequestID: rid}, nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Code:       envelope.CodeNetwork,
			Message:    "Network error",
			RequestID:  rid,
			Err:        err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, raw, rid)
	}

	return parseSuccess(resp.StatusCode, raw, rid)
}

// buildURL склеивает base + endpoint и добавляет непустые параметры.
func (c *Client) buildURL(endpoint string, params Params) (string, error) {
	if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	u, err := url.Parse(c.base + endpoint)
	if err != nil {
		return "", err
	}

	if len(params) == 0 {
		return u.String(), nil
	}

	q := u.Query()
	params.encode(q)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func parseSuccess(status int, raw []byte, rid string) (*Response, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Response{StatusCode: status, Empty: true, RequestID: rid}, nil
	}

	if !json.Valid(raw) {
		return nil, &Error{
			StatusCode: status,
			Code:       envelope.CodeInvalidResponse,
			Message:    "Invalid response body",
			RequestID:  rid,
		}
	}

	out := &Response{StatusCode: status, Body: raw, Data: raw, RequestID: rid}

	// Только объект может быть конвертом; массив/скаляр отдаём как есть.
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return out, nil
	}

	// data: null равносилен отсутствию поля.
	if data, ok := obj["data"]; ok && !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		out.Data = data
	}

	if msg, ok := obj["message"]; ok {
		_ = json.Unmarshal(msg, &out.Message)
	}

	return out, nil
}

func parseError(status int, raw []byte, rid string) *Error {
	e := &Error{
		StatusCode: status,
		Code:       envelope.CodeUnknown,
		Message:    envelope.DefaultErrorMessage,
		RequestID:  rid,
	}

	var body struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Path    string         `json:"path"`
		Details map[string]any `json:"details"`
	}

	if err := json.Unmarshal(raw, &body); err != nil {
		return e
	}

	if body.Code != "" {
		e.Code = body.Code
	}

	if body.Message != "" {
		e.Message = body.Message
	}

	e.Path = body.Path
	e.Details = body.Details

	return e
}
