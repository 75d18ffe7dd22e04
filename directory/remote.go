package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	logging "github.com/ipfs/go-log/v2"
)

const (
	DefaultRetryMax     = 3
	DefaultRetryWaitMin = 50 * time.Millisecond
	DefaultRetryWaitMax = 2 * time.Second
	DefaultHTTPTimeout  = 10 * time.Second
)

// Remote é um Directory acessado por HTTP. Leituras com falha transitória
// (erro de conexão, 429 ou 5xx) são repetidas com backoff. Escritas saem uma
// vez só: repetir um POST pode criar o mesmo usuário duas vezes.
type Remote struct {
	base   *url.URL
	client *retryablehttp.Client
	writer *retryablehttp.Client
}

var _ Directory = (*Remote)(nil)

type remoteConfig struct {
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	httpClient   *http.Client
}

type RemoteOption func(*remoteConfig)

// WithRetryMax define quantas vezes uma leitura com falha é repetida. Zero
// desliga a repetição.
func WithRetryMax(n int) RemoteOption {
	return func(c *remoteConfig) { c.retryMax = n }
}

func WithRetryWait(waitMin, waitMax time.Duration) RemoteOption {
	return func(c *remoteConfig) {
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

func WithHTTPClient(hc *http.Client) RemoteOption {
	return func(c *remoteConfig) { c.httpClient = hc }
}

func NewRemote(baseURL string, opts ...RemoteOption) (*Remote, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("directory url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("directory url %q: scheme and host are required", baseURL)
	}

	cfg := remoteConfig{
		retryMax:     DefaultRetryMax,
		retryWaitMin: DefaultRetryWaitMin,
		retryWaitMax: DefaultRetryWaitMax,
		httpClient:   &http.Client{Timeout: DefaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Remote{
		base: u,
		client: &retryablehttp.Client{
			HTTPClient:   cfg.httpClient,
			Logger:       leveledLogger{log},
			RetryWaitMin: cfg.retryWaitMin,
			RetryWaitMax: cfg.retryWaitMax,
			RetryMax:     cfg.retryMax,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			Backoff:      retryablehttp.DefaultBackoff,
		},
		writer: &retryablehttp.Client{
			HTTPClient: cfg.httpClient,
			Logger:     leveledLogger{log},
			RetryMax:   0,
			CheckRetry: noRetry,
			Backoff:    retryablehttp.DefaultBackoff,
		},
	}, nil
}

// noRetry nunca repete e devolve a resposta como veio, para o status chegar
// inteiro em statusError.
func noRetry(ctx context.Context, _ *http.Response, _ error) (bool, error) {
	return false, ctx.Err()
}

func (r *Remote) UserByID(ctx context.Context, id int) (User, bool, error) {
	var u User
	found, err := r.get(ctx, r.base.JoinPath("users", strconv.Itoa(id)), &u)
	return u, found, err
}

func (r *Remote) AddUser(ctx context.Context, req CreateUserRequest) (User, error) {
	if err := req.Validate(); err != nil {
		return User{}, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return User{}, err
	}
	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.base.JoinPath("users").String(), bytes.NewReader(body))
	if err != nil {
		return User{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := r.writer.Do(hreq)
	if err != nil {
		return User{}, fmt.Errorf("directory add user: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusBadRequest:
		return User{}, ErrInvalidUser
	default:
		return User{}, statusError(resp)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return User{}, fmt.Errorf("directory add user: decode: %w", err)
	}
	return u, nil
}

func (r *Remote) SeatAssignments(ctx context.Context) ([]SeatAssignment, error) {
	var out []SeatAssignment
	if _, err := r.get(ctx, r.base.JoinPath("seats", "assignments"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Remote) SeatAssignment(ctx context.Context, seatID string) (SeatAssignment, bool, error) {
	var a SeatAssignment
	found, err := r.get(ctx, r.base.JoinPath("seats", seatID, "assignment"), &a)
	return a, found, err
}

// get decodifica uma resposta 200 em v. 404 vira found=false.
func (r *Remote) get(ctx context.Context, u *url.URL, v any) (bool, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("directory get %s: %w", u.Path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	default:
		return false, statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("directory get %s: decode: %w", u.Path, err)
	}
	return true, nil
}

// StatusError é o erro para um status inesperado.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory: unexpected status %d: %s", e.Code, e.Body)
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
}

// IsStatus diz se err carrega o status HTTP informado.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// leveledLogger manda o log do retryablehttp para o go-log.
type leveledLogger struct {
	l *logging.ZapEventLogger
}

func (a leveledLogger) Error(msg string, kv ...interface{}) { a.l.Errorw(msg, kv...) }
func (a leveledLogger) Info(msg string, kv ...interface{})  { a.l.Debugw(msg, kv...) }
func (a leveledLogger) Debug(msg string, kv ...interface{}) { a.l.Debugw(msg, kv...) }
func (a leveledLogger) Warn(msg string, kv ...interface{})  { a.l.Warnw(msg, kv...) }
