// Package gateway is the HTTP client of the remote order and catalog
// service. Every call returns a result.Result; nothing here panics or
// returns a bare transport error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-pedidos/result"
)

// TokenSource returns the current bearer token, or "" when logged out.
type TokenSource func() string

type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	log     logrus.FieldLogger
}

func New(baseURL string, timeout time.Duration, token TokenSource, log logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
		log:     log.WithField("module", "gateway"),
	}
}

func (c *Client) ListProducts(ctx context.Context) result.Result[[]ProductDTO] {
	return call[[]ProductDTO](ctx, c, http.MethodGet, "/productos/", nil)
}

func (c *Client) ListCompanies(ctx context.Context) result.Result[[]CompanyDTO] {
	return call[[]CompanyDTO](ctx, c, http.MethodGet, "/empresas/", nil)
}

func (c *Client) ListAdvisors(ctx context.Context) result.Result[[]AdvisorDTO] {
	return call[[]AdvisorDTO](ctx, c, http.MethodGet, "/asesores/", nil)
}

func (c *Client) ListClients(ctx context.Context, advisorID uint) result.Result[[]ClientDTO] {
	q := url.Values{"id_asesor": {strconv.FormatUint(uint64(advisorID), 10)}}
	return call[[]ClientDTO](ctx, c, http.MethodGet, "/clientes/?"+q.Encode(), nil)
}

// OrderExists reports whether an order ID is taken. Only the status
// matters: any 2xx means taken, 404 means free, the body is never decoded.
func (c *Client) OrderExists(ctx context.Context, orderID string) result.Result[bool] {
	status, raw, rerr := c.do(ctx, http.MethodGet, "/pedidos/"+url.PathEscape(orderID), nil)
	switch {
	case rerr != nil:
		return result.Fail[bool](rerr)
	case status == http.StatusNotFound:
		return result.Ok(false)
	case status < 200 || status >= 300:
		return result.Fail[bool](result.HTTP(status, detail(raw)))
	}
	return result.Ok(true)
}

// CreateOrder posts a new order. When the server answers without a body
// the sent payload is returned.
func (c *Client) CreateOrder(ctx context.Context, p OrderPayload) result.Result[OrderPayload] {
	r := call[*OrderPayload](ctx, c, http.MethodPost, "/pedidos/", p)
	return echo(r, p)
}

func (c *Client) UpdateOrder(ctx context.Context, orderID string, p OrderPayload) result.Result[OrderPayload] {
	r := call[*OrderPayload](ctx, c, http.MethodPut, "/pedidos/"+url.PathEscape(orderID), p)
	return echo(r, p)
}

// UpdateCompanyCounter advances the server-side order counter of a company
// and returns the updated company.
func (c *Client) UpdateCompanyCounter(ctx context.Context, companyID uint, u CompanyCounterUpdate) result.Result[CompanyDTO] {
	path := "/empresas/" + strconv.FormatUint(uint64(companyID), 10)
	return call[CompanyDTO](ctx, c, http.MethodPut, path, u)
}

// Ping reports whether the remote service is reachable. Any HTTP answer
// counts, including error statuses.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return result.Network(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return result.Network(err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}

func echo(r result.Result[*OrderPayload], sent OrderPayload) result.Result[OrderPayload] {
	if !r.OK {
		return result.Forward[OrderPayload](r)
	}
	if r.Value == nil || r.Value.IDPedido == "" {
		return result.Ok(sent)
	}
	return result.Ok(*r.Value)
}

func call[T any](ctx context.Context, c *Client, method, path string, body any) result.Result[T] {
	status, raw, rerr := c.do(ctx, method, path, body)
	if rerr != nil {
		return result.Fail[T](rerr)
	}
	if status < 200 || status >= 300 {
		return result.Fail[T](result.HTTP(status, detail(raw)))
	}

	var out T
	if len(bytes.TrimSpace(raw)) == 0 {
		return result.Ok(out)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return result.Fail[T](result.Network(fmt.Errorf("decode %s %s: %w", method, path, err)))
	}
	return result.Ok(out)
}

// do sends one request and returns the status and raw body. Only transport
// failures are errors.
func (c *Client) do(ctx context.Context, method, path string, body any) (int, []byte, *result.Error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, result.Network(fmt.Errorf("encode %s %s: %w", method, path, err))
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, result.Network(err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"method": method, "path": path, "request_id": reqID}).WithError(err).Debug("remote call failed")
		return 0, nil, result.Network(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, result.Network(fmt.Errorf("read response: %w", err))
	}
	c.log.WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
		"request_id":  reqID,
	}).Debug("remote call")
	return resp.StatusCode, raw, nil
}

// detail extracts the message of an error body. It returns "" when there
// is none, so the status text is used instead.
func detail(raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Detail == nil {
		return ""
	}
	switch d := eb.Detail.(type) {
	case string:
		return d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
