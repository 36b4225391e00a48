package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gigapi/gigapi-explorer/core"
	"github.com/google/uuid"
)

// max accepted reply body
const maxReplyBytes = 64 << 20

// HTTPClient talks JSON to the explorer proxy.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

var _ core.Transport = (*HTTPClient)(nil)

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{BaseURL: strings.TrimRight(baseURL, "/"), Client: http.DefaultClient}
}

func (c *HTTPClient) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	if err := c.get(ctx, "tables", nil, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (c *HTTPClient) GetTableState(ctx context.Context, table string) (*core.TableSchema, error) {
	var ts core.TableSchema
	if err := c.get(ctx, "state", url.Values{"table": {table}}, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// RunQuery forwards the state the request was compiled from; the proxy
// compiles it again on its side.
func (c *HTTPClient) RunQuery(ctx context.Context, req *core.Request) (*core.Response, error) {
	if req.Source == "" {
		return nil, wrap("query", fmt.Errorf("request for %s carries no state", req.Table))
	}
	var resp core.Response
	if err := c.get(ctx, "query", url.Values{"query": {req.Source}}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// User reports who the proxy authenticated.
func (c *HTTPClient) User(ctx context.Context) (*core.User, error) {
	var u core.User
	if err := c.get(ctx, "user", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) get(ctx context.Context, api string, params url.Values, out any) error {
	q := url.Values{"api": {api}, "start": {"0"}, "end": {"0"}}
	for k, v := range params {
		q[k] = v
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/?"+q.Encode(), nil)
	if err != nil {
		return wrap(api, err)
	}
	req.Header.Set(core.RequestIDKey, uuid.NewString())

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return wrap(api, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxReplyBytes))
	if err != nil {
		return wrap(api, err)
	}
	if res.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return wrap(api, fmt.Errorf("%s: %s", res.Status, e.Error))
		}
		return wrap(api, fmt.Errorf("%s", res.Status))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return wrap(api, fmt.Errorf("bad reply: %w", err))
	}
	return nil
}
