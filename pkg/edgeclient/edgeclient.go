// Package edgeclient implements the Edge Cluster Frontend Adapter: the
// HTTP client used once a cluster has been selected, to execute
// functions on it and report device-side latency metrics back to it.
package edgeclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

// Client is the Edge Cluster Frontend Adapter. One instance is bound
// to a single cluster endpoint for the lifetime of a SERVE session;
// the supervisor discards it on re-selection.
type Client struct {
	endpoint      string
	token         string
	applicationID int
	parser        faas.Parser
	http          *http.Client
	insecureHTTP  *http.Client // lazily built retry client, self-signed certs

	mu        sync.RWMutex
	connected atomic.Bool
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithParser overrides the default JSON parser used to serialize call
// parameters and deserialize results.
func WithParser(p faas.Parser) Option {
	return func(c *Client) { c.parser = p }
}

// WithHTTPClient overrides the client's *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates an Edge Cluster Frontend Adapter bound to endpoint,
// authenticated with token, on behalf of applicationID.
func New(endpoint, token string, applicationID int, opts ...Option) *Client {
	c := &Client{
		endpoint:      endpoint,
		token:         token,
		applicationID: applicationID,
		parser:        faas.JSONParser{},
		http:          &http.Client{Timeout: 30 * time.Second},
	}
	c.connected.Store(true)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected reports whether the last exchange with the cluster
// succeeded.
func (c *Client) Connected() bool { return c.connected.Load() }

func (c *Client) header(req *http.Request) {
	req.Header.Set("token", c.token)
}

// ExecuteFunction triggers execution of functionID on the bound
// cluster. Per Design Note (a) it always negotiates mode=sync with the
// remote regardless of call.Mode, so the adapter can evaluate the
// response immediately; ASYNC calls instead dispatch the result to
// call.Callback and return a nil response to the caller.
func (c *Client) ExecuteFunction(ctx context.Context, call faas.Call, functionID string) (*faas.ExecResponse, error) {
	uri := fmt.Sprintf("%s/v1/functions/%s/execute", c.endpoint, functionID)

	serializedParams := make([]string, 0, len(call.Params))
	for _, p := range call.Params {
		s, err := c.parser.Serialize(p)
		if err != nil {
			return nil, util.NewTransportError("edgeclient", "executeFunction", 0, err.Error())
		}
		serializedParams = append(serializedParams, s)
	}
	body, err := json.Marshal(serializedParams)
	if err != nil {
		return nil, util.NewTransportError("edgeclient", "executeFunction", 0, err.Error())
	}

	q := url.Values{}
	q.Set("app_req_id", fmt.Sprintf("%d", c.applicationID))
	q.Set("mode", string(faas.ModeSync))
	full := uri + "?" + q.Encode()

	resp, err := c.doWithInsecureRetry(ctx, http.MethodPost, full, body, call.Timeout)
	if err != nil {
		c.connected.Store(false)
		return nil, util.NewTransportError("edgeclient", "executeFunction", 0, err.Error())
	}
	defer resp.Body.Close()

	var wire struct {
		RetCode int    `json:"ret_code"`
		Res     string `json:"res"`
		Err     string `json:"err"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		c.connected.Store(false)
		return nil, util.NewTransportError("edgeclient", "executeFunction", resp.StatusCode, "malformed body")
	}

	c.evaluate(wire.RetCode)

	result := &faas.ExecResponse{Err: wire.Err}
	if wire.RetCode == http.StatusOK {
		result.RetCode = faas.RetSuccess
		deserialized, err := deserializeInto(c.parser, wire.Res)
		if err != nil {
			return nil, util.NewTransportError("edgeclient", "executeFunction", resp.StatusCode, err.Error())
		}
		result.Result = deserialized
	} else {
		result.RetCode = faas.RetError
	}

	if call.Mode == faas.ModeAsync {
		if call.Callback != nil {
			call.Callback(*result)
		}
		return nil, nil
	}
	return result, nil
}

func deserializeInto(p faas.Parser, blob string) (string, error) {
	var out string
	if err := p.Deserialize(blob, &out); err != nil {
		return blob, nil
	}
	return out, nil
}

// evaluate mirrors the original client's connection-flag heuristic:
// 200 restores the connection, 401/400 mark it lost.
func (c *Client) evaluate(retCode int) {
	switch retCode {
	case http.StatusOK:
		c.connected.Store(true)
	case http.StatusUnauthorized, http.StatusBadRequest:
		c.connected.Store(false)
	}
}

// ReportLatency sends a single device-side latency measurement.
func (c *Client) ReportLatency(ctx context.Context, latencyMS float64) error {
	uri := c.endpoint + "/v1/device_metrics"
	body, err := json.Marshal(map[string]float64{"latency": latencyMS})
	if err != nil {
		return util.NewTransportError("edgeclient", "reportLatency", 0, err.Error())
	}

	resp, err := c.doWithInsecureRetry(ctx, http.MethodPost, uri, body, 0)
	if err != nil {
		c.connected.Store(false)
		return util.NewTransportError("edgeclient", "reportLatency", 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return util.NewTransportError("edgeclient", "reportLatency", resp.StatusCode, "")
	}
	return nil
}

// doWithInsecureRetry issues the request and, on a TLS verification
// failure against what is presumed to be a self-signed cluster
// certificate, retries exactly once with verification disabled.
func (c *Client) doWithInsecureRetry(ctx context.Context, method, uri string, body []byte, timeout time.Duration) (*http.Response, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, method, uri, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.header(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err == nil {
		return resp, nil
	}

	var tlsErr *tls.CertificateVerificationError
	if !errors.As(err, &tlsErr) {
		return nil, err
	}

	c.mu.Lock()
	if c.insecureHTTP == nil {
		transport := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} // nolint:gosec
		c.insecureHTTP = &http.Client{Transport: transport, Timeout: c.http.Timeout}
	}
	insecure := c.insecureHTTP
	c.mu.Unlock()

	retry, err := http.NewRequestWithContext(reqCtx, method, uri, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.header(retry)
	retry.Header.Set("Content-Type", "application/json")
	return insecure.Do(retry)
}
