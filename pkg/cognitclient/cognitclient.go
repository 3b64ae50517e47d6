// Package cognitclient implements the Cognit Frontend Adapter: the
// thin HTTP client over the Cognit Frontend's versioned API that the
// supervisor uses to authenticate, register placement requirements,
// enumerate candidate clusters, and upload function bodies.
package cognitclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/faas"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/scheduling"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/uploadcache"
	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

// ClusterCandidate is one Edge Cluster Frontend the Cognit Frontend
// offers as a placement target.
type ClusterCandidate struct {
	Endpoint string
	Name     string
}

// Client is the Cognit Frontend Adapter. One instance is constructed
// per entry into the supervisor's INIT state; it is discarded on every
// re-authentication.
type Client struct {
	endpoint string
	username string
	password string
	parser   faas.Parser
	http     *http.Client

	mu            sync.RWMutex
	token         string
	applicationID int
	connected     bool

	uploads *uploadcache.Cache
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithParser overrides the default JSON parser used to serialize
// function payloads for upload.
func WithParser(p faas.Parser) Option {
	return func(c *Client) { c.parser = p }
}

// WithHTTPClient overrides the client's *http.Client (used by tests to
// point at an httptest.Server without touching the default transport).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Cognit Frontend Adapter for endpoint using the given
// credentials. Upload-cache entries live in uploads, not in the Client,
// so instances constructed with the same *uploadcache.Cache share them.
func New(endpoint, username, password string, uploads *uploadcache.Cache, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		username: username,
		password: password,
		parser:   faas.JSONParser{},
		http:     cleanhttp.DefaultPooledClient(),
		uploads:  uploads,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected reports the adapter's most recently observed connection
// state.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Token returns the currently held bearer token, or "" if unauthenticated.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// ApplicationID returns the app-requirements record ID, or 0 if none
// has been registered yet.
func (c *Client) ApplicationID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.applicationID
}

func (c *Client) header() map[string]string {
	return map[string]string{"token": c.Token()}
}

// Authenticate exchanges the configured username/password for a
// bearer token via HTTP Basic Auth. On success the token is stored and
// Connected() becomes true. A 401 or 403 response returns an
// *util.AuthError and any other failure an *util.TransportError; a
// failed request or an unusable response also sets Connected() to false.
func (c *Client) Authenticate(ctx context.Context) error {
	uri := c.endpoint + "/v1/authenticate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, nil)
	if err != nil {
		return util.NewTransportError("cognitclient", "authenticate", 0, err.Error())
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		c.setConnected(false)
		return util.NewTransportError("cognitclient", "authenticate", 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.setConnected(false)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return util.NewAuthError("cognitclient", fmt.Sprintf("status %d", resp.StatusCode))
		}
		return util.NewTransportError("cognitclient", "authenticate", resp.StatusCode, "")
	}

	var token string
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		c.setConnected(false)
		return util.NewTransportError("cognitclient", "authenticate", resp.StatusCode, "malformed token response")
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.setConnected(true)
	return nil
}

// RegisterOrUpdate creates the application's requirements record if
// none is held yet, otherwise updates the existing one. It validates
// the geolocation/latency rule before issuing the request.
func (c *Client) RegisterOrUpdate(ctx context.Context, req scheduling.Requirements) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return false, util.NewTransportError("cognitclient", "registerOrUpdate", 0, err.Error())
	}

	appID := c.ApplicationID()
	var method, uri string
	if appID == 0 {
		method, uri = http.MethodPost, c.endpoint+"/v1/app_requirements"
	} else {
		method, uri = http.MethodPut, fmt.Sprintf("%s/v1/app_requirements/%d", c.endpoint, appID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, uri, bytes.NewReader(body))
	if err != nil {
		return false, util.NewTransportError("cognitclient", "registerOrUpdate", 0, err.Error())
	}
	httpReq.Header.Set("token", c.Token())
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.setConnected(false)
		return false, util.NewTransportError("cognitclient", "registerOrUpdate", 0, err.Error())
	}
	defer resp.Body.Close()

	c.setConnected(resp.StatusCode < 400)

	if appID == 0 && resp.StatusCode == http.StatusOK {
		var id int
		if err := json.NewDecoder(resp.Body).Decode(&id); err == nil {
			c.mu.Lock()
			c.applicationID = id
			c.mu.Unlock()
		}
	}

	return resp.StatusCode == http.StatusOK, nil
}

// ListClusters fetches the candidate Edge Cluster Frontends for the
// held application-requirements record, in the remote's own order.
// Entries missing an EDGE_CLUSTER_FRONTEND template field are skipped.
func (c *Client) ListClusters(ctx context.Context) ([]ClusterCandidate, error) {
	uri := fmt.Sprintf("%s/v1/app_requirements/%d/ec_fe", c.endpoint, c.ApplicationID())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, util.NewTransportError("cognitclient", "listClusters", 0, err.Error())
	}
	httpReq.Header.Set("token", c.Token())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.setConnected(false)
		return nil, util.NewTransportError("cognitclient", "listClusters", 0, err.Error())
	}
	defer resp.Body.Close()

	c.setConnected(resp.StatusCode < 400)
	if resp.StatusCode >= 300 {
		return nil, util.NewTransportError("cognitclient", "listClusters", resp.StatusCode, "")
	}

	var items []struct {
		Name     string `json:"NAME"`
		Template struct {
			EdgeClusterFrontend string `json:"EDGE_CLUSTER_FRONTEND"`
		} `json:"TEMPLATE"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, util.NewTransportError("cognitclient", "listClusters", resp.StatusCode, "malformed body")
	}

	candidates := make([]ClusterCandidate, 0, len(items))
	for _, item := range items {
		if item.Template.EdgeClusterFrontend == "" {
			continue
		}
		candidates = append(candidates, ClusterCandidate{
			Endpoint: item.Template.EdgeClusterFrontend,
			Name:     item.Name,
		})
	}
	return candidates, nil
}

// ReadRequirements reads back the currently registered requirements.
func (c *Client) ReadRequirements(ctx context.Context) (*scheduling.Requirements, error) {
	uri := fmt.Sprintf("%s/v1/app_requirements/%d", c.endpoint, c.ApplicationID())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, util.NewTransportError("cognitclient", "readRequirements", 0, err.Error())
	}
	httpReq.Header.Set("token", c.Token())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.setConnected(false)
		return nil, util.NewTransportError("cognitclient", "readRequirements", 0, err.Error())
	}
	defer resp.Body.Close()

	c.setConnected(resp.StatusCode < 400)
	if resp.StatusCode != http.StatusOK {
		return nil, util.NewTransportError("cognitclient", "readRequirements", resp.StatusCode, "")
	}

	var r scheduling.Requirements
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, util.NewTransportError("cognitclient", "readRequirements", resp.StatusCode, "malformed body")
	}
	return &r, nil
}

// DeleteRequirements removes the application's requirements record.
func (c *Client) DeleteRequirements(ctx context.Context) error {
	uri := fmt.Sprintf("%s/v1/app_requirements/%d", c.endpoint, c.ApplicationID())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, uri, nil)
	if err != nil {
		return util.NewTransportError("cognitclient", "deleteRequirements", 0, err.Error())
	}
	httpReq.Header.Set("token", c.Token())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.setConnected(false)
		return util.NewTransportError("cognitclient", "deleteRequirements", 0, err.Error())
	}
	defer resp.Body.Close()

	c.setConnected(resp.StatusCode < 400)
	if resp.StatusCode != http.StatusNoContent {
		return util.NewTransportError("cognitclient", "deleteRequirements", resp.StatusCode, "")
	}
	return nil
}

// UploadFunction serializes fn via the configured parser, hashes the
// result, and delegates to the upload cache, which calls back into
// uploadToDaaS at most once per distinct fingerprint.
func (c *Client) UploadFunction(ctx context.Context, fn faas.Callable) (int, error) {
	return c.uploads.LookupOrUpload(ctx, uploaderFunc(c.uploadToDaaS), fn)
}

type uploaderFunc func(ctx context.Context, fn faas.Callable, fingerprint string) (int, error)

func (f uploaderFunc) UploadFunction(ctx context.Context, fn faas.Callable, fingerprint string) (int, error) {
	return f(ctx, fn, fingerprint)
}

func (c *Client) uploadToDaaS(ctx context.Context, fn faas.Callable, fingerprint string) (int, error) {
	serialized, err := c.parser.Serialize(fn.Payload)
	if err != nil {
		return 0, util.NewTransportError("cognitclient", "uploadFunction", 0, err.Error())
	}

	payload := struct {
		Lang   faas.Language `json:"LANG"`
		FC     string        `json:"FC"`
		FCHash string        `json:"FC_HASH"`
	}{Lang: fn.Language, FC: serialized, FCHash: fingerprint}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, util.NewTransportError("cognitclient", "uploadFunction", 0, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/daas/upload", bytes.NewReader(body))
	if err != nil {
		return 0, util.NewTransportError("cognitclient", "uploadFunction", 0, err.Error())
	}
	httpReq.Header.Set("token", c.Token())
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.setConnected(false)
		return 0, util.NewTransportError("cognitclient", "uploadFunction", 0, err.Error())
	}
	defer resp.Body.Close()

	c.setConnected(resp.StatusCode < 400)
	if resp.StatusCode != http.StatusOK {
		return 0, util.NewTransportError("cognitclient", "uploadFunction", resp.StatusCode, "")
	}

	var functionID int
	if err := json.NewDecoder(resp.Body).Decode(&functionID); err != nil {
		return 0, util.NewTransportError("cognitclient", "uploadFunction", resp.StatusCode, "malformed body")
	}
	return functionID, nil
}

// ReportLatency posts a cluster-latency map to the Cognit Frontend.
func (c *Client) ReportLatency(ctx context.Context, latencies map[string]float64) error {
	body, err := json.Marshal(latencies)
	if err != nil {
		return util.NewTransportError("cognitclient", "reportLatency", 0, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/latency", bytes.NewReader(body))
	if err != nil {
		return util.NewTransportError("cognitclient", "reportLatency", 0, err.Error())
	}
	httpReq.Header.Set("token", c.Token())
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.setConnected(false)
		return util.NewTransportError("cognitclient", "reportLatency", 0, err.Error())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.setConnected(resp.StatusCode < 400)
	if resp.StatusCode != http.StatusOK {
		return util.NewTransportError("cognitclient", "reportLatency", resp.StatusCode, "")
	}
	return nil
}

// resetApplicationID clears the held app-requirements record ID, so the
// next RegisterOrUpdate creates a new record. Nothing calls it; the
// supervisor constructs a new Client on each entry into INIT instead.
func (c *Client) resetApplicationID() {
	c.mu.Lock()
	c.applicationID = 0
	c.mu.Unlock()
}
