// Package island is the read-only client for the island backend's
// collection API. Each fetch retrieves one collection and indexes it by
// its key field; retry and backoff are deliberately absent, the poll loop
// simply tries again next tick.
package island

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"wormmap/internal/domain"
)

const (
	endpointMachines    = "/api/machines"
	endpointNetNodes    = "/api/nodes"
	endpointAgents      = "/api/agents"
	endpointAgentEvents = "/api/agent-events"
)

// Client is a thin HTTP client for the island API.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// NewClient creates a client for the given base URL (e.g.
// https://host:5000). The token is sent as a bearer token when non-empty.
func NewClient(baseURL, authToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		http:      &http.Client{Timeout: timeout},
	}
}

// FetchMachines returns the machine inventory keyed by machine id.
func (c *Client) FetchMachines(ctx context.Context) (map[domain.MachineID]domain.Machine, error) {
	return fetchIndexed(ctx, c, endpointMachines, nil,
		func(m domain.Machine) (domain.MachineID, bool) {
			return m.ID, m.ID != 0
		})
}

// FetchNetNodes returns the network-observation records keyed by the
// observing machine's id.
func (c *Client) FetchNetNodes(ctx context.Context) (map[domain.MachineID]domain.NetNode, error) {
	return fetchIndexed(ctx, c, endpointNetNodes, nil,
		func(n domain.NetNode) (domain.MachineID, bool) {
			return n.MachineID, n.MachineID != 0
		})
}

// FetchAgents returns agent records keyed by the owning machine's id. A
// machine runs at most one agent, so last-write-wins indexing leaves the
// most recently listed record.
func (c *Client) FetchAgents(ctx context.Context) (map[domain.MachineID]domain.Agent, error) {
	return fetchIndexed(ctx, c, endpointAgents, nil,
		func(a domain.Agent) (domain.MachineID, bool) {
			return a.MachineID, a.MachineID != 0
		})
}

// FetchPropagationEvents returns successful propagation events keyed by
// target IP. The filter is applied server-side.
func (c *Client) FetchPropagationEvents(ctx context.Context) (map[string]domain.PropagationEvent, error) {
	query := url.Values{
		"type":    {"PropagationEvent"},
		"success": {"true"},
	}
	return fetchIndexed(ctx, c, endpointAgentEvents, query,
		func(e domain.PropagationEvent) (string, bool) {
			return e.Target, e.Target != ""
		})
}

// fetchIndexed reads one collection and reduces it into a mapping keyed
// by the collection's key field. Duplicate keys are last-write-wins.
// Records missing their key field are dropped with a log line; the rest
// of the collection still indexes.
func fetchIndexed[K comparable, V any](ctx context.Context, c *Client, endpoint string, query url.Values, key func(V) (K, bool)) (map[K]V, error) {
	var records []V
	if err := c.getJSON(ctx, endpoint, query, &records); err != nil {
		return nil, err
	}

	index := make(map[K]V, len(records))
	for i, record := range records {
		k, ok := key(record)
		if !ok {
			log.Printf("island: %v", &MalformedRecordError{Endpoint: endpoint, Index: i})
			continue
		}
		index[k] = record
	}
	return index, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &FetchError{Endpoint: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &FetchError{Endpoint: path, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &FetchError{
			Endpoint: path,
			Status:   res.StatusCode,
			Err:      fmt.Errorf("%s", body),
		}
	}

	// An empty body is an empty collection, not an error.
	if err := json.NewDecoder(res.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &FetchError{Endpoint: path, Status: res.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
