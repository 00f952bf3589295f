package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrNoLeader is returned when the registry has no live leader.
var ErrNoLeader = errors.New("no leader available")

// Client talks to a Registry over HTTP.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the registry at base (e.g. http://127.0.0.1:7000).
// A nil httpClient means http.DefaultClient.
func NewClient(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

// Leader returns the current leader.
func (c *Client) Leader(ctx context.Context) (LeaderInfo, error) {
	var leader LeaderInfo
	resp, err := c.do(ctx, http.MethodGet, "/leader", nil)
	if err != nil {
		return leader, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return leader, ErrNoLeader
	}
	if resp.StatusCode != http.StatusOK {
		return leader, fmt.Errorf("query leader: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&leader); err != nil {
		return leader, fmt.Errorf("failed to parse leader info: %w", err)
	}
	return leader, nil
}

// LeaderGRPCAddr returns a dialable gRPC address for the leader. An address
// without a host ("":9090") is taken to mean localhost.
func (c *Client) LeaderGRPCAddr(ctx context.Context) (string, error) {
	leader, err := c.Leader(ctx)
	if err != nil {
		return "", err
	}
	if leader.GRPCAddr == "" {
		return "", fmt.Errorf("leader gRPC address not available")
	}
	addr := leader.GRPCAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return addr, nil
}

// PublishLeader announces info as the current leader.
func (c *Client) PublishLeader(ctx context.Context, info LeaderInfo) error {
	return c.send(ctx, http.MethodPut, "/leader", info)
}

// RequestJoin asks the leader to add this node as a voter.
func (c *Client) RequestJoin(ctx context.Context, jr JoinRequest) error {
	return c.send(ctx, http.MethodPost, "/join-requests", jr)
}

// JoinRequests lists pending join requests.
func (c *Client) JoinRequests(ctx context.Context) ([]JoinRequest, error) {
	resp, err := c.do(ctx, http.MethodGet, "/join-requests", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list join requests: status %d", resp.StatusCode)
	}
	var list []JoinRequest
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to parse join requests: %w", err)
	}
	return list, nil
}

// DeleteJoinRequest removes a handled join request.
func (c *Client) DeleteJoinRequest(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/join-requests?id="+url.QueryEscape(id), nil)
}

func (c *Client) send(ctx context.Context, method, path string, body any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query mandi: %w", err)
	}
	return resp, nil
}
