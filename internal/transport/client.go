package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is the counterpart to Server: it posts an Envelope to a peer
// module's /rpc/{kind} route and decodes the JSON response into result,
// grounded in utils.HTTPClient.EnviarHTTPMensaje.
type Client struct {
	baseURL string
	name string
	http *http.Client
}

// NewClient builds a Client that talks to the module at baseURL
// ("http://host:port"), identifying itself as name in the Origin field of
// every envelope it sends.
func NewClient(baseURL, name string) *Client {
	return &Client{
		baseURL: baseURL,
		name: name,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Call sends body under kind and decodes the peer's JSON reply into result.
// result must be a pointer, or nil to discard the reply body.
func (c *Client) Call(kind string, body interface{}, result interface{}) error {
	env := Envelope{Kind: kind, Origin: c.name, Body: body}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("transport: marshal envelope: %w", err)
	}

	resp, err := c.http.Post(fmt.Sprintf("%s/rpc/%s", c.baseURL, kind), "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("transport: post %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var msg bytes.Buffer
		_, _ = msg.ReadFrom(resp.Body)
		return fmt.Errorf("transport: %s returned %d: %s", kind, resp.StatusCode, msg.String())
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// Ping hits the peer's /health endpoint, mirroring
// utils.HTTPClient.VerificarConexion.
func (c *Client) Ping() error {
	resp, err := c.http.Get(fmt.Sprintf("%s/health", c.baseURL))
	if err != nil {
		return fmt.Errorf("transport: ping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transport: ping returned %d", resp.StatusCode)
	}
	return nil
}
