// cmd/kernelctl/client.go is the shared HTTP client helper. Tokens are
// minted locally from the same signing key the server holds, so the CLI
// works against a dev kernel without a separate token service.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hedgeco/agentkernel/internal/agent"
)

type client struct {
	base  string
	agent string
	token string
	http  *http.Client
}

func newClient(base, agentName string) (*client, error) {
	key := os.Getenv("KERNEL_SIGNING_KEY")
	if key == "" {
		key = "dev-signing-key-change-in-production"
	}
	auth := agent.NewAuthenticator(key, agent.NewRegistry())
	token, err := auth.MintToken(agentName, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("mint token for %s: %w", agentName, err)
	}
	return &client{
		base:  base,
		agent: agentName,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *client) do(method, path string, body any, out any) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Agent", c.agent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, string(data))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}
