package outbox

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
	"time"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

var errSubjectNotFound = errors.New("schema subject not found")

// SchemaRegistryClient resolves JSON schema IDs against a Confluent Schema
// Registry for the envelope the dispatcher writes.
type SchemaRegistryClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// RegistryOption customises a SchemaRegistryClient.
type RegistryOption func(*SchemaRegistryClient)

// WithRegistryCredentials enables basic auth. An empty username disables it.
func WithRegistryCredentials(username, password string) RegistryOption {
	return func(c *SchemaRegistryClient) {
		c.username = username
		c.password = password
	}
}

// WithRegistryHTTPClient replaces the default client with its 10s timeout.
func WithRegistryHTTPClient(client *http.Client) RegistryOption {
	return func(c *SchemaRegistryClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewSchemaRegistryClient creates a client for the registry at baseURL.
func NewSchemaRegistryClient(baseURL string, opts ...RegistryOption) *SchemaRegistryClient {
	c := &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureSchema returns the ID of the latest version of subject. Only a
// missing subject triggers registration of schema; other lookup failures are
// returned.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	id, err := c.do(ctx, http.MethodGet, c.subjectURL(subject, "versions/latest"), nil)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, errSubjectNotFound) {
		return 0, fmt.Errorf("schema registry lookup %s: %w", subject, err)
	}

	body, err := json.Marshal(map[string]any{
		"schemaType": "JSON",
		"schema":     schema,
	})
	if err != nil {
		return 0, err
	}
	id, err = c.do(ctx, http.MethodPost, c.subjectURL(subject, "versions"), body)
	if err != nil {
		return 0, fmt.Errorf("schema registry register %s: %w", subject, err)
	}
	return id, nil
}

func (c *SchemaRegistryClient) subjectURL(subject, suffix string) string {
	return fmt.Sprintf("%s/subjects/%s/%s", c.baseURL, url.PathEscape(subject), suffix)
}

// do sends one request and decodes the schema id from the response.
func (c *SchemaRegistryClient) do(ctx context.Context, method, target string, body []byte) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", registryContentType)
	if body != nil {
		req.Header.Set("Content-Type", registryContentType)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return 0, errSubjectNotFound
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}

	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode registry response: %w", err)
	}
	return payload.ID, nil
}
