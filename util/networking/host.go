package networking

import (
	"net/http"

	"ncd/models"
)

// HostClient decorates every outgoing request with the
// headers and user agent configured for a host.
type HostClient struct {
	client    models.HTTPClient
	headers   http.Header
	userAgent string
}

func NewHostClient(client models.HTTPClient, cfg *models.HostConfig) *HostClient {
	headers := make(http.Header, len(cfg.Headers))
	for name, value := range cfg.Headers {
		headers.Set(name, value)
	}
	return &HostClient{
		client:    client,
		headers:   headers,
		userAgent: cfg.UserAgent,
	}
}

func (c *HostClient) Do(req *http.Request) (*http.Response, error) {
	copyHeaders(c.headers, req.Header)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.client.Do(req)
}
