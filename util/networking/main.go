package networking

import (
	"net"
	"net/http"
	"sync"
	"time"

	"ncd/models"

	"github.com/quic-go/quic-go/http3"
)

var (
	defaultClient     *http.Client
	defaultClientOnce sync.Once

	hostClients      = make(map[string]models.HTTPClient)
	hostClientsMutex sync.Mutex
)

func GetDefaultHTTPClient() *http.Client {
	defaultClientOnce.Do(func() {
		defaultClient = &http.Client{
			Transport: GetBaseTransport(),
		}
	})
	return defaultClient
}

// timeouts are applied per request by the caller, the
// client itself only bounds dialing and response headers
func GetBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       100,
		ResponseHeaderTimeout: 10 * time.Second,
		DisableCompression:    false,
	}
}

// GetHostHTTPClient returns the client used for every request
// made on behalf of the given base host. clients are built once
// per host and reused for the lifetime of the process.
func GetHostHTTPClient(host string, cfg *models.HostConfig) models.HTTPClient {
	hostClientsMutex.Lock()
	defer hostClientsMutex.Unlock()

	if client, exists := hostClients[host]; exists {
		return client
	}
	if cfg == nil {
		return GetDefaultHTTPClient()
	}

	client := NewHostClient(NewClientFromConfig(cfg), cfg)
	hostClients[host] = client

	return client
}

func NewClientFromConfig(cfg *models.HostConfig) *http.Client {
	if cfg.HTTP3 {
		// quic does not go through http proxies
		return &http.Client{
			Transport: &http3.Transport{},
		}
	}
	transport := GetBaseTransport()
	if cfg.HTTPProxy != "" || cfg.HTTPSProxy != "" {
		configureProxyTransport(transport, cfg)
	}
	return &http.Client{
		Transport: transport,
	}
}
