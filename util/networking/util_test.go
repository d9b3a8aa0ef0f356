package networking

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"ncd/models"

	"github.com/matryer/is"
)

func TestExtractBaseHost(t *testing.T) {
	is := is.New(t)

	host, err := ExtractBaseHost("https://cdn.video.example.co.uk/live/index.m3u8")
	is.NoErr(err)
	is.Equal(host, "example")

	host, err = ExtractBaseHost("https://www.nicovideo.jp/watch/sm9")
	is.NoErr(err)
	is.Equal(host, "nicovideo")

	_, err = ExtractBaseHost("not a url")
	is.True(err != nil)
}

func TestShouldBypassProxy(t *testing.T) {
	is := is.New(t)
	list := parseNoProxyList("localhost, .internal.net ,")
	is.True(shouldBypassProxy("localhost", list))
	is.True(shouldBypassProxy("cdn.internal.net", list))
	is.True(!shouldBypassProxy("example.com", list))
}

func TestHostClientDecoratesRequests(t *testing.T) {
	is := is.New(t)
	var seen http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
	}))
	defer srv.Close()

	client := NewHostClient(srv.Client(), &models.HostConfig{
		UserAgent: "ncd-test",
		Headers:   map[string]string{"Referer": "https://example.com/", "Origin": "https://example.com"},
	})

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	is.NoErr(err)
	req.Header.Set("Origin", "https://override.example")
	resp, err := client.Do(req)
	is.NoErr(err)
	resp.Body.Close()

	is.Equal(seen.Get("User-Agent"), "ncd-test")
	is.Equal(seen.Get("Referer"), "https://example.com/")
	is.Equal(seen.Get("Origin"), "https://override.example") // request headers win
}
