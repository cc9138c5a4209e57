package httputil

import (
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // target site, optionally proxied
	API      *http.Client // messaging providers
}

func NewClients(timeout time.Duration, proxyURL string) *Clients {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	transport := &http.Transport{}
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		API: &http.Client{Timeout: 20 * time.Second},
	}
}
