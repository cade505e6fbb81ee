package helpers

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
)

// ESOptions carries the connection settings for the user search index.
type ESOptions struct {
	Addrs    []string
	Username string
	Password string
}

// NewESClient builds the client backing the secondary user index. The
// timeouts are short on purpose: indexing is fire-and-forget and search
// degrades to empty results, so a sick cluster should surface as a fast
// error rather than a stalled request.
func NewESClient(opts ESOptions) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     opts.Addrs,
		Username:      opts.Username,
		Password:      opts.Password,
		MaxRetries:    1,
		RetryOnStatus: []int{502, 503},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   4,
			ResponseHeaderTimeout: 3 * time.Second,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext:           (&net.Dialer{Timeout: 3 * time.Second}).DialContext,
		},
	})
}
