// Package probe health-checks the proxy and individual sites. Probes
// never mutate state and are safe to call concurrently.
package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

const (
	// SiteTimeout bounds a per-site HTTPS HEAD probe.
	SiteTimeout = 2 * time.Second
	// AdminTimeout bounds the local administrative endpoint probe.
	AdminTimeout = 1 * time.Second
	// AdminPort is the proxy's fixed loopback admin port.
	AdminPort = 2019
)

// siteClient skips certificate verification: the proxy serves
// locally-trusted certificates that the probing process may not trust.
// Redirects are not followed; a 3xx already proves the site is up.
var siteClient = &http.Client{
	Timeout: SiteTimeout,
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

var adminClient = &http.Client{Timeout: AdminTimeout}

// Site issues a short-timeout HTTPS HEAD request against the site's
// effective URL and reports whether it answered with a 2xx/3xx.
// Timeouts, refused connections and other statuses all return an error.
func Site(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, SiteTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}

	resp, err := siteClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}
	return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
}

// Admin reports whether the proxy's local administrative endpoint is
// reachable.
func Admin(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, AdminTimeout)
	defer cancel()

	url := fmt.Sprintf("http://127.0.0.1:%d/config/", AdminPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := adminClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
