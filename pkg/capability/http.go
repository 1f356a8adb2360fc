package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/papercomputeco/landscape/pkg/research"
)

const maxResponseBytes = 4 << 20

// HTTPConfig configures an HTTP-backed capability.
type HTTPConfig struct {
	// Endpoint is called as GET Endpoint?subject=<subject>&<params>.
	Endpoint string

	// Client defaults to http.DefaultClient. Timeouts come from the
	// request context.
	Client *http.Client
}

// httpFinding is the JSON body an HTTP capability responds with.
type httpFinding struct {
	Summary    string         `json:"summary"`
	Data       map[string]any `json:"data"`
	Tags       []string       `json:"tags"`
	ObservedAt *time.Time     `json:"observed_at"`
	Weight     float64        `json:"weight"`
}

// NewHTTP returns a Func that fetches findings from an HTTP JSON endpoint.
// Any non-200 response is a capability failure; the core does not retry.
func NewHTTP(c HTTPConfig) (Func, error) {
	base, err := url.Parse(c.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q: scheme must be http or https", c.Endpoint)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context, subject string, params map[string]any) (*research.Finding, error) {
		u := *base
		q := u.Query()
		q.Set("subject", subject)
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			q.Set(k, fmt.Sprint(params[k]))
		}
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request %s: %w", base.Host, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%s returned status %d: %s", base.Host, resp.StatusCode, string(body))
		}

		var hf httpFinding
		if err := json.Unmarshal(body, &hf); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		return &research.Finding{
			Summary:    hf.Summary,
			Data:       hf.Data,
			Tags:       hf.Tags,
			ObservedAt: hf.ObservedAt,
			Weight:     hf.Weight,
		}, nil
	}, nil
}
