package gateway

import "net/http"

// attributionTransport injects the HTTP-Referer and X-Title headers
// OpenRouter uses to attribute traffic on its usage dashboards, wrapping
// an inner transport the way the model-gateway reference client wraps
// http.Transport for outbound tracing.
type attributionTransport struct {
	inner    http.RoundTripper
	siteURL  string
	siteName string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	if t.siteURL != "" {
		cloned.Header.Set("HTTP-Referer", t.siteURL)
	}
	if t.siteName != "" {
		cloned.Header.Set("X-Title", t.siteName)
	}
	return t.inner.RoundTrip(cloned)
}

func newAttributionTransport(siteURL, siteName string) http.RoundTripper {
	return &attributionTransport{
		inner:    http.DefaultTransport,
		siteURL:  siteURL,
		siteName: siteName,
	}
}
