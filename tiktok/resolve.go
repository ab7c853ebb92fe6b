package tiktok

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// Resolver turns a classified link into a canonical numeric video id.
// Long and medium links embed the id; short links carry only an opaque
// code, so the id lives in the redirect target and has to be looked up.
type Resolver struct {
	// HTTPClient must not follow redirects; the Location header is the
	// payload here. NewResolver configures this correctly.
	HTTPClient *http.Client
}

// NewResolver returns a Resolver whose client reports redirects instead of
// following them.
func NewResolver() *Resolver {
	return &Resolver{HTTPClient: &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

func (r *Resolver) http() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return http.DefaultClient
}

// Resolve returns the numeric video id for a link. Short links trigger one
// redirect lookup; the Location header is re-classified and must itself be
// a long or medium link.
func (r *Resolver) Resolve(ctx context.Context, link *Link) (int64, error) {
	if link == nil {
		return 0, fmt.Errorf("nil link")
	}
	if link.Kind != LinkShort {
		id, err := strconv.ParseInt(link.RawID, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse video id %q: %w", link.RawID, err)
		}
		return id, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := r.http().Do(req)
	if err != nil {
		return 0, wrapTimeout("redirect lookup", err)
	}
	defer closeBody(resp)

	location := resp.Header.Get("Location")
	if location == "" {
		return 0, &RedirectError{URL: link.URL, Reason: "no Location header in redirect response"}
	}
	inner := Classify(location)
	if inner == nil || inner.Kind == LinkShort {
		return 0, &RedirectError{URL: link.URL, Reason: fmt.Sprintf("redirect target %q is not a video link", location)}
	}
	id, err := strconv.ParseInt(inner.RawID, 10, 64)
	if err != nil {
		return 0, &RedirectError{URL: link.URL, Reason: fmt.Sprintf("redirect target id %q not numeric", inner.RawID)}
	}
	return id, nil
}
