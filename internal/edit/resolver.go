package edit

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxRemoteImageBytes bounds a single remote fetch.
const maxRemoteImageBytes = 64 << 20

// ResolvedImage is the raw content of one input image. It is owned by the
// request that resolved it and discarded after the workflow is built.
type ResolvedImage struct {
	Data   []byte
	MIME   string
	Name   string
	Source RefKind
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	HTTPClient   *http.Client
	FetchTimeout time.Duration
}

// Resolver turns an ImageReference into bytes. Every call resolves fresh;
// nothing is cached between requests.
type Resolver struct {
	httpClient *http.Client
}

func NewResolver(opts ResolverOptions) *Resolver {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.FetchTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Resolver{httpClient: client}
}

func (r *Resolver) Resolve(ctx context.Context, ref ImageReference) (*ResolvedImage, error) {
	switch ref.Kind() {
	case RefLocalPath:
		return r.resolvePath(ref.Value())
	case RefRemoteURL:
		return r.resolveURL(ctx, ref.Value())
	case RefInline:
		return r.resolveInline(ref.Value())
	default:
		return nil, fmt.Errorf("%w: unknown reference kind %q", ErrInvalidParameter, ref.Kind())
	}
}

func (r *Resolver) resolvePath(path string) (*ResolvedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	return &ResolvedImage{
		Data:   data,
		MIME:   sniffMIME(data),
		Name:   filepath.Base(path),
		Source: RefLocalPath,
	}, nil
}

func (r *Resolver) resolveURL(ctx context.Context, rawURL string) (*ResolvedImage, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrFetch, rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if len(data) > maxRemoteImageBytes {
		return nil, fmt.Errorf("%w: %s: body exceeds %d bytes", ErrFetch, rawURL, maxRemoteImageBytes)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = sniffMIME(data)
	}
	return &ResolvedImage{
		Data:   data,
		MIME:   mime,
		Name:   filepath.Base(parsed.Path),
		Source: RefRemoteURL,
	}, nil
}

func (r *Resolver) resolveInline(encoded string) (*ResolvedImage, error) {
	payload, declaredMIME := StripDataURI(encoded)
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	mime := declaredMIME
	if mime == "" {
		mime = sniffMIME(data)
	}
	return &ResolvedImage{Data: data, MIME: mime, Source: RefInline}, nil
}

// StripDataURI splits an optional data URI wrapper such as
// "data:image/png;base64,AAAA" into the bare payload and declared MIME.
func StripDataURI(s string) (payload, mime string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s, ""
	}
	comma := strings.Index(s, ",")
	if comma < 0 {
		return s, ""
	}
	header := s[len("data:"):comma]
	if semi := strings.Index(header, ";"); semi >= 0 {
		header = header[:semi]
	}
	return s[comma+1:], header
}

func sniffMIME(data []byte) string {
	return http.DetectContentType(data)
}
