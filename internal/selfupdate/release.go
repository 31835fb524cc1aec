// SPDX-License-Identifier: MPL-2.0

package selfupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// ManifestFileName is the manifest document published next to the artifacts.
	ManifestFileName = "release.json"

	// DefaultDownloadTimeout bounds each manifest and artifact request.
	DefaultDownloadTimeout = 30 * time.Second

	// maxJSONResponseBytes is the upper bound on manifest size (10 MB).
	maxJSONResponseBytes = 10 << 20

	// maxArtifactBytes is the upper bound on a downloaded executable (512 MB).
	maxArtifactBytes = 512 << 20
)

var (
	// ErrNetwork classifies every manifest or artifact fetch failure,
	// including non-success HTTP statuses.
	ErrNetwork = errors.New("network failure")

	errEmptyVersion     = errors.New("manifest has no version")
	errArtifactTooLarge = errors.New("artifact exceeds maximum size")
)

type (
	// ReleaseManifest is the release.json document: the latest version and
	// the SHA-256 checksum of every published artifact, keyed by artifact name.
	// It is fetched fresh for every check and never cached.
	ReleaseManifest struct {
		Version   string            `json:"version"`
		Checksums map[string]string `json:"checksums"`
	}

	// HTTPStatusError reports a non-2xx response from the release server.
	HTTPStatusError struct {
		URL        string
		StatusCode int
	}

	// ReleaseClient fetches manifests and artifacts from a release server.
	ReleaseClient struct {
		httpClient *http.Client
		baseURL    string
		userAgent  string
	}

	// ClientOption configures a ReleaseClient during construction.
	ClientOption func(*ReleaseClient)
)

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Unwrap returns ErrNetwork so callers can use errors.Is.
func (e *HTTPStatusError) Unwrap() error { return ErrNetwork }

// Checksum returns the expected hash for artifact, if the manifest lists one.
func (m *ReleaseManifest) Checksum(artifact string) (string, bool) {
	sum, ok := m.Checksums[artifact]
	return sum, ok && sum != ""
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(rc *ReleaseClient) {
		rc.httpClient = c
	}
}

// WithTimeout bounds every request issued by the client.
func WithTimeout(d time.Duration) ClientOption {
	return func(rc *ReleaseClient) {
		rc.httpClient = &http.Client{Timeout: d}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(rc *ReleaseClient) {
		rc.userAgent = ua
	}
}

// NewReleaseClient creates a ReleaseClient for the release server at baseURL.
// A trailing slash on baseURL is ignored.
func NewReleaseClient(baseURL string, opts ...ClientOption) *ReleaseClient {
	rc := &ReleaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.httpClient == nil {
		rc.httpClient = &http.Client{Timeout: DefaultDownloadTimeout}
	}
	return rc
}

// BaseURL returns the normalized release server base URL.
func (rc *ReleaseClient) BaseURL() string {
	return rc.baseURL
}

// ArtifactURL returns the download URL for the named artifact.
func (rc *ReleaseClient) ArtifactURL(artifact string) string {
	return rc.baseURL + "/" + artifact
}

// FetchManifest downloads and decodes {base}/release.json.
func (rc *ReleaseClient) FetchManifest(ctx context.Context) (*ReleaseManifest, error) {
	manifestURL := rc.baseURL + "/" + ManifestFileName

	resp, err := rc.doRequest(ctx, manifestURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	var m ReleaseManifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", redactURL(manifestURL), err)
	}
	if strings.TrimSpace(m.Version) == "" {
		return nil, fmt.Errorf("decoding %s: %w", redactURL(manifestURL), errEmptyVersion)
	}

	return &m, nil
}

// DownloadToFile streams the resource at rawURL into a new file at dst,
// created with owner-only permissions. dst must not exist. On any failure the
// partially written file is removed.
func (rc *ReleaseClient) DownloadToFile(ctx context.Context, rawURL, dst string) (err error) {
	resp, err := rc.doRequest(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("unable to open %s for writing: %w", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	n, err := io.Copy(out, io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return fmt.Errorf("%w: reading %s: %w", ErrNetwork, redactURL(rawURL), err)
	}
	if n > maxArtifactBytes {
		return fmt.Errorf("%s: %w", redactURL(rawURL), errArtifactTooLarge)
	}

	return nil
}

// doRequest issues a GET and returns the response when the status is 2xx.
// The caller must close the body.
func (rc *ReleaseClient) doRequest(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", redactURL(rawURL), err)
	}
	if rc.userAgent != "" {
		req.Header.Set("User-Agent", rc.userAgent)
	}

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrNetwork, redactURL(rawURL), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &HTTPStatusError{URL: redactURL(rawURL), StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// redactURL strips credentials and query parameters so URLs can be logged
// and embedded in error messages.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
