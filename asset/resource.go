package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// A Resource wraps a local file or a remote (http/https) asset stream such as
// a density volume or an environment map.
type Resource struct {
	io.ReadCloser
	url *url.URL
}

// Returns the path to this resource.
func (r *Resource) Path() string {
	return r.url.String()
}

// Returns the file name of this resource. For remote resources this is the
// last segment of the URL path.
func (r *Resource) Name() string {
	if r.IsRemote() {
		return path.Base(r.url.Path)
	}
	return filepath.Base(r.url.Path)
}

// Returns true if the Resource is streamed over http/https.
func (r *Resource) IsRemote() bool {
	return r.url.Scheme != ""
}

// Open a resource. If relTo is specified and pathToResource does not define a
// scheme, the path is resolved relative to the directory of relTo. Remote
// fetches are bound to ctx.
//
// The caller must close the returned resource.
func NewResource(ctx context.Context, pathToResource string, relTo *Resource) (*Resource, error) {
	// Windows paths use backslashes; normalize them before parsing as a URL
	resURL, err := url.Parse(strings.ReplaceAll(pathToResource, `\`, `/`))
	if err != nil {
		return nil, err
	}

	if resURL.Scheme == "" && relTo != nil {
		relPath := resURL.Path
		resURL, _ = url.Parse(relTo.url.String())
		prefix := resURL.Path
		if resURL.Scheme == "" {
			prefix, err = filepath.Abs(relTo.url.String())
			if err != nil {
				return nil, fmt.Errorf("resource: could not detect abs path for %s: %w", relTo.url.String(), err)
			}
		}
		resURL.Path = filepath.Dir(prefix) + "/" + relPath
	}

	var reader io.ReadCloser
	switch resURL.Scheme {
	case "":
		reader, err = os.Open(filepath.Clean(resURL.Path))
		if err != nil {
			return nil, err
		}
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, resURL.String(), nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("resource: could not fetch '%s': %w", resURL.String(), err)
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("resource: could not fetch '%s': status %d", resURL.String(), resp.StatusCode)
		}
		reader = resp.Body
	default:
		return nil, fmt.Errorf("resource: unsupported scheme '%s'", resURL.Scheme)
	}

	return &Resource{
		ReadCloser: reader,
		url:        resURL,
	}, nil
}

// Create a resource from a reader.
func NewResourceFromStream(name string, source io.Reader) *Resource {
	resURL, err := url.Parse(name)
	if err != nil {
		resURL = &url.URL{Path: name}
	}
	return &Resource{
		ReadCloser: io.NopCloser(source),
		url:        resURL,
	}
}
