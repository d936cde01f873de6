package decoder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
)

// BytesProvider fetches the encoded bytes of an audio source.
type BytesProvider interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// BytesProviderFunc adapts a function to [BytesProvider].
type BytesProviderFunc func(ctx context.Context, key string) ([]byte, error)

// Fetch implements [BytesProvider].
func (f BytesProviderFunc) Fetch(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

// Static returns a provider that always yields data, regardless of key. It
// serves uploads that are already in memory.
func Static(data []byte) BytesProvider {
	return BytesProviderFunc(func(ctx context.Context, _ string) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return data, nil
	})
}

// FileProvider treats the key as a path on the local filesystem.
type FileProvider struct{}

// Fetch implements [BytesProvider].
func (FileProvider) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(key)
	if err != nil {
		return nil, fmt.Errorf("decoder: read %s: %w", key, err)
	}
	return data, nil
}

// FSProvider reads keys as slash-separated paths inside FS.
type FSProvider struct {
	FS fs.FS
}

// Fetch implements [BytesProvider].
func (p FSProvider) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(p.FS, key)
	if err != nil {
		return nil, fmt.Errorf("decoder: read %s: %w", key, err)
	}
	return data, nil
}

// maxDownload bounds the body size accepted by [HTTPProvider].
const maxDownload = 512 << 20

// HTTPProvider treats the key as a URL and downloads it.
type HTTPProvider struct {
	// Client is used for requests. Default: http.DefaultClient.
	Client *http.Client
}

// Fetch implements [BytesProvider].
func (p HTTPProvider) Fetch(ctx context.Context, key string) ([]byte, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, fmt.Errorf("decoder: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("decoder: fetch %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("decoder: fetch %s: unexpected status %s", key, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("decoder: fetch %s: %w", key, err)
	}
	if len(data) > maxDownload {
		return nil, fmt.Errorf("decoder: fetch %s: body exceeds %d bytes", key, maxDownload)
	}
	return data, nil
}

// AutoProvider downloads http and https keys and reads any other key from
// the local filesystem.
type AutoProvider struct {
	HTTP HTTPProvider
}

// Fetch implements [BytesProvider].
func (p AutoProvider) Fetch(ctx context.Context, key string) ([]byte, error) {
	if IsURL(key) {
		return p.HTTP.Fetch(ctx, key)
	}
	return FileProvider{}.Fetch(ctx, key)
}

// IsURL reports whether key names an http or https resource.
func IsURL(key string) bool {
	return strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://")
}

// ContentKey derives a stable source key from the encoded bytes, for
// sources that have no natural identity such as uploads.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
