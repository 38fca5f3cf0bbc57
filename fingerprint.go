package enqueue

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// CacheBustLength is the number of hex characters of the content digest
// used as a cache-busting version.
const CacheBustLength = 10

func (e *Enqueuer) version(a *Asset, src string, log *slog.Logger) string {
	if !a.CacheBust || src == "" {
		return a.Version
	}
	path, ok := e.cache.remember(cacheURLPath, src, func() (string, bool) {
		return ResolvePath(src, e.cfg.paths)
	})
	if !ok {
		log.Warn("cache busting requested but source is not a local file", slog.String("src", src))
		return a.Version
	}
	digest, ok := e.cache.remember(cacheFingerprint, path, func() (string, bool) {
		value, err := Fingerprint(path)
		if err != nil {
			log.Warn("cache busting failed, using declared version", slog.String("path", path), slog.String("error", err.Error()))
			return "", false
		}
		return value, true
	})
	if !ok {
		return a.Version
	}
	return digest
}

// Fingerprint returns the first CacheBustLength hex characters of the blake3
// digest of the file at path.
func Fingerprint(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for fingerprint: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:CacheBustLength], nil
}

// ResolvePath maps an asset URL onto a regular file inside the content root.
// Absolute URLs under the base URL and root-relative paths such as
// "/js/app.js" are rewritten onto the content root; relative sources are
// joined onto it. A filesystem path already under the root is used as is,
// and with no root an absolute path is read directly. Candidates that escape
// the root are rejected.
func ResolvePath(src string, paths PathResolver) (string, bool) {
	if src == "" {
		return "", false
	}
	root := ""
	if paths != nil {
		root = paths.ContentRoot()
	}
	candidate := ""
	switch {
	case strings.Contains(src, "://") || strings.HasPrefix(src, "//"):
		if paths == nil {
			return "", false
		}
		rel, ok := trimBaseURL(src, paths.BaseURL())
		if !ok {
			return "", false
		}
		candidate = filepath.Join(root, filepath.FromSlash(rel))
	case strings.HasPrefix(src, "/") || filepath.IsAbs(src):
		raw := filepath.Clean(stripQuery(src))
		if root == "" || within(root, raw) {
			candidate = raw
			break
		}
		base := ""
		if paths != nil {
			base = paths.BaseURL()
		}
		rel, ok := trimBasePath(stripQuery(src), base)
		if !ok {
			return "", false
		}
		candidate = filepath.Join(root, filepath.FromSlash(rel))
	default:
		candidate = filepath.Join(root, filepath.FromSlash(stripQuery(src)))
	}
	if root != "" || !filepath.IsAbs(candidate) {
		if !within(root, candidate) {
			return "", false
		}
	}
	info, err := os.Stat(candidate)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return candidate, true
}

// within reports whether candidate stays inside root. An empty root means
// the working directory.
func within(root, candidate string) bool {
	if root == "" {
		return filepath.IsLocal(candidate)
	}
	rel, err := filepath.Rel(root, candidate)
	return err == nil && filepath.IsLocal(rel)
}

func trimBaseURL(src, base string) (string, bool) {
	if base == "" {
		return "", false
	}
	srcURL, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	if !strings.EqualFold(srcURL.Host, baseURL.Host) {
		return "", false
	}
	return trimPathPrefix(srcURL.Path, baseURL.Path)
}

// trimBasePath strips the base URL's path from a root-relative URL path.
func trimBasePath(src, base string) (string, bool) {
	srcURL, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	basePath := ""
	if base != "" {
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		basePath = baseURL.Path
	}
	return trimPathPrefix(srcURL.Path, basePath)
}

func trimPathPrefix(p, base string) (string, bool) {
	base = strings.TrimSuffix(base, "/")
	if p != base && !strings.HasPrefix(p, base+"/") {
		return "", false
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(p, base), "/")
	if rel == "" {
		return "", false
	}
	return rel, true
}

func stripQuery(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		return src[:i]
	}
	return src
}
