package cache

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderWillCache   = "X-Will-Cache"
	HeaderDuration    = "X-Cache-Duration"
	HeaderCachedValue = "X-Cached-Value"
)

type RouteOptions struct {
	// AccessToken returns the caller's token for per-identity keys. Nil keys
	// the route by URL alone.
	AccessToken func(r *http.Request) string
}

// Route caches successful GET responses of the wrapped handler for ttl.
// Requests carrying Cache-Control: no-store and non-GET requests pass
// straight through. Concurrent misses each run the handler.
func (c *Cache) Route(ttl time.Duration, opts RouteOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				c.logger.V(1).Info("non-get request not cached", "method", r.Method, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}
			if noStore(r.Header.Get("Cache-Control")) {
				c.logger.V(1).Info("no-store request not cached", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(HeaderWillCache, "true")
			w.Header().Set(HeaderDuration, strconv.Itoa(int(ttl/time.Second)))

			keyOpts := KeyOptions{IncludeQuery: true}
			if opts.AccessToken != nil {
				keyOpts.AccessToken = opts.AccessToken(r)
			}
			key := c.RouteKey(r, keyOpts)

			if cached := c.Get(r.Context(), key); cached != nil {
				w.Header().Set(HeaderCachedValue, "true")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(cached)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status == http.StatusOK && rec.body.Len() > 0 {
				c.Set(r.Context(), key, rec.body.Bytes(), ttl)
			}
		})
	}
}

// Invalidate clears every cached entry under the request path, and under
// each of paths on the same host.
func (c *Cache) Invalidate(ctx context.Context, r *http.Request, paths ...string) {
	c.ClearPattern(ctx, c.RouteKey(r, KeyOptions{})+"*", nil)

	host := hostKey(r)
	for _, path := range paths {
		c.ClearPattern(ctx, strings.TrimSuffix(host+path, "/")+"*", nil)
	}
}

func noStore(cacheControl string) bool {
	for _, directive := range strings.Split(cacheControl, ",") {
		if strings.EqualFold(strings.TrimSpace(directive), "no-store") {
			return true
		}
	}
	return false
}

// recorder passes the response through while keeping a copy of the body.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

func (r *recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
