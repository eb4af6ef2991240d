package cache

import (
	"net"
	"net/http"
	"sort"
	"strings"
)

const accessTokenParam = "access_token"

type KeyOptions struct {
	IncludeQuery bool
	// AccessToken, when set, is added as a synthetic access_token pair so
	// each identity gets its own entry.
	AccessToken string
}

// RouteKey builds the canonical cache key of a request:
// hostname[:port]/path[?k=v&...] with pairs sorted and access_token taken
// only from opts. The key is unaliased; Get, Set, Clear and ClearPattern
// apply the alias table when they reach the store.
func (c *Cache) RouteKey(r *http.Request, opts KeyOptions) string {
	key := strings.TrimSuffix(hostKey(r)+r.URL.Path, "/")

	var pairs []string
	if opts.AccessToken != "" {
		pairs = append(pairs, accessTokenParam+"="+opts.AccessToken)
	}

	if opts.IncludeQuery {
		for name, values := range r.URL.Query() {
			if name == accessTokenParam {
				continue
			}
			for _, value := range values {
				pairs = append(pairs, name+"="+value)
			}
		}
	}

	if len(pairs) > 0 {
		sort.Strings(pairs)
		key += "?" + strings.Join(pairs, "&")
	}

	return key
}

func hostKey(r *http.Request) string {
	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}

	hostname, port, err := net.SplitHostPort(host)
	if err != nil {
		return strings.ToLower(strings.Trim(host, "[]"))
	}

	hostname = strings.ToLower(hostname)
	if port == "" {
		return hostname
	}
	return hostname + ":" + port
}
