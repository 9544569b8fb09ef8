package ratelimiter

import (
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/healthkit/pkg/clientip"
)

const maxKeyLength = 64

// KeyFunc derives a bucket key from a request. An empty key means the
// request is not limited.
type KeyFunc func(r *http.Request) string

// ByClientIP keys on the resolved client address.
func ByClientIP() KeyFunc {
	return clientip.FromRequest
}

// ByFormValue keys on a normalized form field, such as the login email.
func ByFormValue(field string) KeyFunc {
	return func(r *http.Request) string {
		return strings.ToLower(strings.TrimSpace(r.PostFormValue(field)))
	}
}

// Composite joins the non-empty keys of fns. Results longer than 64 bytes
// are replaced by an FNV-1a hash.
func Composite(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return ""
		}
		combined := strings.Join(parts, ":")
		if len(combined) <= maxKeyLength {
			return combined
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(combined))
		return strconv.FormatUint(h.Sum64(), 36)
	}
}
