package clientip

import (
	"net"
	"net/http"
	"strings"
)

// DefaultHeaders are consulted in order before RemoteAddr.
var DefaultHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Resolver extracts the originating client address of a request. Only put
// headers in Headers that the fronting proxy overwrites; anything else can
// be forged by the client.
type Resolver struct {
	Headers []string
}

// New returns a Resolver that trusts headers, or DefaultHeaders when none
// are given.
func New(headers ...string) Resolver {
	if len(headers) == 0 {
		headers = DefaultHeaders
	}
	return Resolver{Headers: headers}
}

// IP returns the first valid address found, normalized, or "".
// X-Forwarded-For style lists yield their left-most valid entry.
func (res Resolver) IP(r *http.Request) string {
	for _, h := range res.Headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		for part := range strings.SplitSeq(v, ",") {
			if ip := normalize(part); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalize(r.RemoteAddr)
	}
	return normalize(host)
}

func normalize(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
