// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginCheck rejects state-changing browser requests from foreign origins.
// The control API listens on loopback, so any web page could otherwise POST
// to it. Requests without Origin or Referer (CLI clients) pass.
func OriginCheck(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSuffix(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			origin := requestOrigin(r)
			if origin != "" && !allowed[origin] && !isSameOrigin(origin, r) {
				reject(w, r, http.StatusForbidden, "cross_origin", "cross-origin request not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestOrigin prefers Origin and falls back to the Referer's scheme and host.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return strings.TrimSuffix(origin, "/")
	}
	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return "null"
	}
	return u.Scheme + "://" + u.Host
}

func isSameOrigin(origin string, r *http.Request) bool {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return r.Host != "" && origin == scheme+"://"+r.Host
}
