package jwt

import (
	"net/http"
	"strings"
)

// TokenExtractorFunc pulls a raw token out of a request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// ErrorHandlerFunc writes the response for a rejected request.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

type MiddlewareConfig struct {
	Service    *Service
	Extractors []TokenExtractorFunc
	OnError    ErrorHandlerFunc
	Skip       func(r *http.Request) bool
}

// Middleware authenticates requests with a bearer token.
func Middleware(s *Service) func(http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig{Service: s})
}

// MiddlewareWithConfig tries each extractor in order and uses the first
// token found.
func MiddlewareWithConfig(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if len(cfg.Extractors) == 0 {
		cfg.Extractors = []TokenExtractorFunc{BearerTokenExtractor}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			token := ""
			for _, extract := range cfg.Extractors {
				if t, err := extract(r); err == nil && t != "" {
					token = t
					break
				}
			}
			if token == "" {
				cfg.OnError(w, r, ErrMissingToken)
				return
			}

			claims, err := cfg.Service.Parse(token)
			if err != nil {
				cfg.OnError(w, r, err)
				return
			}

			ctx := SetClaims(SetToken(r.Context(), token), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// QueryTokenExtractor reads a query parameter. EventSource clients cannot
// set headers, so stream endpoints accept ?token=.
func QueryTokenExtractor(param string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		if t := r.URL.Query().Get(param); t != "" {
			return t, nil
		}
		return "", ErrMissingToken
	}
}
