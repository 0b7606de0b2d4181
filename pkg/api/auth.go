package api

import (
	"net/http"

	"github.com/dmitrymomot/pulse/pkg/jwt"
	"github.com/dmitrymomot/pulse/pkg/notifications"
)

func (s *Server) authenticate() func(http.Handler) http.Handler {
	return jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
		Service: s.auth,
		// EventSource cannot send headers.
		Extractors: []jwt.TokenExtractorFunc{jwt.BearerTokenExtractor, jwt.QueryTokenExtractor("token")},
		OnError:    s.writeError,
	})
}

// claims are always present behind authenticate.
func claims(r *http.Request) *jwt.Claims {
	c, _ := jwt.GetClaims(r.Context())
	return c
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !claims(r).Admin {
			s.writeError(w, r, forbidden("admin access required"))
			return
		}
		next(w, r)
	}
}

// forbidden is matched by errors.Is(err, notifications.ErrForbidden).
type forbidden string

func (e forbidden) Error() string        { return string(e) }
func (e forbidden) Is(target error) bool { return target == notifications.ErrForbidden }

// scope resolves the site and user a request addresses. Non-admin callers
// default to their own token scope.
func scope(c *jwt.Claims, siteID, userID string) (string, string, error) {
	if siteID == "" {
		siteID = c.SiteID
	}
	if userID == "" && !c.Admin {
		userID = c.UserID
	}
	if siteID == "" {
		return "", "", notifications.Required("siteId")
	}
	if !c.CanAccess(siteID, userID) {
		return "", "", forbidden("token cannot access this site or user")
	}
	return siteID, userID, nil
}
