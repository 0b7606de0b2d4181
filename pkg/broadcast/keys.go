package broadcast

import "strings"

// SiteKey addresses every connection of a site.
func SiteKey(siteID string) string {
	return "site:" + siteID
}

// UserKey addresses the connections of one user on a site.
func UserKey(siteID, userID string) string {
	return "site:" + siteID + ":user:" + userID
}

// ParseKey splits a key built by SiteKey or UserKey. userID is empty for
// site keys.
func ParseKey(key string) (siteID, userID string, ok bool) {
	rest, found := strings.CutPrefix(key, "site:")
	if !found || rest == "" {
		return "", "", false
	}
	siteID, userID, hasUser := strings.Cut(rest, ":user:")
	if siteID == "" || (hasUser && userID == "") {
		return "", "", false
	}
	return siteID, userID, true
}
