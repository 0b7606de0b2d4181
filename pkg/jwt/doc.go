// Package jwt issues and verifies the HS256 bearer tokens of the delivery
// API and exposes their claims through the request context.
//
//	svc, _ := jwt.New([]byte(secret))
//	token, _ := svc.Generate(jwt.Claims{SiteID: "s1", UserID: "u1"})
//
//	r.Use(jwt.Middleware(svc))
//	claims, _ := jwt.GetClaims(r.Context())
//	if !claims.CanAccess(siteID, userID) { ... }
package jwt
