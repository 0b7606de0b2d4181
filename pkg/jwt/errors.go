package jwt

import "errors"

var (
	ErrMissingSigningKey = errors.New("jwt: signing key is required")
	ErrMissingToken      = errors.New("jwt: token is missing")
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrExpiredToken      = errors.New("jwt: token has expired")
	ErrInvalidSignature  = errors.New("jwt: invalid signature")
	ErrMissingSiteID     = errors.New("jwt: site_id claim is required")
)
