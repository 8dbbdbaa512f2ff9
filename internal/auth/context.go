package auth

import "context"

type contextKey string

const (
	resolutionKey  contextKey = "auth_resolution"
	adminClaimsKey contextKey = "admin_claims"
)

// WithResolution stores the request's credential resolution in the context
func WithResolution(ctx context.Context, res *Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey, res)
}

// ResolutionFrom returns the resolution stored by WithResolution
func ResolutionFrom(ctx context.Context) (*Resolution, bool) {
	res, ok := ctx.Value(resolutionKey).(*Resolution)
	return res, ok && res != nil
}

// WithAdminClaims stores verified admin claims in the context
func WithAdminClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, adminClaimsKey, claims)
}

// AdminClaimsFrom returns the admin claims stored by WithAdminClaims
func AdminClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(adminClaimsKey).(*Claims)
	return claims, ok && claims != nil
}
