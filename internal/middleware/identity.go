package middleware

// identity.go holds helpers shared across middleware files.  The rate
// limiter keys buckets by user where possible; JWTAuth stores the
// authenticated user id in the context under "user_id".

import "github.com/labstack/echo/v4"

// currentUserID extracts the authenticated user id from the Echo
// context.  It returns "anon" when the request carries no session, so
// unauthenticated traffic shares per-IP buckets instead of one global one.
func currentUserID(c echo.Context) string {
	if v := c.Get("user_id"); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anon"
}
