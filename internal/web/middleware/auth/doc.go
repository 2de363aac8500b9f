// Package auth provides bearer token authentication and authorization middleware
// for the web application.
//
// New verifies the access token of every request it guards and stores the
// caller's username and raw token in fiber.Locals. Require and RequireScope then
// ask Keycloak, using that token, whether the caller holds a scope.
//
// Requests without a bearer token are answered with 403 and
// {"detail": "Not authenticated"}, requests with an invalid token with 401 and
// {"message": "Invalid access token"}.
//
// Usage:
//
//	app.Get("/permissions", auth.New(verifier), auth.RequireScope(authz, "keycloak:resource:admin"), list)
package auth
