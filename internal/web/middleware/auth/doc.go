// Package auth provides the fiber side of the identity layer.
//
// RequirePermission runs the strategy chain for every request it guards and stores the
// resulting identity in fiber.Locals. Refused requests get a uniform answer:
//   - 401 {"error":"unauthorized"} when no identity could be established
//   - 403 {"error":"forbidden"} when the identity lacks a capability
//
// The body never says which strategy failed or why.
//
// Usage:
//
//	app.Get("/flows", auth.RequirePermission(svc, "flows.read"), handler)
package auth
