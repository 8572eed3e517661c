// Package scope implements the permission model of the admin API.
//
// A Scope is the set of capabilities granted to an authenticated identity. Each
// entry is either the wildcard "*", a capability of the form "<resource>.<verb>",
// or a bare verb ("read", "write") meaning that verb on every resource. The
// "*.read" and "*.write" forms are accepted as aliases of the bare verbs.
//
// HasPermission is pure and touches no shared state, so it is safe to call from
// any number of goroutines.
package scope
