// Package auth composes the identity layer of the admin API.
//
// A Service runs the configured strategies in priority order to turn a request
// into an identity, mints session tokens at login and checks the capabilities a
// protected operation requires:
//
//	svc := auth.New(sessions, clients, registry, auth.WithAudit(sink), auth.WithLimiter(limiter))
//	svc.Start(ctx)
//	defer svc.Close()
//
//	sess, err := svc.Login(ctx, &auth.LoginInput{
//	    ClientID: client.AdminCLI,
//	    Username: "admin",
//	    Password: "password",
//	})
//
//	id, err := svc.RequirePermission(ctx, req, auth.PermFlowsWrite)
//
// Every outcome is reported to the audit sink. Callers only ever see
// identity.ErrUnauthorized or identity.ErrAccessDenied, see identity.Public.
package auth
