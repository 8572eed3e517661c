package auth

import (
	"context"

	"github.com/GoPowerDNS-Admin/adminauth/internal/audit"
	"github.com/GoPowerDNS-Admin/adminauth/internal/auth/identity"
)

// Audit event names.
const (
	EventLogin                = "auth.login"
	EventLoginFailCredentials = "auth.login.fail.credentials"
	EventLoginFailClient      = "auth.login.fail.client"
	EventLoginFailRateLimited = "auth.login.fail.too-many-attempts"
	EventLoginFailOAuth       = "auth.login.fail.oauth"
	EventLoginFailPermissions = "auth.login.fail.permissions"
	EventInvalidToken         = "auth.invalid-token"
	EventLogout               = "auth.logout"
	EventPermissionFail       = "permission.fail"
	EventAnonymous            = "auth.anonymous"
	EventAuthenticated        = "auth.authenticated"
	EventUnauthenticated      = "auth.unauthenticated"
)

// failureEvent names the audit event of a failed authentication.
func failureEvent(err error) string {
	switch identity.KindOf(err) {
	case identity.RateLimited:
		return EventLoginFailRateLimited
	case identity.InvalidToken:
		return EventInvalidToken
	case identity.ProviderError:
		return EventLoginFailOAuth
	case identity.Forbidden:
		return EventLoginFailPermissions
	case identity.Unauthenticated:
		return EventUnauthenticated
	default:
		return EventLoginFailCredentials
	}
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	e.Time = s.now()
	s.audit.Record(ctx, e)
}

func (s *Service) recordFailure(ctx context.Context, name string, err error, e audit.Event) {
	e.Name = name
	e.Failure = true

	if f := identity.KindOf(err); f != 0 {
		e.Reason = f.String()
	}

	if e.Username == "" {
		e.Username = failedUsername(err)
	}

	s.record(ctx, e)
}

func (s *Service) recordSuccess(ctx context.Context, name string, id *identity.Identity, e audit.Event) {
	e.Name = name
	e.Username = id.ID()
	e.Scope = id.Scope().Values()

	if e.Strategy == "" {
		e.Strategy = id.Attribute(identity.AttrStrategy)
	}

	if e.ClientID == "" {
		e.ClientID = id.Attribute(identity.AttrClientID)
	}

	s.record(ctx, e)
}
