package handler

import (
	"session-authority/internal/authz"
	"session-authority/internal/claims"
	"session-authority/internal/server/interceptors"
)

// Policy returns the access rule for every SessionService method.
func Policy() interceptors.Policy {
	internal := interceptors.MethodPolicy{Access: interceptors.Internal}
	public := interceptors.MethodPolicy{Access: interceptors.Public}
	bearer := func(req authz.Requirement) interceptors.MethodPolicy {
		return interceptors.MethodPolicy{Access: interceptors.Bearer, Require: req}
	}
	return interceptors.Policy{
		MethodCreateSession:                internal,
		MethodVerifyAccessToken:            internal,
		MethodIssueEmailVerificationToken:  internal,
		MethodIssuePasswordResetToken:      internal,
		MethodRefreshSession:               public,
		MethodVerifyEmailVerificationToken: public,
		MethodVerifyPasswordResetToken:     public,
		MethodLogout:                       bearer(authz.Requirement{}),
		MethodRevokeAllSessions:            bearer(authz.Requirement{}),
		MethodListSessions:                 bearer(authz.AnyOf(claims.ScopeUserRead)),
		MethodRevokeSession:                bearer(authz.AnyOf(claims.ScopeUserWrite)),
		MethodRevokeUserSessions:           bearer(authz.AnyOf(claims.ScopeAdminWrite)),
		MethodCleanupExpiredSessions:       bearer(authz.AnyOf(claims.ScopeAdminDelete)),
	}
}
