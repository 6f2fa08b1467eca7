// Package audit names RPCs for the access log as an action on a resource.
package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// overrides name methods whose verb or resource the generic rules get wrong.
var overrides = map[string]ActionResource{
	"/authority.v1.SessionService/CreateSession":                {Action: "login", Resource: "session"},
	"/authority.v1.SessionService/Logout":                       {Action: "logout", Resource: "session"},
	"/authority.v1.SessionService/RefreshSession":               {Action: "refresh", Resource: "session"},
	"/authority.v1.SessionService/RevokeAllSessions":            {Action: "revoke_all", Resource: "session"},
	"/authority.v1.SessionService/RevokeUserSessions":           {Action: "revoke_all", Resource: "session"},
	"/authority.v1.SessionService/CleanupExpiredSessions":       {Action: "sweep", Resource: "session"},
	"/authority.v1.SessionService/VerifyAccessToken":            {Action: "verify", Resource: "access_token"},
	"/authority.v1.SessionService/IssueEmailVerificationToken":  {Action: "issue", Resource: "email_verification_token"},
	"/authority.v1.SessionService/VerifyEmailVerificationToken": {Action: "verify", Resource: "email_verification_token"},
	"/authority.v1.SessionService/IssuePasswordResetToken":      {Action: "issue", Resource: "password_reset_token"},
	"/authority.v1.SessionService/VerifyPasswordResetToken":     {Action: "verify", Resource: "password_reset_token"},
}

// ParseFullMethod returns action and resource for a gRPC full method (e.g. /authority.v1.SessionService/ListSessions).
// Action is a verb: get, list, create, revoke, or a lowercase method name for others.
// Resource is derived from the service name (e.g. SessionService -> session).
func ParseFullMethod(fullMethod string) ActionResource {
	if ar, ok := overrides[fullMethod]; ok {
		return ar
	}
	// fullMethod format: /package.v1.ServiceName/MethodName
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

func serviceToResource(serviceName string) string {
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	for _, verb := range []string{"Get", "List", "Create", "Revoke", "Verify", "Issue", "Check", "Watch"} {
		if strings.HasPrefix(method, verb) && method != verb {
			return strings.ToLower(verb)
		}
	}
	return strings.ToLower(method)
}
