package handler

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "authority.v1.SessionService"

// Full method names, used by the auth interceptor policy.
const (
	MethodCreateSession                = "/" + ServiceName + "/CreateSession"
	MethodRefreshSession               = "/" + ServiceName + "/RefreshSession"
	MethodVerifyAccessToken            = "/" + ServiceName + "/VerifyAccessToken"
	MethodLogout                       = "/" + ServiceName + "/Logout"
	MethodListSessions                 = "/" + ServiceName + "/ListSessions"
	MethodRevokeSession                = "/" + ServiceName + "/RevokeSession"
	MethodRevokeAllSessions            = "/" + ServiceName + "/RevokeAllSessions"
	MethodRevokeUserSessions           = "/" + ServiceName + "/RevokeUserSessions"
	MethodCleanupExpiredSessions       = "/" + ServiceName + "/CleanupExpiredSessions"
	MethodIssueEmailVerificationToken  = "/" + ServiceName + "/IssueEmailVerificationToken"
	MethodVerifyEmailVerificationToken = "/" + ServiceName + "/VerifyEmailVerificationToken"
	MethodIssuePasswordResetToken      = "/" + ServiceName + "/IssuePasswordResetToken"
	MethodVerifyPasswordResetToken     = "/" + ServiceName + "/VerifyPasswordResetToken"
)

// SessionServiceServer is the server API for authority.v1.SessionService.
type SessionServiceServer interface {
	CreateSession(context.Context, *CreateSessionRequest) (*TokenResponse, error)
	RefreshSession(context.Context, *RefreshSessionRequest) (*TokenResponse, error)
	VerifyAccessToken(context.Context, *VerifyTokenRequest) (*ClaimsResponse, error)
	Logout(context.Context, *LogoutRequest) (*Empty, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	RevokeSession(context.Context, *RevokeSessionRequest) (*Empty, error)
	RevokeAllSessions(context.Context, *Empty) (*CountResponse, error)
	RevokeUserSessions(context.Context, *RevokeUserSessionsRequest) (*CountResponse, error)
	CleanupExpiredSessions(context.Context, *Empty) (*CountResponse, error)
	IssueEmailVerificationToken(context.Context, *IssueTokenRequest) (*IssueTokenResponse, error)
	VerifyEmailVerificationToken(context.Context, *VerifyTokenRequest) (*ClaimsResponse, error)
	IssuePasswordResetToken(context.Context, *IssueTokenRequest) (*IssueTokenResponse, error)
	VerifyPasswordResetToken(context.Context, *VerifyTokenRequest) (*ClaimsResponse, error)
}

// RegisterSessionServiceServer registers srv on s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

// SessionServiceDesc is the grpc.ServiceDesc for authority.v1.SessionService.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateSession", SessionServiceServer.CreateSession),
		unary("RefreshSession", SessionServiceServer.RefreshSession),
		unary("VerifyAccessToken", SessionServiceServer.VerifyAccessToken),
		unary("Logout", SessionServiceServer.Logout),
		unary("ListSessions", SessionServiceServer.ListSessions),
		unary("RevokeSession", SessionServiceServer.RevokeSession),
		unary("RevokeAllSessions", SessionServiceServer.RevokeAllSessions),
		unary("RevokeUserSessions", SessionServiceServer.RevokeUserSessions),
		unary("CleanupExpiredSessions", SessionServiceServer.CleanupExpiredSessions),
		unary("IssueEmailVerificationToken", SessionServiceServer.IssueEmailVerificationToken),
		unary("VerifyEmailVerificationToken", SessionServiceServer.VerifyEmailVerificationToken),
		unary("IssuePasswordResetToken", SessionServiceServer.IssuePasswordResetToken),
		unary("VerifyPasswordResetToken", SessionServiceServer.VerifyPasswordResetToken),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authority/v1/session.json",
}

func unary[Req, Resp any](name string, call func(SessionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(SessionServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
