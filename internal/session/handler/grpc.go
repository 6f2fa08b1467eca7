package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"session-authority/internal/authz"
	"session-authority/internal/claims"
	"session-authority/internal/platform/rbac"
	"session-authority/internal/session/domain"
	"session-authority/internal/session/service"
)

var errSessionNotOwned = status.Error(codes.PermissionDenied, "session not found or not owned by caller")

// Server implements SessionServiceServer over the session authority.
type Server struct {
	authority *service.Authority
	logger    *slog.Logger
}

// NewServer returns a new Session gRPC server. If authority is nil, all RPCs return Unimplemented.
func NewServer(authority *service.Authority, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{authority: authority, logger: logger}
}

var _ SessionServiceServer = (*Server)(nil)

func (s *Server) ready(method string) error {
	if s.authority == nil {
		return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}
	return nil
}

// CreateSession opens a session for a user the caller has already authenticated.
func (s *Server) CreateSession(ctx context.Context, req *CreateSessionRequest) (*TokenResponse, error) {
	if err := s.ready("CreateSession"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	role, err := claims.ParseRole(req.Role)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "role must be Admin or User")
	}
	in := service.CreateSessionRequest{
		UserID: req.UserID,
		Email:  req.Email,
		Role:   role,
		Device: domain.DeviceInfo{Description: req.DeviceInfo, IPAddress: req.IPAddress, Location: req.Location},
	}
	if req.Scopes != nil {
		in.Scopes = claims.ParseScopes(req.Scopes)
	}
	pair, _, err := s.authority.CreateSession(ctx, in)
	if err != nil {
		return nil, s.toStatus("CreateSession", err)
	}
	return s.tokenResponse(pair), nil
}

// RefreshSession rotates a refresh token. Every rejection is Unauthenticated.
func (s *Server) RefreshSession(ctx context.Context, req *RefreshSessionRequest) (*TokenResponse, error) {
	if err := s.ready("RefreshSession"); err != nil {
		return nil, err
	}
	pair, err := s.authority.RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus("RefreshSession", err)
	}
	return s.tokenResponse(pair), nil
}

// VerifyAccessToken is the session-backed check used by the HTTP tier.
func (s *Server) VerifyAccessToken(ctx context.Context, req *VerifyTokenRequest) (*ClaimsResponse, error) {
	if err := s.ready("VerifyAccessToken"); err != nil {
		return nil, err
	}
	cl, err := s.authority.VerifyAccessTokenWithSession(ctx, req.Token)
	if err != nil {
		return nil, s.toStatus("VerifyAccessToken", err)
	}
	return &ClaimsResponse{Claims: cl, SessionID: service.CurrentSessionID(cl)}, nil
}

// Logout revokes the caller's session, or the session named by refresh_token.
func (s *Server) Logout(ctx context.Context, req *LogoutRequest) (*Empty, error) {
	if err := s.ready("Logout"); err != nil {
		return nil, err
	}
	cl, err := rbac.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authority.Logout(ctx, cl, req.RefreshToken); err != nil {
		return nil, s.toStatus("Logout", err)
	}
	return &Empty{}, nil
}

// ListSessions returns active sessions, most recently active first. Listing
// another user's sessions requires an admin scope.
func (s *Server) ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error) {
	if err := s.ready("ListSessions"); err != nil {
		return nil, err
	}
	cl, err := rbac.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	userID := cl.Subject
	if req.UserID != "" && req.UserID != cl.Subject {
		if _, err := rbac.RequireScopes(ctx, authz.AnyOf(claims.ScopeAdminRead)); err != nil {
			return nil, err
		}
		userID = req.UserID
	}
	sessions, err := s.authority.GetUserActiveSessions(ctx, userID)
	if err != nil {
		return nil, s.toStatus("ListSessions", err)
	}
	current := service.CurrentSessionID(cl)
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionView(sess, current))
	}
	return &ListSessionsResponse{Sessions: out}, nil
}

// RevokeSession revokes one session. Callers may revoke their own sessions; admins any.
func (s *Server) RevokeSession(ctx context.Context, req *RevokeSessionRequest) (*Empty, error) {
	if err := s.ready("RevokeSession"); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id required")
	}
	cl, err := rbac.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	// A non-admin gets the same answer for a missing session and someone else's.
	sess, err := s.authority.GetSession(ctx, req.SessionID)
	if errors.Is(err, service.ErrSessionNotFound) && !authz.AdminRequirement.Allows(cl.Scopes) {
		return nil, errSessionNotOwned
	}
	if err != nil {
		return nil, s.toStatus("RevokeSession", err)
	}
	if _, err := rbac.RequireSelfOrAdmin(ctx, sess.UserID); err != nil {
		return nil, errSessionNotOwned
	}
	if err := s.authority.RevokeSession(ctx, sess.ID); err != nil {
		return nil, s.toStatus("RevokeSession", err)
	}
	return &Empty{}, nil
}

// RevokeAllSessions signs the caller out everywhere.
func (s *Server) RevokeAllSessions(ctx context.Context, _ *Empty) (*CountResponse, error) {
	if err := s.ready("RevokeAllSessions"); err != nil {
		return nil, err
	}
	cl, err := rbac.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.authority.RevokeAllUserSessions(ctx, cl.Subject)
	if err != nil {
		return nil, s.toStatus("RevokeAllSessions", err)
	}
	return &CountResponse{Count: n}, nil
}

// RevokeUserSessions revokes every session of another user (admin).
func (s *Server) RevokeUserSessions(ctx context.Context, req *RevokeUserSessionsRequest) (*CountResponse, error) {
	if err := s.ready("RevokeUserSessions"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id required")
	}
	n, err := s.authority.RevokeAllUserSessions(ctx, req.UserID)
	if err != nil {
		return nil, s.toStatus("RevokeUserSessions", err)
	}
	return &CountResponse{Count: n}, nil
}

func (s *Server) CleanupExpiredSessions(ctx context.Context, _ *Empty) (*CountResponse, error) {
	if err := s.ready("CleanupExpiredSessions"); err != nil {
		return nil, err
	}
	n, err := s.authority.CleanupExpiredSessions(ctx)
	if err != nil {
		return nil, s.toStatus("CleanupExpiredSessions", err)
	}
	return &CountResponse{Count: n}, nil
}

func (s *Server) IssueEmailVerificationToken(ctx context.Context, req *IssueTokenRequest) (*IssueTokenResponse, error) {
	if err := s.ready("IssueEmailVerificationToken"); err != nil {
		return nil, err
	}
	token, err := s.authority.GenerateEmailVerificationToken(req.UserID, req.Email)
	if err != nil {
		return nil, s.toStatus("IssueEmailVerificationToken", err)
	}
	return &IssueTokenResponse{Token: token}, nil
}

func (s *Server) VerifyEmailVerificationToken(ctx context.Context, req *VerifyTokenRequest) (*ClaimsResponse, error) {
	if err := s.ready("VerifyEmailVerificationToken"); err != nil {
		return nil, err
	}
	cl, err := s.authority.VerifyEmailVerificationToken(req.Token)
	if err != nil {
		return nil, s.toStatus("VerifyEmailVerificationToken", err)
	}
	return &ClaimsResponse{Claims: cl}, nil
}

func (s *Server) IssuePasswordResetToken(ctx context.Context, req *IssueTokenRequest) (*IssueTokenResponse, error) {
	if err := s.ready("IssuePasswordResetToken"); err != nil {
		return nil, err
	}
	token, err := s.authority.GeneratePasswordResetToken(req.UserID, req.Email)
	if err != nil {
		return nil, s.toStatus("IssuePasswordResetToken", err)
	}
	return &IssueTokenResponse{Token: token}, nil
}

func (s *Server) VerifyPasswordResetToken(ctx context.Context, req *VerifyTokenRequest) (*ClaimsResponse, error) {
	if err := s.ready("VerifyPasswordResetToken"); err != nil {
		return nil, err
	}
	cl, err := s.authority.VerifyPasswordResetToken(req.Token)
	if err != nil {
		return nil, s.toStatus("VerifyPasswordResetToken", err)
	}
	return &ClaimsResponse{Claims: cl}, nil
}

func (s *Server) tokenResponse(p *service.TokenPair) *TokenResponse {
	return &TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        p.ExpiresIn(s.authority.Now()),
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
		SessionID:        p.SessionID,
	}
}

func sessionView(sess *domain.Session, currentID string) SessionView {
	return SessionView{
		ID:           sess.ID,
		UserID:       sess.UserID,
		Role:         string(sess.Role),
		Scopes:       claims.Strings(sess.Scopes),
		CreatedAt:    sess.CreatedAt,
		LastActiveAt: sess.LastActiveAt,
		DeviceInfo:   sess.DeviceInfo,
		IPAddress:    sess.IPAddress,
		Location:     sess.Location,
		IsCurrent:    currentID != "" && sess.ID == currentID,
	}
}
