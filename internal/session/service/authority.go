// Package service implements the session authority: it mints token pairs
// bound to server-side sessions, rotates them on refresh, and checks every
// access token against its session so revocation takes effect immediately.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"session-authority/internal/claims"
	"session-authority/internal/platform/clock"
	"session-authority/internal/session/domain"
	"session-authority/internal/session/repository"
	"session-authority/internal/telemetry"
)

// extraSessionID is the claims.Extra key holding the owning session id.
const extraSessionID = "sid"

// mutationTimeout bounds store writes that outlive the caller's context.
const mutationTimeout = 5 * time.Second

// DefaultRetention is how long session rows are kept after creation.
const DefaultRetention = 30 * 24 * time.Hour

// TokenCodec signs and verifies tokens. *security.Codec implements it.
type TokenCodec interface {
	Issue(c *claims.Claims) (string, error)
	Verify(token string, purpose claims.Purpose) (*claims.Claims, error)
}

// Config holds lifetimes. Zero values fall back to the defaults below.
type Config struct {
	AccessTTL            time.Duration // default 15m
	RefreshTTL           time.Duration // default 7 days
	EmailVerificationTTL time.Duration // default 24h
	PasswordResetTTL     time.Duration // default 1h
	Retention            time.Duration // default 30 days
}

func (c Config) withDefaults() Config {
	if c.AccessTTL <= 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.EmailVerificationTTL <= 0 {
		c.EmailVerificationTTL = claims.EmailVerificationTTL
	}
	if c.PasswordResetTTL <= 0 {
		c.PasswordResetTTL = claims.PasswordResetTTL
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	return c
}

// TokenPair is returned by CreateSession and RefreshSession.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	SessionID        string
}

// ExpiresIn is the access token lifetime in whole seconds from now.
func (p *TokenPair) ExpiresIn(now time.Time) int64 {
	d := p.AccessExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// CreateSessionRequest describes a login that has already been authenticated
// by the caller.
type CreateSessionRequest struct {
	UserID string
	Email  string
	Role   claims.Role
	Device domain.DeviceInfo
	// Scopes overrides the role defaults when non-nil. An empty non-nil slice grants nothing.
	Scopes []claims.Scope
}

// Authority is safe for concurrent use. It holds no session state of its own;
// every decision reads the repository.
type Authority struct {
	repo    repository.Repository
	codec   TokenCodec
	cfg     Config
	clock   clock.Clock
	logger  *slog.Logger
	events  telemetry.EventEmitter
	metrics *Metrics
	tracer  trace.Tracer
}

// Option customizes an Authority.
type Option func(*Authority)

func WithClock(c clock.Clock) Option { return func(a *Authority) { a.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(a *Authority) { a.logger = l } }

// WithEvents sets the sink for lifecycle events. Emission is asynchronous.
func WithEvents(e telemetry.EventEmitter) Option { return func(a *Authority) { a.events = e } }

func WithMetrics(m *Metrics) Option { return func(a *Authority) { a.metrics = m } }

// NewAuthority returns an Authority over repo and codec.
func NewAuthority(repo repository.Repository, codec TokenCodec, cfg Config, opts ...Option) *Authority {
	a := &Authority{
		repo:   repo,
		codec:  codec,
		cfg:    cfg.withDefaults(),
		clock:  clock.Real(),
		logger: slog.Default(),
		tracer: otel.Tracer("session-authority/session"),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// now returns the clock in whole UTC seconds, matching token resolution.
func (a *Authority) now() time.Time {
	return a.clock.Now().UTC().Truncate(time.Second)
}

// Now returns the authority's clock reading at second precision.
func (a *Authority) Now() time.Time { return a.now() }

func (a *Authority) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return a.tracer.Start(ctx, "Authority."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// mutationContext detaches a write from caller cancellation so a client
// disconnect cannot abandon a revocation or rotation halfway.
func mutationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), mutationTimeout)
}

func (a *Authority) emit(t telemetry.EventType, sessionID, userID string, at time.Time, detail map[string]string) {
	if a.events == nil {
		return
	}
	telemetry.EmitAsync(a.events, a.logger, &telemetry.SessionEvent{
		Type: t, SessionID: sessionID, UserID: userID, At: at, Detail: detail,
	})
}

// issuePair mints access and refresh tokens for sessionID from the grant.
func (a *Authority) issuePair(sessionID, userID, email string, role claims.Role, scopes []claims.Scope, now time.Time) (*TokenPair, *claims.Claims, *claims.Claims, error) {
	access := claims.NewAccess(userID, email, role, now, now.Add(a.cfg.AccessTTL), scopes)
	access.SetExtra(extraSessionID, sessionID)
	refresh := claims.NewRefresh(userID, now, now.Add(a.cfg.RefreshTTL))
	refresh.SetExtra(extraSessionID, sessionID)

	accessTok, err := a.codec.Issue(access)
	if err != nil {
		return nil, nil, nil, err
	}
	refreshTok, err := a.codec.Issue(refresh)
	if err != nil {
		return nil, nil, nil, err
	}
	return &TokenPair{
		AccessToken:      accessTok,
		RefreshToken:     refreshTok,
		TokenType:        "Bearer",
		AccessExpiresAt:  access.ExpiresAtTime(),
		RefreshExpiresAt: refresh.ExpiresAtTime(),
		SessionID:        sessionID,
	}, access, refresh, nil
}

// CreateSession opens a session and returns its first token pair.
func (a *Authority) CreateSession(ctx context.Context, req CreateSessionRequest) (pair *TokenPair, sess *domain.Session, err error) {
	ctx, span := a.startSpan(ctx, "CreateSession", attribute.String("user_id", req.UserID))
	defer func() { endSpan(span, err) }()

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, nil, errors.Join(ErrInvalidArgument, errors.New("user id is required"))
	}
	scopes := req.Scopes
	if scopes == nil {
		scopes = claims.DefaultScopesForRole(req.Role)
	}
	now := a.now()
	sessionID := uuid.NewString()
	pair, access, refresh, err := a.issuePair(sessionID, userID, req.Email, req.Role, scopes, now)
	if err != nil {
		return nil, nil, err
	}
	sess = &domain.Session{
		ID:           sessionID,
		UserID:       userID,
		AccessJTI:    access.ID,
		RefreshJTI:   refresh.ID,
		Email:        req.Email,
		Role:         req.Role,
		Scopes:       access.Scopes,
		CreatedAt:    now,
		LastActiveAt: now,
		IsActive:     true,
		DeviceInfo:   req.Device.Description,
		IPAddress:    req.Device.IPAddress,
		Location:     req.Device.Location,
	}
	mctx, cancel := mutationContext(ctx)
	defer cancel()
	if err := a.repo.Create(mctx, sess); err != nil {
		return nil, nil, err
	}
	a.metrics.created()
	a.logger.Info("session created", "session_id", sessionID, "user_id", userID)
	a.emit(telemetry.EventSessionCreated, sessionID, userID, now, nil)
	return pair, sess.Clone(), nil
}

// RefreshSession exchanges a refresh token for a new pair and rotates the
// session's jtis. The presented refresh token is single-use: presenting it
// again after a successful rotation revokes the session.
func (a *Authority) RefreshSession(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	ctx, span := a.startSpan(ctx, "RefreshSession")
	defer func() {
		a.metrics.refresh(resultLabel(err))
		endSpan(span, err)
	}()

	cl, err := a.codec.Verify(refreshToken, claims.PurposeRefresh)
	if err != nil {
		return nil, err
	}
	now := a.now()
	if cl.IsExpired(now) {
		return nil, ErrTokenExpired
	}
	sess, err := a.repo.FindByRefreshJTI(ctx, cl.ID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, a.handleUnknownRefresh(ctx, cl, now)
	}
	if !sess.IsActive || sess.UserID != cl.Subject {
		return nil, ErrInvalidToken
	}
	span.SetAttributes(attribute.String("session_id", sess.ID))

	// The stored snapshot is the grant; never fall back to role defaults here.
	scopes := sess.Scopes
	if scopes == nil {
		scopes = []claims.Scope{}
	}
	pair, access, refresh, err := a.issuePair(sess.ID, sess.UserID, sess.Email, sess.Role, scopes, now)
	if err != nil {
		return nil, err
	}
	mctx, cancel := mutationContext(ctx)
	defer cancel()
	if err := a.repo.Rotate(mctx, sess.ID, cl.ID, access.ID, refresh.ID, now); err != nil {
		if errors.Is(err, repository.ErrRotationConflict) {
			// Lost a race with a concurrent refresh or revocation.
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	a.emit(telemetry.EventSessionRefreshed, sess.ID, sess.UserID, now, nil)
	return pair, nil
}

// handleUnknownRefresh runs when a valid refresh token matches no session.
// If the token names a session that is still active, the token was superseded
// by rotation and is being replayed, so that session is revoked.
func (a *Authority) handleUnknownRefresh(ctx context.Context, cl *claims.Claims, now time.Time) error {
	sid := cl.ExtraString(extraSessionID)
	if sid == "" {
		return ErrInvalidToken
	}
	sess, err := a.repo.GetByID(ctx, sid)
	if err != nil {
		return err
	}
	if sess == nil || !sess.IsActive || sess.UserID != cl.Subject {
		return ErrInvalidToken
	}
	mctx, cancel := mutationContext(ctx)
	defer cancel()
	if err := a.repo.Revoke(mctx, sess.ID, now); err != nil {
		return err
	}
	a.metrics.revoke("reuse")
	a.logger.Warn("refresh token reuse detected; session revoked",
		"session_id", sess.ID, "user_id", sess.UserID, "jti", cl.ID)
	a.emit(telemetry.EventRefreshReuseDetected, sess.ID, sess.UserID, now, map[string]string{"jti": cl.ID})
	return ErrRefreshReuse
}

// VerifyAccessTokenWithSession verifies an access token and requires its
// session to be active. Updating the session's last activity is best-effort.
func (a *Authority) VerifyAccessTokenWithSession(ctx context.Context, token string) (cl *claims.Claims, err error) {
	ctx, span := a.startSpan(ctx, "VerifyAccessTokenWithSession")
	defer func() {
		a.metrics.verify(resultLabel(err))
		endSpan(span, err)
	}()

	cl, err = a.codec.Verify(token, claims.PurposeAccess)
	if err != nil {
		return nil, err
	}
	now := a.now()
	if cl.IsExpired(now) {
		return nil, ErrTokenExpired
	}
	sess, err := a.repo.FindByAccessJTI(ctx, cl.ID)
	if err != nil {
		return nil, err
	}
	if sess == nil || !sess.IsActive || sess.UserID != cl.Subject {
		return nil, ErrInvalidToken
	}
	if err := a.repo.TouchLastActive(ctx, sess.ID, now); err != nil {
		a.metrics.touchFailed()
		a.logger.Warn("session touch failed", "session_id", sess.ID, "error", err)
	}
	return cl, nil
}

// VerifyRefreshToken checks a refresh token's signature, purpose and expiry
// without consulting the store.
func (a *Authority) VerifyRefreshToken(token string) (*claims.Claims, error) {
	return a.verifyStateless(token, claims.PurposeRefresh)
}

func (a *Authority) verifyStateless(token string, purpose claims.Purpose) (*claims.Claims, error) {
	cl, err := a.codec.Verify(token, purpose)
	if err != nil {
		return nil, err
	}
	if cl.IsExpired(a.now()) {
		return nil, ErrTokenExpired
	}
	return cl, nil
}

// GetSession returns a session by id or ErrSessionNotFound.
func (a *Authority) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := a.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// RevokeSession deactivates one session. Revoking an unknown or already
// revoked session succeeds.
func (a *Authority) RevokeSession(ctx context.Context, sessionID string) (err error) {
	ctx, span := a.startSpan(ctx, "RevokeSession", attribute.String("session_id", sessionID))
	defer func() { endSpan(span, err) }()

	sess, err := a.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	return a.revoke(ctx, sess)
}

func (a *Authority) revoke(ctx context.Context, sess *domain.Session) error {
	now := a.now()
	mctx, cancel := mutationContext(ctx)
	defer cancel()
	if err := a.repo.Revoke(mctx, sess.ID, now); err != nil {
		return err
	}
	a.metrics.revoke("session")
	a.emit(telemetry.EventSessionRevoked, sess.ID, sess.UserID, now, nil)
	return nil
}

// RevokeAllUserSessions deactivates every session of userID, e.g. after a
// password change or role change. Returns how many sessions were active.
func (a *Authority) RevokeAllUserSessions(ctx context.Context, userID string) (n int64, err error) {
	ctx, span := a.startSpan(ctx, "RevokeAllUserSessions", attribute.String("user_id", userID))
	defer func() { endSpan(span, err) }()

	now := a.now()
	mctx, cancel := mutationContext(ctx)
	defer cancel()
	n, err = a.repo.RevokeAllForUser(mctx, userID, now)
	if err != nil {
		return 0, err
	}
	a.metrics.revoke("user")
	a.logger.Info("user sessions revoked", "user_id", userID, "count", n)
	a.emit(telemetry.EventSessionsRevokedAll, "", userID, now, nil)
	return n, nil
}

// GetUserActiveSessions lists active sessions, most recently active first.
func (a *Authority) GetUserActiveSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return a.repo.ListActiveByUser(ctx, userID)
}

// CleanupExpiredSessions deletes sessions created before the retention window.
func (a *Authority) CleanupExpiredSessions(ctx context.Context) (n int64, err error) {
	ctx, span := a.startSpan(ctx, "CleanupExpiredSessions")
	defer func() { endSpan(span, err) }()

	now := a.now()
	n, err = a.repo.SweepExpired(ctx, now.Add(-a.cfg.Retention))
	if err != nil {
		return 0, err
	}
	a.metrics.sweep(n)
	if n > 0 {
		a.logger.Info("expired sessions swept", "count", n)
		a.emit(telemetry.EventSessionsSwept, "", "", now, nil)
	}
	return n, nil
}

// Logout revokes the caller's session. A refresh token, when given, names
// the session; otherwise the verified access claims do. A refresh token that
// belongs to another user is rejected.
func (a *Authority) Logout(ctx context.Context, access *claims.Claims, refreshToken string) error {
	if strings.TrimSpace(refreshToken) != "" {
		cl, err := a.codec.Verify(refreshToken, claims.PurposeRefresh)
		if err != nil {
			return err
		}
		if access != nil && access.Subject != cl.Subject {
			return ErrInvalidToken
		}
		sess, err := a.repo.FindByRefreshJTI(ctx, cl.ID)
		if err != nil {
			return err
		}
		if sess == nil {
			return nil
		}
		return a.revoke(ctx, sess)
	}
	if access == nil {
		return ErrInvalidToken
	}
	sess, err := a.repo.FindByAccessJTI(ctx, access.ID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	return a.revoke(ctx, sess)
}

// CurrentSessionID returns the session id stamped into verified claims.
func CurrentSessionID(cl *claims.Claims) string {
	if cl == nil {
		return ""
	}
	return cl.ExtraString(extraSessionID)
}

func isExpired(err error) bool { return errors.Is(err, ErrTokenExpired) }
func isReuse(err error) bool   { return errors.Is(err, ErrRefreshReuse) }
func isStore(err error) bool   { return errors.Is(err, ErrStoreUnavailable) }
