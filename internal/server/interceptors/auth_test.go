package interceptors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"session-authority/internal/authz"
	"session-authority/internal/claims"
	"session-authority/internal/session/repository"
)

var errBadToken = errors.New("invalid token")

type fakeVerifier struct {
	tokens map[string]*claims.Claims
	err    error
	calls  int
}

func (f *fakeVerifier) VerifyAccessTokenWithSession(ctx context.Context, token string) (*claims.Claims, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	cl, ok := f.tokens[token]
	if !ok {
		return nil, errBadToken
	}
	return cl, nil
}

const (
	publicMethod   = "/test.Service/Public"
	internalMethod = "/test.Service/Internal"
	bearerMethod   = "/test.Service/Bearer"
	scopedMethod   = "/test.Service/Scoped"
	optionalMethod = "/test.Service/Optional"
)

func testPolicy() Policy {
	return Policy{
		publicMethod:   {Access: Public},
		internalMethod: {Access: Internal},
		bearerMethod:   {Access: Bearer},
		scopedMethod:   {Access: Bearer, Require: authz.AnyOf(claims.ScopeAdminWrite)},
		optionalMethod: {Access: OptionalBearer},
	}
}

func newTestVerifier() *fakeVerifier {
	now := time.Now()
	user := claims.NewAccess("user-1", "u@example.com", claims.RoleUser, now, now.Add(time.Hour), nil)
	user.SetExtra("sid", "session-1")
	admin := claims.NewAccess("admin-1", "a@example.com", claims.RoleAdmin, now, now.Add(time.Hour), nil)
	return &fakeVerifier{tokens: map[string]*claims.Claims{"user-token": user, "admin-token": admin}}
}

func withMetadata(kv ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
}

// capturingHandler records the principal attached by the interceptor.
func capturingHandler(got **claims.Claims) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		cl, _ := Principal(ctx)
		*got = cl
		return "success", nil
	}
}

func call(t *testing.T, interceptor grpc.UnaryServerInterceptor, ctx context.Context, method string) (*claims.Claims, error) {
	t.Helper()
	var got *claims.Claims
	_, err := interceptor(ctx, "request", &grpc.UnaryServerInfo{FullMethod: method}, capturingHandler(&got))
	return got, err
}

func TestAuthUnary_PublicMethod(t *testing.T) {
	v := newTestVerifier()
	interceptor := AuthUnary(v, testPolicy(), "internal-key", nil)

	got, err := call(t, interceptor, context.Background(), publicMethod)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if got != nil {
		t.Error("public method should not attach a principal")
	}
	if v.calls != 0 {
		t.Errorf("verifier called %d times for public method", v.calls)
	}
}

func TestAuthUnary_UnknownMethodDenied(t *testing.T) {
	interceptor := AuthUnary(newTestVerifier(), testPolicy(), "internal-key", nil)

	_, err := call(t, interceptor, withMetadata("authorization", "Bearer admin-token"), "/test.Service/Unlisted")
	if status.Code(err) != codes.PermissionDenied {
		t.Errorf("code = %v, want PermissionDenied", status.Code(err))
	}
}

func TestAuthUnary_InternalKey(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		ctx        context.Context
		want       codes.Code
	}{
		{"valid key", "internal-key", withMetadata(InternalKeyHeader, "internal-key"), codes.OK},
		{"wrong key", "internal-key", withMetadata(InternalKeyHeader, "other-key"), codes.Unauthenticated},
		{"missing key", "internal-key", context.Background(), codes.Unauthenticated},
		{"unset key fails closed", "", withMetadata(InternalKeyHeader, ""), codes.Unauthenticated},
		{"bearer is not enough", "internal-key", withMetadata("authorization", "Bearer admin-token"), codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptor := AuthUnary(newTestVerifier(), testPolicy(), tt.configured, nil)
			_, err := call(t, interceptor, tt.ctx, internalMethod)
			if status.Code(err) != tt.want {
				t.Errorf("code = %v, want %v", status.Code(err), tt.want)
			}
		})
	}
}

func TestAuthUnary_Bearer(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want codes.Code
	}{
		{"no token", context.Background(), codes.Unauthenticated},
		{"malformed header", withMetadata("authorization", "Token user-token"), codes.Unauthenticated},
		{"invalid token", withMetadata("authorization", "Bearer bogus"), codes.Unauthenticated},
		{"valid token", withMetadata("authorization", "Bearer user-token"), codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interceptor := AuthUnary(newTestVerifier(), testPolicy(), "internal-key", nil)
			got, err := call(t, interceptor, tt.ctx, bearerMethod)
			if status.Code(err) != tt.want {
				t.Fatalf("code = %v, want %v", status.Code(err), tt.want)
			}
			if tt.want == codes.OK && (got == nil || got.Subject != "user-1") {
				t.Errorf("principal = %+v, want user-1", got)
			}
		})
	}
}

func TestAuthUnary_ScopeRequirement(t *testing.T) {
	interceptor := AuthUnary(newTestVerifier(), testPolicy(), "internal-key", nil)

	if _, err := call(t, interceptor, withMetadata("authorization", "Bearer user-token"), scopedMethod); status.Code(err) != codes.PermissionDenied {
		t.Errorf("user: code = %v, want PermissionDenied", status.Code(err))
	}
	got, err := call(t, interceptor, withMetadata("authorization", "Bearer admin-token"), scopedMethod)
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if got == nil || got.Subject != "admin-1" {
		t.Errorf("principal = %+v, want admin-1", got)
	}
}

func TestAuthUnary_OptionalBearer(t *testing.T) {
	interceptor := AuthUnary(newTestVerifier(), testPolicy(), "internal-key", nil)

	got, err := call(t, interceptor, context.Background(), optionalMethod)
	if err != nil || got != nil {
		t.Errorf("anonymous: principal = %v, err = %v", got, err)
	}
	got, err = call(t, interceptor, withMetadata("authorization", "Bearer bogus"), optionalMethod)
	if err != nil || got != nil {
		t.Errorf("invalid token: principal = %v, err = %v", got, err)
	}
	got, err = call(t, interceptor, withMetadata("authorization", "Bearer user-token"), optionalMethod)
	if err != nil || got == nil {
		t.Errorf("valid token: principal = %v, err = %v", got, err)
	}
}

func TestAuthUnary_StoreUnavailable(t *testing.T) {
	v := newTestVerifier()
	v.err = fmt.Errorf("lookup: %w", repository.ErrStoreUnavailable)
	interceptor := AuthUnary(v, testPolicy(), "internal-key", nil)

	for _, method := range []string{bearerMethod, optionalMethod} {
		_, err := call(t, interceptor, withMetadata("authorization", "Bearer user-token"), method)
		if status.Code(err) != codes.Unavailable {
			t.Errorf("%s: code = %v, want Unavailable", method, status.Code(err))
		}
	}
}

func TestAuthUnary_TokenFailuresShareOneMessage(t *testing.T) {
	interceptor := AuthUnary(newTestVerifier(), testPolicy(), "internal-key", nil)

	_, errMissing := call(t, interceptor, context.Background(), bearerMethod)
	_, errInvalid := call(t, interceptor, withMetadata("authorization", "Bearer bogus"), bearerMethod)
	if status.Convert(errMissing).Message() != status.Convert(errInvalid).Message() {
		t.Errorf("messages differ: %q vs %q", status.Convert(errMissing).Message(), status.Convert(errInvalid).Message())
	}
}
