package interceptors

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"session-authority/internal/claims"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestAuditUnary_SkipMethod(t *testing.T) {
	logger, buf := newBufferLogger()
	interceptor := AuditUnary(logger, map[string]bool{"/grpc.health.v1.Health/Check": true})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	if _, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("skipped method was logged: %s", buf.String())
	}
}

func TestAuditUnary_AuthenticatedRequest(t *testing.T) {
	logger, buf := newBufferLogger()
	interceptor := AuditUnary(logger, nil)
	cl := &claims.Claims{Subject: "user-1"}
	cl.SetExtra("sid", "session-1")
	ctx := WithPrincipal(context.Background(), cl)
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	resp, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/authority.v1.SessionService/ListSessions"}, handler)
	if err != nil || resp != "ok" {
		t.Fatalf("interceptor = %v, %v", resp, err)
	}
	out := buf.String()
	for _, want := range []string{"level=INFO", "method=/authority.v1.SessionService/ListSessions", "action=list", "resource=session", "code=OK", "user_id=user-1", "session_id=session-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestAuditUnary_FailedRequest(t *testing.T) {
	logger, buf := newBufferLogger()
	interceptor := AuditUnary(logger, nil)
	handlerErr := status.Error(codes.Unauthenticated, "nope")
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return nil, handlerErr }

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/authority.v1.SessionService/RefreshSession"}, handler)
	if !errors.Is(err, handlerErr) {
		t.Fatalf("err = %v, want handler error", err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "code=Unauthenticated") {
		t.Errorf("log = %q", out)
	}
	if strings.Contains(out, "user_id=") {
		t.Errorf("anonymous request logged a user: %q", out)
	}
}

func TestClientIP_XForwardedFor(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"x-forwarded-for": "192.168.1.1",
	}))
	ip := ClientIP(ctx)
	if ip != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", ip, "192.168.1.1")
	}
}

func TestClientIP_XForwardedFor_WithComma(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"x-forwarded-for": "192.168.1.1, 10.0.0.1",
	}))
	ip := ClientIP(ctx)
	if ip != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", ip, "192.168.1.1")
	}
}

func TestClientIP_XRealIP(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"x-real-ip": "192.168.1.2",
	}))
	ip := ClientIP(ctx)
	if ip != "192.168.1.2" {
		t.Errorf("ip = %q, want %q", ip, "192.168.1.2")
	}
}

func TestClientIP_XForwardedFor_Precedence(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"x-forwarded-for": "192.168.1.1",
		"x-real-ip":       "192.168.1.2",
	}))
	ip := ClientIP(ctx)
	if ip != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", ip, "192.168.1.1")
	}
}

func TestClientIP_PeerAddress(t *testing.T) {
	addr := &net.TCPAddr{
		IP:   net.ParseIP("192.168.1.3"),
		Port: 12345,
	}
	ctx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: addr,
	})
	ip := ClientIP(ctx)
	if ip != "192.168.1.3" {
		t.Errorf("ip = %q, want %q", ip, "192.168.1.3")
	}
}

func TestClientIP_Unknown(t *testing.T) {
	ctx := context.Background()
	ip := ClientIP(ctx)
	if ip != "unknown" {
		t.Errorf("ip = %q, want %q", ip, "unknown")
	}
}

func TestClientIP_Whitespace(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{
		"x-forwarded-for": "  192.168.1.1  ",
	}))
	ip := ClientIP(ctx)
	if ip != "192.168.1.1" {
		t.Errorf("ip = %q, want %q", ip, "192.168.1.1")
	}
}
