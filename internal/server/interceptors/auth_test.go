package interceptors

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"staff-auth-core/internal/auth"
	"staff-auth-core/internal/auth/pipeline"
	"staff-auth-core/internal/security"
)

type fakeVerifier struct {
	claims map[string]*security.AccessClaims
	err    error
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*security.AccessClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.claims[token]
	if !ok {
		return nil, auth.ErrTokenInvalid
	}
	return c, nil
}

func testPipeline(v *fakeVerifier) *pipeline.Pipeline {
	return pipeline.NewBuilder().Authenticated(v).Build()
}

func ctxWithAuth(value string) context.Context {
	return metadata.NewIncomingContext(context.Background(),
		metadata.Pairs("authorization", value))
}

func passthrough(ctx context.Context, _ interface{}) (interface{}, error) {
	if id, ok := GetIdentity(ctx); ok {
		return id, nil
	}
	return nil, nil
}

func newVerifier() *fakeVerifier {
	return &fakeVerifier{claims: map[string]*security.AccessClaims{
		"good-token": {
			RegisteredClaims: jwt.RegisteredClaims{Subject: "staff-1"},
			Role:             "support",
			PrincipalType:    "staff",
		},
	}}
}

func TestAuthUnary_ValidTokenSetsIdentity(t *testing.T) {
	ic := AuthUnary(testPipeline(newVerifier()), nil)

	resp, err := ic(ctxWithAuth("Bearer good-token"), nil,
		&grpc.UnaryServerInfo{FullMethod: "/staffauth.v1.StaffService/GetBooking"}, passthrough)
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	id, ok := resp.(*pipeline.Identity)
	if !ok || id == nil {
		t.Fatalf("handler saw no identity, resp = %v", resp)
	}
	if id.Claims.Subject != "staff-1" {
		t.Errorf("Subject = %q", id.Claims.Subject)
	}
}

func TestAuthUnary_MissingTokenOnProtectedMethod(t *testing.T) {
	ic := AuthUnary(testPipeline(newVerifier()), nil)

	_, err := ic(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: "/staffauth.v1.StaffService/GetBooking"}, passthrough)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestAuthUnary_PublicMethodWithoutToken(t *testing.T) {
	public := map[string]bool{"/staffauth.v1.AuthService/Login": true}
	ic := AuthUnary(testPipeline(newVerifier()), public)

	resp, err := ic(context.Background(), nil,
		&grpc.UnaryServerInfo{FullMethod: "/staffauth.v1.AuthService/Login"}, passthrough)
	if err != nil {
		t.Fatalf("public method: %v", err)
	}
	if resp != nil {
		t.Error("public method without token should carry no identity")
	}
}

func TestAuthUnary_PublicMethodWithBadTokenStillPasses(t *testing.T) {
	public := map[string]bool{"/staffauth.v1.AuthService/Login": true}
	ic := AuthUnary(testPipeline(newVerifier()), public)

	if _, err := ic(ctxWithAuth("Bearer garbage"), nil,
		&grpc.UnaryServerInfo{FullMethod: "/staffauth.v1.AuthService/Login"}, passthrough); err != nil {
		t.Fatalf("public method with bad token: %v", err)
	}
}

func TestAuthUnary_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"expired", auth.ErrTokenExpired, codes.Unauthenticated},
		{"revoked", auth.ErrTokenRevoked, codes.Unauthenticated},
		{"invalid", auth.ErrTokenInvalid, codes.Unauthenticated},
		{"locked", &auth.LockedError{}, codes.PermissionDenied},
		{"blocked", auth.ErrAccountBlocked, codes.PermissionDenied},
		{"denied", auth.ErrPermissionDenied, codes.PermissionDenied},
		{"infra", &auth.InfrastructureError{Op: "lookup", Err: context.DeadlineExceeded}, codes.Unavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ic := AuthUnary(testPipeline(&fakeVerifier{err: tc.err}), nil)
			_, err := ic(ctxWithAuth("Bearer any"), nil,
				&grpc.UnaryServerInfo{FullMethod: "/staffauth.v1.StaffService/GetBooking"}, passthrough)
			if status.Code(err) != tc.want {
				t.Errorf("code = %v, want %v", status.Code(err), tc.want)
			}
		})
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"padded", "  Bearer   abc123  ", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"bare token", "abc", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractBearer(ctxWithAuth(tc.value)); got != tc.want {
				t.Errorf("extractBearer(%q) = %q, want %q", tc.value, got, tc.want)
			}
		})
	}

	if got := extractBearer(context.Background()); got != "" {
		t.Errorf("no metadata: got %q, want empty", got)
	}
}
