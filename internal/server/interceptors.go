package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// healthServicePrefix covers the standard health Check and Watch methods.
// Probes reach them without a token.
const healthServicePrefix = "/grpc.health.v1.Health/"

var (
	errNoAuthHeader  = errors.New("missing authorization header")
	errAuthScheme    = errors.New("invalid authorization scheme")
	errInvalidToken  = errors.New("invalid token")
	errNoRPCMetadata = errors.New("missing metadata")
)

// bearerAuth checks "Authorization: Bearer <token>" values against a shared
// token. The zero value accepts everything.
type bearerAuth string

func (a bearerAuth) enabled() bool { return a != "" }

func (a bearerAuth) verify(header string) error {
	if header == "" {
		return errNoAuthHeader
	}
	provided, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return errAuthScheme
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(a)) != 1 {
		return errInvalidToken
	}
	return nil
}

// verifyRPC reads the authorization value from incoming gRPC metadata.
func (a bearerAuth) verifyRPC(ctx context.Context, method string) error {
	if !a.enabled() || strings.HasPrefix(method, healthServicePrefix) {
		return nil
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, errNoRPCMetadata.Error())
	}
	var header string
	if vals := md.Get("authorization"); len(vals) > 0 {
		header = vals[0]
	}
	if err := a.verify(header); err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return nil
}

// LoggingInterceptor logs each unary RPC with its status code and latency.
func LoggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	attrs := []any{
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	}
	if err != nil {
		slog.Error("rpc failed", append(attrs, "error", err)...)
	} else {
		slog.Debug("rpc ok", attrs...)
	}
	return resp, err
}

// RecoveryInterceptor turns a handler panic into codes.Internal and logs the
// stack.
func RecoveryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("rpc panic",
				"method", info.FullMethod,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			resp, err = nil, status.Error(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

// AuthInterceptor rejects unary RPCs without the bearer token. An empty
// token disables the check.
func AuthInterceptor(token string) grpc.UnaryServerInterceptor {
	auth := bearerAuth(token)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := auth.verifyRPC(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor guards streaming RPCs, such as server reflection,
// the same way.
func StreamAuthInterceptor(token string) grpc.StreamServerInterceptor {
	auth := bearerAuth(token)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := auth.verifyRPC(ss.Context(), info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

// AuthMiddleware requires the bearer token on every HTTP request except
// GET /v1/health. An empty token disables the check.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	auth := bearerAuth(token)
	if !auth.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}
		if err := auth.verify(r.Header.Get("Authorization")); err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
