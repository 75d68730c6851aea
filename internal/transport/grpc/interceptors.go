package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"meetdesk/backend/internal/domain"
	"meetdesk/backend/internal/identity"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyActor
)

// RequestIDMetadataKey is the metadata key used for request id propagation.
const RequestIDMetadataKey = "x-request-id"

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(domain.Actor)
	return a, ok && a.Valid()
}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context { return s.ctx }

func firstValue(ctx context.Context, keys ...string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, k := range keys {
		if vals := md.Get(k); len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
	}
	return ""
}

func requestID(ctx context.Context) (context.Context, string) {
	id := firstValue(ctx, RequestIDMetadataKey)
	if id == "" {
		id = uuid.NewString()
	}
	return WithRequestID(ctx, id), id
}

// UnaryRequestIDInterceptor reads the request id from incoming metadata (or mints
// one), stores it in context and echoes it back in response headers.
func UnaryRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, id := requestID(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		return handler(ctx, req)
	}
}

func StreamRequestIDInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, id := requestID(ss.Context())
		_ = ss.SetHeader(metadata.Pairs(RequestIDMetadataKey, id))
		return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
	}
}

// UnaryTimeoutInterceptor applies timeout to calls that arrive without a deadline.
func UnaryTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

type headerAuthenticator interface {
	AuthenticateHeader(header string) (domain.Actor, error)
}

// authenticate resolves the bearer token of scheduling calls into an actor.
// Other services on the server (health) pass through untouched.
func authenticate(ctx context.Context, auth headerAuthenticator, method string) (context.Context, error) {
	if !strings.HasPrefix(method, "/"+serviceName+"/") {
		return ctx, nil
	}
	header := firstValue(ctx, "authorization")
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, "authorization header is required")
	}
	actor, err := auth.AuthenticateHeader(header)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	return WithActor(ctx, actor), nil
}

func UnaryAuthInterceptor(auth headerAuthenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticate(ctx, auth, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func StreamAuthInterceptor(auth headerAuthenticator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), auth, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
	}
}
