package main

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type spiffeIdContextKey struct{}

func spiffeIdFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(spiffeIdContextKey{}).(string)
	return id, ok
}

// spiffeIdFromTls returns the trust domain of the first spiffe:// URI SAN of
// the peer's leaf certificate, e.g. spiffe://client1 -> "client1".
func spiffeIdFromTls(ctx context.Context) (string, bool) {
	if id, ok := spiffeIdFromContext(ctx); ok {
		return id, true
	}

	p, ok := peer.FromContext(ctx)
	if !ok || p == nil {
		return "", false
	}
	ti, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok {
		return "", false
	}
	certs := ti.State.PeerCertificates
	if len(certs) == 0 || certs[0] == nil {
		return "", false
	}

	for _, uri := range certs[0].URIs {
		if uri != nil && uri.Scheme == "spiffe" && uri.Host != "" {
			return uri.Host, true
		}
	}
	return "", false
}

func injectSpiffeId(ctx context.Context, spiffeId string) context.Context {
	return context.WithValue(ctx, spiffeIdContextKey{}, spiffeId)
}

var errNoSpiffeId = status.Error(codes.Unauthenticated, "client must have SPIFFE ID")

func injectSpiffeIdUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	spiffeId, ok := spiffeIdFromTls(ctx)
	if !ok {
		return nil, errNoSpiffeId
	}
	return handler(injectSpiffeId(ctx, spiffeId), req)
}

type streamWithCtx struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *streamWithCtx) Context() context.Context { return s.ctx }

func injectSpiffeIdStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	spiffeId, ok := spiffeIdFromTls(ss.Context())
	if !ok {
		return errNoSpiffeId
	}
	return handler(srv, &streamWithCtx{ServerStream: ss, ctx: injectSpiffeId(ss.Context(), spiffeId)})
}

// checkOwnership allows only the client that started the run.
func checkOwnership(ctx context.Context, j *journal) error {
	spiffeId, ok := spiffeIdFromContext(ctx)
	if !ok {
		return errNoSpiffeId
	}
	if j.owner != spiffeId {
		return status.Error(codes.PermissionDenied, "only the client that started the run can access it")
	}
	return nil
}
