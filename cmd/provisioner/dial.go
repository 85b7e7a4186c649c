package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	apiv1 "github.com/organicnz/rustsible-gui/api/v1"
	"github.com/organicnz/rustsible-gui/pkg/lib/config"
)

func dial(_ context.Context, cfg config.Config) (*grpc.ClientConn, error) {
	if err := cfg.RequireTLS(); err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair([]byte(cfg.TLS.Cert), []byte(cfg.TLS.Key))
	if err != nil {
		return nil, fmt.Errorf("failed to parse TLS cert/key: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM([]byte(cfg.TLS.CA)) {
		return nil, fmt.Errorf("failed to parse CA cert")
	}

	creds := credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	})
	return grpc.NewClient(cfg.Address, grpc.WithTransportCredentials(creds))
}

// withClient dials the daemon and hands a client to fn.
func withClient(ctx context.Context, opts *options, fn func(apiv1.ProvisionerClient) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	conn, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return fn(apiv1.NewProvisionerClient(conn))
}

func grpcCode(err error) codes.Code {
	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}
