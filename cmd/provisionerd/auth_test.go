package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestContext_HasSpiffeId(t *testing.T) {
	ctx := injectSpiffeId(context.Background(), "TEST")
	id, ok := spiffeIdFromTls(ctx)
	require.True(t, ok)
	assert.Equal(t, "TEST", id)
}

func TestContext_NoPeerNoSpiffeId(t *testing.T) {
	_, ok := spiffeIdFromTls(context.Background())
	assert.False(t, ok)
}

func TestCheckOwnership(t *testing.T) {
	j := newJournal("run-1", "client1", "203.0.113.10", 0)

	assert.NoError(t, checkOwnership(injectSpiffeId(context.Background(), "client1"), j))
	assert.Equal(t, codes.PermissionDenied, status.Code(checkOwnership(injectSpiffeId(context.Background(), "client2"), j)))
	assert.Equal(t, codes.Unauthenticated, status.Code(checkOwnership(context.Background(), j)))
}
