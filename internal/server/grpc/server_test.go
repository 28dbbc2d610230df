package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/account"
	"github.com/dmitrijs2005/vaultsync/internal/api"
	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/messenger"
	"github.com/dmitrijs2005/vaultsync/internal/rpc"
	"github.com/dmitrijs2005/vaultsync/internal/server/services"
	"github.com/dmitrijs2005/vaultsync/internal/storage/memory"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", nopLogger{}, &fakeService{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", nopLogger{}, &fakeService{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

// TestEndToEnd drives the real services over a loopback listener.
func TestEndToEnd(t *testing.T) {
	p := cryptox.NewStub()
	mail := &messenger.Recorder{}
	svc := services.New(memory.New(), p, mail, nopLogger{}, services.Config{SecretKey: []byte("k")})
	srv := NewGRPCServer("", nopLogger{}, svc)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	c := rpc.NewClient(conn)

	status, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "OK", status)

	_, err = c.ListVaults(ctx)
	assert.ErrorIs(t, err, common.ErrInvalidToken, "missing token")

	_, err = c.RequestEmailVerification(ctx, &api.RequestEmailVerificationRequest{Email: "ann@example.com"})
	require.NoError(t, err)
	code, ok := mail.LastVerificationCode("ann@example.com")
	require.True(t, ok)

	a, err := account.New(p, "ann@example.com", "Ann", "pw")
	require.NoError(t, err)
	v, _, err := vault.New(p, "Main", a.Identity())
	require.NoError(t, err)

	sess, err := c.CreateAccount(ctx, &api.CreateAccountRequest{Account: a, VerificationCode: code, MainVault: v})
	require.NoError(t, err)
	assert.Equal(t, a.ID, sess.Account.ID)

	authed := metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, sess.Token)
	list, err := c.ListVaults(authed)
	require.NoError(t, err)
	assert.Equal(t, []string{v.ID}, list.VaultIDs)

	pulled, err := c.PullVault(authed, &api.PullVaultRequest{VaultID: v.ID})
	require.NoError(t, err)
	assert.Equal(t, v.Revision, pulled.Vault.Revision)

	_, err = c.PullVault(authed, &api.PullVaultRequest{VaultID: "nope"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, c.Logout(authed))
	_, err = c.ListVaults(authed)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}
