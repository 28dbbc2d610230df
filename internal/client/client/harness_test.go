package client

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/account"
	"github.com/dmitrijs2005/vaultsync/internal/cryptox"
	"github.com/dmitrijs2005/vaultsync/internal/logging"
	"github.com/dmitrijs2005/vaultsync/internal/messenger"
	gs "github.com/dmitrijs2005/vaultsync/internal/server/grpc"
	"github.com/dmitrijs2005/vaultsync/internal/server/services"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/storage/memory"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/stretchr/testify/require"
)

const testPassword = "correct horse"

// harness runs a real service in process. Every App built from it shares
// the service's stub provider, so keys never collide.
type harness struct {
	p    *cryptox.Stub
	mail *messenger.Recorder
	svc  *services.Service
	srv  *gs.GRPCServer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{p: cryptox.NewStub(), mail: &messenger.Recorder{}}
	h.svc = services.New(memory.New(), h.p, h.mail, logging.Nop{}, services.Config{
		SecretKey:           []byte("test-secret"),
		AccessTokenValidity: time.Hour,
		ClientURL:           "https://vault.example",
	})
	h.srv = gs.NewGRPCServer("", logging.Nop{}, h.svc)
	return h
}

type device struct {
	*App
	transport *GRPCClient
	local     storage.Store
}

// sessionToken is the token the next unpinned call would send.
func (d *device) sessionToken() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.token
}

func (h *harness) device(t *testing.T) *device {
	t.Helper()
	return h.deviceWith(t, memory.New())
}

func (h *harness) deviceWith(t *testing.T, local storage.Store) *device {
	t.Helper()
	return h.newDevice(t, local, func(tr Transport) Transport { return tr })
}

// deviceOver returns a device whose App reaches the server through wrap.
func (h *harness) deviceOver(t *testing.T, wrap func(Transport) Transport) *device {
	t.Helper()
	return h.newDevice(t, memory.New(), wrap)
}

func (h *harness) newDevice(t *testing.T, local storage.Store, wrap func(Transport) Transport) *device {
	t.Helper()
	tr := NewDirectClient(h.srv, h.srv.UnaryInterceptor(), time.Second)
	app := NewApp(Options{Transport: wrap(tr), Crypto: h.p, Local: local})
	t.Cleanup(func() { _ = app.Close() })
	return &device{App: app, transport: tr, local: local}
}

func (h *harness) signup(t *testing.T, d *device, email string) *account.Account {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, d.RequestEmailVerification(ctx, email))
	code, ok := h.mail.LastVerificationCode(email)
	require.True(t, ok)

	acct, err := d.Signup(ctx, SignupParams{
		Email:    email,
		Name:     strings.Split(email, "@")[0],
		Password: testPassword,
		Code:     code,
	})
	require.NoError(t, err)
	return acct
}

// lastInviteLink returns the newest invite link mailed to email.
func (h *harness) lastInviteLink(t *testing.T, email string) string {
	t.Helper()
	sent := h.mail.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if m, ok := sent[i].Message.(messenger.InviteCreatedMessage); ok && sent[i].Email == email {
			return m.Link
		}
	}
	t.Fatalf("no invite sent to %s", email)
	return ""
}

// share runs the whole invite handshake so guest becomes a member of
// vaultID and its granted sub-vaults.
func (h *harness) share(t *testing.T, owner, guest *device, vaultID string, role vault.Role) {
	t.Helper()
	ctx := context.Background()
	me, err := guest.Account()
	require.NoError(t, err)

	created, err := owner.CreateInvite(ctx, vaultID, me.Email, InviteOptions{Role: role})
	require.NoError(t, err)

	_, err = guest.AcceptInvite(ctx, h.lastInviteLink(t, me.Email), created.Secret)
	require.NoError(t, err)

	_, err = owner.ConfirmInvite(ctx, vaultID, created.Invite.ID)
	require.NoError(t, err)
	require.NoError(t, guest.Synchronize(ctx))
}

func vaultNames(t *testing.T, d *device) []string {
	t.Helper()
	infos, err := d.Vaults()
	require.NoError(t, err)
	out := make([]string, 0, len(infos))
	for _, v := range infos {
		out = append(out, v.Name)
	}
	return out
}

func itemNames(t *testing.T, d *device, vaultID string) []string {
	t.Helper()
	items, err := d.ListItems(vaultID)
	require.NoError(t, err)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func login(name, user, pass string) vault.Item {
	return vault.Item{
		Name: name,
		Fields: []vault.Field{
			{Name: "username", Value: user},
			{Name: "password", Value: pass, Masked: true},
		},
	}
}
