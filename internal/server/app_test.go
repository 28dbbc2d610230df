package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/server/config"
	"github.com/dmitrijs2005/vaultsync/internal/storage"
	"github.com/dmitrijs2005/vaultsync/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.EndpointAddrGRPC = "127.0.0.1:0"
	c.EndpointAddrHTTP = "127.0.0.1:0"
	c.StorageDriver = "memory"
	c.CryptoProvider = "stub"
	c.LogLevel = "error"
	return c
}

func TestOpenStorage(t *testing.T) {
	c := testConfig()

	s, err := OpenStorage(context.Background(), c)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)

	c.StorageDriver = "bolt"
	c.BoltPath = t.TempDir() + "/data.bolt"
	s, err = OpenStorage(context.Background(), c)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	c.StorageDriver = "sqlite"
	c.DatabaseDSN = "file:server_app_test?mode=memory&cache=shared"
	s, err = OpenStorage(context.Background(), c)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	c.StorageDriver = "floppy"
	_, err = OpenStorage(context.Background(), c)
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("json", "debug")
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = NewLogger("zap", "warn")
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = NewLogger("xml", "info")
	assert.Error(t, err)
}

func TestNewApp_Errors(t *testing.T) {
	c := testConfig()
	c.CryptoProvider = "rot13"
	_, err := NewApp(context.Background(), c)
	assert.Error(t, err)

	orig := openStore
	t.Cleanup(func() { openStore = orig })
	openStore = func(context.Context, *config.Config) (storage.Store, error) {
		return nil, errors.New("db down")
	}

	_, err = NewApp(context.Background(), testConfig())
	assert.ErrorContains(t, err, "db down")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("app exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApp_RunFailsOnBadAddress(t *testing.T) {
	c := testConfig()
	c.EndpointAddrGRPC = "bad::addr"
	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
