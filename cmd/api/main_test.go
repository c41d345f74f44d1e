package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jaqubm/budgetme-backend/app"
	"github.com/jaqubm/budgetme-backend/config"
	"github.com/jaqubm/budgetme-backend/repositories/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestNewServer(t *testing.T) {
	cfg := config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         8000,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 7 * time.Second,
	}

	srv := newServer(cfg, http.NotFoundHandler())

	assert.Equal(t, "127.0.0.1:8000", srv.Addr)
	assert.Equal(t, 5*time.Second, srv.ReadTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 7*time.Second, srv.WriteTimeout)
	assert.Equal(t, 10*time.Second, srv.IdleTimeout)
}

func TestServe_GracefulShutdown(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	logger := zaptest.NewLogger(t)
	deps := &app.Dependencies{
		Config: &config.Config{
			Environment: "test",
			Server:      config.ServerConfig{ShutdownTimeout: time.Second},
		},
		DB:     postgres.Wrap(sqlDB, zap.NewNop()),
		Logger: logger,
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, deps, logger) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServe_ListenError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	deps := &app.Dependencies{
		Config: &config.Config{Server: config.ServerConfig{ShutdownTimeout: time.Second}},
		DB:     postgres.Wrap(sqlDB, zap.NewNop()),
		Logger: zap.NewNop(),
	}

	srv := &http.Server{Addr: "127.0.0.1:99999", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}

	err = serve(context.Background(), srv, deps, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}
