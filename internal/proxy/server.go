// Package proxy relays PSO2 connections between clients and an upstream server.
//
// Every accepted client gets its own upstream connection. The proxy terminates
// the RSA handshake on both sides, so it sees plain packets in both directions,
// and optionally records them into a capture sink.
package proxy

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/pso2go/internal/config"
	"github.com/udisondev/pso2go/internal/crypto"
	"github.com/udisondev/pso2go/internal/variant"
)

// DialFunc opens the upstream connection.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

type serverOptions struct {
	dial        DialFunc
	clientKey   crypto.PrivateKeySource
	upstreamKey crypto.PublicKeySource
	captures    CaptureOpener
}

// ServerOption is a functional option for Server configuration.
type ServerOption func(*serverOptions)

// WithDialer replaces net.Dialer for upstream connections (useful for testing).
func WithDialer(dial DialFunc) ServerOption {
	return func(o *serverOptions) {
		o.dial = dial
	}
}

// WithClientKey overrides the private key from the config file.
func WithClientKey(src crypto.PrivateKeySource) ServerOption {
	return func(o *serverOptions) {
		o.clientKey = src
	}
}

// WithUpstreamKey overrides the upstream public key from the config file.
func WithUpstreamKey(src crypto.PublicKeySource) ServerOption {
	return func(o *serverOptions) {
		o.upstreamKey = src
	}
}

// WithCaptures records every session into sinks produced by open.
func WithCaptures(open CaptureOpener) ServerOption {
	return func(o *serverOptions) {
		o.captures = open
	}
}

// Server accepts clients and relays them to the upstream server.
type Server struct {
	cfg           config.Proxy
	variant       variant.Variant
	personalities crypto.Personalities
	shipAddr      netip.Addr

	clientKey   *rsa.PrivateKey
	upstreamKey *rsa.PublicKey
	dial        DialFunc
	captures    CaptureOpener

	sessions atomic.Uint64

	listener net.Listener
	mu       sync.Mutex
}

// NewServer loads the keys and validates cfg.
func NewServer(cfg config.Proxy, opts ...ServerOption) (*Server, error) {
	o := serverOptions{
		clientKey:   crypto.PEMKeyFile(cfg.ClientKey),
		upstreamKey: crypto.PEMKeyFile(cfg.UpstreamKey),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.dial == nil {
		d := &net.Dialer{Timeout: cfg.DialTimeout}
		o.dial = d.DialContext
	}

	v, err := cfg.ClientVariant()
	if err != nil {
		return nil, err
	}
	personalities, err := cfg.EnabledPersonalities()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:           cfg,
		variant:       v,
		personalities: personalities,
		dial:          o.dial,
		captures:      o.captures,
	}
	if cfg.ShipAddress != "" {
		if s.shipAddr, err = netip.ParseAddr(cfg.ShipAddress); err != nil {
			return nil, fmt.Errorf("parsing ship address: %w", err)
		}
		if !s.shipAddr.Is4() {
			return nil, fmt.Errorf("ship address %s is not IPv4", s.shipAddr)
		}
	}

	if s.clientKey, err = o.clientKey.PrivateKey(); err != nil {
		return nil, fmt.Errorf("loading client key: %w", err)
	}
	if s.upstreamKey, err = o.upstreamKey.PublicKey(); err != nil {
		return nil, fmt.Errorf("loading upstream key: %w", err)
	}
	return s, nil
}

// Addr возвращает адрес, на котором слушает сервер.
// Возвращает nil если сервер ещё не запущен.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close закрывает listener и останавливает сервер.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on cfg.Listen and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve принимает готовый listener и запускает accept loop.
// Возвращает управление после завершения всех сессий.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("proxy started", "address", ln.Addr(), "upstream", s.cfg.Upstream, "variant", s.variant)
		s.acceptLoop(ctx, &wg, ln)
	})
	wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			slog.Error("failed to accept connection", "error", err)
			// временные ошибки accept (EMFILE) не должны крутить цикл вхолостую
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}
		wg.Go(func() {
			s.handleConnection(ctx, conn)
		})
	}
}
