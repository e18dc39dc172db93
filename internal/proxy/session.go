package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/pso2go/internal/capture"
	"github.com/udisondev/pso2go/internal/connection"
	"github.com/udisondev/pso2go/internal/crypto"
	"github.com/udisondev/pso2go/internal/protocol"
)

// SessionInfo describes one proxied client.
type SessionInfo struct {
	ID        uint64
	Client    net.Addr
	Upstream  string
	StartedAt time.Time
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	info := SessionInfo{
		ID:        s.sessions.Add(1),
		Client:    conn.RemoteAddr(),
		Upstream:  s.cfg.Upstream,
		StartedAt: time.Now(),
	}
	log := slog.With("session", info.ID, "remote", info.Client)
	log.Info("new connection")

	if err := s.serveSession(ctx, conn, info); err != nil {
		log.Warn("session failed", "error", err)
		return
	}
	log.Info("session closed", "duration", time.Since(info.StartedAt))
}

func (s *Server) serveSession(ctx context.Context, conn net.Conn, info SessionInfo) (err error) {
	dialCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.DialTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, s.cfg.DialTimeout)
	}
	up, err := s.dial(dialCtx, "tcp", s.cfg.Upstream)
	cancel()
	if err != nil {
		return fmt.Errorf("dialing upstream %s: %w", s.cfg.Upstream, err)
	}
	defer up.Close()

	clientOpts := []connection.Option{
		connection.WithPrivateKey(crypto.StaticKey{Key: s.clientKey}),
		connection.WithPersonalities(s.personalities),
		connection.WithCompression(s.cfg.Compression),
	}
	if s.captures != nil {
		sink, openErr := s.captures(ctx, info, s.variant)
		if openErr != nil {
			return fmt.Errorf("opening capture: %w", openErr)
		}
		defer func() {
			if cerr := sink.Close(); cerr != nil {
				err = errors.Join(err, fmt.Errorf("closing capture: %w", cerr))
			}
		}()
		// кадры, записанные клиенту, идут в сторону клиента
		clientOpts = append(clientOpts, connection.WithCapture(sink, capture.ToClient))
	}

	client, err := connection.New(conn, s.variant, clientOpts...)
	if err != nil {
		return err
	}
	upstream, err := connection.New(up, s.variant,
		connection.WithPublicKey(crypto.StaticPublicKey{Key: s.upstreamKey}),
		connection.WithPersonalities(s.personalities),
		connection.WithCompression(s.cfg.Compression),
	)
	if err != nil {
		client.Close()
		return err
	}
	return s.relay(ctx, client, upstream)
}

// halves of the two connections as seen by one forwarding loop
type packetReader interface {
	ReadPacketContext(ctx context.Context) (protocol.Packet, error)
}

type packetWriter interface {
	WritePacketContext(ctx context.Context, p protocol.Packet) error
}

func (s *Server) relay(ctx context.Context, client, upstream *connection.Conn) error {
	clientR, clientW := client.Split()
	upstreamR, upstreamW := upstream.Split()

	g, ctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(ctx, func() {
		client.Close()
		upstream.Close()
	})
	defer stop()
	defer client.Close()
	defer upstream.Close()

	g.Go(func() error {
		return forward(ctx, clientR, upstreamW, nil)
	})
	g.Go(func() error {
		return forward(ctx, upstreamR, clientW, s.rewrite)
	})

	err := g.Wait()
	if isSessionEnd(err) {
		return nil
	}
	return err
}

func forward(ctx context.Context, from packetReader, to packetWriter, rewrite func(protocol.Packet)) error {
	for {
		p, err := from.ReadPacketContext(ctx)
		if err != nil {
			return fmt.Errorf("reading packet: %w", err)
		}
		if rewrite != nil {
			rewrite(p)
		}
		if err := to.WritePacketContext(ctx, p); err != nil {
			return fmt.Errorf("writing %s: %w", protocol.Name(p), err)
		}
	}
}

// rewrite points ship addresses at the proxy.
func (s *Server) rewrite(p protocol.Packet) {
	if !s.shipAddr.IsValid() {
		return
	}
	list, ok := p.(*protocol.ShipList)
	if !ok {
		return
	}
	for i := range list.Ships {
		list.Ships[i].IP = s.shipAddr
	}
	slog.Debug("ship list rewritten", "ships", len(list.Ships), "address", s.shipAddr)
}

func isSessionEnd(err error) bool {
	return err == nil ||
		errors.Is(err, connection.ErrDisconnected) ||
		errors.Is(err, context.Canceled)
}
