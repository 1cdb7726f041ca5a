// Package server implements the DriftKV network server: a single-threaded,
// edge-triggered epoll reactor that owns every connection and the database.
//
// One goroutine calls Serve and does all the work. The listening socket, the
// per-connection buffers, and the store are touched by that goroutine only,
// so the data path needs no locks. Readiness is edge-triggered, which means
// every event handler must drain its fd until EAGAIN before returning to the
// wait loop; missing that would stall the connection forever.
//
// Interest in writability follows one rule: a connection is registered for
// EPOLLOUT exactly when its write buffer holds unsent bytes. Responses are
// flushed opportunistically right after they are produced, and EPOLLOUT only
// carries the remainder when the socket pushes back.
package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/driftkv/driftkv/internal/db"
	"github.com/driftkv/driftkv/pkg/config"
	"github.com/driftkv/driftkv/pkg/protocol"
)

const (
	maxEpollEvents = 128
	listenBacklog  = 128
)

// Server is a DriftKV server instance. Create with New, bind with Listen,
// then run the event loop with Serve (or use Start for both). All methods
// except Stop must be called from the same goroutine.
type Server struct {
	cfg     *config.ServerConfig
	db      *db.DB
	logger  *slog.Logger
	limiter *rate.Limiter

	epfd   int
	lfd    int
	wakeFd int
	port   int
	conns  map[int]*conn
}

// New creates a Server from the given configuration. The configuration
// should have been validated already; nil logger falls back to slog.Default.
func New(cfg *config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.AcceptRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst)
	}
	return &Server{
		cfg:     cfg,
		db:      db.New(),
		logger:  logger,
		limiter: limiter,
		epfd:    -1,
		lfd:     -1,
		wakeFd:  -1,
		conns:   make(map[int]*conn),
	}
}

// Listen creates the non-blocking listening socket, binds it to the
// configured address, and sets up the epoll instance and the shutdown
// eventfd. With Port 0 the kernel picks a free port; Port reports the
// bound one.
func (s *Server) Listen() error {
	lfd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("socket: %w", err)
	}

	if err := unix.SetsockoptInt(lfd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(lfd)
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	sa := &unix.SockaddrInet4{Port: s.cfg.Port}
	if ip := net.ParseIP(s.cfg.Host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			copy(sa.Addr[:], v4)
		}
	}
	if err := unix.Bind(lfd, sa); err != nil {
		unix.Close(lfd)
		return fmt.Errorf("bind %s: %w", s.cfg.Address(), err)
	}
	if err := unix.Listen(lfd, listenBacklog); err != nil {
		unix.Close(lfd)
		return fmt.Errorf("listen: %w", err)
	}

	bound, err := unix.Getsockname(lfd)
	if err != nil {
		unix.Close(lfd)
		return fmt.Errorf("getsockname: %w", err)
	}
	s.port = bound.(*unix.SockaddrInet4).Port

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		unix.Close(lfd)
		return fmt.Errorf("epoll_create1: %w", err)
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		unix.Close(lfd)
		return fmt.Errorf("eventfd: %w", err)
	}

	// The listener and the wakeup fd stay level-triggered; only data
	// sockets use edge-triggered readiness.
	for _, fd := range []int{lfd, wakeFd} {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			unix.Close(wakeFd)
			unix.Close(epfd)
			unix.Close(lfd)
			return fmt.Errorf("epoll_ctl add: %w", err)
		}
	}

	s.lfd = lfd
	s.epfd = epfd
	s.wakeFd = wakeFd

	s.logger.Info("server listening",
		slog.String("addr", s.cfg.Host),
		slog.Int("port", s.port),
		slog.Int("max_conns", s.cfg.MaxConns),
		slog.Int("max_msg_size", s.cfg.MaxMsgSize))
	return nil
}

// Port returns the port the listening socket is bound to.
// Only meaningful after Listen.
func (s *Server) Port() int {
	return s.port
}

// Start binds the listening socket and runs the event loop until Stop is
// called. It is the one-call entry point used by cmd/server.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve runs the event loop until Stop is called from another goroutine.
// It must be called after Listen and owns every fd the server holds; when
// it returns, all connections and the listener are closed.
func (s *Server) Serve() error {
	defer s.cleanup()

	events := make([]unix.EpollEvent, maxEpollEvents)
	for {
		n, err := unix.EpollWait(s.epfd, events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			switch fd {
			case s.wakeFd:
				s.logger.Info("shutdown requested", slog.Int("open_conns", len(s.conns)))
				return nil
			case s.lfd:
				s.acceptAll()
			default:
				// The connection may have been closed while handling an
				// earlier event from this same batch.
				if c, ok := s.conns[fd]; ok {
					s.handleConn(c, events[i].Events)
				}
			}
		}
	}
}

// Stop wakes the event loop and makes Serve return. Safe to call from any
// goroutine, and the only Server method that is.
func (s *Server) Stop() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(s.wakeFd, buf[:]); err != nil {
		s.logger.Error("wakeup write failed", slog.String("error", err.Error()))
	}
}

// acceptAll drains the listening socket until EAGAIN.
func (s *Server) acceptAll() {
	for {
		nfd, _, err := unix.Accept4(s.lfd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			s.logger.Error("accept failed", slog.String("error", err.Error()))
			return
		}

		if s.limiter != nil && !s.limiter.Allow() {
			s.logger.Warn("connection rejected by accept limiter", slog.Int("fd", nfd))
			unix.Close(nfd)
			continue
		}
		if len(s.conns) >= s.cfg.MaxConns {
			s.logger.Warn("connection limit reached", slog.Int("max_conns", s.cfg.MaxConns))
			unix.Close(nfd)
			continue
		}

		ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(nfd)}
		if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, nfd, &ev); err != nil {
			s.logger.Error("epoll_ctl add failed", slog.Int("fd", nfd), slog.String("error", err.Error()))
			unix.Close(nfd)
			continue
		}

		s.conns[nfd] = newConn(nfd, s.cfg.MaxMsgSize)
		s.logger.Debug("connection accepted", slog.Int("fd", nfd), slog.Int("open_conns", len(s.conns)))
	}
}

// handleConn dispatches one epoll event for an established connection.
func (s *Server) handleConn(c *conn, events uint32) {
	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		s.closeConn(c, "socket error or hangup")
		return
	}
	if events&unix.EPOLLIN != 0 {
		if !s.readAll(c) {
			return
		}
	}
	if events&unix.EPOLLOUT != 0 {
		if !s.flush(c) {
			return
		}
	}
	s.updateWriteInterest(c)
}

// readAll drains the socket until EAGAIN, parsing and executing every
// complete request as it becomes available. Responses are flushed
// immediately; leftover bytes stay in the read buffer for the next event.
// Returns false if the connection was closed.
func (s *Server) readAll(c *conn) bool {
	for {
		n, err := unix.Read(c.fd, c.rbuf[c.rlen:])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				break
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			s.logger.Error("read failed", slog.Int("fd", c.fd), slog.String("error", err.Error()))
			s.closeConn(c, "read error")
			return false
		}
		if n == 0 {
			s.closeConn(c, "peer closed")
			return false
		}
		c.rlen += n

		if !s.parseBuffered(c) {
			return false
		}

		// The read buffer holds any request the size limit allows, so a
		// full buffer with no complete request can never become one.
		if c.rlen == len(c.rbuf) {
			c.enqueue("oversized request")
			s.flush(c)
			s.closeConn(c, "request exceeds buffer")
			return false
		}
	}
	return s.flush(c)
}

// parseBuffered consumes every complete request currently in the read
// buffer. A protocol violation gets one best-effort error response and then
// the connection is closed; nothing after the offending bytes is trusted.
// Returns false if the connection was closed.
func (s *Server) parseBuffered(c *conn) bool {
	for {
		tokens, n, err := protocol.TryParseRequest(c.rbuf[:c.rlen], s.cfg.MaxMsgSize)
		if errors.Is(err, protocol.ErrIncomplete) {
			return true
		}
		if err != nil {
			msg := "invalid command"
			if errors.Is(err, protocol.ErrOversized) {
				msg = "oversized request"
			}
			s.logger.Warn("protocol violation",
				slog.Int("fd", c.fd),
				slog.String("error", err.Error()))
			c.enqueue(msg)
			s.flush(c)
			s.closeConn(c, "protocol violation")
			return false
		}

		_, reply := s.db.Process(tokens)
		if !c.enqueue(reply) {
			s.logger.Warn("write buffer full, response dropped",
				slog.Int("fd", c.fd),
				slog.String("command", tokens[0]))
		}
		c.consume(n)
	}
}

// flush writes as much of the pending output as the socket accepts.
// Returns false if the connection was closed due to a write error.
func (s *Server) flush(c *conn) bool {
	for c.pending() {
		n, err := unix.Write(c.fd, c.wbuf[c.wsent:])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return true
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			s.logger.Error("write failed", slog.Int("fd", c.fd), slog.String("error", err.Error()))
			s.closeConn(c, "write error")
			return false
		}
		c.wsent += n
	}
	c.resetWrite()
	return true
}

// updateWriteInterest re-registers the fd when pending output appears or
// disappears. Read interest never changes.
func (s *Server) updateWriteInterest(c *conn) {
	want := c.pending()
	if want == c.wantWrite {
		return
	}

	events := uint32(unix.EPOLLIN | unix.EPOLLET)
	if want {
		events |= unix.EPOLLOUT
	}
	ev := unix.EpollEvent{Events: events, Fd: int32(c.fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, c.fd, &ev); err != nil {
		s.closeConn(c, "epoll_ctl mod failed: "+err.Error())
		return
	}
	c.wantWrite = want
}

func (s *Server) closeConn(c *conn, reason string) {
	unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, c.fd, nil)
	unix.Close(c.fd)
	delete(s.conns, c.fd)
	s.logger.Debug("connection closed",
		slog.Int("fd", c.fd),
		slog.String("reason", reason),
		slog.Int("open_conns", len(s.conns)))
}

func (s *Server) cleanup() {
	for _, c := range s.conns {
		unix.Close(c.fd)
	}
	s.conns = make(map[int]*conn)
	if s.lfd >= 0 {
		unix.Close(s.lfd)
		s.lfd = -1
	}
	if s.wakeFd >= 0 {
		unix.Close(s.wakeFd)
		s.wakeFd = -1
	}
	if s.epfd >= 0 {
		unix.Close(s.epfd)
		s.epfd = -1
	}
}
