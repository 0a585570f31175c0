package server

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
	"github.com/Alexander-D-Karpov/blockfs/internal/protocol"
)

// listener is the accept side shared by both servers: it owns the listening
// socket, tracks live connections so Stop can close them, and waits for
// handlers to return.
type listener struct {
	name         string
	ln           net.Listener
	clients      map[uint64]net.Conn
	clientsMu    sync.Mutex
	nextClientID uint64
	quit         chan struct{}
	wg           sync.WaitGroup
}

func newListener(name string) listener {
	return listener{
		name:    name,
		clients: make(map[uint64]net.Conn),
		quit:    make(chan struct{}),
	}
}

func (l *listener) listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	l.ln = ln
	logger.Info("%s server listening on %s", l.name, ln.Addr())
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (l *listener) Addr() net.Addr {
	return l.ln.Addr()
}

// accept waits for the next connection. It returns false once Stop was called.
func (l *listener) accept() (uint64, net.Conn, bool) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.quit:
				return 0, nil, false
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return 0, nil, false
			}
			logger.Warn("Accept error: %v", err)
			continue
		}

		id := atomic.AddUint64(&l.nextClientID, 1)
		logger.Info("Client %d connected from %s", id, conn.RemoteAddr())

		l.clientsMu.Lock()
		select {
		case <-l.quit:
			l.clientsMu.Unlock()
			conn.Close()
			return 0, nil, false
		default:
		}
		l.clients[id] = conn
		l.clientsMu.Unlock()
		return id, conn, true
	}
}

func (l *listener) release(id uint64, conn net.Conn) {
	l.clientsMu.Lock()
	delete(l.clients, id)
	l.clientsMu.Unlock()
	conn.Close()
	logger.Info("Client %d disconnected", id)
}

func (l *listener) stop() {
	select {
	case <-l.quit:
		return
	default:
	}
	close(l.quit)
	if l.ln != nil {
		l.ln.Close()
	}

	l.clientsMu.Lock()
	for _, conn := range l.clients {
		conn.Close()
	}
	l.clientsMu.Unlock()

	l.wg.Wait()
	logger.Info("%s server stopped", l.name)
}

// errToCode maps filesystem errors onto wire result codes.
func errToCode(err error) int {
	switch {
	case err == nil:
		return protocol.RCOK
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrExists):
		return protocol.RCFail
	default:
		return protocol.RCError
	}
}
