package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/fs"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
	"github.com/Alexander-D-Karpov/blockfs/internal/protocol"
)

// FSServer exposes a Filesystem over the filesystem protocol. Clients are
// served one at a time: the next connection is accepted only after the
// current one has gone away.
type FSServer struct {
	listener
	fs *fs.Filesystem
}

func NewFSServer(filesystem *fs.Filesystem) *FSServer {
	return &FSServer{
		listener: newListener("Filesystem"),
		fs:       filesystem,
	}
}

func (s *FSServer) Start(addr string) error {
	if err := s.listen(addr); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *FSServer) Stop() {
	s.stop()
}

func (s *FSServer) acceptLoop() {
	defer s.wg.Done()

	for {
		id, conn, ok := s.accept()
		if !ok {
			return
		}
		s.serve(id, conn)
		s.release(id, conn)
	}
}

func (s *FSServer) serve(id uint64, rw io.ReadWriter) {
	sess := s.fs.NewSession()
	r := protocol.NewReader(rw)
	w := bufio.NewWriter(rw)

	for {
		line, err := r.ReadLine()
		switch {
		case errors.Is(err, protocol.ErrLineTooLong):
			logger.Debug("Client %d line too long", id)
			writeCode(w, protocol.RCError)
		case errors.Is(err, io.EOF):
			return
		case err != nil:
			logger.Debug("Client %d read error: %v", id, err)
			return
		case strings.TrimSpace(line) == "":
			continue
		default:
			if err := s.handle(id, sess, line, r, w); err != nil {
				logger.Warn("Client %d dropped: %v", id, err)
				return
			}
		}

		if err := w.Flush(); err != nil {
			logger.Debug("Client %d write error: %v", id, err)
			return
		}
	}
}

// handle answers one request. A returned error means framing is lost and
// the connection must be closed.
func (s *FSServer) handle(id uint64, sess *fs.Session, line string, r *protocol.Reader, w *bufio.Writer) error {
	req, err := protocol.ParseFSRequest(line)
	if err != nil {
		logger.Debug("Client %d bad request %q: %v", id, line, err)
		writeCode(w, protocol.RCError)
		return nil
	}

	switch req.Op {
	case protocol.OpFormat:
		logger.Debug("Client %d F", id)
		sess.Format()
		writeCode(w, protocol.RCOK)

	case protocol.OpCreate:
		s.reply(id, w, req, sess.CreateFile(req.Name))
	case protocol.OpDelete:
		s.reply(id, w, req, sess.DeleteFile(req.Name))
	case protocol.OpMkdir:
		s.reply(id, w, req, sess.MakeDir(req.Name))
	case protocol.OpRmdir:
		s.reply(id, w, req, sess.RemoveDir(req.Name))
	case protocol.OpCd:
		s.reply(id, w, req, sess.ChangeDir(req.Name))

	case protocol.OpPwd:
		logger.Debug("Client %d pwd", id)
		fmt.Fprintf(w, "%d %s\n", protocol.RCOK, sess.WorkingDir())

	case protocol.OpRead:
		data, err := sess.ReadFile(req.Name)
		if err != nil {
			logger.Debug("Client %d R %s: %v", id, req.Name, err)
			fmt.Fprintf(w, "%d 0\n", errToCode(err))
			return nil
		}
		logger.Debug("Client %d R %s: %d bytes", id, req.Name, len(data))
		fmt.Fprintf(w, "%d %d\n", protocol.RCOK, len(data))
		w.Write(data)
		w.WriteByte('\n')

	case protocol.OpWrite:
		if capacity := s.fs.Geometry().Capacity(); int64(req.Length) > capacity {
			logger.Debug("Client %d W %s: %d bytes exceeds capacity %d", id, req.Name, req.Length, capacity)
			if err := r.DiscardPayload(int64(req.Length)); err != nil {
				return err
			}
			writeCode(w, protocol.RCError)
			return nil
		}
		payload, err := r.ReadPayload(req.Length)
		if err != nil {
			return err
		}
		s.reply(id, w, req, sess.WriteFile(req.Name, payload))

	case protocol.OpList:
		list := sess.List()
		logger.Debug("Client %d L: %d entries", id, len(list))
		fmt.Fprintf(w, "%d %d\n", protocol.RCOK, len(list))
		for _, e := range list {
			w.WriteString(protocol.ListLine(e.Name, e.Kind == domain.KindDir, e.Size, req.Verbose))
			w.WriteByte('\n')
		}
	}
	return nil
}

func (s *FSServer) reply(id uint64, w *bufio.Writer, req protocol.FSRequest, err error) {
	if err != nil {
		logger.Debug("Client %d %s %s: %v", id, req.Op, req.Name, err)
	} else {
		logger.Debug("Client %d %s %s", id, req.Op, req.Name)
	}
	writeCode(w, errToCode(err))
}

func writeCode(w *bufio.Writer, code int) {
	w.WriteString(strconv.Itoa(code))
	w.WriteByte('\n')
}
