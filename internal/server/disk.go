package server

import (
	"bufio"
	"errors"
	"io"

	"github.com/Alexander-D-Karpov/blockfs/internal/disk"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
	"github.com/Alexander-D-Karpov/blockfs/internal/protocol"
)

// DiskServer exposes a Device over the block device protocol. Every
// connection gets its own goroutine; the device serializes their requests.
type DiskServer struct {
	listener
	dev *disk.Device
}

func NewDiskServer(dev *disk.Device) *DiskServer {
	return &DiskServer{
		listener: newListener("Disk"),
		dev:      dev,
	}
}

func (s *DiskServer) Start(addr string) error {
	if err := s.listen(addr); err != nil {
		return err
	}
	logger.Info("Serving %s", s.dev.Geometry())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *DiskServer) Stop() {
	s.stop()
	st := s.dev.Stats()
	logger.Info("Disk stats: reads=%d writes=%d rejected=%d tracks=%d head=%d",
		st.Reads, st.Writes, st.Rejected, st.Tracks, st.Head)
}

func (s *DiskServer) acceptLoop() {
	defer s.wg.Done()

	for {
		id, conn, ok := s.accept()
		if !ok {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.release(id, conn)
			s.serve(id, conn)
		}()
	}
}

func (s *DiskServer) serve(id uint64, rw io.ReadWriter) {
	r := protocol.NewReader(rw)
	w := bufio.NewWriter(rw)

	for {
		line, err := r.ReadLine()
		switch {
		case errors.Is(err, protocol.ErrLineTooLong):
			logger.Debug("Client %d line too long", id)
			w.WriteString(protocol.DiskInvalid)
		case errors.Is(err, io.EOF):
			return
		case err != nil:
			logger.Debug("Client %d read error: %v", id, err)
			return
		default:
			if err := s.handle(id, line, r, w); err != nil {
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
func (s *DiskServer) handle(id uint64, line string, r *protocol.Reader, w *bufio.Writer) error {
	req, err := protocol.ParseDiskRequest(line)
	if err != nil {
		logger.Debug("Client %d bad request %q: %v", id, line, err)
		w.WriteString(protocol.DiskInvalid)
		return nil
	}

	geo := s.dev.Geometry()
	switch req.Op {
	case protocol.DiskIdentify:
		logger.Debug("Client %d I", id)
		w.WriteString(protocol.FormatGeometry(geo.Cylinders, geo.Sectors))

	case protocol.DiskRead:
		logger.Debug("Client %d R %d %d", id, req.Cylinder, req.Sector)
		block, err := s.dev.ReadBlock(req.Cylinder, req.Sector)
		if err != nil {
			logger.Debug("Client %d R error: %v", id, err)
			w.WriteString(protocol.DiskInvalid)
			return nil
		}
		w.WriteByte(protocol.DiskTagValid)
		w.Write(block)

	case protocol.DiskWrite:
		logger.Debug("Client %d W %d %d %d", id, req.Cylinder, req.Sector, req.Length)
		if req.Length < 0 || req.Length > geo.BlockSize {
			w.WriteString(protocol.DiskInvalid)
			return nil
		}
		payload, err := r.ReadPayload(req.Length)
		if err != nil {
			return err
		}
		if err := s.dev.WriteBlock(req.Cylinder, req.Sector, payload); err != nil {
			logger.Debug("Client %d W error: %v", id, err)
			w.WriteString(protocol.DiskInvalid)
			return nil
		}
		w.WriteString(protocol.DiskOK)
	}
	return nil
}
