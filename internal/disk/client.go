package disk

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/protocol"
)

// Client speaks the block device protocol over one long-lived connection.
// Calls are serialized; a transport error leaves the client unusable.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	r    *protocol.Reader
	w    *bufio.Writer
	geo  domain.Geometry
}

// Dial connects to a block device server and asks it for its geometry. The
// block size is not carried by the protocol, so the caller supplies it.
func Dial(addr string, blockSize int, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect disk server: %w", err)
	}

	c := NewClient(conn, blockSize)
	cylinders, sectors, err := c.Identify()
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.geo.Cylinders = cylinders
	c.geo.Sectors = sectors
	return c, nil
}

// NewClient wraps an established connection without identifying the device.
func NewClient(conn net.Conn, blockSize int) *Client {
	return &Client{
		conn: conn,
		r:    protocol.NewReader(conn),
		w:    bufio.NewWriter(conn),
		geo:  domain.Geometry{BlockSize: blockSize},
	}
}

func (c *Client) Geometry() domain.Geometry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.geo
}

func (c *Client) Identify() (cylinders, sectors int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(protocol.DiskRequest{Op: protocol.DiskIdentify}, nil); err != nil {
		return 0, 0, err
	}
	line, err := c.r.ReadLine()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: identify: %v", domain.ErrDevice, err)
	}
	return protocol.ParseGeometry(line)
}

func (c *Client) ReadBlock(cylinder, sector int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := protocol.DiskRequest{Op: protocol.DiskRead, Cylinder: cylinder, Sector: sector}
	if err := c.send(req, nil); err != nil {
		return nil, err
	}

	tag, err := c.r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: read reply: %v", domain.ErrDevice, err)
	}
	if tag != protocol.DiskTagValid {
		if _, err := c.r.ReadLine(); err != nil {
			return nil, fmt.Errorf("%w: read reply: %v", domain.ErrDevice, err)
		}
		return nil, fmt.Errorf("%w: read %d/%d", domain.ErrInvalidAddress, cylinder, sector)
	}

	block := make([]byte, c.geo.BlockSize)
	if err := c.r.ReadFull(block); err != nil {
		return nil, fmt.Errorf("%w: read block data: %v", domain.ErrDevice, err)
	}
	return block, nil
}

func (c *Client) WriteBlock(cylinder, sector int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(data) > c.geo.BlockSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(data), c.geo.BlockSize)
	}

	req := protocol.DiskRequest{Op: protocol.DiskWrite, Cylinder: cylinder, Sector: sector, Length: len(data)}
	if err := c.send(req, data); err != nil {
		return err
	}

	line, err := c.r.ReadLine()
	if err != nil {
		return fmt.Errorf("%w: write reply: %v", domain.ErrDevice, err)
	}
	if line != "1" {
		return fmt.Errorf("%w: write %d/%d rejected", domain.ErrInvalidAddress, cylinder, sector)
	}
	return nil
}

func (c *Client) send(req protocol.DiskRequest, payload []byte) error {
	c.w.WriteString(req.Encode())
	if req.Op == protocol.DiskWrite {
		c.w.Write(payload)
		c.w.WriteByte('\n')
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("%w: send: %v", domain.ErrDevice, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
