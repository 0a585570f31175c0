package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/exp/mmap"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
)

var ErrPayloadTooLarge = errors.New("payload larger than block")

type DeviceConfig struct {
	Path       string
	Geometry   domain.Geometry
	TrackDelay time.Duration
	MmapReads  bool
}

// Stats counts the work a device has done since it was opened.
type Stats struct {
	Reads     uint64        `json:"reads"`
	Writes    uint64        `json:"writes"`
	Rejected  uint64        `json:"rejected"`
	Tracks    uint64        `json:"tracks"`
	Head      int           `json:"head"`
	SeekSleep time.Duration `json:"seek_sleep"`
}

// Device is a file-backed disk with simulated seek latency. One mutex
// serializes every request so the head position stays meaningful when
// several connections share the device.
type Device struct {
	mu         sync.Mutex
	file       *os.File
	mm         *mmap.ReaderAt
	reader     io.ReaderAt
	path       string
	geo        domain.Geometry
	trackDelay time.Duration
	sleep      func(time.Duration)
	head       int
	stats      Stats
}

func NewDevice(cfg DeviceConfig) (*Device, error) {
	geo := cfg.Geometry
	if geo.Cylinders <= 0 || geo.Sectors <= 0 || geo.BlockSize <= 0 {
		return nil, fmt.Errorf("bad geometry %s", geo)
	}

	d := &Device{
		path:       cfg.Path,
		geo:        geo,
		trackDelay: cfg.TrackDelay,
		sleep:      time.Sleep,
	}

	if err := d.open(cfg.MmapReads); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) open(useMmap bool) error {
	f, err := os.OpenFile(d.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("open backing file: %w", err)
	}

	if err := f.Truncate(d.geo.Capacity()); err != nil {
		f.Close()
		return fmt.Errorf("size backing file: %w", err)
	}
	d.file = f
	d.reader = f

	if useMmap {
		mm, err := mmap.Open(d.path)
		if err != nil {
			f.Close()
			return fmt.Errorf("map backing file: %w", err)
		}
		d.mm = mm
		d.reader = mm
	}

	logger.Debug("Device opened: %s %s mmap=%v", d.path, d.geo, useMmap)
	return nil
}

func (d *Device) Geometry() domain.Geometry {
	return d.geo
}

// Head returns the cylinder the simulated head rests on.
func (d *Device) Head() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.head
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.stats
	st.Head = d.head
	return st
}

// ReadBlock returns the BlockSize bytes stored at (cylinder, sector). Bytes
// past the end of the backing file read as zeros.
func (d *Device) ReadBlock(cylinder, sector int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil, os.ErrClosed
	}
	if !d.geo.Valid(cylinder, sector) {
		d.stats.Rejected++
		return nil, fmt.Errorf("%w: read %d/%d", domain.ErrInvalidAddress, cylinder, sector)
	}

	d.seek(cylinder)

	block := make([]byte, d.geo.BlockSize)
	n, err := d.reader.ReadAt(block, d.geo.Offset(cylinder, sector))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read block %d/%d: %w", cylinder, sector, err)
	}
	clear(block[n:])

	d.head = cylinder
	d.stats.Reads++
	return block, nil
}

// WriteBlock stores data at (cylinder, sector), zero-padded to a full block,
// and syncs the backing file before returning. On any failure the head and
// the stored content are left as they were.
func (d *Device) WriteBlock(cylinder, sector int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return os.ErrClosed
	}
	if !d.geo.Valid(cylinder, sector) {
		d.stats.Rejected++
		return fmt.Errorf("%w: write %d/%d", domain.ErrInvalidAddress, cylinder, sector)
	}
	if len(data) > d.geo.BlockSize {
		d.stats.Rejected++
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(data), d.geo.BlockSize)
	}

	block := make([]byte, d.geo.BlockSize)
	copy(block, data)

	d.seek(cylinder)

	if _, err := d.file.WriteAt(block, d.geo.Offset(cylinder, sector)); err != nil {
		return fmt.Errorf("write block %d/%d: %w", cylinder, sector, err)
	}
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("sync backing file: %w", err)
	}

	d.head = cylinder
	d.stats.Writes++
	return nil
}

// seek sleeps for the head travel to cylinder. Caller holds d.mu.
func (d *Device) seek(cylinder int) {
	tracks := d.head - cylinder
	if tracks < 0 {
		tracks = -tracks
	}
	d.stats.Tracks += uint64(tracks)

	if tracks == 0 || d.trackDelay <= 0 {
		return
	}
	delay := time.Duration(tracks) * d.trackDelay
	d.stats.SeekSleep += delay
	d.sleep(delay)
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.mm != nil {
		errs = append(errs, d.mm.Close())
		d.mm = nil
	}
	if d.file != nil {
		errs = append(errs, d.file.Close())
		d.file = nil
	}
	return errors.Join(errs...)
}
