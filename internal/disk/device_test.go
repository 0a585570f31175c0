package disk

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
)

var testGeometry = domain.Geometry{Cylinders: 8, Sectors: 4, BlockSize: 128}

func newTestDevice(t *testing.T, mmapReads bool) *Device {
	t.Helper()
	dev, err := NewDevice(DeviceConfig{
		Path:      filepath.Join(t.TempDir(), "disk.img"),
		Geometry:  testGeometry,
		MmapReads: mmapReads,
	})
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestNewDeviceSizesBackingFile(t *testing.T) {
	r := require.New(t)
	path := filepath.Join(t.TempDir(), "disk.img")
	r.NoError(os.WriteFile(path, bytes.Repeat([]byte{0xff}, 10*1024*1024), 0644))

	dev, err := NewDevice(DeviceConfig{Path: path, Geometry: testGeometry})
	r.NoError(err)
	defer dev.Close()

	fi, err := os.Stat(path)
	r.NoError(err)
	r.Equal(testGeometry.Capacity(), fi.Size())
}

func TestNewDeviceRejectsBadGeometry(t *testing.T) {
	_, err := NewDevice(DeviceConfig{
		Path:     filepath.Join(t.TempDir(), "disk.img"),
		Geometry: domain.Geometry{Cylinders: 0, Sectors: 4, BlockSize: 128},
	})
	require.Error(t, err)
}

func TestDeviceRoundTrip(t *testing.T) {
	for _, useMmap := range []bool{false, true} {
		name := "file"
		if useMmap {
			name = "mmap"
		}
		t.Run(name, func(t *testing.T) {
			type testcase struct {
				name string
				c, s int
				data []byte
			}

			tcs := []testcase{
				{name: "empty", c: 0, s: 0, data: []byte{}},
				{name: "short", c: 1, s: 2, data: []byte("hello")},
				{name: "full", c: 7, s: 3, data: bytes.Repeat([]byte{0xab}, 128)},
				{name: "one less", c: 4, s: 1, data: bytes.Repeat([]byte{'x'}, 127)},
			}

			dev := newTestDevice(t, useMmap)
			for _, tc := range tcs {
				t.Run(tc.name, func(t *testing.T) {
					r := require.New(t)
					r.NoError(dev.WriteBlock(tc.c, tc.s, tc.data))

					got, err := dev.ReadBlock(tc.c, tc.s)
					r.NoError(err)
					r.Len(got, testGeometry.BlockSize)

					want := make([]byte, testGeometry.BlockSize)
					copy(want, tc.data)
					r.Equal(want, got)
				})
			}
		})
	}
}

func TestDeviceShortWriteClearsTail(t *testing.T) {
	r := require.New(t)
	dev := newTestDevice(t, false)

	r.NoError(dev.WriteBlock(2, 2, bytes.Repeat([]byte{'z'}, 128)))
	r.NoError(dev.WriteBlock(2, 2, []byte("ab")))

	got, err := dev.ReadBlock(2, 2)
	r.NoError(err)
	r.Equal([]byte("ab"), got[:2])
	r.Equal(make([]byte, 126), got[2:])
}

func TestDeviceBlocksDoNotOverlap(t *testing.T) {
	r := require.New(t)
	dev := newTestDevice(t, false)

	for b := 0; b < testGeometry.Blocks(); b++ {
		c, s := testGeometry.Locate(b)
		r.NoError(dev.WriteBlock(c, s, bytes.Repeat([]byte{byte(b)}, 128)))
	}
	for b := 0; b < testGeometry.Blocks(); b++ {
		c, s := testGeometry.Locate(b)
		got, err := dev.ReadBlock(c, s)
		r.NoError(err)
		r.Equal(bytes.Repeat([]byte{byte(b)}, 128), got)
	}
}

func TestDeviceOutOfRange(t *testing.T) {
	r := require.New(t)
	dev := newTestDevice(t, false)

	r.NoError(dev.WriteBlock(3, 1, []byte("keep")))
	r.Equal(3, dev.Head())

	for _, addr := range [][2]int{{-1, 0}, {0, -1}, {8, 0}, {0, 4}, {100, 100}} {
		_, err := dev.ReadBlock(addr[0], addr[1])
		r.ErrorIs(err, domain.ErrInvalidAddress)

		err = dev.WriteBlock(addr[0], addr[1], []byte("nope"))
		r.ErrorIs(err, domain.ErrInvalidAddress)

		r.Equal(3, dev.Head())
	}

	err := dev.WriteBlock(3, 1, bytes.Repeat([]byte{1}, 129))
	r.ErrorIs(err, ErrPayloadTooLarge)

	got, err := dev.ReadBlock(3, 1)
	r.NoError(err)
	r.Equal([]byte("keep"), got[:4])

	st := dev.Stats()
	r.Equal(uint64(11), st.Rejected)
	r.Equal(uint64(1), st.Writes)
	r.Equal(uint64(1), st.Reads)
}

func TestDeviceSeekSimulation(t *testing.T) {
	r := require.New(t)
	dev, err := NewDevice(DeviceConfig{
		Path:       filepath.Join(t.TempDir(), "disk.img"),
		Geometry:   testGeometry,
		TrackDelay: time.Millisecond,
	})
	r.NoError(err)
	defer dev.Close()

	var slept []time.Duration
	dev.sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err = dev.ReadBlock(5, 0)
	r.NoError(err)
	r.NoError(dev.WriteBlock(2, 0, nil))
	_, err = dev.ReadBlock(2, 3)
	r.NoError(err)
	_, err = dev.ReadBlock(7, 0)
	r.NoError(err)

	r.Equal([]time.Duration{5 * time.Millisecond, 3 * time.Millisecond, 5 * time.Millisecond}, slept)

	st := dev.Stats()
	r.Equal(uint64(13), st.Tracks)
	r.Equal(7, st.Head)
	r.Equal(13*time.Millisecond, st.SeekSleep)
}

func TestDeviceClosed(t *testing.T) {
	r := require.New(t)
	dev := newTestDevice(t, true)
	r.NoError(dev.Close())

	_, err := dev.ReadBlock(0, 0)
	r.ErrorIs(err, os.ErrClosed)
	r.ErrorIs(dev.WriteBlock(0, 0, nil), os.ErrClosed)
}
