package server

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/blockfs/internal/disk"
	"github.com/Alexander-D-Karpov/blockfs/internal/fs"
)

// startFSServer runs the whole stack: a disk server, a filesystem talking to
// it over a disk client, and the filesystem server in front.
func startFSServer(t *testing.T, maxEntries int) (*FSServer, *fs.Filesystem) {
	t.Helper()
	diskSrv, _ := startDiskServer(t)

	cl, err := disk.Dial(diskSrv.Addr().String(), testGeometry.BlockSize, time.Second)
	require.NoError(t, err)

	filesystem := fs.New(cl, fs.Options{MaxEntries: maxEntries})
	srv := NewFSServer(filesystem)
	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		srv.Stop()
		cl.Close()
	})
	return srv, filesystem
}

func TestFSProtocolSession(t *testing.T) {
	srv, filesystem := startFSServer(t, 16)
	c := dialRaw(t, srv.Addr())

	type step struct {
		send string
		want []string
	}

	steps := []step{
		{"C a\n", []string{"0"}},
		{"C a\n", []string{"1"}},
		{"W a 5\nhello\n", []string{"0"}},
		{"R a\n", []string{"0 5", "hello"}},
		{"R missing\n", []string{"1 0"}},
		{"W missing 2\nhi\n", []string{"1"}},
		{"L 0\n", []string{"0 1", "a"}},
		{"mkdir d\n", []string{"0"}},
		{"mkdir d\n", []string{"1"}},
		{"mkdir a\n", []string{"1"}},
		{"mkdir .\n", []string{"2"}},
		{"mkdir ..\n", []string{"2"}},
		{"L 1\n", []string{"0 2", "F a 5", "D d 0"}},
		{"L 0\n", []string{"0 2", "a", "d/"}},
		{"cd d\n", []string{"0"}},
		{"pwd\n", []string{"0 /d"}},
		{"L 0\n", []string{"0 0"}},
		{"C inner\n", []string{"0"}},
		{"cd nope\n", []string{"1"}},
		{"cd ..\n", []string{"0"}},
		{"pwd\n", []string{"0 /"}},
		{"rmdir d\n", []string{"2"}},
		{"rmdir nope\n", []string{"1"}},
		{"cd d\n", []string{"0"}},
		{"D inner\n", []string{"0"}},
		{"cd /\n", []string{"0"}},
		{"rmdir d\n", []string{"0"}},
		{"D a\n", []string{"0"}},
		{"D a\n", []string{"1"}},
		{"bogus\n", []string{"2"}},
		{"W a -1\n", []string{"2"}},
		{"W a\n", []string{"2"}},
		{"L x\n", []string{"2"}},
		{"C\n", []string{"2"}},
		{"\n", nil},
		{"pwd\n", []string{"0 /"}},
		{"F\n", []string{"0"}},
		{"L 0\n", []string{"0 0"}},
	}

	for i, st := range steps {
		c.send(st.send)
		for _, want := range st.want {
			require.Equal(t, want, c.line(), "step %d %q", i, st.send)
		}
	}
	require.Empty(t, filesystem.Check(true))
}

func TestFSProtocolBinaryPayloads(t *testing.T) {
	bs := testGeometry.BlockSize
	for _, n := range []int{0, 1, bs - 1, bs, bs + 1, 10 * bs} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			r := require.New(t)
			srv, _ := startFSServer(t, 16)
			c := dialRaw(t, srv.Addr())

			data := make([]byte, n)
			for i := range data {
				data[i] = byte(i)
			}

			c.send("C f\n")
			r.Equal("0", c.line())
			c.send(fmt.Sprintf("W f %d\n", n))
			c.send(string(data) + "\n")
			r.Equal("0", c.line())

			c.send("R f\n")
			r.Equal(fmt.Sprintf("0 %d", n), c.line())
			r.Equal(append(data, '\n'), c.bytes(n+1))

			c.send("L 1\n")
			r.Equal("0 1", c.line())
			r.Equal(fmt.Sprintf("F f %d", n), c.line())
		})
	}
}

func TestFSProtocolExhaustion(t *testing.T) {
	r := require.New(t)
	srv, filesystem := startFSServer(t, 4)
	c := dialRaw(t, srv.Addr())

	capacity := int(testGeometry.Capacity())
	full := bytes.Repeat([]byte{'x'}, capacity)

	c.send("C big\n")
	r.Equal("0", c.line())
	c.send(fmt.Sprintf("W big %d\n%s\n", capacity, full))
	r.Equal("0", c.line())

	c.send("C small\n")
	r.Equal("0", c.line())
	c.send("W small 1\ny\n")
	r.Equal("2", c.line())

	// More than the disk holds: drained and refused, connection usable.
	c.send(fmt.Sprintf("W small %d\n%s\n", capacity+1, append(full, 'z')))
	r.Equal("2", c.line())

	c.send("C third\n")
	r.Equal("0", c.line())
	c.send("C fourth\n")
	r.Equal("2", c.line())

	c.send("R big\n")
	r.Equal(fmt.Sprintf("0 %d", capacity), c.line())
	r.Equal(append(full, '\n'), c.bytes(capacity+1))

	r.Empty(filesystem.Check(true))
}

func TestFSProtocolSessionPerConnection(t *testing.T) {
	r := require.New(t)
	srv, _ := startFSServer(t, 16)

	c1 := dialRaw(t, srv.Addr())
	c1.send("mkdir d\n")
	r.Equal("0", c1.line())
	c1.send("cd d\n")
	r.Equal("0", c1.line())
	c1.send("pwd\n")
	r.Equal("0 /d", c1.line())
	c1.conn.Close()

	c2 := dialRaw(t, srv.Addr())
	c2.send("pwd\n")
	r.Equal("0 /", c2.line())
	c2.send("L 0\n")
	r.Equal("0 1", c2.line())
	r.Equal("d/", c2.line())
}

func TestFSProtocolBadTerminatorCloses(t *testing.T) {
	srv, _ := startFSServer(t, 16)
	c := dialRaw(t, srv.Addr())

	c.send("C f\n")
	require.Equal(t, "0", c.line())
	c.send("W f 2\nabX")
	require.True(t, c.closed())
}
