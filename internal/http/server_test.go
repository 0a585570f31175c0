package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Alexander-D-Karpov/blockfs/internal/disk"
	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/fs"
)

func newTestInspector(t *testing.T) (*httptest.Server, *fs.Filesystem, *disk.Device) {
	t.Helper()
	dev, err := disk.NewDevice(disk.DeviceConfig{
		Path:     filepath.Join(t.TempDir(), "disk.img"),
		Geometry: domain.Geometry{Cylinders: 8, Sectors: 4, BlockSize: 128},
	})
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })

	filesystem := fs.New(dev, fs.Options{MaxEntries: 16})
	s := filesystem.NewSession()
	require.NoError(t, s.CreateFile("readme.txt"))
	require.NoError(t, s.WriteFile("readme.txt", []byte("hello from the block device\n")))
	require.NoError(t, s.MakeDir("docs"))
	require.NoError(t, s.ChangeDir("docs"))
	require.NoError(t, s.CreateFile("notes"))
	require.NoError(t, s.WriteFile("notes", []byte("<b>not html</b>")))

	srv := httptest.NewServer(SetupRouter(NewInspector(filesystem)))
	t.Cleanup(srv.Close)
	return srv, filesystem, dev
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestInspector(t)
	resp, body := get(t, srv.URL+"/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body)
}

func TestStats(t *testing.T) {
	r := require.New(t)
	srv, _, _ := newTestInspector(t)

	resp, body := get(t, srv.URL+"/api/v1/stats")
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("application/json", resp.Header.Get("Content-Type"))

	var st fs.Stats
	r.NoError(json.Unmarshal([]byte(body), &st))
	r.Equal(8, st.Geometry.Cylinders)
	r.Equal(32, st.TotalBlocks)
	r.Equal(2, st.UsedBlocks)
	r.Equal(2, st.Files)
	r.Equal(2, st.Dirs)
	r.Equal(4, st.Entries)
	r.Equal(16, st.MaxEntries)
}

func TestCheck(t *testing.T) {
	r := require.New(t)
	srv, filesystem, dev := newTestInspector(t)

	var res CheckResponse
	resp, body := get(t, srv.URL+"/api/v1/check?deep=1")
	r.Equal(http.StatusOK, resp.StatusCode)
	r.NoError(json.Unmarshal([]byte(body), &res))
	r.True(res.Clean)
	r.True(res.Deep)
	r.Empty(res.Problems)

	id, e, err := filesystem.Resolve("/readme.txt")
	r.NoError(err)
	c, s := dev.Geometry().Locate(e.FirstBlock)
	r.NoError(dev.WriteBlock(c, s, []byte("tampered")))

	res = CheckResponse{}
	_, body = get(t, srv.URL+"/api/v1/check")
	r.NoError(json.Unmarshal([]byte(body), &res))
	r.True(res.Clean)

	res = CheckResponse{}
	_, body = get(t, srv.URL+"/api/v1/check?deep=true")
	r.NoError(json.Unmarshal([]byte(body), &res))
	r.False(res.Clean)
	r.Len(res.Problems, 1)
	r.Equal(id, res.Problems[0].Entry)

	resp, _ = get(t, srv.URL+"/api/v1/check?deep=maybe")
	r.Equal(http.StatusBadRequest, resp.StatusCode)
}

func TestBrowse(t *testing.T) {
	r := require.New(t)
	srv, _, _ := newTestInspector(t)

	resp, body := get(t, srv.URL+"/")
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Contains(resp.Header.Get("Content-Type"), "text/html")
	r.Contains(body, "Index of /")
	r.Contains(body, `href="/docs/"`)
	r.Contains(body, `href="/readme.txt"`)

	resp, body = get(t, srv.URL+"/readme.txt")
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("hello from the block device\n", body)
	r.Contains(resp.Header.Get("Content-Type"), "text/plain")

	resp, _ = get(t, srv.URL+"/docs")
	r.Equal(http.StatusMovedPermanently, resp.StatusCode)
	r.Equal("/docs/", resp.Header.Get("Location"))

	resp, body = get(t, srv.URL+"/docs/")
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Contains(body, `href="/docs/notes"`)
	r.Contains(body, `href="/"`)

	resp, body = get(t, srv.URL+"/docs/notes")
	r.Equal(http.StatusOK, resp.StatusCode)
	r.Equal("<b>not html</b>", body)

	resp, _ = get(t, srv.URL+"/missing")
	r.Equal(http.StatusNotFound, resp.StatusCode)
	resp, _ = get(t, srv.URL+"/readme.txt/")
	r.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestFormatSize(t *testing.T) {
	for size, want := range map[int64]string{
		0:           "0 B",
		1023:        "1023 B",
		1024:        "1.0 KB",
		1536:        "1.5 KB",
		1024 * 1024: "1.0 MB",
	} {
		require.Equal(t, want, formatSize(size))
	}
}
