package http

import (
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Alexander-D-Karpov/blockfs/internal/domain"
	"github.com/Alexander-D-Karpov/blockfs/internal/fs"
	"github.com/Alexander-D-Karpov/blockfs/internal/logger"
)

// Inspector is a read-only HTTP view of a Filesystem: a browsable tree plus
// JSON stats and consistency reports.
type Inspector struct {
	fs     *fs.Filesystem
	server *http.Server
}

type dirEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Index of {{.Path}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            margin: 0;
            padding: 20px;
            background: #f5f5f5;
        }
        .container {
            max-width: 900px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        h1 {
            margin: 0;
            padding: 20px;
            background: #2c3e50;
            color: white;
            font-size: 1.2em;
            font-weight: 500;
        }
        table {
            width: 100%;
            border-collapse: collapse;
        }
        th, td {
            padding: 12px 20px;
            text-align: left;
            border-bottom: 1px solid #eee;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #666;
            font-size: 0.85em;
            text-transform: uppercase;
        }
        a {
            color: #3498db;
            text-decoration: none;
        }
        .size, .footer {
            color: #999;
            font-size: 0.9em;
        }
        .footer {
            padding: 12px 20px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>Index of {{.Path}}</h1>
        <table>
            <thead>
                <tr>
                    <th>Name</th>
                    <th>Size</th>
                </tr>
            </thead>
            <tbody>
                {{if ne .Path "/"}}
                <tr>
                    <td><a href="{{.ParentPath}}">..</a></td>
                    <td class="size">-</td>
                </tr>
                {{end}}
                {{range .Entries}}
                <tr>
                    {{if .IsDir}}
                    <td><a href="{{$.Path}}{{.Name}}/">{{.Name}}/</a></td>
                    <td class="size">-</td>
                    {{else}}
                    <td><a href="{{$.Path}}{{.Name}}">{{.Name}}</a></td>
                    <td class="size">{{.Size | formatSize}}</td>
                    {{end}}
                </tr>
                {{end}}
            </tbody>
        </table>
        <div class="footer">{{.Stats.UsedBlocks}} of {{.Stats.TotalBlocks}} blocks used, {{.Stats.Entries}} of {{.Stats.MaxEntries}} entries</div>
    </div>
</body>
</html>`

var indexTmpl = template.Must(template.New("index").
	Funcs(template.FuncMap{"formatSize": formatSize}).
	Parse(indexTemplate))

func NewInspector(filesystem *fs.Filesystem) *Inspector {
	return &Inspector{fs: filesystem}
}

func (s *Inspector) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      SetupRouter(s),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	logger.Info("HTTP inspector listening on %s", ln.Addr())
	go func() {
		if err := s.server.Serve(ln); err != http.ErrServerClosed {
			logger.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

func (s *Inspector) Stop() {
	if s.server != nil {
		s.server.Close()
	}
}

// Browse serves a directory index or the raw content of a file.
func (s *Inspector) Browse(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if p == "" {
		p = "/"
	}

	id, entry, err := s.fs.Resolve(p)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if entry.IsDir() {
		s.serveDirectory(w, r, p, id)
	} else {
		s.serveFile(w, r, p, id)
	}
}

func (s *Inspector) serveDirectory(w http.ResponseWriter, r *http.Request, p string, id int) {
	if !strings.HasSuffix(p, "/") {
		http.Redirect(w, r, p+"/", http.StatusMovedPermanently)
		return
	}

	entries, err := s.fs.ListAt(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	dirEntries := make([]dirEntry, 0, len(entries))
	for _, e := range entries {
		dirEntries = append(dirEntries, dirEntry{
			Name:  e.Name,
			IsDir: e.Kind == domain.KindDir,
			Size:  int64(e.Size),
		})
	}

	sort.Slice(dirEntries, func(i, j int) bool {
		if dirEntries[i].IsDir != dirEntries[j].IsDir {
			return dirEntries[i].IsDir
		}
		return dirEntries[i].Name < dirEntries[j].Name
	})

	parentPath := path.Dir(strings.TrimSuffix(p, "/"))
	if !strings.HasSuffix(parentPath, "/") {
		parentPath += "/"
	}

	data := struct {
		Path       string
		ParentPath string
		Entries    []dirEntry
		Stats      fs.Stats
	}{
		Path:       p,
		ParentPath: parentPath,
		Entries:    dirEntries,
		Stats:      s.fs.Stats(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		logger.Warn("Render index of %s: %v", p, err)
	}
}

func (s *Inspector) serveFile(w http.ResponseWriter, r *http.Request, p string, id int) {
	data, err := s.fs.ReadAt(id)
	if err != nil {
		logger.Error("Read %s: %v", p, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))

	if r.Method == http.MethodHead {
		return
	}
	w.Write(data)
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
