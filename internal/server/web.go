package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
)

//go:embed web/index.html web/static
var webFS embed.FS

const staticPrefix = "/static/"

var indexTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

type indexData struct {
	Version      string
	Engine       string
	StaticPrefix string
}

// indexHandler renders the upload page. Unknown paths get 404.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, detailMethod)
		return
	}
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, indexData{
		Version:      s.cfg.Version,
		Engine:       s.cfg.EngineName,
		StaticPrefix: staticPrefix,
	})
	if err != nil {
		slog.Error("Failed to render index", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix(staticPrefix, http.FileServer(filesOnly{http.FS(sub)}))
}

// debugHandler serves files below root under prefix without directory
// listings.
func debugHandler(prefix, root string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(filesOnly{http.Dir(root)}))
}

// filesOnly hides directories from http.FileServer.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(path.Clean("/" + name))
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
