package web

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// archiveFS exposes regular files only: directories and dot-prefixed names
// report not-exist, so the server never lists the archive.
type archiveFS struct {
	root http.FileSystem
}

func (a archiveFS) Open(name string) (http.File, error) {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return nil, fs.ErrNotExist
		}
	}
	f, err := a.root.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

func (s *Server) archiveHandler() http.Handler {
	files := http.FileServer(archiveFS{root: http.Dir(s.cfg.Root)})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch path.Ext(r.URL.Path) {
		case ".md":
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		case ".json":
			w.Header().Set("Content-Type", "application/json")
		}
		// Index files are rewritten in place by the generator.
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		files.ServeHTTP(w, r)
	})
}
