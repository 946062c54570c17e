// Package serve exposes a generated wheelhouse over HTTP as a package index.
//
// Project pages are negotiated like PyPI: PEP 691 JSON when the client
// prefers application/vnd.pypi.simple.v1+json, the generated PEP 503 HTML
// page otherwise. Wheel files honour Range requests, so the lazy metadata
// fetch of [pypi.Client] works against a served wheelhouse.
package serve

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/packaging"
	"github.com/matzehuels/wheelbench/pkg/wheelhouse"
)

// Simple API media types.
const (
	contentTypeJSON = "application/vnd.pypi.simple.v1+json"
	contentTypeHTML = "text/html; charset=utf-8"
)

// Options configures the index server.
type Options struct {
	Logger *log.Logger // Request log at debug level (default: discarded)
}

type server struct {
	dir    string
	logger *log.Logger
}

// NewRouter returns a handler serving the wheelhouse rooted at dir.
func NewRouter(dir string, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &server{dir: dir, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.GetHead)

	r.Get("/", s.handleRoot)
	r.Get("/{project}", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/"+packaging.CanonicalizeName(chi.URLParam(req, "project"))+"/", http.StatusMovedPermanently)
	})
	r.Get("/{project}/", s.handleProject)
	r.Get("/{project}/{filename}", s.handleFile)
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start))
	})
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects()
	if err != nil {
		s.fail(w, err)
		return
	}

	if wantsJSON(r.Header.Get("Accept")) {
		type project struct {
			Name string `json:"name"`
		}
		doc := struct {
			Meta     apiMeta   `json:"meta"`
			Projects []project `json:"projects"`
		}{Meta: apiMeta{APIVersion: "1.0"}, Projects: []project{}}
		for _, p := range projects {
			doc.Projects = append(doc.Projects, project{Name: p})
		}
		writeJSON(w, doc)
		return
	}

	if data, err := os.ReadFile(filepath.Join(s.dir, "index.html")); err == nil {
		writeHTML(w, data)
		return
	}
	links := make([]string, len(projects))
	for i, p := range projects {
		links[i] = p + "/"
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	_ = wheelhouse.WriteListing(w, links)
}

type apiMeta struct {
	APIVersion string `json:"api-version"`
}

type projectFile struct {
	Filename string            `json:"filename"`
	URL      string            `json:"url"`
	Hashes   map[string]string `json:"hashes"`
}

func (s *server) handleProject(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "project")
	if wberrors.ValidatePackageName(raw) != nil {
		http.NotFound(w, r)
		return
	}
	name := packaging.CanonicalizeName(raw)
	if name != raw {
		http.Redirect(w, r, "/"+name+"/", http.StatusMovedPermanently)
		return
	}
	dir := filepath.Join(s.dir, name)
	if !isDir(dir) {
		http.NotFound(w, r)
		return
	}

	if !wantsJSON(r.Header.Get("Accept")) {
		data, err := os.ReadFile(filepath.Join(dir, "index.html"))
		if err != nil {
			s.fail(w, err)
			return
		}
		writeHTML(w, data)
		return
	}

	wheels, err := listWheels(dir)
	if err != nil {
		s.fail(w, err)
		return
	}
	doc := struct {
		Meta  apiMeta       `json:"meta"`
		Name  string        `json:"name"`
		Files []projectFile `json:"files"`
	}{Meta: apiMeta{APIVersion: "1.0"}, Name: name, Files: []projectFile{}}
	for _, f := range wheels {
		sum, err := fileSHA256(filepath.Join(dir, f))
		if err != nil {
			s.fail(w, err)
			return
		}
		doc.Files = append(doc.Files, projectFile{Filename: f, URL: f, Hashes: map[string]string{"sha256": sum}})
	}
	writeJSON(w, doc)
}

func (s *server) handleFile(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	filename := chi.URLParam(r, "filename")
	if wberrors.ValidatePackageName(project) != nil || wberrors.ValidatePathSegment("file", filename) != nil || strings.HasPrefix(filename, ".") {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(filepath.Join(s.dir, project, filename))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.fail(w, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	if strings.HasSuffix(filename, ".whl") {
		w.Header().Set("Content-Type", "application/zip")
	}
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

func (s *server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("serve", "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// projects returns the project directories below the root, sorted.
func (s *server) projects() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && packaging.IsNormalizedName(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// listWheels returns the wheel files in dir in ascending version order.
func listWheels(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type wheel struct{ file, version string }
	var wheels []wheel
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		w, err := packaging.ParseWheelFilename(e.Name())
		if err != nil {
			continue
		}
		wheels = append(wheels, wheel{e.Name(), w.Version})
	}
	slices.SortStableFunc(wheels, func(a, b wheel) int {
		return packaging.CompareVersions(a.version, b.version)
	})
	files := make([]string, len(wheels))
	for i, w := range wheels {
		files[i] = w.file
	}
	return files, nil
}

// wantsJSON reports whether accept ranks the PEP 691 JSON type above
// every HTML type.
func wantsJSON(accept string) bool {
	var jsonQ, htmlQ float64
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		switch mediaType {
		case contentTypeJSON:
			jsonQ = max(jsonQ, q)
		case "application/vnd.pypi.simple.v1+html", "text/html", "*/*":
			htmlQ = max(htmlQ, q)
		}
	}
	return jsonQ > 0 && jsonQ > htmlQ
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	_ = json.NewEncoder(w).Encode(v)
}

func writeHTML(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
