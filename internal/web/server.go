// Package web serves shared notes. This is the unauthenticated read path:
// GET /notes/<publicId> renders a note that was made public, anything else
// is a not-found page. The publicId is a capability token; there is no
// session handling here.
package web

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/sagenotes/sage/internal/store"
)

var mdRenderer = goldmark.New()

var pageTemplate = template.Must(template.New("note").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<article>
<h1>{{.Title}}</h1>
{{.Body}}
</article>
</body>
</html>
`))

// Server handles public note reads.
type Server struct {
	store store.Storer
	mux   *http.ServeMux
	log   *slog.Logger
}

// NewServer creates the share server on top of the persistence layer.
func NewServer(st store.Storer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store: st,
		mux:   http.NewServeMux(),
		log:   log,
	}
	s.mux.HandleFunc("/notes/", s.handlePublicNote)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handlePublicNote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	publicID := strings.TrimPrefix(r.URL.Path, "/notes/")
	if publicID == "" || strings.Contains(publicID, "/") {
		s.renderNotFound(w)
		return
	}

	note, err := s.store.GetPublicNote(publicID)
	if err != nil {
		s.log.Error("public note lookup failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if note == nil {
		// Unknown token or note no longer public. A user-facing state,
		// not an exception.
		s.renderNotFound(w)
		return
	}

	var body strings.Builder
	if err := mdRenderer.Convert([]byte(note.Content), &body); err != nil {
		s.log.Error("markdown render failed", "note", note.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = pageTemplate.Execute(w, struct {
		Title string
		Body  template.HTML
	}{
		Title: note.Title,
		Body:  template.HTML(body.String()),
	})
}

func (s *Server) renderNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("<!DOCTYPE html>\n<html><body><p>Note not found.</p></body></html>\n"))
}
