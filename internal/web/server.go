// Package web implements the HTTP server for the MetaSnap dashboard. It
// renders the feed and profile pages, accepts the form posts that drive
// ledger actions, and streams refresh notifications over SSE and
// diagnostics over WebSocket.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"metasnap.app/msc/internal/docs"
	"metasnap.app/msc/internal/logger"
	"metasnap.app/msc/internal/types"
)

// Session is the slice of the session watcher the dashboard needs.
type Session interface {
	Connect(ctx context.Context) error
	Disconnect()
	Active() (string, bool)
	Chain() string
	Updates() <-chan struct{}
}

// Feed is the slice of the feed service the dashboard needs.
type Feed interface {
	Posts() []types.Post
	Stale() bool
	Comments(postID uint64) []types.Comment
	Busy(postID uint64) bool
	Composing() bool
	Refresh(ctx context.Context) error
	LoadComments(ctx context.Context, postID uint64) ([]types.Comment, error)
	Like(ctx context.Context, postID uint64) error
	AddComment(ctx context.Context, postID uint64, text string) error
	CreatePost(ctx context.Context, description, imageURL, filename string, file io.Reader) error
	SetDisplayName(ctx context.Context, name string) error
	MyPosts(ctx context.Context) ([]types.Post, error)
	DisplayNameOf(ctx context.Context, account string) (string, error)
	Updates() <-chan struct{}
}

// TemplateData holds the data to be passed to the HTML template.
type TemplateData struct {
	CurrentVersion string
	BuildTime      string
	Connected      bool
	Account        string
	ShortAccount   string
	DisplayName    string
	Chain          string
	Posts          []types.Post
	Comments       map[uint64][]types.Comment
	Busy           map[uint64]bool
	Composing      bool
	MyPosts        []types.Post
	Stale          bool
	Notice         string
	DocList        []string
	DocContent     template.HTML
	CurrentDoc     string
}

// sseBroker manages SSE connections for broadcasting feed updates
type sseBroker struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func newSSEBroker() *sseBroker {
	return &sseBroker{
		clients: make(map[chan []byte]struct{}),
	}
}

func (b *sseBroker) register(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = struct{}{}
}

func (b *sseBroker) unregister(client chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, client)
	close(client)
}

func (b *sseBroker) broadcast(data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- data:
		default:
			// Client is slow/blocked, skip
		}
	}
}

// Server is the web server for the dashboard.
type Server struct {
	session    Session
	feed       Feed
	port       int
	templates  *template.Template
	logger     *logger.Logger
	sseBroker  *sseBroker
	docService *docs.Service
}

// NewServer creates a new web server.
func NewServer(sess Session, fd Feed, docsDir string, port int, lg *logger.Logger) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		session:    sess,
		feed:       fd,
		port:       port,
		templates:  templates,
		logger:     lg,
		sseBroker:  newSSEBroker(),
		docService: docs.NewService(docsDir),
	}

	s.logger.Info("MSC dashboard initialized")

	go s.watchUpdates()

	return s, nil
}

// Logger returns the server's logger instance
func (s *Server) Logger() *logger.Logger {
	return s.logger
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Page routes
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /profile", s.handleProfile)
	mux.HandleFunc("GET /docs", s.handleDocs)

	// Session routes
	mux.HandleFunc("POST /connect", s.handleConnect)
	mux.HandleFunc("POST /logout", s.handleLogout)

	// Feed routes
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("POST /posts", s.handleCreatePost)
	mux.HandleFunc("POST /posts/{id}/like", s.handleLike)
	mux.HandleFunc("POST /posts/{id}/comments", s.handleAddComment)
	mux.HandleFunc("POST /posts/{id}/comments/load", s.handleLoadComments)
	mux.HandleFunc("POST /profile/name", s.handleSetName)

	// JSON for external consumers
	mux.HandleFunc("GET /api/feed", s.handleFeedJSON)
	mux.HandleFunc("GET /api/posts/{id}/comments", s.handleCommentsJSON)

	// Streams
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /ws/diagnostics", s.handleDiagnosticsWS)
	mux.HandleFunc("GET /ws/status", s.handleStatusWS)

	return mux
}

// Start initializes and runs the web server.
func (s *Server) Start() <-chan error {
	log.Printf("Web UI: Starting dashboard on http://localhost:%d", s.port)

	addr := fmt.Sprintf(":%d", s.port)
	errCh := make(chan error, 1)

	go func() {
		err := http.ListenAndServe(addr, s.routes())
		errCh <- err
		close(errCh)
	}()

	return errCh
}

// watchUpdates listens for feed and session changes and notifies all SSE
// clients so open pages reload their view.
func (s *Server) watchUpdates() {
	feedCh := s.feed.Updates()
	sessCh := s.session.Updates()
	for {
		select {
		case _, ok := <-feedCh:
			if !ok {
				return
			}
		case _, ok := <-sessCh:
			if !ok {
				return
			}
		}
		s.sseBroker.broadcast([]byte("event: feed-updated\ndata: {}\n\n"))
	}
}

func (s *Server) baseData(r *http.Request) TemplateData {
	data := TemplateData{
		CurrentVersion: types.Version,
		BuildTime:      types.BuildTime,
		Notice:         r.URL.Query().Get("notice"),
	}
	if account, ok := s.session.Active(); ok {
		data.Connected = true
		data.Account = account
		data.ShortAccount = types.ShortAddress(account)
		data.Chain = s.session.Chain()
		if name, err := s.feed.DisplayNameOf(r.Context(), account); err == nil {
			data.DisplayName = name
		}
	}
	return data
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.baseData(r)
	data.Posts = s.feed.Posts()
	data.Stale = s.feed.Stale()

	comments := make(map[uint64][]types.Comment)
	busy := make(map[uint64]bool)
	for _, p := range data.Posts {
		if list := s.feed.Comments(p.ID); len(list) > 0 {
			comments[p.ID] = list
		}
		if s.feed.Busy(p.ID) {
			busy[p.ID] = true
		}
	}
	data.Comments = comments
	data.Busy = busy
	data.Composing = s.feed.Composing()

	s.renderPage(w, "feed-page", data)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	data := s.baseData(r)
	if data.Connected {
		mine, err := s.feed.MyPosts(r.Context())
		if err != nil {
			s.logger.Failure("load own posts", err)
		} else {
			data.MyPosts = mine
		}
	}
	s.renderPage(w, "profile-page", data)
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	data := s.baseData(r)

	docName := r.URL.Query().Get("doc")
	docList, _ := s.docService.ListDocs()
	data.DocList = docList

	if docName == "" && len(docList) > 0 {
		docName = docList[0]
	}
	if docName != "" {
		content, err := s.docService.GetDoc(r.Context(), docName)
		if err != nil {
			s.logger.Error(fmt.Sprintf("Failed to load doc %s: %v", docName, err))
		} else {
			data.DocContent = template.HTML(content)
			data.CurrentDoc = docName
		}
	}

	s.renderPage(w, "docs-page", data)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Connect(r.Context()); err != nil {
		s.logger.Failure("connect wallet", err)
		s.redirectNotice(w, r, "/", types.Notice(err))
		return
	}
	if err := s.feed.Refresh(r.Context()); err != nil {
		s.logger.Failure("initial feed load", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.session.Disconnect()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.Refresh(r.Context()); err != nil {
		s.logger.Failure("refresh feed", err)
		s.redirectNotice(w, r, "/", types.Notice(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	if err := s.feed.Like(r.Context(), id); err != nil {
		s.redirectNotice(w, r, "/", types.Notice(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	if err := s.feed.AddComment(r.Context(), id, r.FormValue("text")); err != nil {
		s.redirectNotice(w, r, "/", types.Notice(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLoadComments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	if _, err := s.feed.LoadComments(r.Context(), id); err != nil {
		s.redirectNotice(w, r, "/", types.Notice(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	description := r.FormValue("description")
	imageURL := r.FormValue("image_url")

	var file io.Reader
	var filename string
	// Browsers submit an empty file part when nothing was chosen
	if src, header, err := r.FormFile("image"); err == nil && header.Filename != "" {
		defer src.Close()
		file = src
		filename = header.Filename
	}

	if err := s.feed.CreatePost(r.Context(), description, imageURL, filename, file); err != nil {
		s.redirectNotice(w, r, "/", types.Notice(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSetName(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.SetDisplayName(r.Context(), r.FormValue("name")); err != nil {
		s.redirectNotice(w, r, "/profile", types.Notice(err))
		return
	}
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

func (s *Server) handleFeedJSON(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"posts": s.feed.Posts(),
		"stale": s.feed.Stale(),
	})
}

func (s *Server) handleCommentsJSON(w http.ResponseWriter, r *http.Request) {
	id, ok := s.postID(w, r)
	if !ok {
		return
	}
	list, err := s.feed.LoadComments(r.Context(), id)
	if err != nil {
		http.Error(w, types.Notice(err), http.StatusBadGateway)
		return
	}
	s.writeJSON(w, map[string]interface{}{"comments": list})
}

// handleEvents establishes an SSE connection and streams update events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	clientChan := make(chan []byte, 10)
	s.sseBroker.register(clientChan)
	defer s.sseBroker.unregister(clientChan)

	s.logger.Info("SSE client connected for feed updates")
	defer s.logger.Info("SSE client disconnected")

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-clientChan:
			w.Write(data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) postID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data TemplateData) {
	s.setCacheHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("Error executing %s template: %s", name, err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

func (s *Server) redirectNotice(w http.ResponseWriter, r *http.Request, target, notice string) {
	http.Redirect(w, r, target+"?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %s", err)
	}
}

// setCacheHeaders sets cache-busting headers to prevent browser caching.
func (s *Server) setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
