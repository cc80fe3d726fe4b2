package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"guestbook/internal/middleware"
	"guestbook/internal/services"
	"guestbook/internal/uploads"
	"guestbook/internal/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps are the collaborators a Handler needs. Metrics is optional.
type Deps struct {
	Credentials    *services.CredentialStore
	Content        *services.ContentStore
	Sessions       *middleware.SessionManager
	Images         uploads.Storage
	Hub            *Hub
	Metrics        *middleware.Metrics
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

type Handler struct {
	creds     *services.CredentialStore
	content   *services.ContentStore
	sessions  *middleware.SessionManager
	images    uploads.Storage
	hub       *Hub
	metrics   *middleware.Metrics
	maxUpload int64
	timeout   time.Duration
	tmpl      *template.Template
}

func NewHandler(d Deps) (*Handler, error) {
	h := &Handler{
		creds:     d.Credentials,
		content:   d.Content,
		sessions:  d.Sessions,
		images:    d.Images,
		hub:       d.Hub,
		metrics:   d.Metrics,
		maxUpload: d.MaxUploadBytes,
		timeout:   d.RequestTimeout,
	}
	if h.hub == nil {
		h.hub = NewHub(nil)
	}

	funcs := utils.TemplateFuncs()
	funcs["imageURL"] = h.images.URL

	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	h.tmpl = tmpl
	return h, nil
}

// Routes builds the router with the full middleware chain:
// request logger, panic recovery, then per-route metrics and timeout.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(middleware.Timeout(h.timeout))

	page := h.sessions.RequireAuth
	api := h.sessions.RequireAuthJSON
	optional := h.sessions.Authenticate

	// pages
	r.Handle("/", optional(http.HandlerFunc(h.Home))).Methods(http.MethodGet)
	r.HandleFunc("/register", h.RegisterPage).Methods(http.MethodGet)
	r.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/login", h.LoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodGet)
	r.Handle("/posts/create", page(http.HandlerFunc(h.CreatePostPage))).Methods(http.MethodGet)
	r.Handle("/posts/create", page(http.HandlerFunc(h.CreatePost))).Methods(http.MethodPost)
	r.Handle("/addBook", page(http.HandlerFunc(h.AddBook))).Methods(http.MethodPost)

	// JSON
	r.HandleFunc("/posts", h.ListPosts).Methods(http.MethodGet)
	r.HandleFunc("/posts/{postId:[0-9]+}", h.GetPost).Methods(http.MethodGet)
	r.HandleFunc("/users/{userId:[0-9]+}", h.GetUser).Methods(http.MethodGet)
	r.Handle("/posts/edit/{postId:[0-9]+}", api(http.HandlerFunc(h.EditPost))).Methods(http.MethodPatch)
	r.Handle("/posts/delete/{postId:[0-9]+}", api(http.HandlerFunc(h.DeletePost))).Methods(http.MethodDelete)
	r.Handle("/book/edit/{bookId:[0-9]+}", api(http.HandlerFunc(h.EditBook))).Methods(http.MethodPatch)
	r.Handle("/book/delete/{bookId:[0-9]+}", api(http.HandlerFunc(h.DeleteBook))).Methods(http.MethodDelete)
	r.Handle("/addLike/{postId:[0-9]+}", api(http.HandlerFunc(h.AddLike))).Methods(http.MethodPost)

	// images are only served here for the local backend
	if fs, ok := h.images.(http.Handler); ok {
		r.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", fs)).Methods(http.MethodGet, http.MethodHead)
	}

	r.Handle("/ws", optional(h.hub))
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}

	return middleware.RequestLogger(middleware.Recover(r))
}
