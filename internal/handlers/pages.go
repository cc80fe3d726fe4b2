package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"guestbook/internal/middleware"
	"guestbook/internal/models"
	"guestbook/internal/services"
	"guestbook/internal/utils"
)

// multipart parts beyond this size spill to temp files
const multipartMemory = 1 << 20

type pageData struct {
	Title    string
	User     *models.User
	Flash    string
	Form     map[string]string
	Posts    []models.Post
	Users    []models.User
	Comments map[int][]models.Comment
	Liked    map[int]bool
	MaxPost  int
}

func (h *Handler) newPage(w http.ResponseWriter, r *http.Request, title string) *pageData {
	return &pageData{
		Title:   title,
		User:    middleware.UserFromContext(r.Context()),
		Flash:   popFlash(w, r),
		Form:    map[string]string{},
		MaxPost: utils.MaxPostRunes,
	}
}

// GET /
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := h.newPage(w, r, "Guestbook")

	var err error
	if data.Posts, err = h.content.ListPosts(ctx); err == nil {
		if data.Users, err = h.creds.ListUsers(ctx); err == nil {
			data.Comments, err = h.content.ListComments(ctx)
		}
	}
	if err == nil && data.User != nil {
		data.Liked, err = h.content.LikedPostIDs(ctx, data.User.ID)
	}
	if err != nil {
		status, msg := errorStatus(ctx, err, "Page")
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load home page")
		data.Flash = msg
		h.render(w, r, status, "error.html", data)
		return
	}

	h.render(w, r, http.StatusOK, "home.html", data)
}

// GET /register
func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register.html", h.newPage(w, r, "Register"))
}

// POST /register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	data := h.newPage(w, r, "Register")
	if err := r.ParseForm(); err != nil {
		data.Flash = "Invalid form submission"
		h.render(w, r, http.StatusBadRequest, "register.html", data)
		return
	}

	username := r.PostFormValue("username")
	handle := r.PostFormValue("userID")
	data.Form["username"] = username
	data.Form["userID"] = handle

	if _, err := h.creds.Register(r.Context(), username, handle, r.PostFormValue("password")); err != nil {
		data.Flash = flashMessage(r, err, "User")
		h.render(w, r, http.StatusOK, "register.html", data)
		return
	}

	setFlash(w, "Registration successful, please log in")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// GET /login
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", h.newPage(w, r, "Log in"))
}

// POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	data := h.newPage(w, r, "Log in")
	if err := r.ParseForm(); err != nil {
		data.Flash = "Invalid form submission"
		h.render(w, r, http.StatusBadRequest, "login.html", data)
		return
	}

	handle := r.PostFormValue("userID")
	data.Form["userID"] = handle

	user, err := h.creds.Verify(r.Context(), handle, r.PostFormValue("password"))
	if err == nil {
		err = h.sessions.Login(r.Context(), w, user)
	}
	if err != nil {
		data.Flash = flashMessage(r, err, "User")
		h.render(w, r, http.StatusOK, "login.html", data)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GET /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), w, r); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Logout failed")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GET /posts/create
func (h *Handler) CreatePostPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "create_post.html", h.newPage(w, r, "New post"))
}

// POST /posts/create accepts a multipart form with "content" and an optional "image"
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.UserFromContext(ctx)
	data := h.newPage(w, r, "New post")

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	err := r.ParseMultipartForm(multipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			data.Flash = "Image is too large"
		} else {
			data.Flash = "Invalid form submission"
		}
		h.render(w, r, http.StatusOK, "create_post.html", data)
		return
	}

	content := r.FormValue("content")
	data.Form["content"] = content

	var img *services.ImageUpload
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		if header.Filename != "" {
			img = &services.ImageUpload{Filename: header.Filename, Content: file}
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		data.Flash = "Invalid image upload"
		h.render(w, r, http.StatusOK, "create_post.html", data)
		return
	}

	post, err := h.content.CreatePost(ctx, user.ID, content, img)
	if err != nil {
		data.Flash = flashMessage(r, err, "Post")
		h.render(w, r, http.StatusOK, "create_post.html", data)
		return
	}

	h.hub.Broadcast(postEvent(EventPostCreated, post))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// POST /addBook adds a guestbook entry to a post. The author is the
// logged-in user; a submitted userID field is ignored.
func (h *Handler) AddBook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.UserFromContext(ctx)

	if err := r.ParseForm(); err != nil {
		setFlash(w, "Invalid form submission")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	postID, err := strconv.Atoi(r.PostFormValue("post_id"))
	if err != nil || postID <= 0 {
		setFlash(w, "Post not found")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	comment, err := h.content.CreateComment(ctx, user.ID, postID, r.PostFormValue("book_text"))
	if err != nil {
		setFlash(w, flashMessage(r, err, "Post"))
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.hub.Broadcast(commentEvent(EventCommentCreated, comment))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
