package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"feedback/auth"
	"feedback/config"
	"feedback/db"
	"feedback/i18n"
	"feedback/templates"
	"feedback/validators"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
	log "github.com/sirupsen/logrus"
)

const (
	flashSuccess = "success"
	flashDanger  = "danger"
)

// Handlers serves every page of the application.
type Handlers struct {
	store    db.Repository
	auth     *auth.Service
	sessions *auth.Sessions
	views    *templates.Renderer

	captcha bool

	loginLimiter  *rateLimiter
	signupLimiter *rateLimiter
}

func New(store db.Repository, svc *auth.Service, sessions *auth.Sessions, views *templates.Renderer) *Handlers {
	return &Handlers{
		store:         store,
		auth:          svc,
		sessions:      sessions,
		views:         views,
		captcha:       config.AppConfig.CaptchaEnabled,
		loginLimiter:  newRateLimiter(),
		signupLimiter: newRateLimiter(),
	}
}

func (h *Handlers) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /register", h.Register)
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("GET /login", h.Login)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /logout", h.Logout)

	mux.HandleFunc("GET /users/{username}", h.ShowUser)
	mux.HandleFunc("GET /users/{username}/delete", h.DeleteUser)
	mux.HandleFunc("GET /users/{username}/feedback/add", h.AddFeedback)
	mux.HandleFunc("POST /users/{username}/feedback/add", h.AddFeedback)

	mux.HandleFunc("GET /feedback/{id}/update", h.UpdateFeedback)
	mux.HandleFunc("POST /feedback/{id}/update", h.UpdateFeedback)
	mux.HandleFunc("POST /feedback/{id}/delete", h.DeleteFeedback)

	if h.captcha {
		mux.Handle("GET /captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))
	}

	// Everything else gets the themed 404 page
	mux.HandleFunc("/", h.NotFound)
}

// Routes returns the route table behind the session middleware.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterHandlers(mux)
	return h.sessions.Middleware(mux)
}

func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index.html", nil)
}

func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "NotFound", "NotFoundText")
}

// Forbidden is shown when the CSRF check rejects a form.
func (h *Handlers) Forbidden(w http.ResponseWriter, r *http.Request) {
	log.WithFields(log.Fields{
		"path":   r.URL.Path,
		"reason": csrf.FailureReason(r),
	}).Warn("CSRF check failed")
	h.renderError(w, r, http.StatusForbidden, "Forbidden", "ForbiddenText")
}

func (h *Handlers) unauthorized(w http.ResponseWriter, r *http.Request) {
	h.flash(w, r, flashDanger, "LoginFirst")
	h.renderError(w, r, http.StatusUnauthorized, "Unauthorized", "UnauthorizedText")
}

func (h *Handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.WithFields(log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"error":  err,
	}).Error("request failed")
	h.renderError(w, r, http.StatusInternalServerError, "ServerError", "ServerErrorText")
}

func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, status int, title, text string) {
	lang := i18n.DetectLanguage(r)
	h.render(w, r, status, "error.html", map[string]any{
		"Title": i18n.T(lang, title),
		"Text":  i18n.T(lang, text),
	})
}

// authorize applies the guard for target and writes the unauthorized page on Deny.
func (h *Handlers) authorize(w http.ResponseWriter, r *http.Request, target string) bool {
	id := auth.IdentityFrom(r.Context())
	if auth.Authorize(id, target) == auth.Allow {
		return true
	}
	log.WithFields(log.Fields{
		"user":   id.Username,
		"target": target,
		"path":   r.URL.Path,
	}).Info("authorization denied")
	h.unauthorized(w, r)
	return false
}

// flash queues a translated notice for the next rendered page.
func (h *Handlers) flash(w http.ResponseWriter, r *http.Request, category, key string, args ...any) {
	msg := i18n.T(i18n.DetectLanguage(r), key)
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	if err := h.sessions.AddFlash(w, r, category, msg); err != nil {
		log.WithFields(log.Fields{"error": err}).Error("saving flash")
	}
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func userPath(username string) string {
	return "/users/" + url.PathEscape(username)
}

// feedbackID parses the {id} path value. Malformed ids are treated as unknown.
func feedbackID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	lang := i18n.DetectLanguage(r)

	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["AppName"]; !exists {
		data["AppName"] = config.AppConfig.AppName
	}
	if _, exists := data["Errors"]; !exists {
		data["Errors"] = validators.Errors{}
	}
	data["Lang"] = lang
	data["csrfField"] = csrf.TemplateField(r)
	data["Identity"] = auth.IdentityFrom(r.Context())
	// Popping flashes writes the session cookie, so it happens before the header
	data["Flashes"] = h.sessions.Flashes(w, r)

	var buf bytes.Buffer
	if err := h.views.Render(&buf, lang, name, data); err != nil {
		log.WithFields(log.Fields{"template": name, "error": err}).Error("rendering template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
