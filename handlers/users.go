package handlers

import (
	"net/http"

	"feedback/auth"
	"feedback/db"
	"feedback/i18n"
	"feedback/validators"

	"github.com/dchest/captcha"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFrom(r.Context())
	if id.Authenticated() {
		h.flash(w, r, flashDanger, "AlreadyRegistered")
		h.redirect(w, r, userPath(id.Username))
		return
	}

	lang := i18n.DetectLanguage(r)
	var form validators.UserForm
	errs := validators.Errors{}

	if r.Method == http.MethodPost {
		ip := getClientIP(r)
		if !h.signupLimiter.Allow(ip) {
			log.WithFields(log.Fields{"ip": ip}).Warn("registration rate limited")
			errs.Add("username", i18n.T(lang, "TooManyAttempts"))
			h.renderRegister(w, r, http.StatusTooManyRequests, form, errs)
			return
		}

		if err := validators.Decode(r, &form); err != nil {
			log.WithFields(log.Fields{"error": err}).Debug("decoding registration form")
		}
		errs = validators.Validate(lang, &form)
		if !errs.Any() && h.captcha && !captcha.VerifyString(form.CaptchaID, form.CaptchaSolution) {
			errs.Add("captcha_solution", i18n.T(lang, "InvalidCaptcha"))
		}

		if !errs.Any() {
			user, err := h.auth.Register(form.Username, form.Password, form.FirstName, form.LastName, form.Email)
			if err != nil {
				h.serverError(w, r, err)
				return
			}
			err = h.store.CreateUser(r.Context(), user)
			switch {
			case errors.Is(err, db.ErrDuplicate):
				errs.Add("username", i18n.T(lang, "UsernameOrEmailTaken"))
			case err != nil:
				h.serverError(w, r, err)
				return
			default:
				// Record signup attempt to limit rate of creation per IP
				h.signupLimiter.RecordFailure(ip)

				if err := h.sessions.Login(w, r, user); err != nil {
					h.serverError(w, r, err)
					return
				}
				log.WithFields(log.Fields{"user": user.Username}).Info("user registered")
				h.flash(w, r, flashSuccess, "AccountCreated")
				h.redirect(w, r, userPath(user.Username))
				return
			}
		}
	}

	h.renderRegister(w, r, http.StatusOK, form, errs)
}

func (h *Handlers) renderRegister(w http.ResponseWriter, r *http.Request, status int, form validators.UserForm, errs validators.Errors) {
	data := map[string]any{"Form": form, "Errors": errs}
	if h.captcha {
		data["CaptchaID"] = captcha.New()
	}
	h.render(w, r, status, "register.html", data)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFrom(r.Context())
	if id.Authenticated() {
		h.flash(w, r, flashDanger, "AlreadyLoggedIn")
		h.redirect(w, r, userPath(id.Username))
		return
	}

	lang := i18n.DetectLanguage(r)
	var form validators.LoginForm
	errs := validators.Errors{}

	if r.Method == http.MethodPost {
		ip := getClientIP(r)
		if !h.loginLimiter.Allow(ip) {
			log.WithFields(log.Fields{"ip": ip}).Warn("login rate limited")
			errs.Add("username", i18n.T(lang, "TooManyAttempts"))
			h.render(w, r, http.StatusTooManyRequests, "login.html", map[string]any{"Form": form, "Errors": errs})
			return
		}

		if err := validators.Decode(r, &form); err != nil {
			log.WithFields(log.Fields{"error": err}).Debug("decoding login form")
		}
		errs = validators.Validate(lang, &form)

		if !errs.Any() {
			user, err := h.auth.Authenticate(r.Context(), form.Username, form.Password)
			switch {
			case errors.Is(err, auth.ErrInvalidCredentials):
				h.loginLimiter.RecordFailure(ip)
				log.WithFields(log.Fields{"ip": ip}).Info("failed login")
				errs.Add("username", i18n.T(lang, "InvalidCredentials"))
			case err != nil:
				h.serverError(w, r, err)
				return
			default:
				h.loginLimiter.Reset(ip)
				if err := h.sessions.Login(w, r, user); err != nil {
					h.serverError(w, r, err)
					return
				}
				h.flash(w, r, flashSuccess, "WelcomeBack", user.Username)
				h.redirect(w, r, userPath(user.Username))
				return
			}
		}
	}

	h.render(w, r, http.StatusOK, "login.html", map[string]any{"Form": form, "Errors": errs})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if auth.IdentityFrom(r.Context()).Authenticated() {
		if err := h.sessions.Logout(w, r); err != nil {
			h.serverError(w, r, err)
			return
		}
	}
	h.flash(w, r, flashSuccess, "LoggedOut")
	h.redirect(w, r, "/")
}

func (h *Handlers) ShowUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if !h.authorize(w, r, username) {
		return
	}

	user, err := h.store.UserByUsername(r.Context(), username)
	if errors.Is(err, db.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	feedback, err := h.store.FeedbackForUser(r.Context(), username)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "user.html", map[string]any{
		"User":     user,
		"Feedback": feedback,
	})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if !h.authorize(w, r, username) {
		return
	}

	err := h.store.DeleteUser(r.Context(), username)
	if errors.Is(err, db.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	id := auth.IdentityFrom(r.Context())
	log.WithFields(log.Fields{"user": username, "by": id.Username}).Info("user deleted")

	next := "/"
	if id.Username == username {
		if err := h.sessions.Logout(w, r); err != nil {
			h.serverError(w, r, err)
			return
		}
		next = "/login"
	}
	h.flash(w, r, flashSuccess, "UserDeleted")
	h.redirect(w, r, next)
}
