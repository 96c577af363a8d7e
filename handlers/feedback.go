package handlers

import (
	"net/http"

	"feedback/db"
	"feedback/i18n"
	"feedback/models"
	"feedback/validators"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func (h *Handlers) AddFeedback(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if !h.authorize(w, r, username) {
		return
	}

	if _, err := h.store.UserByUsername(r.Context(), username); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.NotFound(w, r)
		} else {
			h.serverError(w, r, err)
		}
		return
	}

	var form validators.FeedbackForm
	errs := validators.Errors{}

	if r.Method == http.MethodPost {
		lang := i18n.DetectLanguage(r)
		if err := validators.Decode(r, &form); err != nil {
			log.WithFields(log.Fields{"error": err}).Debug("decoding feedback form")
		}
		errs = validators.Validate(lang, &form)

		if !errs.Any() {
			feedback := &models.Feedback{Title: form.Title, Content: form.Content, Username: username}
			err := h.store.CreateFeedback(r.Context(), feedback)
			switch {
			case errors.Is(err, db.ErrTooLong):
				errs.Add("title", i18n.T(lang, "TitleTooLong"))
			case err != nil:
				h.serverError(w, r, err)
				return
			default:
				h.flash(w, r, flashSuccess, "FeedbackCreated")
				h.redirect(w, r, userPath(username))
				return
			}
		}
	}

	h.render(w, r, http.StatusOK, "feedback.html", map[string]any{
		"Heading": "AddFeedback",
		"Action":  userPath(username) + "/feedback/add",
		"Owner":   username,
		"Form":    form,
		"Errors":  errs,
	})
}

// loadFeedback resolves {id} and checks the caller may act on its owner.
// It writes the error page itself and returns nil when the request is done.
func (h *Handlers) loadFeedback(w http.ResponseWriter, r *http.Request) *models.Feedback {
	id, ok := feedbackID(r)
	if !ok {
		h.NotFound(w, r)
		return nil
	}

	feedback, err := h.store.FeedbackByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		h.NotFound(w, r)
		return nil
	}
	if err != nil {
		h.serverError(w, r, err)
		return nil
	}

	if !h.authorize(w, r, feedback.Username) {
		return nil
	}
	return feedback
}

func (h *Handlers) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	feedback := h.loadFeedback(w, r)
	if feedback == nil {
		return
	}

	form := validators.FeedbackForm{Title: feedback.Title, Content: feedback.Content}
	errs := validators.Errors{}

	if r.Method == http.MethodPost {
		lang := i18n.DetectLanguage(r)
		// A field left out of the POST is missing, not unchanged
		form = validators.FeedbackForm{}
		if err := validators.Decode(r, &form); err != nil {
			log.WithFields(log.Fields{"error": err}).Debug("decoding feedback form")
		}
		errs = validators.Validate(lang, &form)

		if !errs.Any() {
			feedback.Title = form.Title
			feedback.Content = form.Content
			err := h.store.UpdateFeedback(r.Context(), feedback)
			switch {
			case errors.Is(err, db.ErrTooLong):
				errs.Add("title", i18n.T(lang, "TitleTooLong"))
			case errors.Is(err, db.ErrNotFound):
				h.NotFound(w, r)
				return
			case err != nil:
				h.serverError(w, r, err)
				return
			default:
				h.flash(w, r, flashSuccess, "FeedbackUpdated")
				h.redirect(w, r, userPath(feedback.Username))
				return
			}
		}
	}

	h.render(w, r, http.StatusOK, "feedback.html", map[string]any{
		"Heading": "EditFeedback",
		"Action":  r.URL.Path,
		"Owner":   feedback.Username,
		"Form":    form,
		"Errors":  errs,
	})
}

func (h *Handlers) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	feedback := h.loadFeedback(w, r)
	if feedback == nil {
		return
	}

	err := h.store.DeleteFeedback(r.Context(), feedback.ID)
	if errors.Is(err, db.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.flash(w, r, flashSuccess, "FeedbackDeleted")
	h.redirect(w, r, userPath(feedback.Username))
}
