package handlers

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"askmemo-backend/internal/middleware"
	"askmemo-backend/internal/models"
)

//go:embed templates/*.html
var templateFiles embed.FS

const (
	flashCookieName = "askmemo_flash"
	userCookieName  = "askmemo_user"
	userCookieAge   = 365 * 24 * time.Hour
)

type pageData struct {
	Session        models.Session
	User           string
	DefaultUser    string
	Notice         *models.Notice
	Ratings        []models.Rating
	SelectedRating models.Rating
	WSPath         string
	TabID          string
}

// PageHandler serves the HTML form. Every form post answers with a 303 back
// to the page, so the browser always re-renders from session state.
type PageHandler struct {
	memo        MemoController
	notifier    Notifier
	templates   *template.Template
	defaultUser string
	secure      bool
}

func NewPageHandler(memo MemoController, notifier Notifier, defaultUser string, secure bool) (*PageHandler, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		memo:        memo,
		notifier:    notifier,
		templates:   tpl,
		defaultUser: defaultUser,
		secure:      secure,
	}, nil
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		User:           h.userFromCookie(r),
		DefaultUser:    h.defaultUser,
		Notice:         h.popFlash(w, r),
		Ratings:        models.Ratings,
		SelectedRating: models.RatingPending,
		WSPath:         "/api/v1/ws",
		TabID:          uuid.New().String(),
	}

	status := http.StatusOK
	result, err := h.memo.Current(r.Context(), middleware.GetSessionID(r.Context()))
	if err != nil {
		status, _, _ = errorStatus(err)
		data.Notice = noticeFor(err)
		log.Error().Err(err).Msg("failed to load session for page")
	}
	data.Session = result.Session

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "index", data); err != nil {
		log.Error().Err(err).Msg("failed to render page")
	}
}

func (h *PageHandler) Ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, &models.Notice{Level: models.NoticeError, Message: "Invalid form submission."})
		return
	}
	h.rememberUser(w, r.PostFormValue("user"))

	sessionID := middleware.GetSessionID(r.Context())
	result, err := h.memo.Ask(r.Context(), sessionID, r.PostFormValue("question"))
	if err != nil {
		h.redirect(w, r, noticeFor(err))
		return
	}
	notify(r.Context(), h.notifier, sessionID, tabID(r), result)
	h.redirect(w, r, result.Notice)
}

func (h *PageHandler) Save(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, &models.Notice{Level: models.NoticeError, Message: "Invalid form submission."})
		return
	}
	user := r.PostFormValue("user")
	h.rememberUser(w, user)

	rating, err := models.ParseRating(r.PostFormValue("rating"))
	if err != nil {
		h.redirect(w, r, &models.Notice{Level: models.NoticeError, Message: "Please choose a rating."})
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	result, err := h.memo.Save(r.Context(), sessionID, user, rating)
	if err != nil {
		h.redirect(w, r, noticeFor(err))
		return
	}
	notify(r.Context(), h.notifier, sessionID, tabID(r), result)
	h.redirect(w, r, result.Notice)
}

func (h *PageHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	result, err := h.memo.Abandon(r.Context(), sessionID)
	if err != nil {
		h.redirect(w, r, noticeFor(err))
		return
	}
	notify(r.Context(), h.notifier, sessionID, tabID(r), result)
	h.redirect(w, r, result.Notice)
}

// tabID names the page that posted, so its own socket can skip the render
// signal that the redirect already covers.
func tabID(r *http.Request) string {
	if id := r.PostFormValue("tab"); id != "" {
		return id
	}
	return r.Header.Get(TabIDHeader)
}

func (h *PageHandler) redirect(w http.ResponseWriter, r *http.Request, notice *models.Notice) {
	if notice != nil {
		h.setFlash(w, notice)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// noticeFor turns a failed action into the message shown on the page.
func noticeFor(err error) *models.Notice {
	_, code, message := errorStatus(err)
	if code == "VALIDATION_ERROR" {
		var fields map[string]string
		if ve := asValidationError(err); ve != nil {
			fields = ve.Fields
		}
		msgs := make([]string, 0, len(fields))
		for _, m := range fields {
			msgs = append(msgs, m)
		}
		sort.Strings(msgs)
		if len(msgs) > 0 {
			message = strings.Join(msgs, "; ")
		}
	}
	return &models.Notice{Level: models.NoticeError, Message: message}
}

func (h *PageHandler) setFlash(w http.ResponseWriter, notice *models.Notice) {
	data, err := json.Marshal(notice)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads the one-shot notice left by the previous post and clears it.
func (h *PageHandler) popFlash(w http.ResponseWriter, r *http.Request) *models.Notice {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var notice models.Notice
	if err := json.Unmarshal(data, &notice); err != nil || notice.Message == "" {
		return nil
	}
	switch notice.Level {
	case models.NoticeSuccess, models.NoticeWarning, models.NoticeError:
	default:
		notice.Level = models.NoticeError
	}
	return &notice
}

func (h *PageHandler) rememberUser(w http.ResponseWriter, user string) {
	user = strings.TrimSpace(user)
	if runes := []rune(user); len(runes) > 100 {
		user = string(runes[:100])
	}
	http.SetCookie(w, &http.Cookie{
		Name:     userCookieName,
		Value:    url.QueryEscape(user),
		Path:     "/",
		MaxAge:   int(userCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *PageHandler) userFromCookie(r *http.Request) string {
	c, err := r.Cookie(userCookieName)
	if err != nil {
		return ""
	}
	user, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return user
}
