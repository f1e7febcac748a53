package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/usecase/schedule"
	"leaguelingo/internal/usecase/subscription"
)

type subscriber interface {
	Subscribe(ctx context.Context, leagueID int64, email string) (domain.Recipient, error)
	Confirm(ctx context.Context, recipientID int64) (domain.Recipient, error)
	Unsubscribe(ctx context.Context, recipientID int64) (domain.Recipient, error)
	ResendConfirmation(ctx context.Context, recipientID int64) (domain.Recipient, error)
	Recipient(ctx context.Context, recipientID int64) (domain.Recipient, error)
}

type scheduler interface {
	UpdateSchedule(ctx context.Context, leagueID int64, dayRaw, timeRaw string) (domain.League, error)
}

type newsletterLister interface {
	ListNewsletters(ctx context.Context, leagueID int64) ([]domain.Newsletter, error)
}

// Handler обслуживает публичные ссылки из писем и JSON API.
type Handler struct {
	subscriptions subscriber
	schedules     scheduler
	newsletters   newsletterLister
	mediaDir      string
	validate      *validator.Validate
	log           zerolog.Logger
}

// NewHandler создаёт обработчик. mediaDir пустой, если документы лежат в S3.
func NewHandler(subscriptions subscriber, schedules scheduler, newsletters newsletterLister, mediaDir string, logger zerolog.Logger) *Handler {
	return &Handler{
		subscriptions: subscriptions,
		schedules:     schedules,
		newsletters:   newsletters,
		mediaDir:      mediaDir,
		validate:      newValidator(),
		log:           logger.With().Str("component", "web").Logger(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseWeekday(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	return v
}

// Register вешает маршруты на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1/leagues/{id}", func(r chi.Router) {
		r.Post("/recipients", h.subscribe)
		r.Put("/schedule", h.updateSchedule)
		r.Get("/newsletters", h.listNewsletters)
	})
	r.Post("/api/v1/recipients/{id}/confirmation", h.resendConfirmation)
	r.Get("/confirm/{id}", h.confirm)
	// GET только показывает форму: сканеры ссылок в почте не должны отписывать.
	r.Get("/unsubscribe/{id}", h.unsubscribePage)
	r.Post("/unsubscribe/{id}", h.unsubscribe)
	if h.mediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(h.mediaDir))))
	}
}

type subscribeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type scheduleRequest struct {
	Day  string `json:"day" validate:"required,weekday"`
	Time string `json:"time" validate:"required,clock"`
}

type recipientResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Confirmed bool   `json:"confirmed"`
}

type scheduleResponse struct {
	LeagueID int64  `json:"league_id"`
	Day      string `json:"day"`
	Time     string `json:"time"`
}

type newsletterResponse struct {
	ID          int64   `json:"id"`
	Week        int     `json:"week"`
	DocumentURL string  `json:"document_url"`
	ArticleIDs  []int64 `json:"article_ids"`
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req subscribeRequest
	if !h.decode(w, r, &req) {
		return
	}
	recipient, err := h.subscriptions.Subscribe(r.Context(), leagueID, req.Email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "league not found")
		return
	case errors.Is(err, subscription.ErrEmailInvalid):
		writeError(w, http.StatusBadRequest, "invalid email")
		return
	case errors.Is(err, subscription.ErrRecipientLimit):
		writeError(w, http.StatusConflict, err.Error())
		return
	case domain.KindOf(err) == domain.KindDeliveryFailed:
		h.log.Warn().Err(err).Int64("league_id", leagueID).Msg("подписка создана, письмо не ушло")
		writeJSON(w, http.StatusAccepted, toRecipient(recipient))
		return
	case err != nil:
		h.log.Error().Err(err).Int64("league_id", leagueID).Msg("subscribe")
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	writeJSON(w, http.StatusCreated, toRecipient(recipient))
}

func (h *Handler) updateSchedule(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	league, err := h.schedules.UpdateSchedule(r.Context(), leagueID, req.Day, req.Time)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "league not found")
		return
	case errors.Is(err, schedule.ErrScheduleLocked):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.Error().Err(err).Int64("league_id", leagueID).Msg("update schedule")
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}
	resp := scheduleResponse{LeagueID: league.ID}
	if league.HasSchedule() {
		resp.Day = league.ScheduledDay.String()
		resp.Time = league.ScheduledTime.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listNewsletters(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathID(w, r)
	if !ok {
		return
	}
	list, err := h.newsletters.ListNewsletters(r.Context(), leagueID)
	if err != nil {
		h.log.Error().Err(err).Int64("league_id", leagueID).Msg("list newsletters")
		writeError(w, http.StatusInternalServerError, "failed to list newsletters")
		return
	}
	out := make([]newsletterResponse, 0, len(list))
	for _, n := range list {
		out = append(out, newsletterResponse{ID: n.ID, Week: n.Week, DocumentURL: n.DocumentURL, ArticleIDs: n.ArticleIDs})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) resendConfirmation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	recipient, err := h.subscriptions.ResendConfirmation(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "recipient not found")
		return
	case errors.Is(err, subscription.ErrResendThrottled):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, subscription.ErrAlreadyConfirmed), errors.Is(err, subscription.ErrUnsubscribed):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.Error().Err(err).Int64("recipient_id", id).Msg("resend confirmation")
		writeError(w, http.StatusBadGateway, "failed to send confirmation")
		return
	}
	writeJSON(w, http.StatusAccepted, toRecipient(recipient))
}

var unsubscribeTemplate = template.Must(template.New("unsubscribe").Parse(`<!DOCTYPE html>
<html><body style="font-family: Helvetica, Arial, sans-serif;"><h1>Unsubscribe</h1>
<p>Stop sending the weekly newsletter to {{.Email}}?</p>
<form method="post" action="/unsubscribe/{{.ID}}"><button type="submit">Unsubscribe</button></form>
</body></html>`))

func (h *Handler) unsubscribePage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writePage(w, http.StatusBadRequest, "Invalid link", "This link is not valid.")
		return
	}
	recipient, err := h.subscriptions.Recipient(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writePage(w, http.StatusNotFound, "Not found", "We could not find this subscription.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("recipient_id", id).Msg("unsubscribe page")
		writePage(w, http.StatusInternalServerError, "Something went wrong", "Please try again later.")
		return
	}
	if recipient.Unsubscribed {
		writePage(w, http.StatusOK, "Unsubscribed", fmt.Sprintf("%s no longer receives the newsletter.", recipient.Email))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = unsubscribeTemplate.Execute(w, recipient)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><body style="font-family: Helvetica, Arial, sans-serif;"><h1>{{.Title}}</h1><p>{{.Message}}</p></body></html>`))

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.recipientAction(w, r, h.subscriptions.Confirm, "Subscription confirmed", func(rc domain.Recipient) string {
		return fmt.Sprintf("%s will receive the weekly newsletter.", rc.Email)
	})
}

func (h *Handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.recipientAction(w, r, h.subscriptions.Unsubscribe, "Unsubscribed", func(rc domain.Recipient) string {
		return fmt.Sprintf("%s will no longer receive the newsletter.", rc.Email)
	})
}

func (h *Handler) recipientAction(w http.ResponseWriter, r *http.Request, action func(context.Context, int64) (domain.Recipient, error), title string, message func(domain.Recipient) string) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writePage(w, http.StatusBadRequest, "Invalid link", "This link is not valid.")
		return
	}
	recipient, err := action(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writePage(w, http.StatusNotFound, "Not found", "We could not find this subscription.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("recipient_id", id).Msg("recipient action")
		writePage(w, http.StatusInternalServerError, "Something went wrong", "Please try again later.")
		return
	}
	writePage(w, http.StatusOK, title, message(recipient))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
			return false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func toRecipient(r domain.Recipient) recipientResponse {
	return recipientResponse{ID: r.ID, Email: r.Email, Confirmed: r.Confirmed}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pageTemplate.Execute(w, struct{ Title, Message string }{title, message})
}
