package bookingflow

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/service-marketplace/internal/booking"
	"github.com/wolfman30/service-marketplace/internal/catalog"
	"github.com/wolfman30/service-marketplace/internal/drafts"
	"github.com/wolfman30/service-marketplace/internal/location"
	"github.com/wolfman30/service-marketplace/internal/promotions"
	"github.com/wolfman30/service-marketplace/internal/selection"
	"github.com/wolfman30/service-marketplace/internal/session"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler exposes the booking flows over JSON.
type Handler struct {
	providers  *ProviderFlow
	businesses *BusinessFlow
	logger     *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("bookingflow: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		providers:  NewProviderFlow(svc),
		businesses: NewBusinessFlow(svc),
		logger:     logger,
	}
}

// Routes mounts the draft endpoints. submit is an optional middleware applied to
// the submit route only.
func (h *Handler) Routes(r chi.Router, submit func(http.Handler) http.Handler) {
	r.Post("/providers/{providerID}/drafts", h.OpenProviderDraft)
	r.Post("/businesses/{businessID}/drafts", h.OpenBusinessDraft)
	r.Get("/businesses/{businessID}/catalog", h.GetCatalog)
	r.Route("/drafts/{draftID}", func(r chi.Router) {
		r.Get("/", h.GetDraft)
		r.Delete("/", h.CancelDraft)
		r.Post("/items", h.AddItem)
		r.Delete("/items/{kind}/{itemID}", h.RemoveItem)
		r.Put("/delivery-mode", h.SetDeliveryMode)
		r.Put("/address", h.SetAddress)
		r.Put("/subject", h.ChangeSubject)
		r.Put("/promotion", h.ApplyPromotion)
		r.Delete("/promotion", h.ClearPromotion)
		r.Put("/schedule", h.SetSchedule)
		r.Put("/contact", h.SetContact)
		r.Put("/notes", h.SetNotes)
		if submit != nil {
			r.With(submit).Post("/submit", h.Submit)
		} else {
			r.Post("/submit", h.Submit)
		}
	})
}

type openDraftRequest struct {
	DeliveryMode  string          `json:"delivery_mode"`
	Location      location.Inputs `json:"location"`
	PromotionID   string          `json:"promotion_id"`
	PromotionCode string          `json:"promotion_code"`
	Contact       contactRequest  `json:"contact"`
}

type contactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (h *Handler) OpenProviderDraft(w http.ResponseWriter, r *http.Request) {
	actor, opts, ok := h.openRequest(w, r)
	if !ok {
		return
	}
	d, err := h.providers.Open(r.Context(), chi.URLParam(r, "providerID"), actor, opts)
	if err != nil {
		h.writeServiceError(w, "open provider draft", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) OpenBusinessDraft(w http.ResponseWriter, r *http.Request) {
	actor, opts, ok := h.openRequest(w, r)
	if !ok {
		return
	}
	d, err := h.businesses.Open(r.Context(), chi.URLParam(r, "businessID"), actor, opts)
	if err != nil {
		h.writeServiceError(w, "open business draft", err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handler) openRequest(w http.ResponseWriter, r *http.Request) (session.Actor, OpenOptions, bool) {
	var req openDraftRequest
	if !decodeJSON(w, r, &req, true) {
		return session.Actor{}, OpenOptions{}, false
	}
	opts := OpenOptions{
		Inputs:    req.Location,
		Promotion: promotions.Ref{ID: strings.TrimSpace(req.PromotionID), Code: strings.TrimSpace(req.PromotionCode)},
	}
	if strings.TrimSpace(req.DeliveryMode) != "" {
		mode, err := location.ParseDeliveryMode(req.DeliveryMode)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return session.Actor{}, OpenOptions{}, false
		}
		opts.Mode = mode
	}
	return actorWithContact(requestActor(r), req.Contact), opts, true
}

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	subject := booking.Subject{Kind: booking.SubjectBusiness, BusinessID: chi.URLParam(r, "businessID")}
	if providerID := strings.TrimSpace(r.URL.Query().Get("provider_id")); providerID != "" {
		subject = booking.Subject{Kind: booking.SubjectProvider, ProviderID: providerID, BusinessID: subject.BusinessID}
	}
	view, err := h.businesses.Catalog(r.Context(), subject)
	if err != nil {
		h.writeServiceError(w, "catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) CancelDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	if err := h.businesses.Cancel(r.Context(), d.ID); err != nil {
		h.writeServiceError(w, "cancel draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	kind, err := selection.ParseKind(req.Kind)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, "add item")(h.businesses.AddItem(r.Context(), d.ID, kind, strings.TrimSpace(req.ID)))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	kind, err := selection.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, "remove item")(h.businesses.RemoveItem(r.Context(), d.ID, kind, chi.URLParam(r, "itemID")))
}

func (h *Handler) SetDeliveryMode(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req struct {
		DeliveryMode string `json:"delivery_mode"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}
	mode, err := location.ParseDeliveryMode(req.DeliveryMode)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, "set delivery mode")(h.businesses.SetDeliveryMode(r.Context(), d.ID, mode))
}

func (h *Handler) SetAddress(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var addr location.Address
	if !decodeJSON(w, r, &addr, false) {
		return
	}
	h.respond(w, "set address")(h.businesses.SetManualAddress(r.Context(), d.ID, &addr))
}

func (h *Handler) ChangeSubject(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req struct {
		ProviderID string `json:"provider_id"`
		BusinessID string `json:"business_id"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}
	subject := booking.Subject{Kind: booking.SubjectBusiness, BusinessID: req.BusinessID}
	if strings.TrimSpace(req.ProviderID) != "" {
		subject = booking.Subject{Kind: booking.SubjectProvider, ProviderID: req.ProviderID, BusinessID: req.BusinessID}
	}
	h.respond(w, "change subject")(h.businesses.ChangeSubject(r.Context(), d.ID, subject))
}

func (h *Handler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req struct {
		PromotionID   string `json:"promotion_id"`
		PromotionCode string `json:"promotion_code"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}
	h.respond(w, "apply promotion")(h.businesses.ApplyPromotion(r.Context(), d.ID, promotions.Ref{ID: req.PromotionID, Code: req.PromotionCode}))
}

func (h *Handler) ClearPromotion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	h.respond(w, "clear promotion")(h.businesses.ClearPromotion(r.Context(), d.ID))
}

func (h *Handler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req struct {
		PreferredDate string `json:"preferred_date"`
		PreferredTime string `json:"preferred_time"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}
	h.respond(w, "set schedule")(h.businesses.SetSchedule(r.Context(), d.ID, req.PreferredDate, req.PreferredTime))
}

func (h *Handler) SetContact(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req contactRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	h.respond(w, "set contact")(h.businesses.SetContact(r.Context(), d.ID, req.Name, req.Email, req.Phone))
}

func (h *Handler) SetNotes(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if !decodeJSON(w, r, &req, false) {
		return
	}
	h.respond(w, "set notes")(h.businesses.SetNotes(r.Context(), d.ID, req.Notes))
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	d, ok := h.authorize(w, r)
	if !ok {
		return
	}
	res, err := h.businesses.Submit(r.Context(), d.ID)
	if err != nil {
		h.writeServiceError(w, "submit draft", err)
		return
	}
	writeJSON(w, submitStatus(res.Outcome), res)
}

func submitStatus(outcome booking.Outcome) int {
	switch outcome {
	case booking.OutcomeSuccess:
		return http.StatusCreated
	case booking.OutcomeValidationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (*booking.Draft, bool) {
	d, err := h.businesses.Authorize(r.Context(), chi.URLParam(r, "draftID"), requestActor(r))
	if err != nil {
		h.writeServiceError(w, "load draft", err)
		return nil, false
	}
	return d, true
}

func (h *Handler) respond(w http.ResponseWriter, op string) func(*booking.Draft, error) {
	return func(d *booking.Draft, err error) {
		if err != nil {
			h.writeServiceError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, drafts.ErrDraftNotFound):
		jsonError(w, http.StatusNotFound, "draft not found")
	case errors.Is(err, catalog.ErrNotFound):
		jsonError(w, http.StatusNotFound, "catalog entry not found")
	case errors.Is(err, ErrForbidden):
		jsonError(w, http.StatusForbidden, "draft belongs to another customer")
	case errors.Is(err, booking.ErrCommitInFlight):
		jsonError(w, http.StatusConflict, "a submission for this draft is already in progress")
	case errors.Is(err, ErrSubjectMismatch), errors.Is(err, catalog.ErrAddonNotEligible):
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidInput):
		jsonError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("booking flow request failed", "op", op, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// requestActor is the session actor, or an anonymous guest.
func requestActor(r *http.Request) session.Actor {
	actor, _ := session.ActorFromContext(r.Context())
	return actor
}

// actorWithContact fills blank contact fields from the request body.
func actorWithContact(actor session.Actor, c contactRequest) session.Actor {
	contact := session.Guest(c.Name, c.Email, c.Phone)
	if actor.Name == "" {
		actor.Name = contact.Name
	}
	if actor.Email == "" {
		actor.Email = contact.Email
	}
	if actor.Phone == "" {
		actor.Phone = contact.Phone
	}
	return actor
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
