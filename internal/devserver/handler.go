package devserver

import (
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/lifecycle"
	"github.com/campe111/turnero/internal/models"
)

type Handler struct {
	store  *Store
	tokens *TokenIssuer
	logger *zap.Logger
}

type createTicketRequest struct {
	CategoryID int64 `json:"categoria_id"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(store *Store, tokens *TokenIssuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, tokens: tokens, logger: logger}
}

// SeedAdmin creates the default staff account unless the email is
// already registered.
func (h *Handler) SeedAdmin(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	_, err := h.store.Register("Administrador", email, password, true)
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/debug/vars", expvar.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categorias", h.handleListCategories)
		r.Get("/categorias/{id}", h.handleGetCategory)
		r.Get("/turnos", h.handleListTickets)
		r.Get("/turnos/{id}", h.handleGetTicket)
		r.Post("/turnos", h.handleCreateTicket)
		r.Get("/estadisticas", h.handleStatistics)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/iniciar_turno/{id}", h.handleTransition(lifecycle.ActionStart, "iniciado"))
			r.Post("/completar_turno/{id}", h.handleTransition(lifecycle.ActionComplete, "completado"))
			r.Post("/cancelar_turno/{id}", h.handleTransition(lifecycle.ActionCancel, "cancelado"))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.handleLogin)
			r.Post("/register", h.handleRegister)
			r.With(h.requireUser).Get("/me", h.handleMe)
		})
	})
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.ListCategories())
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	category, err := h.store.GetCategory(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *Handler) handleListTickets(w http.ResponseWriter, r *http.Request) {
	state := strings.TrimSpace(r.URL.Query().Get("estado"))
	if state != "" && !lifecycle.ValidState(state) {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "estado desconocido")
		return
	}
	var categoryID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("categoria_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "categoria_id must be a positive integer")
			return
		}
		categoryID = parsed
	}
	writeJSON(w, http.StatusOK, h.store.ListTickets(state, categoryID))
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ticket, err := h.store.GetTicket(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleCreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.CategoryID <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "categoria_id is required")
		return
	}

	ticket, err := h.store.CreateTicket(req.CategoryID)
	if errors.Is(err, ErrCategoryNotFound) {
		writeError(w, r, http.StatusBadRequest, "invalid_category", "Categoría inválida")
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("ticket created",
		zap.Int64("ticket_id", ticket.ID),
		zap.Int("numero", ticket.Number),
		zap.Int64("categoria_id", ticket.CategoryID),
	)
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *Handler) handleTransition(action, verb string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		ticket, err := h.store.Transition(id, action)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.logger.Info("ticket transition",
			zap.Int64("ticket_id", ticket.ID),
			zap.String("action", action),
			zap.String("estado", ticket.State),
		)
		writeJSON(w, http.StatusOK, models.ActionResult{
			Success: true,
			Message: fmt.Sprintf("Turno #%d %s", ticket.Number, verb),
			Ticket:  &ticket,
		})
	}
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Statistics())
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}
	user, err := h.store.Authenticate(req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeAuth(w, r, http.StatusOK, user)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "nombre, email and password are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "email is not valid")
		return
	}
	user, err := h.store.Register(req.Name, req.Email, req.Password, false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeAuth(w, r, http.StatusCreated, user)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) writeAuth(w http.ResponseWriter, r *http.Request, status int, user models.User) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, status, models.AuthResult{AccessToken: token, User: user})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, r, status, code, msg)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return 0, false
	}
	return id, true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrCategoryNotFound):
		return http.StatusNotFound, "category_not_found", "category not found"
	case errors.Is(err, ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict, "invalid_state", "ticket state does not allow this action"
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict, "email_taken", "El email ya está registrado"
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "Credenciales inválidas"
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", "user not found"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func requestIDFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Request-ID"))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID := requestIDFromRequest(r)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
