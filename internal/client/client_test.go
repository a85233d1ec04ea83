package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campe111/turnero/internal/clock"
	"github.com/campe111/turnero/internal/models"
	"github.com/campe111/turnero/internal/session"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sess, err := session.New(session.NewMemoryStore(), clock.Real(), nil)
	require.NoError(t, err)
	c, err := New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, Session: sess})
	require.NoError(t, err)
	return c, sess
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}

func TestListTicketsSendsFiltersAndHeaders(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/turnos", r.URL.Path)
		assert.Equal(t, models.StateWaiting, r.URL.Query().Get("estado"))
		assert.Equal(t, "2", r.URL.Query().Get("categoria_id"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, []models.Ticket{
			{ID: 1, Number: 4, CategoryID: 2, State: models.StateWaiting},
			{ID: 2, Number: 5, CategoryID: 2, State: models.StateInService},
		})
	})
	require.NoError(t, sess.Set("tok-1", models.User{ID: 1, IsAdmin: true}))

	tickets, err := c.ListTickets(context.Background(), TicketFilter{State: models.StateWaiting, CategoryID: 2})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(1), tickets[0].ID)
}

func TestListTicketsEmptyIsNotAnError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("null"))
	})
	tickets, err := c.ListTickets(context.Background(), TicketFilter{State: models.StateCancelled})
	require.NoError(t, err)
	assert.NotNil(t, tickets)
	assert.Empty(t, tickets)
}

func TestListTicketsAcceptsZonelessTimestamps(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"numero":4,"categoria_id":1,"categoria":"Atencion General","estado":"esperando",
			"fecha_creacion":"2024-05-01T10:00:00.123456","hora_estimada":"2024-05-01T10:30:00",
			"hora_inicio":null,"hora_fin":null}]`))
	})
	tickets, err := c.ListTickets(context.Background(), TicketFilter{State: models.StateWaiting})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, 4, tickets[0].Number)
	assert.Equal(t, 2024, tickets[0].CreatedAt.Year())
	require.NotNil(t, tickets[0].EstimatedTime)
	assert.Equal(t, 30, tickets[0].EstimatedTime.Minute())
	assert.Nil(t, tickets[0].StartedAt)
}

func TestListTicketsRejectsUnknownState(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})
	_, err := c.ListTickets(context.Background(), TicketFilter{State: "waiting"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestCreateTicketDecodesTicket(t *testing.T) {
	estimated := time.Date(2026, 5, 4, 10, 15, 0, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/turnos", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]int64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(1), body["categoria_id"])
		writeJSON(w, http.StatusCreated, models.Ticket{
			ID: 10, Number: 1, CategoryID: 1, CategoryName: "Atencion General",
			State: models.StateWaiting, EstimatedTime: &estimated,
		})
	})

	ticket, err := c.CreateTicket(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.StateWaiting, ticket.State)
	assert.Equal(t, 1, ticket.Number)
	require.NotNil(t, ticket.EstimatedTime)
	assert.True(t, estimated.Equal(*ticket.EstimatedTime))
}

func TestCreateTicketUnknownCategoryIsValidation(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, map[string]string{"error": "Categoría no encontrada"})
		})
		_, err := c.CreateTicket(context.Background(), 99)
		require.ErrorIs(t, err, ErrValidation, "status %d", status)
		assert.Equal(t, "Categoría no encontrada", Describe(err))
	}
}

func TestTransitionsHitEndpoints(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		writeJSON(w, http.StatusOK, models.ActionResult{Success: true, Message: "ok"})
	})
	ctx := context.Background()

	_, err := c.StartTicket(ctx, 3)
	require.NoError(t, err)
	_, err = c.CompleteTicket(ctx, 3)
	require.NoError(t, err)
	res, err := c.CancelTicket(ctx, 4)
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.Equal(t, []string{"/api/iniciar_turno/3", "/api/completar_turno/3", "/api/cancelar_turno/4"}, paths)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   error
		code   string
		msg    string
	}{
		{http.StatusConflict, `{"request_id":"r","error":{"code":"invalid_state","message":"ticket state does not allow this action"}}`, ErrConflict, "invalid_state", "ticket state does not allow this action"},
		{http.StatusNotFound, `{"error":"Turno no encontrado"}`, ErrNotFound, "", "Turno no encontrado"},
		{http.StatusForbidden, `{"error":"Acceso denegado"}`, ErrForbidden, "", "Acceso denegado"},
		{http.StatusBadRequest, `not json`, ErrValidation, "", ""},
		{http.StatusInternalServerError, `{"error":"boom"}`, ErrServer, "", "boom"},
		{http.StatusTeapot, ``, ErrServer, "", ""},
	}
	for _, tt := range cases {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(tt.body))
		})
		_, err := c.CompleteTicket(context.Background(), 1)
		require.ErrorIs(t, err, tt.kind, "status %d", tt.status)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, tt.status, apiErr.Status)
		assert.Equal(t, tt.code, apiErr.Code)
		assert.Equal(t, tt.msg, apiErr.Message)
		assert.NotEmpty(t, apiErr.RequestID)
	}
}

func TestMutationsAreNotRetried(t *testing.T) {
	var hits int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.StartTicket(context.Background(), 1)
	require.ErrorIs(t, err, ErrServer)
	_, err = c.CreateTicket(context.Background(), 1)
	require.ErrorIs(t, err, ErrServer)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestUnauthorizedClearsSession(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token expirado"})
	})
	require.NoError(t, sess.Set("expired", models.User{ID: 1, IsAdmin: true}))
	var cleared []string
	sess.OnCleared(func(reason string) { cleared = append(cleared, reason) })

	_, err := c.GetStatistics(context.Background())
	require.ErrorIs(t, err, ErrAuthentication)
	assert.Empty(t, sess.Token())
	assert.False(t, sess.IsAuthenticated())
	assert.Equal(t, []string{session.ReasonUnauthorized}, cleared)
}

func TestNetworkErrorKind(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.ListCategories(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, "No se pudo contactar al servidor", Describe(err))
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	_, err = c.GetTicket(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestLoginStoresToken(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "admin@turnero.com", body["email"])
		writeJSON(w, http.StatusOK, models.AuthResult{
			AccessToken: "tok-9",
			User:        models.User{ID: 1, Name: "Administrador", Email: "admin@turnero.com", IsAdmin: true},
		})
	})

	res, err := c.Login(context.Background(), " admin@turnero.com ", "admin123")
	require.NoError(t, err)
	assert.Equal(t, "tok-9", res.AccessToken)
	assert.Equal(t, "tok-9", sess.Token())
	assert.True(t, sess.IsAdmin())

	c.Logout()
	assert.False(t, sess.IsAuthenticated())
}

func TestLoginValidatesInput(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.Login(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.Register(context.Background(), "Ana", "ana@example.com", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMeUpdatesSessionUser(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/me", r.URL.Path)
		writeJSON(w, http.StatusOK, models.User{ID: 5, Name: "Ana", Email: "ana@example.com"})
	})
	require.NoError(t, sess.Set("tok", models.User{ID: 5}))

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Name)
	cached, ok := sess.User()
	require.True(t, ok)
	assert.Equal(t, "ana@example.com", cached.Email)
}

func TestDescribeFallsBackPerKind(t *testing.T) {
	assert.Equal(t, "El estado actual del turno no permite esta acción", Describe(&APIError{Kind: ErrConflict}))
	assert.Equal(t, "Error inesperado del servidor", Describe(&APIError{Kind: ErrServer, Message: "stack trace"}))
	assert.Equal(t, "", Describe(nil))
}
