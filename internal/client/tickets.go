package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/campe111/turnero/internal/lifecycle"
	"github.com/campe111/turnero/internal/models"
)

type TicketFilter struct {
	State      string
	CategoryID int64
}

// ListTickets returns the tickets matching filter, or an empty slice when
// none match. The filter is re-applied to the response so callers can
// rely on it.
func (c *Client) ListTickets(ctx context.Context, filter TicketFilter) ([]models.Ticket, error) {
	if filter.State != "" && !lifecycle.ValidState(filter.State) {
		return nil, &APIError{Kind: ErrValidation, Message: "estado desconocido: " + filter.State}
	}
	query := url.Values{}
	if filter.State != "" {
		query.Set("estado", filter.State)
	}
	if filter.CategoryID > 0 {
		query.Set("categoria_id", strconv.FormatInt(filter.CategoryID, 10))
	}

	var tickets []models.Ticket
	if err := c.do(ctx, http.MethodGet, query, nil, &tickets, "turnos"); err != nil {
		return nil, err
	}

	matched := make([]models.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if filter.State != "" && ticket.State != filter.State {
			continue
		}
		if filter.CategoryID > 0 && ticket.CategoryID != filter.CategoryID {
			continue
		}
		matched = append(matched, ticket)
	}
	return matched, nil
}

func (c *Client) GetTicket(ctx context.Context, id int64) (models.Ticket, error) {
	if id <= 0 {
		return models.Ticket{}, &APIError{Kind: ErrNotFound, Message: "turno inexistente"}
	}
	var ticket models.Ticket
	err := c.do(ctx, http.MethodGet, nil, nil, &ticket, "turnos", strconv.FormatInt(id, 10))
	return ticket, err
}

// CreateTicket draws a new ticket for categoryID. An unknown category is
// reported as ErrValidation whether the backend answers 400 or 404.
func (c *Client) CreateTicket(ctx context.Context, categoryID int64) (models.Ticket, error) {
	if categoryID <= 0 {
		return models.Ticket{}, &APIError{Kind: ErrValidation, Message: "categoría inválida"}
	}
	body := struct {
		CategoryID int64 `json:"categoria_id"`
	}{CategoryID: categoryID}

	var ticket models.Ticket
	err := c.do(ctx, http.MethodPost, nil, body, &ticket, "turnos")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Kind == ErrNotFound {
			apiErr.Kind = ErrValidation
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (c *Client) StartTicket(ctx context.Context, id int64) (models.ActionResult, error) {
	return c.transition(ctx, "iniciar_turno", id)
}

func (c *Client) CompleteTicket(ctx context.Context, id int64) (models.ActionResult, error) {
	return c.transition(ctx, "completar_turno", id)
}

func (c *Client) CancelTicket(ctx context.Context, id int64) (models.ActionResult, error) {
	return c.transition(ctx, "cancelar_turno", id)
}

func (c *Client) transition(ctx context.Context, endpoint string, id int64) (models.ActionResult, error) {
	if id <= 0 {
		return models.ActionResult{}, &APIError{Kind: ErrNotFound, Message: "turno inexistente"}
	}
	var result models.ActionResult
	if err := c.do(ctx, http.MethodPost, nil, nil, &result, endpoint, strconv.FormatInt(id, 10)); err != nil {
		return models.ActionResult{}, err
	}
	return result, nil
}
