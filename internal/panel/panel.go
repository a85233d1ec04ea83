// Package panel is the staff board behind the CLI: cached waiting and
// in-service lists, statistics, and the guarded ticket actions.
package panel

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/client"
	"github.com/campe111/turnero/internal/clock"
	"github.com/campe111/turnero/internal/lifecycle"
	"github.com/campe111/turnero/internal/models"
	"github.com/campe111/turnero/internal/query"
)

var (
	KeyTickets    = query.Key{"turnos"}
	KeyWaiting    = query.Key{"turnos", models.StateWaiting}
	KeyInService  = query.Key{"turnos", models.StateInService}
	KeyStatistics = query.Key{"estadisticas"}
	KeyCategories = query.Key{"categorias"}
)

// ErrActionInFlight is returned when the same action on the same ticket
// is submitted again before the first request finished.
var ErrActionInFlight = errors.New("action already in progress")

type API interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListTickets(ctx context.Context, filter client.TicketFilter) ([]models.Ticket, error)
	GetStatistics(ctx context.Context) (models.Statistics, error)
	CreateTicket(ctx context.Context, categoryID int64) (models.Ticket, error)
	StartTicket(ctx context.Context, id int64) (models.ActionResult, error)
	CompleteTicket(ctx context.Context, id int64) (models.ActionResult, error)
	CancelTicket(ctx context.Context, id int64) (models.ActionResult, error)
}

type Gate interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

type Options struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   *zap.Logger
	// Refreshed observes scheduler cycles; mostly for tests and watch mode.
	Refreshed func(prefixes []query.Key, err error)
}

type Panel struct {
	api       API
	gate      Gate
	logger    *zap.Logger
	cache     *query.Cache
	scheduler *query.Scheduler

	waiting    query.Query[[]models.Ticket]
	inService  query.Query[[]models.Ticket]
	stats      query.Query[models.Statistics]
	categories query.Query[[]models.Category]

	mu       sync.Mutex
	inFlight map[string]struct{}
}

type TicketView struct {
	models.Ticket
	lifecycle.Capabilities
}

// Section is one block of the board. Available is false when the last
// read failed; the view then shows "no data" instead of stale numbers.
type Section[T any] struct {
	Data      T
	Available bool
	Err       error
}

type Board struct {
	Waiting   Section[[]TicketView]
	InService Section[[]TicketView]
	Stats     Section[models.Statistics]
}

func New(api API, gate Gate, opts Options) *Panel {
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := query.NewCache(opts.Clock, interval, logger)

	p := &Panel{
		api:      api,
		gate:     gate,
		logger:   logger,
		cache:    cache,
		inFlight: make(map[string]struct{}),
	}
	p.waiting = query.Register(cache, KeyWaiting, func(ctx context.Context) ([]models.Ticket, error) {
		return api.ListTickets(ctx, client.TicketFilter{State: models.StateWaiting})
	})
	p.inService = query.Register(cache, KeyInService, func(ctx context.Context) ([]models.Ticket, error) {
		return api.ListTickets(ctx, client.TicketFilter{State: models.StateInService})
	})
	p.stats = query.Register(cache, KeyStatistics, api.GetStatistics)
	p.categories = query.Register(cache, KeyCategories, api.ListCategories)
	p.scheduler = query.NewScheduler(cache, query.SchedulerOptions{
		Interval:  interval,
		Clock:     opts.Clock,
		Logger:    logger,
		Refreshed: opts.Refreshed,
	})
	return p
}

// Run keeps the board fresh until ctx is done.
func (p *Panel) Run(ctx context.Context) error {
	return p.scheduler.Run(ctx)
}

// Refresh refetches every section now.
func (p *Panel) Refresh(ctx context.Context) error {
	return p.cache.Refresh(ctx)
}

func (p *Panel) Board(ctx context.Context) Board {
	var board Board
	waiting, err := p.waiting.Get(ctx)
	board.Waiting = ticketSection(waiting, err)
	inService, err := p.inService.Get(ctx)
	board.InService = ticketSection(inService, err)
	stats, err := p.stats.Get(ctx)
	board.Stats = Section[models.Statistics]{Data: stats, Available: err == nil, Err: err}
	return board
}

func (p *Panel) Categories(ctx context.Context) Section[[]models.Category] {
	categories, err := p.categories.Get(ctx)
	if err != nil {
		return Section[[]models.Category]{Data: []models.Category{}, Err: err}
	}
	return Section[[]models.Category]{Data: categories, Available: true}
}

func ticketSection(tickets []models.Ticket, err error) Section[[]TicketView] {
	if err != nil {
		return Section[[]TicketView]{Data: []TicketView{}, Err: err}
	}
	views := make([]TicketView, 0, len(tickets))
	for _, ticket := range tickets {
		views = append(views, TicketView{Ticket: ticket, Capabilities: lifecycle.CapabilitiesFor(ticket)})
	}
	return Section[[]TicketView]{Data: views, Available: true}
}

// Take draws a ticket. It needs no login, like the public kiosk page.
func (p *Panel) Take(ctx context.Context, categoryID int64) (models.Ticket, error) {
	release, err := p.acquire("take", categoryID)
	if err != nil {
		return models.Ticket{}, err
	}
	defer release()

	ticket, err := p.api.CreateTicket(ctx, categoryID)
	if err != nil {
		return models.Ticket{}, err
	}
	p.scheduler.InvalidateNow(KeyTickets, KeyStatistics)
	return ticket, nil
}

func (p *Panel) Start(ctx context.Context, id int64) (models.ActionResult, error) {
	return p.mutate(ctx, lifecycle.ActionStart, id, p.api.StartTicket)
}

func (p *Panel) Complete(ctx context.Context, id int64) (models.ActionResult, error) {
	return p.mutate(ctx, lifecycle.ActionComplete, id, p.api.CompleteTicket)
}

func (p *Panel) Cancel(ctx context.Context, id int64) (models.ActionResult, error) {
	return p.mutate(ctx, lifecycle.ActionCancel, id, p.api.CancelTicket)
}

// InFlight reports whether action on id is waiting for the backend, so a
// view can disable the matching control.
func (p *Panel) InFlight(action string, id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, busy := p.inFlight[flightKey(action, id)]
	return busy
}

func (p *Panel) mutate(ctx context.Context, action string, id int64, call func(context.Context, int64) (models.ActionResult, error)) (models.ActionResult, error) {
	if err := p.requireAdmin(); err != nil {
		return models.ActionResult{}, err
	}
	release, err := p.acquire(action, id)
	if err != nil {
		return models.ActionResult{}, err
	}
	defer release()

	result, err := call(ctx, id)
	switch {
	case err == nil:
		p.scheduler.InvalidateNow(KeyTickets, KeyStatistics)
		return result, nil
	case errors.Is(err, client.ErrConflict), errors.Is(err, client.ErrNotFound):
		// The board showed a state the backend no longer has.
		p.scheduler.InvalidateNow(KeyTickets, KeyStatistics)
	}
	p.logger.Info("ticket action rejected", zap.String("action", action), zap.Int64("ticket_id", id), zap.Error(err))
	return models.ActionResult{}, err
}

func (p *Panel) requireAdmin() error {
	if p.gate == nil || !p.gate.IsAuthenticated() {
		return &client.APIError{Kind: client.ErrAuthentication, Message: "Debes iniciar sesión"}
	}
	if !p.gate.IsAdmin() {
		return &client.APIError{Kind: client.ErrForbidden, Message: "Acceso denegado. Debes ser administrador."}
	}
	return nil
}

func (p *Panel) acquire(action string, id int64) (func(), error) {
	key := flightKey(action, id)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key]; busy {
		return nil, ErrActionInFlight
	}
	p.inFlight[key] = struct{}{}
	return func() {
		p.mu.Lock()
		delete(p.inFlight, key)
		p.mu.Unlock()
	}, nil
}

func flightKey(action string, id int64) string {
	return action + ":" + strconv.FormatInt(id, 10)
}
