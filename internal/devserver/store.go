package devserver

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/campe111/turnero/internal/clock"
	"github.com/campe111/turnero/internal/lifecycle"
	"github.com/campe111/turnero/internal/models"
)

// DefaultCategories are seeded into every new store.
var DefaultCategories = []models.Category{
	{ID: 1, Name: "Atencion General", Description: "Consultas generales", EstimatedMinutes: 15},
	{ID: 2, Name: "Pagos", Description: "Realizar pagos", EstimatedMinutes: 10},
	{ID: 3, Name: "Reclamos", Description: "Presentar reclamos", EstimatedMinutes: 20},
	{ID: 4, Name: "Informes", Description: "Solicitar informes", EstimatedMinutes: 25},
}

type userRecord struct {
	user         models.User
	passwordHash []byte
}

// Store is the in-memory state of the reference backend.
type Store struct {
	mu           sync.Mutex
	clock        clock.Clock
	categories   []models.Category
	tickets      map[int64]*models.Ticket
	nextTicketID int64
	users        map[string]*userRecord
	nextUserID   int64
}

func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	return &Store{
		clock:        clk,
		categories:   append([]models.Category(nil), DefaultCategories...),
		tickets:      make(map[int64]*models.Ticket),
		nextTicketID: 1,
		users:        make(map[string]*userRecord),
		nextUserID:   1,
	}
}

func (s *Store) ListCategories() []models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Category(nil), s.categories...)
}

func (s *Store) GetCategory(id int64) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.categoryLocked(id)
}

func (s *Store) categoryLocked(id int64) (models.Category, error) {
	for _, category := range s.categories {
		if category.ID == id {
			return category, nil
		}
	}
	return models.Category{}, ErrCategoryNotFound
}

// CreateTicket numbers tickets per category per day and estimates the
// service time from the tickets already waiting in that category.
func (s *Store) CreateTicket(categoryID int64) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	category, err := s.categoryLocked(categoryID)
	if err != nil {
		return models.Ticket{}, err
	}

	now := s.clock.Now()
	number := 1
	waiting := 0
	for _, ticket := range s.tickets {
		if ticket.CategoryID != categoryID {
			continue
		}
		if sameDay(ticket.CreatedAt, now) && ticket.Number >= number {
			number = ticket.Number + 1
		}
		if ticket.State == models.StateWaiting {
			waiting++
		}
	}
	estimated := now.Add(time.Duration(waiting*category.EstimatedMinutes) * time.Minute)

	ticket := &models.Ticket{
		ID:            s.nextTicketID,
		Number:        number,
		CategoryID:    category.ID,
		CategoryName:  category.Name,
		State:         models.StateWaiting,
		CreatedAt:     now,
		EstimatedTime: &estimated,
	}
	s.tickets[ticket.ID] = ticket
	s.nextTicketID++
	return copyTicket(ticket), nil
}

func (s *Store) GetTicket(id int64) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, ErrTicketNotFound
	}
	return copyTicket(ticket), nil
}

// ListTickets returns tickets in creation order. Empty filters match all.
func (s *Store) ListTickets(state string, categoryID int64) []models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	tickets := make([]models.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		if state != "" && ticket.State != state {
			continue
		}
		if categoryID > 0 && ticket.CategoryID != categoryID {
			continue
		}
		tickets = append(tickets, copyTicket(ticket))
	}
	sort.Slice(tickets, func(i, j int) bool {
		if tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].ID < tickets[j].ID
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
	return tickets
}

func (s *Store) Transition(id int64, action string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, ErrTicketNotFound
	}
	if err := lifecycle.Apply(ticket, action, s.clock.Now()); err != nil {
		return models.Ticket{}, fmt.Errorf("%w: %s from %s", ErrInvalidState, action, ticket.State)
	}
	return copyTicket(ticket), nil
}

// Statistics counts the tickets drawn today.
func (s *Store) Statistics() models.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var stats models.Statistics
	for _, ticket := range s.tickets {
		if !sameDay(ticket.CreatedAt, now) {
			continue
		}
		stats.Total++
		switch ticket.State {
		case models.StateWaiting:
			stats.Waiting++
		case models.StateInService:
			stats.InService++
		case models.StateCompleted:
			stats.Completed++
		case models.StateCancelled:
			stats.Cancelled++
		}
	}
	return stats
}

func (s *Store) Register(name, email, password string, admin bool) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	key := normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[key]; exists {
		return models.User{}, ErrEmailTaken
	}
	user := models.User{ID: s.nextUserID, Name: name, Email: key, IsAdmin: admin}
	s.users[key] = &userRecord{user: user, passwordHash: hash}
	s.nextUserID++
	return user, nil
}

func (s *Store) Authenticate(email, password string) (models.User, error) {
	s.mu.Lock()
	record, ok := s.users[normalizeEmail(email)]
	s.mu.Unlock()
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(record.passwordHash, []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return record.user, nil
}

func (s *Store) GetUser(id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.users {
		if record.user.ID == id {
			return record.user, nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func copyTicket(ticket *models.Ticket) models.Ticket {
	out := *ticket
	out.EstimatedTime = copyTime(ticket.EstimatedTime)
	out.StartedAt = copyTime(ticket.StartedAt)
	out.CompletedAt = copyTime(ticket.CompletedAt)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
