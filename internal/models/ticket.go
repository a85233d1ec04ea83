package models

import "time"

type Ticket struct {
	ID            int64      `json:"id"`
	Number        int        `json:"numero"`
	CategoryID    int64      `json:"categoria_id"`
	CategoryName  string     `json:"categoria"`
	State         string     `json:"estado"`
	CreatedAt     time.Time  `json:"fecha_creacion"`
	EstimatedTime *time.Time `json:"hora_estimada"`
	StartedAt     *time.Time `json:"hora_inicio"`
	CompletedAt   *time.Time `json:"hora_fin"`
}

// Wire values of the estado field.
const (
	StateWaiting   = "esperando"
	StateInService = "en_atencion"
	StateCompleted = "completado"
	StateCancelled = "cancelado"
)

// ActionResult is the backend answer to start, complete and cancel.
// Ticket is optional; older backends only send success and mensaje.
type ActionResult struct {
	Success bool    `json:"success"`
	Message string  `json:"mensaje"`
	Ticket  *Ticket `json:"turno,omitempty"`
}
