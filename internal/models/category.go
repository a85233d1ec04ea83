package models

type Category struct {
	ID               int64  `json:"id"`
	Name             string `json:"nombre"`
	Description      string `json:"descripcion"`
	EstimatedMinutes int    `json:"tiempo_estimado"`
}
