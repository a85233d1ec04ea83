package models

// Statistics is a point-in-time count of tickets per state, computed by
// the backend on every fetch.
type Statistics struct {
	Total     int `json:"total"`
	Waiting   int `json:"esperando"`
	InService int `json:"en_atencion"`
	Completed int `json:"completados"`
	Cancelled int `json:"cancelados"`
}
