package models

type User struct {
	ID      int64  `json:"id"`
	Name    string `json:"nombre"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"es_admin"`
}

type AuthResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}
