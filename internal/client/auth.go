package client

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/campe111/turnero/internal/models"
	"github.com/campe111/turnero/internal/session"
)

// Login exchanges credentials for a bearer token and stores it in the
// client's session.
func (c *Client) Login(ctx context.Context, email, password string) (models.AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.AuthResult{}, &APIError{Kind: ErrValidation, Message: "email y contraseña son obligatorios"}
	}
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, body, "auth", "login")
}

func (c *Client) Register(ctx context.Context, name, email, password string) (models.AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return models.AuthResult{}, &APIError{Kind: ErrValidation, Message: "nombre, email y contraseña son obligatorios"}
	}
	body := map[string]string{"nombre": name, "email": email, "password": password}
	return c.authenticate(ctx, body, "auth", "register")
}

func (c *Client) authenticate(ctx context.Context, body map[string]string, segments ...string) (models.AuthResult, error) {
	var result models.AuthResult
	if err := c.do(ctx, http.MethodPost, nil, body, &result, segments...); err != nil {
		return models.AuthResult{}, err
	}
	if result.AccessToken == "" {
		return models.AuthResult{}, &APIError{Kind: ErrServer, Message: "respuesta sin access_token"}
	}
	if c.session != nil {
		if err := c.session.Set(result.AccessToken, result.User); err != nil {
			c.logger.Warn("persist credentials", zap.Error(err))
		}
	}
	return result, nil
}

// Me resolves the user behind the current token and refreshes the
// session's copy of it.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, nil, nil, &user, "auth", "me"); err != nil {
		return models.User{}, err
	}
	if c.session != nil {
		if err := c.session.UpdateUser(user); err != nil {
			c.logger.Warn("persist credentials", zap.Error(err))
		}
	}
	return user, nil
}

func (c *Client) Logout() {
	if c.session != nil {
		c.session.Clear(session.ReasonLogout)
	}
}
