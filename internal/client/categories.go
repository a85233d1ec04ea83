package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/campe111/turnero/internal/models"
)

func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.do(ctx, http.MethodGet, nil, nil, &categories, "categorias"); err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}

func (c *Client) GetCategory(ctx context.Context, id int64) (models.Category, error) {
	if id <= 0 {
		return models.Category{}, &APIError{Kind: ErrNotFound, Message: "categoría inexistente"}
	}
	var category models.Category
	err := c.do(ctx, http.MethodGet, nil, nil, &category, "categorias", strconv.FormatInt(id, 10))
	return category, err
}
