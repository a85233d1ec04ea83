package client

import (
	"context"
	"net/http"

	"github.com/campe111/turnero/internal/models"
)

func (c *Client) GetStatistics(ctx context.Context) (models.Statistics, error) {
	var stats models.Statistics
	err := c.do(ctx, http.MethodGet, nil, nil, &stats, "estadisticas")
	return stats, err
}
