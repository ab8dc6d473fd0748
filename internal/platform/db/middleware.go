package db

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolMiddleware puts the pool into every request context so repositories
// and RunInTx can reach the database.
func PoolMiddleware(pool *pgxpool.Pool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(WithPool(req.Context(), pool)))
			return next(c)
		}
	}
}
