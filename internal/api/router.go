package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mortgagewatch/internal/pipeline"
	"mortgagewatch/internal/promotion"
	"mortgagewatch/internal/quote"
	"mortgagewatch/internal/store"
)

type RateRowRequest struct {
	Ratio    int             `json:"ratio"`
	Years    int             `json:"years"`
	Interest decimal.Decimal `json:"interest"`
}

type QuoteRequest struct {
	BankID string           `json:"bank_id"`
	Name   string           `json:"name"`
	AsOf   int64            `json:"as_of"`
	Rows   []RateRowRequest `json:"rows"`
}

func RegisterRoutes(h *server.Hertz, pipe *pipeline.Pipeline, st store.Store) {
	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	h.POST("/api/v1/quotes", func(ctx context.Context, c *app.RequestContext) {
		var req QuoteRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "invalid json body",
			})
			return
		}
		bankID, err := uuid.Parse(req.BankID)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "bank_id is not a valid uuid",
			})
			return
		}

		q := quote.Quote{
			BankID: bankID,
			Name:   req.Name,
			AsOf:   req.AsOf,
		}
		for _, r := range req.Rows {
			q.Rows = append(q.Rows, quote.RateRow{Ratio: r.Ratio, Years: r.Years, Rate: r.Interest})
		}

		stored, created, err := pipe.SubmitQuote(ctx, q)
		if err != nil {
			if errors.Is(err, promotion.ErrMalformed) {
				c.JSON(http.StatusBadRequest, map[string]any{
					"ok":    false,
					"error": err.Error(),
				})
				return
			}
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, map[string]any{
			"ok":    true,
			"quote": stored,
		})
	})

	h.GET("/api/v1/banks/:id/quotes", func(_ context.Context, c *app.RequestContext) {
		bankID, ok := parseBankID(c)
		if !ok {
			return
		}
		items, err := st.QuoteHistory(bankID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"items": items,
		})
	})

	h.GET("/api/v1/banks/:id/quotes/latest", func(_ context.Context, c *app.RequestContext) {
		bankID, ok := parseBankID(c)
		if !ok {
			return
		}
		q, err := st.GetCurrent(bankID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, map[string]any{
					"ok":    false,
					"error": "no current quote for bank",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":    true,
			"quote": q,
		})
	})

	h.GET("/api/v1/banks/:id/subscribers/:user", func(_ context.Context, c *app.RequestContext) {
		bankID, ok := parseBankID(c)
		if !ok {
			return
		}
		user := c.Param("user")
		if user == "" {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "user is required",
			})
			return
		}
		sub, err := st.GetSubscriber(bankID, user)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, map[string]any{
					"ok":    false,
					"error": "subscriber not found",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":         true,
			"subscriber": sub,
		})
	})
}

func parseBankID(c *app.RequestContext) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "the 'id' url path parameter is not a valid uuid",
		})
		return uuid.Nil, false
	}
	return id, true
}
