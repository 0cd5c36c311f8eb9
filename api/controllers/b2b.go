package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pouchlab-backend/api/responses"
	"github.com/angelmondragon/pouchlab-backend/api/validators"
	"github.com/angelmondragon/pouchlab-backend/internal/b2b"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
)

// B2BPricer resolves a customer specific price.
type B2BPricer interface {
	CalculatePrice(ctx context.Context, customerID, productID uuid.UUID, basePrice decimal.Decimal, quantity int) (*b2b.PriceResolution, error)
}

type b2bPriceRequest struct {
	CustomerID uuid.UUID       `json:"customer_id" validate:"required"`
	ProductID  uuid.UUID       `json:"product_id" validate:"required"`
	BasePrice  decimal.Decimal `json:"base_price"`
	Quantity   int             `json:"quantity" validate:"required,gt=0"`
}

// B2BPrice applies group, price list and volume discounts to a list price.
func B2BPrice(pricer B2BPricer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body b2bPriceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithCustomerID(r.Context(), body.CustomerID.String())
		resolution, err := pricer.CalculatePrice(ctx, body.CustomerID, body.ProductID, body.BasePrice, body.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolution)
	}
}
