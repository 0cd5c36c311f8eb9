package controllers

import (
	"net/http"

	"github.com/angelmondragon/pouchlab-backend/api/responses"
	"github.com/angelmondragon/pouchlab-backend/api/validators"
	"github.com/angelmondragon/pouchlab-backend/internal/configurator"
	"github.com/angelmondragon/pouchlab-backend/pkg/logger"
)

// ConfiguratorOptions returns the static catalog the configurator UI renders.
func ConfiguratorOptions(svc configurator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.Options())
	}
}

func ConfiguratorProducts(svc configurator.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.Products(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": products})
	}
}

// ConfiguratorPrice prices a single configuration.
func ConfiguratorPrice(svc configurator.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input configurator.PriceInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Price(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ConfiguratorMatrix renders the plan by quantity comparison grid.
func ConfiguratorMatrix(svc configurator.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input configurator.MatrixInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Matrix(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
