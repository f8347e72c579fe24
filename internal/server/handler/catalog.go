package handler

import (
	"context"
	"net/http"

	"github.com/alanyoungcy/liqguard/internal/domain"
)

// MarketsSource supplies the market catalog.
type MarketsSource interface {
	Markets() domain.Markets
}

// SKULister supplies the SKU catalog.
type SKULister interface {
	List(ctx context.Context) []domain.SKU
}

// CatalogHandler serves the selection catalogs.
type CatalogHandler struct {
	markets MarketsSource
	skus    SKULister
}

// NewCatalogHandler creates a CatalogHandler.
func NewCatalogHandler(markets MarketsSource, skus SKULister) *CatalogHandler {
	return &CatalogHandler{markets: markets, skus: skus}
}

// Markets returns exchanges, pairs and environments.
// GET /api/catalog/markets
func (h *CatalogHandler) Markets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.markets.Markets())
}

// SKUs returns the SKU catalog, never empty.
// GET /api/catalog/skus
func (h *CatalogHandler) SKUs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"skus": h.skus.List(r.Context())})
}
