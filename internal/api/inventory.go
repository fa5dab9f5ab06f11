package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/inventory"
)

// Inventory is the part of *inventory.Service the HTTP API needs.
type Inventory interface {
	Submit(ctx context.Context, sub inventory.Submission) (int, error)
	LatestSnapshot(ctx context.Context, ownerID int64) (map[string]decimal.Decimal, error)
}

// InventoryHandler handles the WebApp form endpoints.
type InventoryHandler struct {
	Inventory Inventory
}

// saveItem accepts the quantity as either "quantity" or the older "qty".
type saveItem struct {
	Article  string           `json:"article"`
	Group    string           `json:"group"`
	Name     string           `json:"name"`
	Quantity *decimal.Decimal `json:"quantity"`
	Qty      *decimal.Decimal `json:"qty"`
}

type saveRequest struct {
	UserID   int64      `json:"user_id"`
	Filename string     `json:"filename"`
	Items    []saveItem `json:"items"`
}

type saveResponse struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// Save handles POST /save_inventory.
func (h *InventoryHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeJSON(r, &req); err != nil {
		if isBodyTooLarge(err) {
			jsonError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !authorizeUser(w, r, req.UserID) {
		return
	}

	sub := inventory.Submission{
		OwnerID:      req.UserID,
		SnapshotName: req.Filename,
		Items:        make([]inventory.Item, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		q := it.Quantity
		if q == nil {
			q = it.Qty
		}
		sub.Items = append(sub.Items, inventory.Item{
			Article:  it.Article,
			Group:    it.Group,
			Name:     it.Name,
			Quantity: q,
		})
	}

	n, err := h.Inventory.Submit(r.Context(), sub)
	if err != nil {
		writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, saveResponse{OK: true, Count: n})
}

// LoadLast handles GET /load_last_inventory.
func (h *InventoryHandler) LoadLast(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		jsonError(w, http.StatusBadRequest, "user_id must be a positive integer")
		return
	}

	if !authorizeUser(w, r, userID) {
		return
	}

	latest, err := h.Inventory.LatestSnapshot(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Quantities go out as JSON numbers with their exact decimal digits.
	result := make(map[string]json.Number, len(latest))
	for article, q := range latest {
		result[article] = json.Number(q.String())
	}
	jsonResponse(w, http.StatusOK, result)
}
