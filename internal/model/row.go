package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row is one counted line of a stocktaking snapshot. Rows are never updated.
type Row struct {
	ID           int64           `json:"id"`
	OwnerID      int64           `json:"owner_id"`
	SnapshotName string          `json:"snapshot_name"`
	BatchID      string          `json:"batch_id"`
	Article      string          `json:"article"`
	DisplayName  string          `json:"display_name,omitempty"`
	GroupName    string          `json:"group_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HasDisplayNames reports whether any row carries a display name.
func HasDisplayNames(rows []Row) bool {
	for _, r := range rows {
		if r.DisplayName != "" {
			return true
		}
	}
	return false
}
