// Package inventory implements snapshot submission, reading, export and the
// admin operations on top of the inventory store.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/export"
	"github.com/erazemk/popis/internal/metrics"
	"github.com/erazemk/popis/internal/model"
	"github.com/erazemk/popis/internal/store"
	"github.com/erazemk/popis/internal/validator"
)

// DateLayout is the accepted format of FilterByDate.
const DateLayout = "2006-01-02"

// MaxQuantityScale is the number of decimal places every dialect stores exactly.
const MaxQuantityScale = 6

// Item is one counted article of a submission.
type Item struct {
	Article  string           `json:"article" validate:"notblank"`
	Group    string           `json:"group" validate:"notblank"`
	Name     string           `json:"name"`
	Quantity *decimal.Decimal `json:"quantity" validate:"required"`
}

// Submission is one stocktaking count sent from the WebApp form.
type Submission struct {
	OwnerID      int64  `json:"user_id" validate:"gt=0"`
	SnapshotName string `json:"filename" validate:"notblank,max=200"`
	Items        []Item `json:"items" validate:"min=1,dive"`
}

// Service exposes the inventory operations. It is safe for concurrent use.
type Service struct {
	db         *db.DB
	admins     Admins
	loc        *time.Location
	archiveDir string
	now        func() time.Time
	newBatchID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the time zone used for FilterByDate day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithArchiveDir makes Submit also render each batch to an xlsx file in dir.
func WithArchiveDir(dir string) Option {
	return func(s *Service) { s.archiveDir = dir }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. The admin set is fixed for its lifetime.
func NewService(d *db.DB, admins Admins, opts ...Option) *Service {
	s := &Service{
		db:         d,
		admins:     admins,
		loc:        time.UTC,
		now:        time.Now,
		newBatchID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsAdmin reports whether userID has admin privileges.
func (s *Service) IsAdmin(userID int64) bool {
	return s.admins.Contains(userID)
}

// Submit validates and stores one snapshot. All rows share one timestamp and
// batch id and are written in a single transaction. Surrounding whitespace is
// stripped from the snapshot name. It returns the number of rows written.
func (s *Service) Submit(ctx context.Context, sub Submission) (int, error) {
	sub.SnapshotName = strings.TrimSpace(sub.SnapshotName)
	if err := validateSubmission(sub); err != nil {
		metrics.Submissions.WithLabelValues("invalid").Inc()
		return 0, err
	}

	createdAt := s.now().UTC().Truncate(time.Microsecond)
	batchID := s.newBatchID()

	rows := make([]model.Row, 0, len(sub.Items))
	for _, item := range sub.Items {
		rows = append(rows, model.Row{
			OwnerID:      sub.OwnerID,
			SnapshotName: sub.SnapshotName,
			BatchID:      batchID,
			Article:      item.Article,
			DisplayName:  item.Name,
			GroupName:    item.Group,
			Quantity:     *item.Quantity,
			CreatedAt:    createdAt,
		})
	}

	if err := store.InsertRows(ctx, s.db, rows); err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("saving snapshot: %w", err)
	}

	metrics.Submissions.WithLabelValues("ok").Inc()
	metrics.RowsWritten.Add(float64(len(rows)))

	if s.archiveDir != "" {
		s.archive(sub.SnapshotName, rows)
	}

	return len(rows), nil
}

// archive renders the batch to the archive directory. Failures are logged only.
func (s *Service) archive(name string, rows []model.Row) {
	file, err := export.Render(name, rows)
	if err != nil {
		slog.Error("rendering archive copy", "snapshot", name, "error", err)
		return
	}
	path, err := export.WriteFile(s.archiveDir, file)
	if err != nil {
		slog.Error("writing archive copy", "snapshot", name, "error", err)
		return
	}
	slog.Info("archived snapshot", "snapshot", name, "path", path)
}

func validateSubmission(sub Submission) error {
	fields := map[string]string{}
	if err := validator.Validate(&sub); err != nil {
		fields = validator.FormatValidationErrors(err)
		if len(fields) == 0 {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	for i, item := range sub.Items {
		if item.Quantity == nil {
			continue
		}
		key := fmt.Sprintf("items[%d].quantity", i)
		switch {
		case item.Quantity.IsNegative():
			fields[key] = "Must be greater than or equal to 0"
		case !item.Quantity.Equal(item.Quantity.Truncate(MaxQuantityScale)):
			fields[key] = fmt.Sprintf("Must have at most %d decimal places", MaxQuantityScale)
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ListSnapshotNames returns the distinct snapshot names visible to userID,
// newest batch first. Admins see names of every owner.
func (s *Service) ListSnapshotNames(ctx context.Context, userID int64) ([]string, error) {
	names, err := store.ListSnapshotNames(ctx, s.db, s.scope(userID))
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return names, nil
}

// LatestSnapshot returns article to quantity for the owner's most recent
// batch. The first occurrence of a repeated article wins. An owner without
// rows gets an empty map.
func (s *Service) LatestSnapshot(ctx context.Context, ownerID int64) (map[string]decimal.Decimal, error) {
	result := map[string]decimal.Decimal{}

	batchID, err := store.LatestBatchID(ctx, s.db, ownerID)
	if err != nil {
		return nil, fmt.Errorf("finding latest snapshot: %w", err)
	}
	if batchID == "" {
		return result, nil
	}

	rows, err := store.ListBatchRows(ctx, s.db, batchID)
	if err != nil {
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	for _, r := range rows {
		if _, seen := result[r.Article]; !seen {
			result[r.Article] = r.Quantity
		}
	}
	return result, nil
}

// SnapshotRows returns the rows named name that userID may see, in insertion
// order.
func (s *Service) SnapshotRows(ctx context.Context, name string, userID int64) ([]model.Row, error) {
	rows, err := store.ListSnapshotRows(ctx, s.db, name, s.scope(userID))
	if err != nil {
		return nil, fmt.Errorf("loading snapshot rows: %w", err)
	}
	return rows, nil
}

// FilterByDate returns names of snapshots with at least one row created on the
// given calendar day in the service time zone. Admin only.
func (s *Service) FilterByDate(ctx context.Context, userID int64, date string) ([]string, error) {
	if !s.IsAdmin(userID) {
		return nil, ErrForbidden
	}

	day, err := time.ParseInLocation(DateLayout, date, s.loc)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"date": "Must be a date in YYYY-MM-DD format"}}
	}

	names, err := store.ListSnapshotNamesBetween(ctx, s.db, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("filtering snapshots by date: %w", err)
	}
	return names, nil
}

// Export renders the rows of name visible to userID as an xlsx workbook.
func (s *Service) Export(ctx context.Context, name string, userID int64) (*export.File, error) {
	rows, err := s.SnapshotRows(ctx, name, userID)
	if err != nil {
		metrics.Exports.WithLabelValues("error").Inc()
		return nil, err
	}
	if len(rows) == 0 {
		metrics.Exports.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}

	file, err := export.Render(name, rows)
	if err != nil {
		metrics.Exports.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("exporting snapshot: %w", err)
	}

	metrics.Exports.WithLabelValues("ok").Inc()
	return file, nil
}

// DeleteSnapshot removes every row named name across all owners and returns
// the number of rows removed. Admin only.
func (s *Service) DeleteSnapshot(ctx context.Context, userID int64, name string) (int64, error) {
	if !s.IsAdmin(userID) {
		return 0, ErrForbidden
	}

	n, err := store.DeleteSnapshot(ctx, s.db, name)
	if err != nil {
		return 0, fmt.Errorf("deleting snapshot: %w", err)
	}

	metrics.RowsDeleted.Add(float64(n))
	slog.Info("snapshot deleted", "snapshot", name, "rows", n, "admin", userID)
	return n, nil
}

// scope returns nil for admins and the caller's own id otherwise.
func (s *Service) scope(userID int64) *int64 {
	if s.IsAdmin(userID) {
		return nil
	}
	return &userID
}
