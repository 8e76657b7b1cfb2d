package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// maxIDAttempts bounds the identity generation loop. Six decimal digits give
// 900k values; running out of attempts means the table is saturated far
// beyond this bot's intended scale, so it is reported as an error rather
// than retried forever.
const maxIDAttempts = 10

// Store defines the interface for request persistence.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// CreateRequest allocates a fresh collision-checked identity and inserts
	// a request row. An empty branch is stored as NULL. On failure no row is
	// left behind and the returned identity is empty.
	CreateRequest(ctx context.Context, requesterID int64, branch string) (string, error)

	// AppendItem validates the content kind and inserts one content item.
	// Returns ErrInvalidKind without touching the database for kinds outside
	// the enumerated set, and ErrNotFound if the request does not exist.
	AppendItem(ctx context.Context, requestID string, kind ContentKind, content string) error

	// GetRequest loads a request with its items in insertion order.
	// Returns ErrNotFound for unknown identities.
	GetRequest(ctx context.Context, requestID string) (*Request, error)

	// UpdateRequest applies a partial update of branch and/or admin response.
	// Existence is checked before writing; either all supplied fields are
	// written or none. Returns ErrNotFound for unknown identities.
	UpdateRequest(ctx context.Context, requestID string, changes RequestChanges) error

	// ClearItems deletes all content items for a request, leaving the
	// request row untouched. Used when a client discards a draft.
	ClearItems(ctx context.Context, requestID string) error

	// ListRequestsSince retrieves all requests created at or after the given
	// time, with items attached, ordered by creation time. Used by reports.
	ListRequestsSince(ctx context.Context, since time.Time) ([]*Request, error)

	// RunMaintenance performs database maintenance tasks like VACUUM.
	RunMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// newRequestID produces a short numeric identity. Short codes keep callback
// button payloads compact; uniqueness is verified by the caller against the
// requests table before insertion.
func newRequestID() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate request id: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// CreateRequest allocates a fresh unique identity and inserts a request row
// within a single transaction, so the existence check and the insert cannot
// race another creation.
func (s *sqlxStore) CreateRequest(ctx context.Context, requesterID int64, branch string) (string, error) {
	if requesterID == 0 {
		return "", fmt.Errorf("request must have a non-zero requester_id")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for creating request",
			"requester_id", requesterID, "error", err)
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	var requestID string
	for attempt := 0; ; attempt++ {
		if attempt >= maxIDAttempts {
			return "", fmt.Errorf("failed to allocate a unique request id after %d attempts", maxIDAttempts)
		}

		candidate, err := newRequestID()
		if err != nil {
			return "", err
		}

		var taken bool
		err = tx.GetContext(ctx, &taken,
			`SELECT EXISTS (SELECT 1 FROM requests WHERE id = ?)`, candidate)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error checking request id for collision",
				"request_id", candidate, "error", err)
			return "", fmt.Errorf("failed to check request id uniqueness: %w", err)
		}
		if taken {
			s.logger.DebugContext(ctx, "Request id collision, retrying",
				"request_id", candidate, "attempt", attempt+1)
			continue
		}

		requestID = candidate
		break
	}

	branchValue := sql.NullString{String: branch, Valid: branch != ""}
	createdAt := time.Now().UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO requests (id, requester_id, branch, created_at) VALUES (?, ?, ?, ?)`,
		requestID, requesterID, branchValue, createdAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting request",
			"request_id", requestID, "requester_id", requesterID, "error", err)
		return "", fmt.Errorf("failed to insert request %s: %w", requestID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"request_id", requestID, "error", err)
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Request created successfully",
		"request_id", requestID, "requester_id", requesterID, "branch", branch)
	return requestID, nil
}

// AppendItem validates the kind and inserts one content item. Rejected
// items leave no row.
func (s *sqlxStore) AppendItem(ctx context.Context, requestID string, kind ContentKind, content string) error {
	if requestID == "" {
		return fmt.Errorf("item must have a non-empty request_id")
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for appending item",
			"request_id", requestID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	var exists bool
	err = tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM requests WHERE id = ?)`, requestID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error checking if request exists",
			"request_id", requestID, "error", err)
		return fmt.Errorf("failed to check if request %s exists: %w", requestID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (request_id, kind, content, created_at) VALUES (?, ?, ?, ?)`,
		requestID, kind, content, time.Now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting content item",
			"request_id", requestID, "kind", kind, "error", err)
		return fmt.Errorf("failed to insert item for request %s: %w", requestID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"request_id", requestID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Content item appended successfully",
		"request_id", requestID, "kind", kind)
	return nil
}

// GetRequest loads the request plus all its items ordered by insertion time.
func (s *sqlxStore) GetRequest(ctx context.Context, requestID string) (*Request, error) {
	if requestID == "" {
		return nil, fmt.Errorf("request_id cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var request Request
	err := s.db.GetContext(ctx, &request,
		`SELECT id, requester_id, branch, admin_response, created_at FROM requests WHERE id = ?`,
		requestID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "Request not found", "request_id", requestID)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting request", "request_id", requestID, "error", err)
		return nil, fmt.Errorf("failed to get request %s: %w", requestID, err)
	}

	// Insertion order is meaningful: it is the order the client produced the
	// content, and it is re-rendered in that order for staff review.
	err = s.db.SelectContext(ctx, &request.Items,
		`SELECT id, request_id, kind, content, created_at FROM items
		 WHERE request_id = ? ORDER BY created_at ASC, id ASC`,
		requestID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting request items", "request_id", requestID, "error", err)
		return nil, fmt.Errorf("failed to get items for request %s: %w", requestID, err)
	}

	s.logger.DebugContext(ctx, "Fetched request successfully",
		"request_id", requestID, "item_count", len(request.Items))
	return &request, nil
}

// UpdateRequest applies a partial update of branch and/or admin response.
// Existence is checked before the write; either all supplied fields are
// written or none.
func (s *sqlxStore) UpdateRequest(ctx context.Context, requestID string, changes RequestChanges) error {
	if requestID == "" {
		return fmt.Errorf("request_id cannot be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for updating request",
			"request_id", requestID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	var exists bool
	err = tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM requests WHERE id = ?)`, requestID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error checking if request exists",
			"request_id", requestID, "error", err)
		return fmt.Errorf("failed to check if request %s exists: %w", requestID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}

	setClauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if changes.Branch != nil {
		setClauses = append(setClauses, "branch = ?")
		args = append(args, *changes.Branch)
	}
	if changes.AdminResponse != nil {
		setClauses = append(setClauses, "admin_response = ?")
		args = append(args, *changes.AdminResponse)
	}
	if len(setClauses) == 0 {
		return nil // Nothing to update
	}
	args = append(args, requestID)

	query := fmt.Sprintf(`UPDATE requests SET %s WHERE id = ?`, strings.Join(setClauses, ", "))
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating request", "request_id", requestID, "error", err)
		return fmt.Errorf("failed to update request %s: %w", requestID, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when updating request",
			"request_id", requestID, "affected", affected)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"request_id", requestID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Request updated successfully",
		"request_id", requestID,
		"branch_changed", changes.Branch != nil,
		"admin_response_changed", changes.AdminResponse != nil)
	return nil
}

// ClearItems deletes all content items for a request; the request row itself
// is untouched.
func (s *sqlxStore) ClearItems(ctx context.Context, requestID string) error {
	if requestID == "" {
		return fmt.Errorf("request_id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE request_id = ?`, requestID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error clearing request items", "request_id", requestID, "error", err)
		return fmt.Errorf("failed to clear items for request %s: %w", requestID, err)
	}

	count, _ := result.RowsAffected()
	s.logger.DebugContext(ctx, "Cleared request items", "request_id", requestID, "count", count)
	return nil
}

// ListRequestsSince retrieves all requests created at or after 'since' with
// their items attached, ordered by creation time.
func (s *sqlxStore) ListRequestsSince(ctx context.Context, since time.Time) ([]*Request, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var requests []*Request
	err := s.db.SelectContext(ctx, &requests,
		`SELECT id, requester_id, branch, admin_response, created_at FROM requests
		 WHERE created_at >= ? ORDER BY created_at ASC`,
		since.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing requests", "since", since, "error", err)
		return nil, fmt.Errorf("failed to list requests since %s: %w", since, err)
	}
	if len(requests) == 0 {
		return requests, nil
	}

	ids := make([]string, len(requests))
	byID := make(map[string]*Request, len(requests))
	for i, r := range requests {
		ids[i] = r.ID
		byID[r.ID] = r
	}

	query, args, err := sqlx.In(
		`SELECT id, request_id, kind, content, created_at FROM items
		 WHERE request_id IN (?) ORDER BY created_at ASC, id ASC`, ids)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error building query for request items", "error", err)
		return nil, fmt.Errorf("failed to build items query: %w", err)
	}
	query = s.db.Rebind(query)

	var items []ContentItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error listing request items", "error", err)
		return nil, fmt.Errorf("failed to list request items: %w", err)
	}
	for _, item := range items {
		if r, ok := byID[item.RequestID]; ok {
			r.Items = append(r.Items, item)
		}
	}

	s.logger.DebugContext(ctx, "Listed requests successfully",
		"since", since, "request_count", len(requests), "item_count", len(items))
	return requests, nil
}

// RunMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
