package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cratelink/internal/core"
)

// ActivityRepository handles the append-only import event log. Purchase
// selections live here as events rather than as mutable rows, so every save
// is preserved and the newest one wins on read.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// Log appends one event to an import's history.
func (r *ActivityRepository) Log(ctx context.Context, importID, eventType string, message *string, metadata map[string]any) error {
	query := `
		INSERT INTO import_activities (id, import_id, event_type, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query, uuid.NewString(), importID, eventType, message, metadata); err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}
	return nil
}

// SaveSelection records a purchase selection against an import the user owns.
// A completed selection logs EXPORT_TRIGGERED; a draft logs PURCHASE_INITIATED.
func (r *ActivityRepository) SaveSelection(ctx context.Context, userID, importID string, selection *core.SelectionPayload) error {
	if err := selection.Validate(); err != nil {
		return err
	}
	if err := r.checkOwnership(ctx, userID, importID); err != nil {
		return err
	}

	eventType := core.EventPurchaseInitiated
	if selection.Status == core.SelectionCompleted {
		eventType = core.EventExportTriggered
	}

	metadata := map[string]any{
		"trackIds":      selection.TrackIDs,
		"totalCost":     selection.TotalCost,
		"purchaseLinks": selection.PurchaseLinks,
		"savedAt":       time.Now().UTC().Format(time.RFC3339),
		"status":        selection.Status,
	}

	return r.Log(ctx, importID, eventType, nil, metadata)
}

// LatestSelection returns the newest selection event for an import the user
// owns: the latest PURCHASE_INITIATED, falling back to the latest
// EXPORT_TRIGGERED that carries track IDs. Export audit events share the
// EXPORT_TRIGGERED type but hold no selection and never count. No selection
// yet returns (nil, nil).
func (r *ActivityRepository) LatestSelection(ctx context.Context, userID, importID string) (*Activity, error) {
	if err := r.checkOwnership(ctx, userID, importID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, import_id, event_type, message, metadata, created_at
		FROM import_activities
		WHERE import_id = $1 AND event_type IN ('PURCHASE_INITIATED', 'EXPORT_TRIGGERED')
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, importID)
	if err != nil {
		return nil, fmt.Errorf("querying selection activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var activity Activity
		if err := rows.Scan(&activity.ID, &activity.ImportID, &activity.EventType,
			&activity.Message, &activity.Metadata, &activity.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning selection activity: %w", err)
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading selection activities: %w", err)
	}

	return pickLatestSelection(activities), nil
}

// pickLatestSelection walks newest-first activities and returns the latest
// draft selection, else the latest completed one. Events without trackIds in
// their metadata are audit entries, not selections.
func pickLatestSelection(activities []Activity) *Activity {
	for _, eventType := range []string{core.EventPurchaseInitiated, core.EventExportTriggered} {
		for i := range activities {
			if activities[i].EventType == eventType && carriesSelection(activities[i].Metadata) {
				return &activities[i]
			}
		}
	}
	return nil
}

func carriesSelection(metadata map[string]any) bool {
	switch ids := metadata["trackIds"].(type) {
	case []any:
		return len(ids) > 0
	case []string:
		return len(ids) > 0
	}
	return false
}

// checkOwnership maps both a missing import and one owned by another user to
// core.ErrNotFound, so responses never reveal foreign imports exist.
func (r *ActivityRepository) checkOwnership(ctx context.Context, userID, importID string) error {
	query := `SELECT 1 FROM playlist_imports WHERE id = $1 AND user_id = $2`
	var one int
	err := r.pool.QueryRow(ctx, query, importID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking import ownership: %w", err)
	}
	return nil
}
