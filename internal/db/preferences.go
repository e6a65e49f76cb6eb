package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PreferenceRepository handles account-level user settings.
type PreferenceRepository struct {
	pool *pgxpool.Pool
}

// Ensure inserts the default preferences row when the user has none.
func (r *PreferenceRepository) Ensure(ctx context.Context, userID string) error {
	return ensurePreferences(ctx, r.pool, userID)
}

func ensurePreferences(ctx context.Context, pool *pgxpool.Pool, userID string) error {
	query := `
		INSERT INTO user_preferences (user_id, email_notifications, auto_export, preferred_vendors)
		VALUES ($1, true, false, '{}'::text[])
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ensuring preferences: %w", err)
	}
	return nil
}

// Get returns the user's preferences, creating the default row on first read.
func (r *PreferenceRepository) Get(ctx context.Context, userID string) (*Preferences, error) {
	if err := r.Ensure(ctx, userID); err != nil {
		return nil, err
	}

	query := `
		SELECT user_id, email_notifications, auto_export, preferred_vendors, created_at, updated_at
		FROM user_preferences
		WHERE user_id = $1
	`
	var prefs Preferences
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&prefs.UserID, &prefs.EmailNotifications, &prefs.AutoExport,
		&prefs.PreferredVendors, &prefs.CreatedAt, &prefs.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	if prefs.PreferredVendors == nil {
		prefs.PreferredVendors = []string{}
	}
	return &prefs, nil
}

// Update overwrites the user's preferences, creating the row first if needed.
func (r *PreferenceRepository) Update(ctx context.Context, userID string, emailNotifications, autoExport bool, preferredVendors []string) error {
	if err := r.Ensure(ctx, userID); err != nil {
		return err
	}
	if preferredVendors == nil {
		preferredVendors = []string{}
	}

	query := `
		UPDATE user_preferences
		SET email_notifications = $2, auto_export = $3, preferred_vendors = $4, updated_at = now()
		WHERE user_id = $1
	`
	if _, err := r.pool.Exec(ctx, query, userID, emailNotifications, autoExport, preferredVendors); err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}
	return nil
}
