package db

import (
	"context"
	"fmt"
)

// schemaStatements bootstraps the schema idempotently. Enum creation has no
// IF NOT EXISTS form, so each type is wrapped in a duplicate-tolerant block.
var schemaStatements = []string{
	`DO $$ BEGIN
		CREATE TYPE user_role AS ENUM ('ADMIN', 'MEMBER');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		CREATE TYPE playlist_source AS ENUM ('SPOTIFY', 'APPLE_MUSIC', 'YOUTUBE', 'MANUAL_UPLOAD');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		CREATE TYPE import_status AS ENUM ('QUEUED', 'PROCESSING', 'READY', 'FAILED', 'ARCHIVED');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		CREATE TYPE offer_availability AS ENUM ('AVAILABLE', 'UNAVAILABLE', 'UNKNOWN', 'OUT_OF_STOCK');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		CREATE TYPE import_event_type AS ENUM (
			'IMPORT_STARTED', 'SPOTIFY_SYNCED', 'ENRICHMENT_COMPLETE',
			'REVIEW_READY', 'EXPORT_TRIGGERED', 'PURCHASE_INITIATED', 'ERROR');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,

	`CREATE TABLE IF NOT EXISTS profiles (
		id uuid PRIMARY KEY,
		email text NOT NULL,
		first_name text,
		last_name text,
		display_name text,
		avatar_url text,
		role user_role NOT NULL DEFAULT 'MEMBER',
		marketing_opt_in boolean NOT NULL DEFAULT false,
		onboarding_step varchar(64),
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS profiles_email_unique ON profiles (email)`,

	`CREATE TABLE IF NOT EXISTS playlist_imports (
		id text PRIMARY KEY,
		user_id uuid NOT NULL REFERENCES profiles (id) ON DELETE CASCADE,
		source playlist_source NOT NULL DEFAULT 'SPOTIFY',
		source_playlist_id varchar(128),
		source_url text NOT NULL,
		name text NOT NULL,
		description text,
		status import_status NOT NULL DEFAULT 'QUEUED',
		notes text,
		total_tracks integer NOT NULL DEFAULT 0,
		matched_tracks integer NOT NULL DEFAULT 0,
		available_offers integer NOT NULL DEFAULT 0,
		started_at timestamptz NOT NULL DEFAULT now(),
		completed_at timestamptz,
		failed_at timestamptz,
		failure_reason text,
		last_vendor_sync_at timestamptz,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS playlist_imports_user_status_idx ON playlist_imports (user_id, status)`,
	`CREATE INDEX IF NOT EXISTS playlist_imports_source_idx ON playlist_imports (source, source_playlist_id)`,

	`CREATE TABLE IF NOT EXISTS playlist_tracks (
		id text PRIMARY KEY,
		import_id text NOT NULL REFERENCES playlist_imports (id) ON DELETE CASCADE,
		order_index integer NOT NULL,
		name text NOT NULL,
		artists text NOT NULL,
		album text,
		spotify_track_id varchar(128),
		spotify_track_url text,
		isrc varchar(15),
		disc_number integer DEFAULT 1,
		track_number integer,
		duration_ms integer,
		explicit boolean NOT NULL DEFAULT false,
		preview_url text,
		artwork_url text,
		popularity integer,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS playlist_tracks_import_order_idx ON playlist_tracks (import_id, order_index)`,
	`CREATE INDEX IF NOT EXISTS playlist_tracks_spotify_idx ON playlist_tracks (spotify_track_id)`,
	`CREATE INDEX IF NOT EXISTS playlist_tracks_isrc_idx ON playlist_tracks (isrc)`,

	`CREATE TABLE IF NOT EXISTS vendors (
		id varchar(32) PRIMARY KEY,
		display_name text NOT NULL,
		description text,
		website_url text,
		primary_color varchar(16),
		secondary_color varchar(16),
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS vendor_offers (
		id text PRIMARY KEY,
		track_id text NOT NULL REFERENCES playlist_tracks (id) ON DELETE CASCADE,
		vendor_id varchar(32) NOT NULL REFERENCES vendors (id) ON DELETE CASCADE,
		title text,
		subtitle text,
		external_id varchar(128),
		external_url text NOT NULL,
		currency_code varchar(3) NOT NULL,
		price_value numeric(12, 2),
		availability offer_availability NOT NULL DEFAULT 'UNKNOWN',
		is_preview boolean NOT NULL DEFAULT false,
		country_code varchar(2),
		release_date timestamptz,
		last_checked_at timestamptz NOT NULL DEFAULT now(),
		raw_payload jsonb,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS vendor_offers_track_vendor_unique ON vendor_offers (track_id, vendor_id)`,
	`CREATE INDEX IF NOT EXISTS vendor_offers_track_availability_idx ON vendor_offers (track_id, availability)`,
	`CREATE INDEX IF NOT EXISTS vendor_offers_vendor_availability_idx ON vendor_offers (vendor_id, availability)`,
	`CREATE INDEX IF NOT EXISTS vendor_offers_external_id_idx ON vendor_offers (external_id)`,

	`CREATE TABLE IF NOT EXISTS import_activities (
		id text PRIMARY KEY,
		import_id text NOT NULL REFERENCES playlist_imports (id) ON DELETE CASCADE,
		event_type import_event_type NOT NULL,
		message text,
		metadata jsonb,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS import_activities_event_idx ON import_activities (import_id, event_type)`,

	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id uuid PRIMARY KEY REFERENCES profiles (id) ON DELETE CASCADE,
		email_notifications boolean NOT NULL DEFAULT true,
		auto_export boolean NOT NULL DEFAULT false,
		preferred_vendors text[] NOT NULL DEFAULT '{}'::text[],
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema. Every statement is idempotent, so running it on
// every startup is safe.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
