package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// RunMigrations creates the three tables when missing and then adds any column
// introduced after the first deploy. Every statement is additive so older
// databases keep working; the stores tolerate columns that are still missing.
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id TEXT PRIMARY KEY,
    email TEXT,
    name TEXT,
    display_name TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS athlete_profiles (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES user_profiles(user_id) ON DELETE CASCADE,
    profile_json JSONB NOT NULL DEFAULT '{}'::jsonb,
    is_public BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS interview_sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'complete', 'error')),
    messages JSONB NOT NULL DEFAULT '[]'::jsonb,
    last_response_id TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS athlete_profiles_user_id_idx ON athlete_profiles (user_id);
CREATE UNIQUE INDEX IF NOT EXISTS interview_sessions_one_active_idx
    ON interview_sessions (user_id) WHERE status = 'active';
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return err
	}

	alters := `
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS avatar TEXT;
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS date_of_birth TEXT;
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS gender TEXT;
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS country TEXT;
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS location TEXT;
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS timezone TEXT;
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS height_in NUMERIC;
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS weight_lb NUMERIC;
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS units_preference TEXT DEFAULT 'imperial';
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS privacy_level TEXT DEFAULT 'public';
ALTER TABLE user_profiles ADD COLUMN IF NOT EXISTS wearables JSONB NOT NULL DEFAULT '[]'::jsonb;

ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS weekly_miles NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS long_run_miles NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS pb_mile_seconds INTEGER;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS pb_5k_seconds INTEGER;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS pb_10k_seconds INTEGER;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS pb_half_marathon_seconds INTEGER;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS pb_marathon_seconds INTEGER;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS pb_bench_1rm_lb NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS pb_squat_1rm_lb NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS pb_deadlift_1rm_lb NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS vo2_max NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS hrv_ms NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS resting_hr_bpm INTEGER;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS score_data JSONB;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS hybrid_score NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS strength_score NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS speed_score NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS vo2_score NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS distance_score NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS volume_score NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS recovery_score NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS endurance_score NUMERIC;
ALTER TABLE athlete_profiles ADD COLUMN IF NOT EXISTS completed_at TIMESTAMPTZ;

ALTER TABLE interview_sessions ADD COLUMN IF NOT EXISTS artifact_id TEXT;

CREATE INDEX IF NOT EXISTS athlete_profiles_hybrid_score_idx
    ON athlete_profiles (hybrid_score DESC) WHERE is_public;
`
	_, err := db.ExecContext(ctx, alters)
	return err
}
