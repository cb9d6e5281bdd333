package models

import (
	"time"

	"gorm.io/datatypes"
)

// JSON tags mirror the column names so a field map keyed by column can be
// applied to a struct through a JSON round trip.

// Identity is the per-user row in user_profiles. It owns every personal attribute.
type Identity struct {
	UserID          string                      `db:"user_id" json:"user_id"`
	Email           *string                     `db:"email" json:"email"`
	Name            *string                     `db:"name" json:"name"`
	DisplayName     *string                     `db:"display_name" json:"display_name"`
	Avatar          *string                     `db:"avatar" json:"avatar"`
	DateOfBirth     *string                     `db:"date_of_birth" json:"date_of_birth"` // YYYY-MM-DD
	Gender          *string                     `db:"gender" json:"gender"`
	Country         *string                     `db:"country" json:"country"`
	Location        *string                     `db:"location" json:"location"`
	Timezone        *string                     `db:"timezone" json:"timezone"`
	HeightIn        *float64                    `db:"height_in" json:"height_in"`
	WeightLb        *float64                    `db:"weight_lb" json:"weight_lb"`
	UnitsPreference *string                     `db:"units_preference" json:"units_preference"`
	PrivacyLevel    *string                     `db:"privacy_level" json:"privacy_level"`
	Wearables       datatypes.JSONSlice[string] `db:"wearables" json:"wearables"`
	CreatedAt       time.Time                   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                   `db:"updated_at" json:"updated_at"`
}

// Artifact is one row in athlete_profiles: a completed interview plus its scores.
// It never carries personal attributes.
type Artifact struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	ProfileJSON datatypes.JSON `db:"profile_json" json:"profile_json"`

	WeeklyMiles           *float64 `db:"weekly_miles" json:"weekly_miles"`
	LongRunMiles          *float64 `db:"long_run_miles" json:"long_run_miles"`
	PbMileSeconds         *int     `db:"pb_mile_seconds" json:"pb_mile_seconds"`
	Pb5kSeconds           *int     `db:"pb_5k_seconds" json:"pb_5k_seconds"`
	Pb10kSeconds          *int     `db:"pb_10k_seconds" json:"pb_10k_seconds"`
	PbHalfMarathonSeconds *int     `db:"pb_half_marathon_seconds" json:"pb_half_marathon_seconds"`
	PbMarathonSeconds     *int     `db:"pb_marathon_seconds" json:"pb_marathon_seconds"`
	PbBench1RMLb          *float64 `db:"pb_bench_1rm_lb" json:"pb_bench_1rm_lb"`
	PbSquat1RMLb          *float64 `db:"pb_squat_1rm_lb" json:"pb_squat_1rm_lb"`
	PbDeadlift1RMLb       *float64 `db:"pb_deadlift_1rm_lb" json:"pb_deadlift_1rm_lb"`
	VO2Max                *float64 `db:"vo2_max" json:"vo2_max"`
	HRVMs                 *float64 `db:"hrv_ms" json:"hrv_ms"`
	RestingHRBpm          *int     `db:"resting_hr_bpm" json:"resting_hr_bpm"`

	ScoreData      *datatypes.JSON `db:"score_data" json:"score_data"`
	HybridScore    *float64        `db:"hybrid_score" json:"hybrid_score"`
	StrengthScore  *float64        `db:"strength_score" json:"strength_score"`
	SpeedScore     *float64        `db:"speed_score" json:"speed_score"`
	VO2Score       *float64        `db:"vo2_score" json:"vo2_score"`
	DistanceScore  *float64        `db:"distance_score" json:"distance_score"`
	VolumeScore    *float64        `db:"volume_score" json:"volume_score"`
	RecoveryScore  *float64        `db:"recovery_score" json:"recovery_score"`
	EnduranceScore *float64        `db:"endurance_score" json:"endurance_score"`

	IsPublic    bool       `db:"is_public" json:"is_public"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`
}

// RequiredScores returns the seven leaderboard scores in a fixed order.
func (a *Artifact) RequiredScores() []*float64 {
	return []*float64{
		a.HybridScore, a.StrengthScore, a.SpeedScore, a.VO2Score,
		a.DistanceScore, a.VolumeScore, a.RecoveryScore,
	}
}

// ScoreComplete reports whether all seven required scores are present.
func (a *Artifact) ScoreComplete() bool {
	for _, s := range a.RequiredScores() {
		if s == nil {
			return false
		}
	}
	return true
}

// HasAnyScore reports whether at least one score scalar is present.
func (a *Artifact) HasAnyScore() bool {
	for _, s := range a.RequiredScores() {
		if s != nil {
			return true
		}
	}
	return a.EnduranceScore != nil
}

const (
	SessionActive   = "active"
	SessionComplete = "complete"
	SessionError    = "error"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one stored interview turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one row in interview_sessions.
type Session struct {
	ID             string                       `db:"id" json:"id"`
	UserID         string                       `db:"user_id" json:"user_id"`
	Status         string                       `db:"status" json:"status"`
	Messages       datatypes.JSONSlice[Message] `db:"messages" json:"messages"`
	LastResponseID *string                      `db:"last_response_id" json:"last_response_id"`
	ArtifactID     *string                      `db:"artifact_id" json:"artifact_id"`
	CreatedAt      time.Time                    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time                    `db:"updated_at" json:"updated_at"`
}

// LeaderboardRow is one ranked, deduplicated athlete.
type LeaderboardRow struct {
	Rank           int                `json:"rank"`
	ArtifactID     string             `json:"artifact_id"`
	UserID         string             `json:"user_id"`
	DisplayName    string             `json:"display_name"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown"`
	Age            *int               `json:"age"`
	Gender         *string            `json:"gender"`
	Country        *string            `json:"country"`
	CountryFlag    string             `json:"country_flag,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
