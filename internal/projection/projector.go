// Package projection splits a raw athlete profile payload into identity columns
// (user_profiles) and performance columns (athlete_profiles), and strips every
// personal attribute from the profile_json that gets stored with the artifact.
package projection

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"hybridhouse/internal/coerce"
	"hybridhouse/internal/models"
)

// SchemaVersion tags interview payloads that did not declare one.
const SchemaVersion = "v1.0"

// ErrPersonalData is returned when a profile_json about to be stored still
// carries identity attributes.
var ErrPersonalData = errors.New("profile contains personal fields")

// personalKeys may never appear at the top level of a stored profile_json.
var personalKeys = []string{
	"first_name", "last_name", "name", "display_name", "email",
	"sex", "gender", "age", "dob", "date_of_birth", "country",
	"wearables", "height_in", "weight_lb",
}

// personalBodyKeys may never appear inside body_metrics of a stored profile_json.
var personalBodyKeys = []string{"height_in", "weight_lb"}

// RequiredFields lists the top-level keys a finished hybrid interview must carry.
// A nil value is acceptable (the athlete skipped the question).
var RequiredFields = []string{
	"first_name", "sex", "pb_mile", "weekly_miles", "long_run",
	"pb_bench_1rm", "pb_squat_1rm", "pb_deadlift_1rm",
}

// RequiredBodyMetrics lists the keys expected under body_metrics.
var RequiredBodyMetrics = []string{"weight_lb", "vo2_max", "hrv_ms", "resting_hr_bpm"}

// scoreColumns maps scoring service keys to artifact columns.
var scoreColumns = map[string]string{
	"hybridScore":    "hybrid_score",
	"strengthScore":  "strength_score",
	"speedScore":     "speed_score",
	"vo2Score":       "vo2_score",
	"distanceScore":  "distance_score",
	"volumeScore":    "volume_score",
	"recoveryScore":  "recovery_score",
	"enduranceScore": "endurance_score",
}

// RequiredScoreKeys are the seven scores that make an artifact leaderboard eligible.
var RequiredScoreKeys = []string{
	"hybridScore", "strengthScore", "speedScore", "vo2Score",
	"distanceScore", "volumeScore", "recoveryScore",
}

var timeColumns = []struct{ key, column string }{
	{"pb_mile", "pb_mile_seconds"},
	{"pb_5k", "pb_5k_seconds"},
	{"pb_10k", "pb_10k_seconds"},
	{"pb_half_marathon", "pb_half_marathon_seconds"},
	{"pb_marathon", "pb_marathon_seconds"},
}

var liftColumns = []struct{ key, column string }{
	{"pb_bench_1rm", "pb_bench_1rm_lb"},
	{"pb_squat_1rm", "pb_squat_1rm_lb"},
	{"pb_deadlift_1rm", "pb_deadlift_1rm_lb"},
}

// Projection is the result of splitting one profile payload.
type Projection struct {
	// Identity holds user_profiles columns.
	Identity map[string]any
	// Performance holds athlete_profiles columns, including profile_json
	// and, when scores were supplied, score_data.
	Performance map[string]any
	// Profile is the sanitized payload stored as profile_json.
	Profile map[string]any
}

// Project splits profile (and optional scoreData) into identity and performance
// column maps. Values that fail coercion are omitted.
func Project(profile map[string]any, scoreData map[string]any) Projection {
	identity := identityFields(profile)
	perf := performanceFields(profile)

	sanitized := Sanitize(profile)
	perf["profile_json"] = sanitized

	if len(scoreData) > 0 {
		for col, v := range ScoreColumns(scoreData) {
			perf[col] = v
		}
		perf["score_data"] = scoreData
	}

	return Projection{Identity: identity, Performance: perf, Profile: sanitized}
}

func identityFields(profile map[string]any) map[string]any {
	out := map[string]any{}

	first := str(profile["first_name"])
	last := str(profile["last_name"])
	if full := strings.TrimSpace(first + " " + last); full != "" {
		out["name"] = full
		out["display_name"] = full
	}
	if email := strings.ToLower(str(profile["email"])); email != "" {
		out["email"] = email
	}
	if g, ok := NormalizeGender(profile["sex"]); ok {
		out["gender"] = g
	}
	if dob, ok := coerce.DateFromMDY(profile["dob"]); ok {
		out["date_of_birth"] = dob
	}
	if c := str(profile["country"]); c != "" {
		out["country"] = c
	}
	if w, ok := wearables(profile["wearables"]); ok {
		out["wearables"] = w
	}

	bm := bodyMetrics(profile)
	if h, ok := coerce.ToDecimal(bm["height_in"]); ok {
		out["height_in"] = h
	}
	if w, ok := coerce.WeightFrom(bm["weight_lb"]); ok {
		out["weight_lb"] = w
	}
	return out
}

func performanceFields(profile map[string]any) map[string]any {
	out := map[string]any{}
	bm := bodyMetrics(profile)

	if v, ok := firstDecimal(bm, "vo2_max", "vo2max"); ok {
		out["vo2_max"] = v
	}
	if v, ok := firstDecimal(bm, "hrv", "hrv_ms"); ok {
		out["hrv_ms"] = v
	}
	for _, k := range []string{"resting_hr", "resting_hr_bpm"} {
		if v, ok := coerce.ToInt(bm[k]); ok {
			out["resting_hr_bpm"] = v
			break
		}
	}
	if v, ok := coerce.ToDecimal(profile["weekly_miles"]); ok {
		out["weekly_miles"] = v
	}
	if v, ok := firstDecimal(profile, "long_run", "long_run_miles"); ok {
		out["long_run_miles"] = v
	}
	for _, tc := range timeColumns {
		if v, ok := coerce.TimeToSeconds(profile[tc.key]); ok {
			out[tc.column] = v
		}
	}
	for _, lc := range liftColumns {
		if v, ok := coerce.WeightFrom(profile[lc.key]); ok {
			out[lc.column] = v
		}
	}
	return out
}

// ScoreColumns extracts the scalar score columns from a scoring payload.
func ScoreColumns(scoreData map[string]any) map[string]any {
	out := map[string]any{}
	for key, col := range scoreColumns {
		if v, ok := coerce.ToDecimal(scoreData[key]); ok {
			out[col] = v
		}
	}
	return out
}

// ClearedScoreColumns returns a patch that nulls every score column.
func ClearedScoreColumns() map[string]any {
	out := map[string]any{"score_data": nil, "completed_at": nil}
	for _, col := range scoreColumns {
		out[col] = nil
	}
	return out
}

// HasRequiredScores reports whether scoreData carries all seven required scores.
func HasRequiredScores(scoreData map[string]any) bool {
	for _, k := range RequiredScoreKeys {
		if _, ok := coerce.ToDecimal(scoreData[k]); !ok {
			return false
		}
	}
	return true
}

// Sanitize returns a deep copy of profile without personal attributes.
func Sanitize(profile map[string]any) map[string]any {
	out := clone(profile).(map[string]any)
	for _, k := range personalKeys {
		delete(out, k)
	}
	if bm, ok := out["body_metrics"].(map[string]any); ok {
		for _, k := range personalBodyKeys {
			delete(bm, k)
		}
	}
	return out
}

// CheckNoPersonalData rejects a profile_json that still carries identity attributes.
func CheckNoPersonalData(profile map[string]any) error {
	var found []string
	for _, k := range personalKeys {
		if _, ok := profile[k]; ok {
			found = append(found, k)
		}
	}
	if bm, ok := profile["body_metrics"].(map[string]any); ok {
		for _, k := range personalBodyKeys {
			if _, ok := bm[k]; ok {
				found = append(found, "body_metrics."+k)
			}
		}
	}
	if len(found) > 0 {
		sort.Strings(found)
		return fmt.Errorf("%w: %s", ErrPersonalData, strings.Join(found, ", "))
	}
	return nil
}

// Normalize trims string values and fills absent required fields with nil so
// the payload always has the canonical shape.
func Normalize(raw map[string]any) map[string]any {
	out := trimStrings(clone(raw)).(map[string]any)
	for _, k := range RequiredFields {
		if _, ok := out[k]; !ok {
			out[k] = nil
		}
	}
	bm, ok := out["body_metrics"].(map[string]any)
	if !ok {
		bm = map[string]any{}
		out["body_metrics"] = bm
	}
	for _, k := range RequiredBodyMetrics {
		if _, ok := bm[k]; !ok {
			bm[k] = nil
		}
	}
	if v, ok := out["schema_version"].(string); !ok || v == "" {
		out["schema_version"] = SchemaVersion
	}
	return out
}

// Rehydrate merges identity attributes back into a stored (sanitized) profile so
// the scoring service sees the full athlete.
func Rehydrate(profile map[string]any, id *models.Identity) map[string]any {
	out := map[string]any{}
	if profile != nil {
		out = clone(profile).(map[string]any)
	}
	if id == nil {
		return out
	}
	if id.Name != nil && *id.Name != "" {
		parts := strings.Fields(*id.Name)
		out["first_name"] = parts[0]
		if len(parts) > 1 {
			out["last_name"] = strings.Join(parts[1:], " ")
		}
	}
	if id.Gender != nil {
		switch *id.Gender {
		case "male":
			out["sex"] = "Male"
		case "female":
			out["sex"] = "Female"
		}
	}
	if id.DateOfBirth != nil {
		out["dob"] = *id.DateOfBirth
	}
	if id.Country != nil {
		out["country"] = *id.Country
	}
	bm, ok := out["body_metrics"].(map[string]any)
	if !ok {
		bm = map[string]any{}
		out["body_metrics"] = bm
	}
	if id.WeightLb != nil {
		bm["weight_lb"] = *id.WeightLb
	}
	if id.HeightIn != nil {
		bm["height_in"] = *id.HeightIn
	}
	return out
}

// NormalizeGender maps free-form sex answers onto male, female or unspecified.
func NormalizeGender(x any) (string, bool) {
	s := strings.ToLower(str(x))
	if s == "" {
		return "", false
	}
	switch s {
	case "m", "male", "man":
		return "male", true
	case "f", "female", "woman":
		return "female", true
	}
	return "unspecified", true
}

func bodyMetrics(profile map[string]any) map[string]any {
	if bm, ok := profile["body_metrics"].(map[string]any); ok {
		return bm
	}
	return map[string]any{}
}

func firstDecimal(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := coerce.ToDecimal(m[k]); ok {
			return v, true
		}
	}
	return 0, false
}

func wearables(x any) ([]string, bool) {
	var raw []string
	switch v := x.(type) {
	case []any:
		for _, item := range v {
			raw = append(raw, str(item))
		}
	case []string:
		raw = v
	case string:
		raw = strings.Split(v, ",")
	default:
		return nil, false
	}
	out := []string{}
	seen := map[string]bool{}
	for _, w := range raw {
		w = strings.TrimSpace(w)
		lw := strings.ToLower(w)
		if w == "" || lw == "none" || lw == "skip" || seen[lw] {
			continue
		}
		seen[lw] = true
		out = append(out, w)
	}
	return out, true
}

func str(x any) string {
	s, _ := x.(string)
	return strings.TrimSpace(s)
}

func clone(x any) any {
	switch v := x.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = clone(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = clone(item)
		}
		return out
	}
	return x
}

func trimStrings(x any) any {
	switch v := x.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = trimStrings(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = trimStrings(item)
		}
		return v
	case string:
		return strings.TrimSpace(v)
	}
	return x
}
