// Package ranking builds the public leaderboard and answers rank and
// percentile queries against it.
package ranking

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"hybridhouse/internal/models"
)

// Stats summarize the scores of a deduplicated board.
type Stats struct {
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Avg         float64            `json:"avg"`
	Breakpoints map[string]float64 `json:"percentile_breakpoints"`
}

var breakpoints = []int{25, 50, 75, 90, 95}

// Build ranks complete artifacts: highest hybrid score first, one row per user,
// ranks 1..N. Ties go to the most recently updated artifact.
func Build(artifacts []models.Artifact, identities map[string]models.Identity, now time.Time) []models.LeaderboardRow {
	eligible := make([]models.Artifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a.ScoreComplete() {
			eligible = append(eligible, a)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if *a.HybridScore != *b.HybridScore {
			return *a.HybridScore > *b.HybridScore
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})

	seen := make(map[string]bool, len(eligible))
	rows := make([]models.LeaderboardRow, 0, len(eligible))
	for _, a := range eligible {
		if seen[a.UserID] {
			continue
		}
		seen[a.UserID] = true

		var id *models.Identity
		if found, ok := identities[a.UserID]; ok {
			id = &found
		}
		rows = append(rows, row(a, id, now))
	}
	assignRanks(rows)
	return rows
}

func row(a models.Artifact, id *models.Identity, now time.Time) models.LeaderboardRow {
	var profile map[string]any
	if len(a.ProfileJSON) > 0 {
		_ = json.Unmarshal(a.ProfileJSON, &profile)
	}
	r := models.LeaderboardRow{
		ArtifactID:     a.ID,
		UserID:         a.UserID,
		DisplayName:    DisplayName(id, profile, a.ID),
		Score:          *a.HybridScore,
		ScoreBreakdown: breakdown(a),
		UpdatedAt:      a.UpdatedAt,
	}
	if id != nil {
		if id.DateOfBirth != nil {
			r.Age = Age(*id.DateOfBirth, now)
		}
		r.Gender = id.Gender
		r.Country = id.Country
		if id.Country != nil {
			r.CountryFlag = CountryFlag(*id.Country)
		}
	}
	return r
}

func breakdown(a models.Artifact) map[string]float64 {
	out := map[string]float64{}
	for key, v := range map[string]*float64{
		"strength_score":  a.StrengthScore,
		"speed_score":     a.SpeedScore,
		"vo2_score":       a.VO2Score,
		"distance_score":  a.DistanceScore,
		"volume_score":    a.VolumeScore,
		"recovery_score":  a.RecoveryScore,
		"endurance_score": a.EnduranceScore,
	} {
		if v != nil {
			out[key] = *v
		}
	}
	return out
}

func assignRanks(rows []models.LeaderboardRow) {
	for i := range rows {
		rows[i].Rank = i + 1
	}
}

// Filter narrows a board. Zero values match everything.
type Filter struct {
	Gender  string
	Country string
	MinAge  int
	MaxAge  int
	Limit   int
}

// Apply filters rows and re-ranks the survivors. It returns the matching rows
// (truncated to Limit) and the number that matched before truncation.
func Apply(rows []models.LeaderboardRow, f Filter) ([]models.LeaderboardRow, int) {
	out := make([]models.LeaderboardRow, 0, len(rows))
	for _, r := range rows {
		if f.Gender != "" && (r.Gender == nil || !strings.EqualFold(*r.Gender, f.Gender)) {
			continue
		}
		if f.Country != "" && (r.Country == nil || !sameCountry(*r.Country, f.Country)) {
			continue
		}
		if f.MinAge > 0 && (r.Age == nil || *r.Age < f.MinAge) {
			continue
		}
		if f.MaxAge > 0 && (r.Age == nil || *r.Age > f.MaxAge) {
			continue
		}
		out = append(out, r)
	}
	assignRanks(out)
	matched := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, matched
}

func sameCountry(a, b string) bool {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return true
	}
	ca, cb := countryCode(a), countryCode(b)
	return ca != "" && ca == cb
}

// Scores returns the board's scores, highest first.
func Scores(rows []models.LeaderboardRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Score
	}
	return out
}

// RankForArtifact returns the artifact's position on the board.
func RankForArtifact(rows []models.LeaderboardRow, artifactID string) (position, total int, ok bool) {
	for i, r := range rows {
		if r.ArtifactID == artifactID {
			return i + 1, len(rows), true
		}
	}
	return 0, len(rows), false
}

// HypotheticalRank places a score that is not on the board: one plus the
// number of strictly higher scores. scores must be sorted descending.
func HypotheticalRank(scores []float64, s float64) (position, total int) {
	higher := 0
	for _, v := range scores {
		if v <= s {
			break
		}
		higher++
	}
	return higher + 1, len(scores) + 1
}

// Percentile is the share of the board, with s inserted, that ranks below s.
func Percentile(scores []float64, s float64) float64 {
	p, total := HypotheticalRank(scores, s)
	return round1(float64(total-p) / float64(total) * 100)
}

// ComputeStats summarizes scores (any order).
func ComputeStats(scores []float64) Stats {
	st := Stats{Breakpoints: map[string]float64{}}
	if len(scores) == 0 {
		return st
	}
	asc := append([]float64(nil), scores...)
	sort.Float64s(asc)

	sum := 0.0
	for _, v := range asc {
		sum += v
	}
	st.Min = asc[0]
	st.Max = asc[len(asc)-1]
	st.Avg = round1(sum / float64(len(asc)))
	for _, p := range breakpoints {
		st.Breakpoints["p"+strconv.Itoa(p)] = round1(quantile(asc, float64(p)/100))
	}
	return st
}

// quantile interpolates linearly between closest ranks of an ascending slice.
func quantile(asc []float64, q float64) float64 {
	if len(asc) == 1 {
		return asc[0]
	}
	pos := q * float64(len(asc)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return asc[lo] + (asc[hi]-asc[lo])*frac
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
