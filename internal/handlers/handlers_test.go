package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"hybridhouse/internal/cache"
	"hybridhouse/internal/interview"
	mw "hybridhouse/internal/middleware"
	"hybridhouse/internal/models"
	"hybridhouse/internal/ranking"
	"hybridhouse/internal/scoring"
	"hybridhouse/internal/store"
	"hybridhouse/internal/store/storetest"
)

var testSecret = []byte("handler-secret")

type stubInterviewer struct {
	chatErr error
	gotMsg  string
}

func (s *stubInterviewer) Start(_ context.Context, userID, _ string) (*interview.Reply, error) {
	return &interview.Reply{SessionID: "sess-" + userID, Status: models.SessionActive, Response: "hello"}, nil
}

func (s *stubInterviewer) Chat(_ context.Context, sessionID, _ string, message string) (*interview.Reply, error) {
	s.gotMsg = message
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	return &interview.Reply{SessionID: sessionID, Status: models.SessionActive, Response: "ok"}, nil
}

func (s *stubInterviewer) Session(_ context.Context, sessionID, userID string) (*models.Session, error) {
	if sessionID != "sess-"+userID {
		return nil, interview.ErrSessionNotFound
	}
	return &models.Session{ID: sessionID, UserID: userID, Status: models.SessionActive}, nil
}

type env struct {
	identities *storetest.Identities
	artifacts  *storetest.Artifacts
	interview  *stubInterviewer
	handler    http.Handler
}

func newEnv(t *testing.T, missingIdentityColumns ...string) *env {
	t.Helper()
	log := zap.NewNop()
	e := &env{
		identities: storetest.NewIdentities(missingIdentityColumns...),
		artifacts:  storetest.NewArtifacts(),
		interview:  &stubInterviewer{},
	}
	svc := ranking.NewService(e.artifacts, e.identities, cache.NewMemory(), time.Minute, log)
	e.handler = NewRouter(Deps{
		Identities:  e.identities,
		Artifacts:   e.artifacts,
		Ranker:      svc,
		Interviewer: e.interview,
		Scores:      scoring.NewDispatcher("", 0, e.artifacts, svc, log),
		Auth:        mw.NewAuthMiddleware(testSecret, "authenticated"),
		Status:      StatusConfig{Version: "test", JWTSecretSet: true},
		CORSOrigins: []string{"*"},
		Log:         log,
	})
	return e
}

func (e *env) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		tok, err := mw.IssueToken(testSecret, "authenticated", userID, userID+"@example.com", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

func scoredArtifact(id, userID string, hybrid float64, public bool) models.Artifact {
	s := ptr(hybrid)
	return models.Artifact{
		ID: id, UserID: userID, IsPublic: public,
		HybridScore: s, StrengthScore: s, SpeedScore: s, VO2Score: s,
		DistanceScore: s, VolumeScore: s, RecoveryScore: s,
	}
}

var s2Scores = map[string]any{
	"hybridScore": 78.5, "strengthScore": 82.3, "speedScore": 75.8, "vo2Score": 71.2,
	"distanceScore": 79.1, "volumeScore": 76.4, "recoveryScore": 80.7,
}

func TestScoreCallbackPutsArtifactOnLeaderboard(t *testing.T) {
	e := newEnv(t)
	e.identities.Put(models.Identity{UserID: "u1", DisplayName: ptr("Ian Reed")})
	e.artifacts.Put(models.Artifact{ID: "a1", UserID: "u1", IsPublic: true})

	rec := e.do(t, http.MethodGet, "/leaderboard", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard status = %d", rec.Code)
	}
	if got := decode(t, rec)["total"]; got != 0.0 {
		t.Fatalf("total before scoring = %v", got)
	}

	rec = e.do(t, http.MethodPost, "/athlete-profile/a1/score", "", s2Scores)
	if rec.Code != http.StatusOK {
		t.Fatalf("score status = %d body = %s", rec.Code, rec.Body)
	}

	body := decode(t, e.do(t, http.MethodGet, "/leaderboard", "", nil))
	rows := body["leaderboard"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows = %v", rows)
	}
	row := rows[0].(map[string]any)
	if row["artifact_id"] != "a1" || row["score"] != 78.5 || row["rank"] != 1.0 || row["display_name"] != "Ian Reed" {
		t.Errorf("row = %v", row)
	}
	meta := body["ranking_metadata"].(map[string]any)
	if meta["avg_score"] != 78.5 {
		t.Errorf("metadata = %v", meta)
	}
}

func TestScoreCallbackErrors(t *testing.T) {
	e := newEnv(t)
	e.artifacts.Put(models.Artifact{ID: "a1", UserID: "u1", IsPublic: true})

	if rec := e.do(t, http.MethodPost, "/athlete-profile/missing/score", "", s2Scores); rec.Code != http.StatusNotFound {
		t.Errorf("missing artifact status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, "/athlete-profile/a1/score", "", map[string]any{"tips": "run more"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no scores status = %d", rec.Code)
	}
}

func TestWebhookScoreByBody(t *testing.T) {
	e := newEnv(t)
	e.artifacts.Put(models.Artifact{ID: "a9", UserID: "u1", IsPublic: true})

	rec := e.do(t, http.MethodPost, "/webhook/score", "", map[string]any{
		"profileId": "a9",
		"scores":    s2Scores,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	a, _ := e.artifacts.Get(context.Background(), "a9")
	if a.HybridScore == nil || *a.HybridScore != 78.5 || a.CompletedAt == nil {
		t.Errorf("artifact = %+v", a)
	}

	rec = e.do(t, http.MethodPost, "/webhook/score", "", s2Scores)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing id status = %d", rec.Code)
	}
}

func TestPrivacyToggle(t *testing.T) {
	e := newEnv(t)
	e.artifacts.Put(scoredArtifact("a1", "owner", 80, true))

	if rec := e.do(t, http.MethodPut, "/athlete-profile/a1/privacy", "intruder", map[string]bool{"is_public": false}); rec.Code != http.StatusNotFound {
		t.Fatalf("non-owner status = %d", rec.Code)
	}
	// Warm the cache so the toggle has to invalidate it.
	if got := decode(t, e.do(t, http.MethodGet, "/leaderboard", "", nil))["total"]; got != 1.0 {
		t.Fatalf("total = %v", got)
	}

	rec := e.do(t, http.MethodPut, "/athlete-profile/a1/privacy", "owner", map[string]bool{"is_public": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner status = %d body = %s", rec.Code, rec.Body)
	}
	if got := decode(t, e.do(t, http.MethodGet, "/leaderboard", "", nil))["total"]; got != 0.0 {
		t.Errorf("total after hiding = %v", got)
	}

	if rec := e.do(t, http.MethodGet, "/athlete-profile/a1", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("anonymous read of private artifact = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/athlete-profile/a1", "owner", nil); rec.Code != http.StatusOK {
		t.Errorf("owner read of private artifact = %d", rec.Code)
	}

	rank := decode(t, e.do(t, http.MethodGet, "/ranking/a1", "", nil))
	r := rank["ranking"].(map[string]any)
	if r["position"] != 1.0 || r["total_athletes"] != 1.0 || r["on_leaderboard"] != false {
		t.Errorf("ranking = %v", rank)
	}
}

func TestDeleteArtifact(t *testing.T) {
	e := newEnv(t)
	e.artifacts.Put(scoredArtifact("a1", "owner", 80, true))

	if rec := e.do(t, http.MethodDelete, "/athlete-profile/a1", "intruder", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("non-owner delete = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/athlete-profile/a1", "owner", nil); rec.Code != http.StatusOK {
		t.Fatalf("owner delete = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/athlete-profile/a1", "owner", nil); rec.Code != http.StatusNotFound {
		t.Errorf("read after delete = %d", rec.Code)
	}
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/user-profile/me", "/user-profile/me/athlete-profiles"} {
		rec := e.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s status = %d", path, rec.Code)
		}
		if got := decode(t, rec)["detail"]; got != "invalid token format" {
			t.Errorf("%s detail = %v", path, got)
		}
	}
}

func TestUserProfileGetAndUpdate(t *testing.T) {
	e := newEnv(t, "timezone")

	me := decode(t, e.do(t, http.MethodGet, "/user-profile/me", "u7", nil))
	if me["user_id"] != "u7" || me["display_name"] != "u7" {
		t.Fatalf("me = %v", me)
	}

	rec := e.do(t, http.MethodPut, "/user-profile/me", "u7", map[string]any{
		"date_of_birth":    "02/05/2001",
		"gender":           "F",
		"timezone":         "America/Denver",
		"units_preference": "Metric",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body = %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	profile := body["user_profile"].(map[string]any)
	if profile["date_of_birth"] != "2001-02-05" || profile["gender"] != "female" || profile["units_preference"] != "metric" {
		t.Errorf("profile = %v", profile)
	}
	if profile["age"] == nil {
		t.Error("age not derived")
	}
	warnings, _ := body["warning"].([]any)
	if len(warnings) != 1 || !strings.Contains(warnings[0].(string), "timezone") {
		t.Errorf("warning = %v", body["warning"])
	}

	rec = e.do(t, http.MethodPut, "/user-profile/me", "u7", map[string]any{"units_preference": "furlongs"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad units status = %d", rec.Code)
	}
}

func TestUploadAvatar(t *testing.T) {
	e := newEnv(t)

	img := image.NewRGBA(image.Rect(0, 0, 50, 80))
	for x := 0; x < 50; x++ {
		for y := 0; y < 80; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	part, _ := mp.CreateFormFile("file", "me.png")
	if err := png.Encode(part, img); err != nil {
		t.Fatal(err)
	}
	_ = mp.Close()

	req := httptest.NewRequest(http.MethodPost, "/user-profile/me/avatar", &buf)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	tok, _ := mw.IssueToken(testSecret, "authenticated", "u3", "", time.Hour)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	id, _ := e.identities.Get(context.Background(), "u3")
	if id.Avatar == nil || !strings.HasPrefix(*id.Avatar, "data:image/jpeg;base64,") {
		t.Errorf("avatar not stored")
	}
}

func TestCreatePublicArtifact(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/athlete-profiles/public", "", map[string]any{
		"profile_json": map[string]any{
			"first_name":   "Ian",
			"last_name":    "Reed",
			"sex":          "Male",
			"body_metrics": map[string]any{"weight_lb": 190, "height_in": 70, "vo2_max": 55},
			"pb_mile":      "4:59",
			"weekly_miles": 40,
		},
		"score_data": s2Scores,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	userID, _ := body["user_id"].(string)
	if userID == "" {
		t.Fatal("no synthetic user id")
	}

	id, err := e.identities.Get(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	if id.Name == nil || *id.Name != "Ian Reed" || id.WeightLb == nil || *id.WeightLb != 190 {
		t.Errorf("identity = %+v", id)
	}

	artifactID := body["profile"].(map[string]any)["id"].(string)
	a, _ := e.artifacts.Get(context.Background(), artifactID)
	if a.PbMileSeconds == nil || *a.PbMileSeconds != 299 || !a.ScoreComplete() {
		t.Errorf("artifact = %+v", a)
	}
	var stored map[string]any
	_ = json.Unmarshal(a.ProfileJSON, &stored)
	for _, k := range []string{"first_name", "last_name", "sex"} {
		if _, ok := stored[k]; ok {
			t.Errorf("profile_json kept %s", k)
		}
	}
	if bm, _ := stored["body_metrics"].(map[string]any); bm["weight_lb"] != nil || bm["height_in"] != nil {
		t.Errorf("body_metrics kept personal fields: %v", bm)
	}

	lb := decode(t, e.do(t, http.MethodGet, "/leaderboard", "", nil))
	if lb["total"] != 1.0 {
		t.Errorf("leaderboard total = %v", lb["total"])
	}
}

func TestCreatePublicRejectsExistingUser(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPut, "/user-profile/me", "victim", map[string]any{
		"name":      "Real Person",
		"weight_lb": 180,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body = %s", rec.Code, rec.Body)
	}

	rec = e.do(t, http.MethodPost, "/athlete-profiles/public", "", map[string]any{
		"user_id": "victim",
		"profile_json": map[string]any{
			"first_name":   "Hacked",
			"email":        "attacker@evil.test",
			"body_metrics": map[string]any{"weight_lb": 999},
		},
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}

	id, err := e.identities.Get(context.Background(), "victim")
	if err != nil {
		t.Fatal(err)
	}
	if id.Name == nil || *id.Name != "Real Person" {
		t.Errorf("name = %v", id.Name)
	}
	if id.Email == nil || *id.Email != "victim@example.com" {
		t.Errorf("email = %v", id.Email)
	}
	if id.WeightLb == nil || *id.WeightLb != 180 {
		t.Errorf("weight = %v", id.WeightLb)
	}
	list, _ := e.artifacts.ListByUser(context.Background(), "victim", store.ListFilter{})
	if len(list) != 0 {
		t.Errorf("artifacts created for existing user: %d", len(list))
	}

	rec = e.do(t, http.MethodPost, "/athlete-profiles/public", "", map[string]any{
		"user_id":      "fresh-anon",
		"profile_json": map[string]any{"first_name": "New"},
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("unclaimed id status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestCreateRequiresProfile(t *testing.T) {
	e := newEnv(t)
	if rec := e.do(t, http.MethodPost, "/athlete-profiles", "u1", map[string]any{}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestUpdateArtifactClearsScores(t *testing.T) {
	e := newEnv(t)
	e.identities.Put(models.Identity{UserID: "owner"})
	e.artifacts.Put(scoredArtifact("a1", "owner", 80, true))

	rec := e.do(t, http.MethodPut, "/athlete-profile/a1", "owner", map[string]any{
		"profile_json": map[string]any{"weekly_miles": 55, "first_name": "Ana"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	a, _ := e.artifacts.Get(context.Background(), "a1")
	if a.HybridScore != nil || a.WeeklyMiles == nil || *a.WeeklyMiles != 55 {
		t.Errorf("artifact = %+v", a)
	}
	id, _ := e.identities.Get(context.Background(), "owner")
	if id.Name == nil || *id.Name != "Ana" {
		t.Errorf("identity name = %v", id.Name)
	}
}

func TestPublicProfile(t *testing.T) {
	e := newEnv(t)
	e.identities.Put(models.Identity{
		UserID: "u1", Name: ptr("Ian Reed"), Email: ptr("ian@example.com"),
		WeightLb: ptr(190.0), Country: ptr("US"),
	})
	e.artifacts.Put(scoredArtifact("pub", "u1", 80, true))
	e.artifacts.Put(scoredArtifact("priv", "u1", 90, false))

	rec := e.do(t, http.MethodGet, "/public-profile/u1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["total"] != 1.0 {
		t.Errorf("total = %v", body["total"])
	}
	profile := body["user_profile"].(map[string]any)
	if profile["display_name"] != "Ian Reed" || profile["country_flag"] != "🇺🇸" {
		t.Errorf("profile = %v", profile)
	}
	for _, k := range []string{"email", "weight_lb"} {
		if _, ok := profile[k]; ok {
			t.Errorf("public profile exposes %s", k)
		}
	}

	if rec := e.do(t, http.MethodGet, "/public-profile/nobody", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d", rec.Code)
	}
}

func TestPublicProfileHidesEmailName(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		id   models.Identity
		want string
	}{
		{"email only", models.Identity{UserID: "abcdef123456", Email: ptr("jane.doe@example.com")}, "User abcdef12"},
		{"seeded display name", models.Identity{UserID: "seeded12345", Email: ptr("jane.doe@example.com"), DisplayName: ptr("jane.doe")}, "User seeded12"},
		{"chosen display name", models.Identity{UserID: "chosen", Email: ptr("jane.doe@example.com"), DisplayName: ptr("JD")}, "JD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.identities.Put(tt.id)
			rec := e.do(t, http.MethodGet, "/public-profile/"+tt.id.UserID, "", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			profile := decode(t, rec)["user_profile"].(map[string]any)
			if profile["display_name"] != tt.want {
				t.Errorf("display_name = %v, want %q", profile["display_name"], tt.want)
			}
			if strings.Contains(rec.Body.String(), "jane.doe") {
				t.Errorf("body leaks email: %s", rec.Body)
			}
		})
	}
}

func TestLeaderboardFilters(t *testing.T) {
	e := newEnv(t)
	e.identities.Put(models.Identity{UserID: "m", Gender: ptr("male")})
	e.identities.Put(models.Identity{UserID: "f", Gender: ptr("female")})
	e.artifacts.Put(scoredArtifact("a-m", "m", 90, true))
	e.artifacts.Put(scoredArtifact("a-f", "f", 70, true))

	body := decode(t, e.do(t, http.MethodGet, "/leaderboard?gender=F", "", nil))
	rows := body["leaderboard"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["artifact_id"] != "a-f" || rows[0].(map[string]any)["rank"] != 1.0 {
		t.Errorf("rows = %v", rows)
	}
	if body["total_public_athletes"] != 2.0 {
		t.Errorf("total_public_athletes = %v", body["total_public_athletes"])
	}

	for _, q := range []string{"limit=x", "min_age=-3", "min_age=40&max_age=30"} {
		if rec := e.do(t, http.MethodGet, "/leaderboard?"+q, "", nil); rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s status = %d", q, rec.Code)
		}
	}
}

func TestInterviewRoutes(t *testing.T) {
	e := newEnv(t)

	start := decode(t, e.do(t, http.MethodPost, "/hybrid-interview/start", "u1", nil))
	if start["session_id"] != "sess-u1" {
		t.Fatalf("start = %v", start)
	}

	rec := e.do(t, http.MethodPost, "/hybrid-interview/chat", "u1", map[string]any{
		"session_id": "sess-u1",
		"messages": []map[string]string{
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "name?"},
			{"role": "user", "content": "Ian"},
		},
	})
	if rec.Code != http.StatusOK || e.interview.gotMsg != "Ian" {
		t.Fatalf("chat status = %d msg = %q", rec.Code, e.interview.gotMsg)
	}

	if rec := e.do(t, http.MethodGet, "/hybrid-interview/session/sess-u1", "u1", nil); rec.Code != http.StatusOK {
		t.Errorf("session status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/hybrid-interview/session/sess-u1", "u2", nil); rec.Code != http.StatusNotFound {
		t.Errorf("foreign session status = %d", rec.Code)
	}

	tests := []struct {
		err  error
		want int
	}{
		{interview.ErrSessionNotFound, http.StatusNotFound},
		{interview.ErrSessionInactive, http.StatusConflict},
		{interview.ErrEmptyMessage, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		e.interview.chatErr = tt.err
		rec := e.do(t, http.MethodPost, "/hybrid-interview/chat", "u1", map[string]any{"session_id": "s", "message": "x"})
		if rec.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}

	e.interview.chatErr = nil
	if rec := e.do(t, http.MethodPost, "/hybrid-interview/chat", "u1", map[string]any{"message": "x"}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing session_id status = %d", rec.Code)
	}
}

func TestStatusRows(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rows []ComponentStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, r := range rows {
		got[r.Component] = r.Status
	}
	want := map[string]string{
		"database":        statusUnconfigured,
		"jwt_secret":      statusOK,
		"llm":             statusUnconfigured,
		"scoring_webhook": statusUnconfigured,
		"cache":           statusUnconfigured,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestStatusReportsPingFailure(t *testing.T) {
	h := NewStatusHandler(PingFunc(func(context.Context) error { return errors.New("connection refused") }), nil, StatusConfig{})
	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var rows []ComponentStatus
	_ = json.Unmarshal(rec.Body.Bytes(), &rows)
	if rows[0].Component != "database" || rows[0].Status != statusError || rows[0].Details != "connection refused" {
		t.Errorf("database row = %+v", rows[0])
	}
}
