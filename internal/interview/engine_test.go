package interview

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"hybridhouse/internal/llm"
	"hybridhouse/internal/models"
	"hybridhouse/internal/projection"
	"hybridhouse/internal/store"
	"hybridhouse/internal/store/storetest"
)

const ianProfile = `ATHLETE_PROFILE:::{"first_name":"Ian","sex":"Male","body_metrics":{"weight_lb":190,"height_in":70,"vo2_max":55,"hrv_ms":195,"resting_hr_bpm":45},"pb_mile":"4:59","weekly_miles":40,"long_run":26,"pb_bench_1rm":"315","schema_version":"v1.0"}`

// fakeLLM replays scripted outputs and records requests.
type fakeLLM struct {
	mu       sync.Mutex
	outputs  [][]string
	err      error
	requests []llm.Request
	n        int
}

func (f *fakeLLM) Create(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.n >= len(f.outputs) {
		return &llm.Response{ID: "resp_end", Outputs: []string{"ok"}}, nil
	}
	out := f.outputs[f.n]
	f.n++
	return &llm.Response{ID: "resp_" + string(rune('a'+f.n)), Outputs: out}, nil
}

type fakeScorer struct {
	mu     sync.Mutex
	calls  []string
	result map[string]any
	err    error
}

func (f *fakeScorer) Score(_ context.Context, artifactID string, profile map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, artifactID)
	return f.result, f.err
}

type fixture struct {
	engine     *Engine
	sessions   *storetest.Sessions
	identities *storetest.Identities
	artifacts  *storetest.Artifacts
	llm        *fakeLLM
	scorer     *fakeScorer
}

func newFixture(t *testing.T, async bool, outputs ...[]string) *fixture {
	t.Helper()
	f := &fixture{
		sessions:   storetest.NewSessions(),
		identities: storetest.NewIdentities(),
		artifacts:  storetest.NewArtifacts(),
		llm:        &fakeLLM{outputs: outputs},
		scorer:     &fakeScorer{result: map[string]any{"hybridScore": 80.0}},
	}
	f.engine = NewEngine(f.sessions, f.identities, f.artifacts, f.llm, f.scorer,
		Config{PromptID: "pmpt_test", AsyncScoring: async}, zap.NewNop())
	return f
}

func TestHappyPathInterview(t *testing.T) {
	f := newFixture(t, true,
		[]string{"Hey! What's your first name?"},
		[]string{"Nice to meet you Ian 🎉 What's your mile PR?"},
		[]string{"All set!\n" + ianProfile, "extra output"},
	)
	ctx := context.Background()

	start, err := f.engine.Start(ctx, "u1", "ian@example.com")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if start.Status != models.SessionActive || start.Response != "Hey! What's your first name?" {
		t.Fatalf("start reply = %+v", start)
	}

	r, err := f.engine.Chat(ctx, start.SessionID, "u1", "Ian")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if r.Milestone != "progress" || r.Complete {
		t.Errorf("reply = %+v", r)
	}

	r, err = f.engine.Chat(ctx, start.SessionID, "u1", "4:59")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	f.engine.Wait()

	if !r.Complete || r.Status != models.SessionComplete || r.ArtifactID == "" {
		t.Fatalf("completion reply = %+v", r)
	}
	if r.Response != "All set!" {
		t.Errorf("response = %q", r.Response)
	}

	id, _ := f.identities.Get(ctx, "u1")
	if id.Name == nil || *id.Name != "Ian" || *id.WeightLb != 190 || *id.HeightIn != 70 {
		t.Errorf("identity = %+v", id)
	}

	a, err := f.artifacts.Get(ctx, r.ArtifactID)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if *a.PbMileSeconds != 299 || *a.VO2Max != 55 || *a.PbBench1RMLb != 315 {
		t.Errorf("artifact scalars = %+v", a)
	}
	var stored map[string]any
	if err := json.Unmarshal(a.ProfileJSON, &stored); err != nil {
		t.Fatal(err)
	}
	if err := projection.CheckNoPersonalData(stored); err != nil {
		t.Errorf("stored profile leaks: %v", err)
	}

	sess, _ := f.sessions.Get(ctx, start.SessionID)
	if sess.Status != models.SessionComplete || sess.ArtifactID == nil || *sess.ArtifactID != r.ArtifactID {
		t.Errorf("session = %+v", sess)
	}
	if len(f.scorer.calls) != 1 || f.scorer.calls[0] != r.ArtifactID {
		t.Errorf("scorer calls = %v", f.scorer.calls)
	}
}

func TestChatSendsStrippedHistoryAndPreviousResponse(t *testing.T) {
	f := newFixture(t, true, []string{"hello"}, []string{"next?"})
	ctx := context.Background()
	start, _ := f.engine.Start(ctx, "u1", "")
	if _, err := f.engine.Chat(ctx, start.SessionID, "u1", "Ian"); err != nil {
		t.Fatal(err)
	}
	req := f.llm.requests[1]
	if req.PreviousResponseID != "resp_b" {
		t.Errorf("previous_response_id = %q", req.PreviousResponseID)
	}
	if len(req.Input) != 2 || req.Input[0].Role != "assistant" || req.Input[1].Content != "Ian" {
		t.Errorf("input = %+v", req.Input)
	}
	if req.PromptID != "pmpt_test" {
		t.Errorf("prompt id = %q", req.PromptID)
	}
}

func TestStartTerminatesPreviousSession(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	s1, _ := f.engine.Start(ctx, "u1", "")
	s2, err := f.engine.Start(ctx, "u1", "")
	if err != nil {
		t.Fatal(err)
	}
	if s1.SessionID == s2.SessionID {
		t.Fatal("expected a new session")
	}
	if n := f.sessions.ActiveCount("u1"); n != 1 {
		t.Errorf("active sessions = %d", n)
	}
	if _, err := f.engine.Chat(ctx, s1.SessionID, "u1", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("chat on replaced session: %v", err)
	}
}

func TestChatRejectsOtherUsers(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	s, _ := f.engine.Start(ctx, "u1", "")
	if _, err := f.engine.Chat(ctx, s.SessionID, "u2", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := f.engine.Session(ctx, s.SessionID, "u2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestMalformedSentinel(t *testing.T) {
	f := newFixture(t, true, []string{"hi"}, []string{"ATHLETE_PROFILE:::{not json"})
	ctx := context.Background()
	s, _ := f.engine.Start(ctx, "u1", "")

	r, err := f.engine.Chat(ctx, s.SessionID, "u1", "done talking")
	if err != nil {
		t.Fatalf("Chat must not fail hard: %v", err)
	}
	if r.Status != models.SessionError || r.Error == "" || r.Complete {
		t.Errorf("reply = %+v", r)
	}
	mine, _ := f.artifacts.ListByUser(ctx, "u1", store.ListFilter{})
	if len(mine) != 0 {
		t.Errorf("artifacts created: %d", len(mine))
	}
	if _, err := f.engine.Chat(ctx, s.SessionID, "u1", "again"); !errors.Is(err, ErrSessionInactive) {
		t.Errorf("chat after error: %v", err)
	}
}

func TestStartFallsBackWhenLLMFails(t *testing.T) {
	f := newFixture(t, true)
	f.llm.err = errors.New("network down")
	ctx := context.Background()

	s, err := f.engine.Start(ctx, "u1", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Response != welcomeMessage || s.Status != models.SessionActive {
		t.Errorf("reply = %+v", s)
	}

	r, err := f.engine.Chat(ctx, s.SessionID, "u1", "Ian")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if r.Error == "" || r.Status != models.SessionActive {
		t.Errorf("reply = %+v", r)
	}
	sess, _ := f.sessions.Get(ctx, s.SessionID)
	if sess.Status != models.SessionActive || len(sess.Messages) != 2 {
		t.Errorf("session = %+v", sess)
	}
}

func TestForceComplete(t *testing.T) {
	f := newFixture(t, false, []string{"hi"}, []string{"What's your mile PR?"})
	ctx := context.Background()
	s, _ := f.engine.Start(ctx, "u1", "")
	if _, err := f.engine.Chat(ctx, s.SessionID, "u1", "Ian"); err != nil {
		t.Fatal(err)
	}

	r, err := f.engine.Chat(ctx, s.SessionID, "u1", " finish ")
	if err != nil {
		t.Fatalf("force: %v", err)
	}
	if !r.Complete || r.ArtifactID == "" {
		t.Fatalf("reply = %+v", r)
	}
	for _, k := range projection.RequiredFields {
		if _, ok := r.Profile[k]; !ok {
			t.Errorf("missing %s", k)
		}
	}
	if r.Profile["force_completed"] != true {
		t.Error("expected force_completed marker")
	}
	if r.Scores["hybridScore"] != 80.0 {
		t.Errorf("sync scores = %v", r.Scores)
	}
	if len(f.llm.requests) != 2 {
		t.Errorf("force complete must not call the model, requests = %d", len(f.llm.requests))
	}
}

func TestSchemaDriftWarnings(t *testing.T) {
	f := newFixture(t, true, []string{"hi"}, []string{ianProfile})
	f.identities = storetest.NewIdentities("height_in")
	f.engine = NewEngine(f.sessions, f.identities, f.artifacts, f.llm, nil, Config{}, zap.NewNop())
	ctx := context.Background()

	s, _ := f.engine.Start(ctx, "u1", "")
	r, err := f.engine.Chat(ctx, s.SessionID, "u1", "70 inches")
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "height_in") {
		t.Errorf("warnings = %v", r.Warnings)
	}
	id, _ := f.identities.Get(ctx, "u1")
	if id.HeightIn != nil || id.WeightLb == nil {
		t.Errorf("identity = %+v", id)
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{ianProfile, true},
		{"Done!\nATHLETE_PROFILE:::```json\n{\"first_name\":\"A\"}\n```", true},
		{"ATHLETE_PROFILE:::{not json", false},
		{"ATHLETE_PROFILE:::", false},
	}
	for _, tt := range tests {
		_, err := ParseProfile(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseProfile(%q) err = %v", tt.in, err)
		}
		if err != nil && !errors.Is(err, ErrMalformedProfile) {
			t.Errorf("error should wrap ErrMalformedProfile: %v", err)
		}
	}
}

func TestIsForceComplete(t *testing.T) {
	for in, want := range map[string]bool{
		"DONE": true, "done": true, " Finish ": true, "FORCE_COMPLETE": true,
		"I'm done": false, "": false,
	} {
		if got := IsForceComplete(in); got != want {
			t.Errorf("IsForceComplete(%q) = %v", in, got)
		}
	}
}
