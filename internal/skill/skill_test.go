package skill

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeRunner struct {
	direct      int
	session     int
	instruction string
	result      Result
}

func (f *fakeRunner) RunDirect(_ context.Context, cfg *Config, _ Params) Result {
	f.direct++
	if f.result.Status != "" {
		return f.result
	}
	return Succeeded(cfg, json.RawMessage(`{}`), nil)
}

func (f *fakeRunner) RunSession(_ context.Context, cfg *Config, instruction string, _ Params, _ Credentials) Result {
	f.session++
	f.instruction = instruction
	if f.result.Status != "" {
		return f.result
	}
	return Succeeded(cfg, json.RawMessage(`{}`), nil)
}

func testConfig(id string, cat Category) *Config {
	return &Config{ID: id, Name: "skill " + id, Category: cat, Description: "test"}
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	cfg := testConfig("s1", CategoryDataRetrieval)
	if err := reg.Register(cfg, NewAutomationHandler(cfg, &fakeRunner{}, HandlerOptions{})); err != nil {
		t.Fatalf("register: %v", err)
	}

	h, got, ok := reg.Resolve("s1")
	if !ok || h == nil || got != cfg {
		t.Fatalf("resolve s1 = %v %v %v", h, got, ok)
	}
	if _, _, ok := reg.Resolve("missing"); ok {
		t.Fatal("resolved an unregistered id")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	first := testConfig("dup", CategoryDataRetrieval)
	second := &Config{ID: "dup", Name: "other", Category: CategoryAction}

	if err := reg.Register(first, NewAutomationHandler(first, nil, HandlerOptions{})); err != nil {
		t.Fatalf("register first: %v", err)
	}
	err := reg.Register(second, NewAutomationHandler(second, nil, HandlerOptions{}))
	if !errors.Is(err, ErrDuplicateSkill) {
		t.Fatalf("err = %v, want ErrDuplicateSkill", err)
	}
	if _, cfg, _ := reg.Resolve("dup"); cfg.Name != first.Name {
		t.Errorf("resolved %q, first registration should win", cfg.Name)
	}
}

func TestRegistryRejectsMismatchedHandler(t *testing.T) {
	reg := NewRegistry()
	a := testConfig("a", CategoryDataRetrieval)
	b := testConfig("b", CategoryDataRetrieval)
	if err := reg.Register(a, NewAutomationHandler(b, nil, HandlerOptions{})); err == nil {
		t.Fatal("expected error for handler bound to another skill")
	}
	if err := reg.Register(&Config{}, NewAutomationHandler(a, nil, HandlerOptions{})); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestDescribeForPlanner(t *testing.T) {
	reg := NewRegistry()
	if got := reg.DescribeForPlanner(); got != "No skills available." {
		t.Fatalf("empty registry description = %q", got)
	}

	if err := RegisterBuiltins(reg, &fakeRunner{}); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	desc := reg.DescribeForPlanner()
	if !strings.HasPrefix(desc, "Available skills:\n\n- Tech Job Search (805c9a12-9d9d-4d64-8234-9d8b378cf6cf):") {
		t.Errorf("unexpected description head: %q", desc[:80])
	}
	for _, want := range []string{
		"  Type: action",
		"  When to use: Trigger when journal mentions scheduling",
		`  Example parameters: {"days":3,"location":"San Francisco","units":"e"}`,
	} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q", want)
		}
	}
	if desc != reg.DescribeForPlanner() {
		t.Error("description is not deterministic")
	}
	if !strings.Contains(reg.Catalog(), `skill_id: "27441e62-faaf-4c15-855a-f7bbb479bbf0"`) {
		t.Error("catalog missing gmail draft")
	}
}

func TestRegisterBuiltinsOrder(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, nil); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	want := []string{JobSearchID, HackerNewsID, WeatherID, NewsSearchID, XPostID,
		GoogleCalendarID, YouTubeSearchID, AmazonCartID, GmailDraftID}
	got := reg.List()
	if len(got) != len(want) {
		t.Fatalf("got %d skills, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("skill %d = %s, want %s", i, got[i].ID, id)
		}
	}
	if err := RegisterBuiltins(reg, nil); !errors.Is(err, ErrDuplicateSkill) {
		t.Errorf("second registration err = %v, want ErrDuplicateSkill", err)
	}
}

func TestSchemaValidate(t *testing.T) {
	var cal *Config
	for _, c := range BuiltinConfigs() {
		if c.ID == GoogleCalendarID {
			cal = c
		}
	}

	params, err := cal.Schema.Validate(map[string]any{
		"title": "Dentist", "date": "2025-02-03", "time": "09:30",
		"duration_minutes": float64(30), "color": "blue", "location": nil,
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if params.Int("duration_minutes", 0) != 30 {
		t.Errorf("duration = %v", params["duration_minutes"])
	}
	if params.String("color") != "blue" {
		t.Error("unknown keys should pass through")
	}
	if _, ok := params["location"]; ok {
		t.Error("nil values should be dropped")
	}

	params, err = cal.Schema.Validate(map[string]any{"title": "x", "date": "d", "time": "t"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if params.Int("duration_minutes", 0) != 60 {
		t.Errorf("default duration = %v, want 60", params["duration_minutes"])
	}

	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"missing", map[string]any{"title": "x", "date": "d"}, "time: field required"},
		{"range", map[string]any{"title": "x", "date": "d", "time": "t", "duration_minutes": 5}, "duration_minutes: must be greater than or equal to 15"},
		{"type", map[string]any{"title": 3, "date": "d", "time": "t"}, "title: must be a string"},
		{"fraction", map[string]any{"title": "x", "date": "d", "time": "t", "duration_minutes": 30.5}, "must be an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cal.Schema.Validate(tt.raw)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestSchemaMaxLength(t *testing.T) {
	s := NewSchema(Field{Name: "content", Type: TypeString, Required: true, MaxLength: 3})
	if _, err := s.Validate(map[string]any{"content": "héé"}); err != nil {
		t.Errorf("3 runes should fit: %v", err)
	}
	if _, err := s.Validate(map[string]any{"content": "four"}); err == nil {
		t.Error("expected max length error")
	}
}

func TestHandlerDispatchesByCategory(t *testing.T) {
	reg := NewRegistry()
	runner := &fakeRunner{}
	if err := RegisterBuiltins(reg, runner); err != nil {
		t.Fatal(err)
	}

	h, cfg, _ := reg.Resolve(WeatherID)
	params, _ := cfg.Schema.Validate(map[string]any{"location": "Boston"})
	h.Execute(context.Background(), params, Credentials{})
	if runner.direct != 1 || runner.session != 0 {
		t.Fatalf("weather: direct=%d session=%d", runner.direct, runner.session)
	}

	h, cfg, _ = reg.Resolve(GoogleCalendarID)
	params, _ = cfg.Schema.Validate(map[string]any{
		"title": "Dentist", "date": "2025-02-03", "time": "09:30", "location": "Main St",
	})
	h.Execute(context.Background(), params, Credentials{ProfileID: "p1"})
	if runner.session != 1 {
		t.Fatalf("calendar: session=%d", runner.session)
	}
	want := `Create a calendar event titled "Dentist" on 2025-02-03 at 09:30 for 60 minutes at location: Main St`
	if runner.instruction != want {
		t.Errorf("instruction = %q\nwant %q", runner.instruction, want)
	}
}

func TestFormatNeverPanics(t *testing.T) {
	cfg := testConfig("p", CategoryDataRetrieval)
	h := NewAutomationHandler(cfg, nil, HandlerOptions{
		Label:  "🧪 Probe",
		Format: func(*Config, Result) (Formatted, error) { panic("boom") },
	})
	f := h.Format(Succeeded(cfg, json.RawMessage(`{}`), nil))
	if f.Title != "🧪 Probe - Format Error" {
		t.Errorf("title = %q", f.Title)
	}
	if !strings.Contains(f.Message, "boom") || f.InboxStatus != InboxPending {
		t.Errorf("degraded = %+v", f)
	}
}

func TestDefaultFormat(t *testing.T) {
	cfg := testConfig("d", CategoryAnalysis)
	h := NewAutomationHandler(cfg, nil, HandlerOptions{})

	f := h.Format(Failed(cfg, cfg.ID, "HTTP %d: %s", 429, "slow down"))
	if f.Title != "❌ skill d Failed" || f.Message != "Error: HTTP 429: slow down" {
		t.Errorf("failed = %+v", f)
	}
	f = h.Format(Succeeded(cfg, json.RawMessage(`{"see":"https://example.com/x"}`), nil))
	if f.Title != "✅ skill d Completed" || len(f.Links) != 1 || f.Links[0].URL != "https://example.com/x" {
		t.Errorf("completed = %+v", f)
	}
}

func builtinHandler(t *testing.T, id string) Handler {
	t.Helper()
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, nil); err != nil {
		t.Fatal(err)
	}
	h, _, ok := reg.Resolve(id)
	if !ok {
		t.Fatalf("builtin %s not registered", id)
	}
	return h
}

func TestFormatJobs(t *testing.T) {
	h := builtinHandler(t, JobSearchID)
	out := `{"result":{"success":true,"data":{"count":7,"jobs":[
		{"title":"Go Engineer","company":"Acme","location":"Remote","salary":null},
		{"title":"SRE","company":"Initech"}]}}}`
	f := h.Format(Succeeded(h.Config(), json.RawMessage(out), nil))
	if f.Title != "💼 Found 7 jobs" {
		t.Errorf("title = %q", f.Title)
	}
	for _, want := range []string{"1. Go Engineer at Acme", "💰 Salary not listed", "... and 2 more jobs"} {
		if !strings.Contains(f.Message, want) {
			t.Errorf("message missing %q:\n%s", want, f.Message)
		}
	}
	if f.InboxStatus != InboxNeedsConfirmation {
		t.Errorf("status = %s", f.InboxStatus)
	}
}

func TestFormatProviderFailure(t *testing.T) {
	h := builtinHandler(t, NewsSearchID)
	out := `{"result":{"success":false,"error":{"code":"RATE_LIMITED","message":"Too many requests"}}}`
	f := h.Format(Succeeded(h.Config(), json.RawMessage(out), nil))
	if f.Title != "📰 News Search Failed" || f.Message != "RATE_LIMITED: Too many requests" {
		t.Errorf("formatted = %+v", f)
	}

	f = h.Format(Succeeded(h.Config(), json.RawMessage(`{"other":1}`), nil))
	if f.Title != "📰 News - No Results" {
		t.Errorf("no envelope title = %q", f.Title)
	}

	f = h.Format(Succeeded(h.Config(), json.RawMessage(`[1,2`), nil))
	if f.Title != "📰 News - Format Error" {
		t.Errorf("malformed title = %q", f.Title)
	}
}

func TestFormatCalendarTemplateLink(t *testing.T) {
	h := builtinHandler(t, GoogleCalendarID)
	out := `{"result":{"success":true,"data":{"title":"Dentist","output":"Open https://calendar.google.com/calendar/render?action=TEMPLATE&text=Dentist to add it"}}}`
	f := h.Format(Succeeded(h.Config(), json.RawMessage(out), nil))
	if f.Title != "📅 Calendar Event Ready" || f.Action != "Add to Calendar" {
		t.Errorf("formatted = %+v", f)
	}
	wantURL := "https://calendar.google.com/calendar/render?action=TEMPLATE&text=Dentist"
	if len(f.Links) != 1 || f.Links[0].URL != wantURL {
		t.Errorf("links = %+v", f.Links)
	}

	out = `{"result":{"success":true,"data":{"title":"Dentist","date":"2025-02-03","time":"09:30","output":"done"}}}`
	f = h.Format(Succeeded(h.Config(), json.RawMessage(out), nil))
	if f.Title != "📅 Event Created Successfully" || !strings.Contains(f.Message, "📆 2025-02-03 at 09:30") {
		t.Errorf("formatted = %+v", f)
	}
	if f.InboxStatus != InboxCompleted {
		t.Errorf("status = %s", f.InboxStatus)
	}
}

func TestFormatFailedResult(t *testing.T) {
	for _, c := range BuiltinConfigs() {
		h := builtinHandler(t, c.ID)
		f := h.Format(Failed(c, c.ID, "HTTP 500: oops"))
		if !strings.Contains(f.Title, "Failed") {
			t.Errorf("%s: title %q does not signal failure", c.Name, f.Title)
		}
		if !strings.Contains(f.Message, "HTTP 500: oops") {
			t.Errorf("%s: message %q does not embed error", c.Name, f.Message)
		}
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	plugin := filepath.Join(dir, "standup")
	if err := os.MkdirAll(plugin, 0o755); err != nil {
		t.Fatal(err)
	}
	def := `{
		"id": "plugin-standup",
		"name": "Standup Notes",
		"category": "action",
		"description": "Posts standup notes",
		"planner_hints": "unused",
		"parameters": [{"name": "notes", "type": "string", "required": true}],
		"task_template": "Post these standup notes: {notes}"
	}`
	if err := os.WriteFile(filepath.Join(plugin, "skill.json"), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(plugin, "prompt.md"), []byte("  Use for standups.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	plugins, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(plugins) != 1 || plugins[0].PlannerHints != "Use for standups." {
		t.Fatalf("plugins = %+v", plugins)
	}

	reg := NewRegistry()
	runner := &fakeRunner{}
	if err := RegisterPlugins(reg, runner, plugins); err != nil {
		t.Fatal(err)
	}
	h, cfg, ok := reg.Resolve("plugin-standup")
	if !ok {
		t.Fatal("plugin not registered")
	}
	if _, err := cfg.Schema.Validate(map[string]any{}); err == nil {
		t.Error("expected required field error")
	}
	h.Execute(context.Background(), Params{"notes": "shipped it"}, Credentials{ProfileID: "p"})
	if runner.instruction != "Post these standup notes: shipped it" {
		t.Errorf("instruction = %q", runner.instruction)
	}

	missing, err := LoadFromDir(filepath.Join(dir, "nope"))
	if err != nil || missing != nil {
		t.Errorf("missing dir = %v, %v", missing, err)
	}
}
