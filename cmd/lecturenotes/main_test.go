package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lecturenotes/internal/api"
	"lecturenotes/internal/client"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/results"
	"lecturenotes/internal/testsupport"
)

func TestSubmitWaitPrintsNotes(t *testing.T) {
	env := setupCLITestEnv(t)
	deck, audio := writeInputs(t, t.TempDir())

	out, _, err := runCLI(t, []string{"submit", deck, "--audio", audio, "--wait", "--interval", "10ms"}, env.configPath)
	if err != nil {
		t.Fatalf("submit --wait: %v", err)
	}
	requireContains(t, out, "submitted")
	requireContains(t, out, "completed")
	start := strings.Index(out, "{")
	if start < 0 {
		t.Fatalf("no JSON in output: %s", out)
	}
	var notes results.Notes
	if err := json.Unmarshal([]byte(out[start:]), &notes); err != nil {
		t.Fatalf("decode notes: %v\n%s", err, out)
	}
	if keys := notes.Keys(); len(keys) != 2 || keys[0] != "slide1" {
		t.Fatalf("unexpected slides %v", keys)
	}
	slide1, _ := notes.Get("slide1")
	if !strings.Contains(slide1.ConciseSummary, "All about cats") {
		t.Fatalf("slide1 summary = %q", slide1.ConciseSummary)
	}
}

func TestSubmitThenStatusResultJobsDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	deck, audio := writeInputs(t, t.TempDir())

	out, _, err := runCLI(t, []string{"submit", deck, "-a", audio}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		t.Fatal("expected job id")
	}
	waitForJobStatus(t, env, id, jobs.StatusCompleted)

	out, _, err = runCLI(t, []string{"status", id}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "completed")

	resultPath := filepath.Join(t.TempDir(), "notes.json")
	out, _, err = runCLI(t, []string{"result", id, "-o", resultPath}, env.configPath)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	requireContains(t, out, "Wrote 2 slide notes")
	if !fileExists(resultPath) {
		t.Fatalf("expected %s", resultPath)
	}

	out, _, err = runCLI(t, []string{"jobs", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	var list api.JobListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode jobs: %v", err)
	}
	if len(list.Jobs) != 1 || list.Jobs[0].ID != id || list.Jobs[0].Status != jobs.StatusCompleted {
		t.Fatalf("unexpected jobs %+v", list.Jobs)
	}

	out, _, err = runCLI(t, []string{"jobs"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs table: %v", err)
	}
	requireContains(t, out, "week1.pdf")

	out, _, err = runCLI(t, []string{"delete", id, "missing-job"}, env.configPath)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Job "+id+" deleted")
	requireContains(t, out, "Job missing-job not found")
}

func TestSubmitRequiresAudioOrTranscript(t *testing.T) {
	env := setupCLITestEnv(t)
	deck, _ := writeInputs(t, t.TempDir())
	_, _, err := runCLI(t, []string{"submit", deck}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "--audio is required") {
		t.Fatalf("expected audio error, got %v", err)
	}
}

func TestSubmitWithTranscriptFile(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	deck, _ := writeInputs(t, dir)
	transcript := filepath.Join(dir, "transcript.txt")
	testsupport.WriteFile(t, transcript, []byte("Cats purr loudly. Dogs bark often."))

	out, _, err := runCLI(t, []string{"submit", deck, "--transcript", transcript}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForJobStatus(t, env, strings.TrimSpace(out), jobs.StatusCompleted)
}

func TestResultOfUnknownJobFails(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"result", "nope"}, env.configPath)
	if !client.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWrongTokenIsRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.API.Token = "wrong"
	writeTestConfig(t, env.configPath, env.cfg)
	_, _, err := runCLI(t, []string{"jobs"}, env.configPath)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 401 {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHistoryCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	deck, audio := writeInputs(t, t.TempDir())

	args := []string{"--user", "ana@example.edu"}
	out, _, err := runCLI(t, append(args, "submit", deck, "-a", audio), env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForJobStatus(t, env, strings.TrimSpace(out), jobs.StatusCompleted)

	out, _, err = runCLI(t, append(args, "history", "list"), env.configPath)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "week1.pdf")

	out, _, err = runCLI(t, append(args, "history", "search", "dog", "--json"), env.configPath)
	if err != nil {
		t.Fatalf("history search: %v", err)
	}
	var search api.SearchResponse
	if err := json.Unmarshal([]byte(out), &search); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(search.Hits) == 0 || search.Hits[0].SlideKey != "slide2" {
		t.Fatalf("unexpected hits %+v", search.Hits)
	}

	out, _, err = runCLI(t, append(args, "history", "show", "week1.pdf"), env.configPath)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "All about dogs")

	if _, _, err := runCLI(t, append(args, "history", "delete", "week1.pdf"), env.configPath); err != nil {
		t.Fatalf("history delete: %v", err)
	}
	out, _, err = runCLI(t, append(args, "history", "list"), env.configPath)
	if err != nil {
		t.Fatalf("history list after delete: %v", err)
	}
	requireContains(t, out, "No saved lectures")
}

func TestHistoryRequiresUser(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"history", "list"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "user email is required") {
		t.Fatalf("expected user error, got %v", err)
	}
}

func TestDoctorRemoteAndLocal(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"doctor", "--remote"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor --remote: %v", err)
	}
	requireContains(t, out, "Daemon Checks")
	requireContains(t, out, "1 checks passed")

	// No API key is configured, so the local LLM check fails without
	// touching the network.
	out, _, err = runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatal("expected local doctor to fail without an API key")
	}
	requireContains(t, out, "API key missing")
}

func TestFormatErrorIncludesHint(t *testing.T) {
	err := &client.APIError{StatusCode: 503, Message: "llm unavailable", Hint: "set llm.api_key"}
	if got := formatError(err); !strings.Contains(got, "hint: set llm.api_key") {
		t.Fatalf("formatError = %q", got)
	}
}

func TestStartReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"start"}, env.configPath)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "Daemon already running")
}

func TestStopWhenNothingListens(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Close()
	out, _, err := runCLI(t, []string{"stop"}, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestTestNotifyDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("NTFY_TOPIC", "")
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}

func TestLogsPrintsTrailingLinesForJob(t *testing.T) {
	env := setupCLITestEnv(t)
	logDir := env.cfg.Paths.LogDir
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "job_id=aaa stage=transcribe\njob_id=bbb stage=transcribe\njob_id=aaa stage=assemble\n"
	if err := os.WriteFile(filepath.Join(logDir, "lecturenotes.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--job", "aaa", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(out) != "job_id=aaa stage=assemble" {
		t.Fatalf("unexpected logs output: %q", out)
	}
}

func TestLogsWithoutFile(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log output")
}
