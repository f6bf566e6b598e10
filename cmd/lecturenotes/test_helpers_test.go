package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lecturenotes/internal/api"
	"lecturenotes/internal/config"
	"lecturenotes/internal/history"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/preflight"
	"lecturenotes/internal/testsupport"
	"lecturenotes/internal/workflow"
)

const testToken = "cli-secret"

type cliTestEnv struct {
	cfg        *config.Config
	manager    *jobs.Manager
	history    *history.Memory
	generator  *testsupport.Generator
	server     *httptest.Server
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LECTURENOTES_API_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv(userEnvVar, "")

	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(testToken))
	cfg.Workflow.MaxSentences = 1

	env := &cliTestEnv{
		cfg:       cfg,
		manager:   jobs.NewManager(nil, nil),
		history:   history.NewMemory(),
		generator: &testsupport.Generator{},
		baseDir:   base,
	}
	embedder := &testsupport.KeywordEmbedder{Vocabulary: []string{"cat", "dog"}}
	runner, err := workflow.NewRunner(cfg, env.manager, workflow.Collaborators{
		Transcriber: &testsupport.Transcriber{Text: "Cats purr. Dogs bark."},
		Rasterizer:  &testsupport.Rasterizer{Pages: 2},
		Captioner: &testsupport.Captioner{Captions: map[string]string{
			"slide-1": "All about cats",
			"slide-2": "All about dogs",
		}},
		Embedder:  embedder,
		Generator: env.generator,
		History:   env.history,
	}, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	router, err := api.NewRouter(api.Dependencies{
		Config:   cfg,
		Jobs:     env.manager,
		Runner:   runner,
		History:  env.history,
		Embedder: embedder,
		Health: func(context.Context) []preflight.Result {
			return []preflight.Result{{Name: "LLM API", Passed: true, Detail: "API reachable"}}
		},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	env.server = httptest.NewServer(router)
	t.Cleanup(func() {
		env.server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Shutdown(ctx)
	})

	cfg.API.Bind = strings.TrimPrefix(env.server.URL, "http://")
	env.configPath = filepath.Join(homeDir, ".config", "lecturenotes", "config.toml")
	writeTestConfig(t, env.configPath, cfg)
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
workspace_dir = %q
log_dir = %q

[api]
bind = %q
token = %q

[workflow]
max_sentences = %d

[realtime]
dir = %q
`,
		cfg.Paths.DataDir,
		cfg.Paths.WorkspaceDir,
		cfg.Paths.LogDir,
		cfg.API.Bind,
		cfg.API.Token,
		cfg.Workflow.MaxSentences,
		cfg.Realtime.Dir,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeInputs(t *testing.T, dir string) (deck, audio string) {
	t.Helper()
	deck = testsupport.WriteFile(t, filepath.Join(dir, "week1.pdf"), []byte("%PDF-1.4"))
	audio = testsupport.WriteFile(t, filepath.Join(dir, "week1.mp3"), []byte("ID3"))
	return deck, audio
}

func waitForJobStatus(t *testing.T, env *cliTestEnv, id string, want jobs.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := env.manager.Snapshot(id)
		if err == nil && snap.Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
