package daemon_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"lecturenotes/internal/config"
	"lecturenotes/internal/daemon"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/testsupport"
	"lecturenotes/internal/workflow"
)

func newDaemon(t *testing.T, cfg *config.Config, manager *jobs.Manager) *daemon.Daemon {
	t.Helper()
	runner, err := workflow.NewRunner(cfg, manager, workflow.Collaborators{
		Transcriber: &testsupport.Transcriber{Text: "hello."},
		Rasterizer:  &testsupport.Rasterizer{Pages: 1},
		Captioner:   &testsupport.Captioner{},
		Embedder:    &testsupport.KeywordEmbedder{},
		Generator:   &testsupport.Generator{},
	}, nil)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	d, err := daemon.New(cfg, manager, runner, handler, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func stop(d *daemon.Daemon) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Stop(ctx)
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, jobs.NewManager(nil, nil))
	t.Cleanup(func() { stop(d) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running || status.Address == "" {
		t.Fatalf("expected daemon to report running, got %+v", status)
	}

	resp, err := http.Get("http://" + d.Addr() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.TrimSpace(string(body)) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	stop(d)
	if status := d.Status(); status.Running || status.Address != "" {
		t.Fatalf("expected daemon to be stopped, got %+v", status)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg, jobs.NewManager(nil, nil))
	second := newDaemon(t, cfg, jobs.NewManager(nil, nil))
	t.Cleanup(func() {
		stop(second)
		stop(first)
	})

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
}

func TestDaemonSweepsFinishedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Jobs.RetentionMinutes = 1
	cfg.Jobs.SweepIntervalSeconds = 1

	now := time.Now()
	clock := func() time.Time { return now }
	manager := jobs.NewManager(nil, nil, jobs.WithClock(func() time.Time { return clock() }))
	id := manager.Create(jobs.Options{})
	manager.Update(id, 100, "processing complete")
	clock = func() time.Time { return now.Add(2 * time.Minute) }

	d := newDaemon(t, cfg, manager)
	t.Cleanup(func() { stop(d) })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := manager.Snapshot(id); err != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("finished job was not swept")
}
