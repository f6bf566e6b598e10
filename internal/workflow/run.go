package workflow

import (
	"context"
	"log/slog"
	"time"

	"lecturenotes/internal/logging"
	"lecturenotes/internal/mapping"
	"lecturenotes/internal/notes"
	"lecturenotes/internal/rasterize"
	"lecturenotes/internal/segment"
	"lecturenotes/internal/services"
)

// runState carries intermediate results between stages of one job.
type runState struct {
	id  string
	req Request

	pdfPath string
	pages   int

	transcript string
	images     []rasterize.Image
	captions   []string
	segments   []segment.Segment
	index      *mapping.Index
	mapped     []mapping.Result
	importance map[string]string
	notes      map[string]notes.Note
}

type stage struct {
	name string
	run  func(ctx context.Context, logger *slog.Logger, s *runState) error
}

func (r *Runner) stages() []stage {
	return []stage{
		{name: "transcribe", run: r.transcribe},
		{name: "slides", run: r.slides},
		{name: "segment", run: r.segment},
		{name: "map", run: r.mapSegments},
		{name: "importance", run: r.classifyImportance},
		{name: "notes", run: r.generateNotes},
		{name: "history", run: r.saveHistory},
	}
}

// Run executes job id synchronously. It never returns an error: every
// outcome is recorded on the job. The workspace is removed on exit.
func (r *Runner) Run(ctx context.Context, id string, req Request) {
	ctx = services.WithJobID(ctx, id)
	logger := logging.WithContext(ctx, r.logger)
	start := time.Now()
	defer r.sampler.Forget(id)
	defer r.cleanupWorkspace(logger, req.WorkDir)

	state := &runState{id: id, req: req, notes: make(map[string]notes.Note)}

	prepCtx := services.WithStage(ctx, "prepare")
	if err := r.prepare(prepCtx, state); err != nil {
		r.handleFailure(prepCtx, state, "prepare", err)
		return
	}

	for _, st := range r.stages() {
		stageCtx := services.WithStage(ctx, st.name)
		if err := ctx.Err(); err != nil {
			r.handleFailure(stageCtx, state, st.name,
				services.Wrap(services.ErrCancelled, st.name, "run", "job cancelled", err))
			return
		}
		if err := r.executeStage(stageCtx, st, state); err != nil {
			r.handleFailure(stageCtx, state, st.name, err)
			return
		}
	}

	r.report(ctx, id, 100, "processing complete")
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int("slides", len(state.captions)),
		logging.Int("segments", len(state.segments)),
		logging.Duration("job_duration", time.Since(start)),
	)
	r.notifyCompleted(ctx, state, time.Since(start))
}

func (r *Runner) executeStage(ctx context.Context, st stage, s *runState) error {
	stageLogger := logging.WithContext(ctx, r.logger)
	stageStart := time.Now()
	stageLogger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))
	if err := st.run(ctx, stageLogger, s); err != nil {
		return err
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// prepare converts the deck and counts its pages. It reports no progress so
// a bad deck fails the job while it is still pending.
func (r *Runner) prepare(ctx context.Context, s *runState) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCancelled, "prepare", "run", "job cancelled", err)
	}
	err := r.call(ctx, "convert deck", func(ctx context.Context) error {
		var err error
		s.pdfPath, s.pages, err = r.collab.Rasterizer.Convert(ctx, s.req.DeckPath, s.req.WorkDir)
		return err
	})
	if err != nil {
		return err
	}
	if s.pages <= 0 {
		return services.Wrap(services.ErrInput, "prepare", "count pages", "slide deck has no pages", nil)
	}
	return nil
}
