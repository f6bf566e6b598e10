package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lecturenotes/internal/history"
	"lecturenotes/internal/logging"
	"lecturenotes/internal/mapping"
	"lecturenotes/internal/notes"
	"lecturenotes/internal/results"
	"lecturenotes/internal/segment"
	"lecturenotes/internal/services"
)

func (r *Runner) transcribe(ctx context.Context, logger *slog.Logger, s *runState) error {
	r.report(ctx, s.id, 10, "transcription started")

	if s.req.SkipTranscription {
		if text := strings.TrimSpace(s.req.Transcript); text != "" {
			s.transcript = text
			r.report(ctx, s.id, 30, "transcription skipped, using supplied transcript")
			return nil
		}
		text, err := readCachedTranscript(r.cfg.TranscriptCachePath())
		if err != nil {
			return services.Wrap(services.ErrInput, "transcribe", "load cache", "cached transcript unavailable", err)
		}
		s.transcript = text
		r.report(ctx, s.id, 30, "transcription skipped, using cached transcript")
		return nil
	}

	err := r.call(ctx, "transcribe audio", func(ctx context.Context) error {
		var err error
		s.transcript, err = r.collab.Transcriber.Transcribe(ctx, s.req.AudioPath)
		return err
	})
	if err != nil {
		return err
	}
	if err := writeCachedTranscript(r.cfg.TranscriptCachePath(), s.transcript); err != nil {
		logging.WarnWithContext(logger, "transcript cache write failed", "transcript_cache_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check data_dir permissions"),
			logging.String(logging.FieldImpact, "skip_transcription cannot reuse this transcript"),
		)
	}
	logger.Debug("transcript ready", logging.Int("chars", len(s.transcript)))
	r.report(ctx, s.id, 30, "transcription complete")
	return nil
}

func (r *Runner) slides(ctx context.Context, logger *slog.Logger, s *runState) error {
	r.report(ctx, s.id, 35, "PDF converted")

	err := r.call(ctx, "rasterize deck", func(ctx context.Context) error {
		var err error
		s.images, err = r.collab.Rasterizer.Rasterize(ctx, s.pdfPath, s.req.WorkDir)
		return err
	})
	if err != nil {
		return err
	}
	total := len(s.images)
	if total == 0 {
		return services.Wrap(services.ErrInput, "slides", "rasterize", "no slide images extracted", nil)
	}
	if total != s.pages {
		logger.Debug("rendered image count differs from page count",
			logging.Int("pages", s.pages),
			logging.Int("images", total),
		)
	}
	r.report(ctx, s.id, 39, fmt.Sprintf("%d slide images extracted", total))

	s.captions = make([]string, total)
	for i, img := range s.images {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, "slides", "caption", "job cancelled", err)
		}
		err := r.call(ctx, "caption slide", func(ctx context.Context) error {
			text, err := r.collab.Captioner.Caption(ctx, img.Data, img.MIME)
			s.captions[i] = strings.TrimSpace(text)
			return err
		})
		if err != nil {
			return services.Wrap(services.ErrExternalService, "slides", "caption", notes.SlideKey(i), err)
		}
		r.report(ctx, s.id, 40+(i+1)*20/total, fmt.Sprintf("slide %d/%d captioned", i+1, total))
	}
	r.report(ctx, s.id, 60, "all slides captioned")
	return nil
}

func (r *Runner) segment(ctx context.Context, _ *slog.Logger, s *runState) error {
	s.segments = r.segmenter.Segment(s.transcript)
	r.report(ctx, s.id, 65, fmt.Sprintf("transcript split into %d segments", len(s.segments)))
	return nil
}

func (r *Runner) mapSegments(ctx context.Context, logger *slog.Logger, s *runState) error {
	err := r.call(ctx, "index captions", func(ctx context.Context) error {
		var err error
		s.index, err = r.mapper.Index(ctx, s.captions)
		return err
	})
	if err != nil {
		return err
	}
	err = r.call(ctx, "match segments", func(ctx context.Context) error {
		var err error
		s.mapped, err = s.index.MatchAll(ctx, segment.Texts(s.segments))
		return err
	})
	if err != nil {
		return err
	}
	logger.Debug("segments mapped",
		logging.Int("segments", len(s.mapped)),
		logging.Int("slides", s.index.Len()),
	)
	r.report(ctx, s.id, 70, fmt.Sprintf("%d segments mapped to %d slides", len(s.mapped), s.index.Len()))
	return nil
}

// classifyImportance is best effort: any failure other than cancellation
// leaves every segment unflagged.
func (r *Runner) classifyImportance(ctx context.Context, logger *slog.Logger, s *runState) error {
	if r.collab.Importance == nil || !r.cfg.Workflow.ImportanceEnabled || len(s.segments) == 0 {
		return nil
	}
	batchSize := r.cfg.Workflow.ImportanceBatchSize
	if batchSize <= 0 {
		batchSize = len(s.segments)
	}
	flagged := make(map[string]string)
	for start := 0; start < len(s.segments); start += batchSize {
		end := min(start+batchSize, len(s.segments))
		batch := make(map[string]string, end-start)
		for _, seg := range s.segments[start:end] {
			batch[notes.SegmentKey(seg.Index)] = seg.Text
		}
		var verdicts map[string]string
		err := r.call(ctx, "classify importance", func(ctx context.Context) error {
			var err error
			verdicts, err = r.collab.Importance.ClassifyImportance(ctx, batch)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return services.Wrap(services.ErrCancelled, "importance", "classify", "job cancelled", ctx.Err())
			}
			logging.WarnWithContext(logger, "importance classification failed", "importance_degraded",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, string(services.Classify(err))),
				logging.String(logging.FieldErrorHint, "check llm.classify_model"),
				logging.String(logging.FieldImpact, "no segments are flagged as important"),
			)
			s.importance = nil
			return nil
		}
		for key, reason := range verdicts {
			if _, ok := batch[key]; ok {
				flagged[key] = reason
			}
		}
	}
	s.importance = flagged
	logger.Debug("importance classified", logging.Int("flagged", len(flagged)))
	return nil
}

func (r *Runner) generateNotes(ctx context.Context, logger *slog.Logger, s *runState) error {
	r.report(ctx, s.id, 75, "note generation started")

	total := len(s.captions)
	groups := mapping.GroupBySlide(s.mapped, total)
	for i, caption := range s.captions {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCancelled, "notes", "generate", "job cancelled", err)
		}
		key := notes.SlideKey(i)
		contributions := make([]notes.Contribution, 0, len(groups[i]))
		for _, segIdx := range groups[i] {
			seg := s.segments[segIdx]
			reason, important := s.importance[notes.SegmentKey(seg.Index)]
			contributions = append(contributions, notes.Contribution{
				Index:     seg.Index,
				Text:      seg.Text,
				Important: important,
				Reason:    reason,
			})
		}

		var note notes.Note
		err := r.call(ctx, "generate note", func(ctx context.Context) error {
			var err error
			note, err = r.assembler.Assemble(ctx, caption, contributions)
			return err
		})
		if err != nil {
			return services.Wrap(services.ErrExternalService, "notes", "generate", key, err)
		}
		if err := r.jobs.SavePartial(ctx, s.id, key, note); err != nil {
			return err
		}
		s.notes[key] = note
		logger.Debug("slide note saved",
			logging.String(logging.FieldSlideKey, key),
			logging.Int("segments", len(contributions)),
		)
		r.report(ctx, s.id, 75+(i+1)*20/total, fmt.Sprintf("%s notes generated", key))
	}
	return nil
}

func (r *Runner) saveHistory(ctx context.Context, logger *slog.Logger, s *runState) error {
	if r.collab.History == nil || strings.TrimSpace(s.req.Owner) == "" {
		logger.Debug("history skipped", logging.Bool("anonymous", strings.TrimSpace(s.req.Owner) == ""))
		return nil
	}
	vectors := s.index.Vectors()
	embeddings := make([]history.SlideEmbedding, 0, len(vectors))
	for i, vec := range vectors {
		embeddings = append(embeddings, history.SlideEmbedding{
			SlideKey: notes.SlideKey(i),
			Caption:  s.captions[i],
			Vector:   vec,
		})
	}
	rec, err := r.collab.History.Save(ctx, history.Record{
		UserEmail: s.req.Owner,
		Filename:  s.req.displayName(),
		JobID:     s.id,
		Notes:     results.Sorted(s.notes),
	}, embeddings)
	if err != nil {
		return services.Wrap(services.ErrResource, "history", "save", "persist lecture history", err)
	}
	logger.Debug("history saved", logging.Int64("history_id", rec.ID))
	return nil
}
