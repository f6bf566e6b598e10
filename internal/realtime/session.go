package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lecturenotes/internal/config"
	"lecturenotes/internal/fileutil"
	"lecturenotes/internal/logging"
	"lecturenotes/internal/mapping"
	"lecturenotes/internal/notes"
	"lecturenotes/internal/results"
	"lecturenotes/internal/services"
	"lecturenotes/internal/textutil"
)

const (
	resultFile  = "result.json"
	sessionFile = "session.json"
)

// ErrNotFound reports an unknown session id.
var ErrNotFound = fmt.Errorf("%w: realtime session not found", services.ErrNotFound)

// Transcriber turns one audio chunk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Upload is a client-supplied file.
type Upload struct {
	Name string
	Body io.Reader
}

// Chunk is one realtime submission. Either part may be absent; a chunk
// without both only returns the current result.
type Chunk struct {
	Audio *Upload
	Meta  []byte
}

// Sessions manages realtime sessions rooted at one directory.
type Sessions struct {
	root        string
	transcriber Transcriber
	callTimeout time.Duration
	indexer     DeckIndexer
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	indexes map[string]*mapping.Index
}

// Option customizes Sessions.
type Option func(*Sessions)

// WithDeckIndexer lets chunks without dwell metadata be placed by matching
// their transcript against the session deck's captions.
func WithDeckIndexer(indexer DeckIndexer) Option {
	return func(s *Sessions) {
		s.indexer = indexer
	}
}

type sessionInfo struct {
	Deck string `json:"deck,omitempty"`
}

// NewSessions builds a session manager from cfg.
func NewSessions(cfg *config.Config, transcriber Transcriber, logger *slog.Logger, opts ...Option) (*Sessions, error) {
	if transcriber == nil {
		return nil, services.Wrap(services.ErrConfiguration, "realtime", "init", "transcriber required", nil)
	}
	root := strings.TrimSpace(cfg.Realtime.Dir)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "realtime", "init", "realtime.dir is empty", nil)
	}
	s := &Sessions{
		root:        root,
		transcriber: transcriber,
		callTimeout: cfg.CallTimeout(),
		logger:      logging.NewComponentLogger(logger, "realtime"),
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
		indexes:     make(map[string]*mapping.Index),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start creates a session and stores the optional deck.
func (s *Sessions) Start(ctx context.Context, deck *Upload) (string, error) {
	id := uuid.NewString()
	dir := s.sessionDir(id)
	if err := os.MkdirAll(filepath.Join(dir, "chunks"), 0o755); err != nil {
		return "", services.Wrap(services.ErrResource, "realtime", "start", "create session dir", err)
	}
	var info sessionInfo
	if deck != nil && deck.Body != nil {
		info.Deck = textutil.UploadName(deck.Name, "slides.pdf")
		if _, err := fileutil.StreamAtomic(filepath.Join(dir, info.Deck), deck.Body, 0o644); err != nil {
			_ = os.RemoveAll(dir)
			return "", services.Wrap(services.ErrResource, "realtime", "start", "store slide deck", err)
		}
	}
	data, err := json.Marshal(info)
	if err == nil {
		err = fileutil.WriteAtomic(filepath.Join(dir, sessionFile), data, 0o644)
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", services.Wrap(services.ErrResource, "realtime", "start", "record session", err)
	}
	logging.WithContext(services.WithJobID(ctx, id), s.logger).Info("realtime session started",
		logging.String(logging.FieldEventType, "realtime_start"),
		logging.Bool("deck", deck != nil && deck.Body != nil),
	)
	return id, nil
}

// Process stores chunk, transcribes it and appends the text to the slide
// with the longest dwell. It returns the session result after the update.
func (s *Sessions) Process(ctx context.Context, id string, chunk Chunk) (results.Notes, error) {
	if err := s.exists(id); err != nil {
		return nil, err
	}
	ctx = services.WithJobID(ctx, id)
	logger := logging.WithContext(ctx, s.logger)

	var dwell []SlideDwell
	if len(chunk.Meta) > 0 {
		var err error
		if dwell, err = ParseMeta(chunk.Meta); err != nil {
			return nil, err
		}
	}

	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	chunkDir, err := s.newChunkDir(id)
	if err != nil {
		return nil, err
	}
	var audioPath string
	if chunk.Audio != nil && chunk.Audio.Body != nil {
		ext := filepath.Ext(textutil.UploadName(chunk.Audio.Name, "audio.wav"))
		if ext == "" {
			ext = ".wav"
		}
		audioPath = filepath.Join(chunkDir, "audio"+ext)
		if _, err := fileutil.StreamAtomic(audioPath, chunk.Audio.Body, 0o644); err != nil {
			return nil, services.Wrap(services.ErrResource, "realtime", "store chunk", "save audio", err)
		}
	}
	if len(chunk.Meta) > 0 {
		if err := fileutil.WriteAtomic(filepath.Join(chunkDir, "meta.json"), chunk.Meta, 0o644); err != nil {
			return nil, services.Wrap(services.ErrResource, "realtime", "store chunk", "save meta", err)
		}
	}

	current, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if audioPath == "" {
		return results.Sorted(current), nil
	}
	slide, placed := 0, false
	if len(dwell) > 0 {
		if slide, placed, err = LongestDwell(dwell); err != nil {
			return nil, err
		}
	}
	deckPath := ""
	if !placed {
		if deckPath, err = s.deckPath(id); err != nil {
			return nil, err
		}
		if deckPath == "" || s.indexer == nil {
			logger.Debug("chunk has no slide with positive dwell")
			return results.Sorted(current), nil
		}
	}

	text, err := s.transcribe(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return results.Sorted(current), nil
	}
	if !placed {
		if slide, err = s.matchSlide(ctx, id, deckPath, text, countSegments(current)); err != nil {
			return nil, err
		}
	}
	appendText(current, slide, text)
	if err := s.save(id, current); err != nil {
		return nil, err
	}
	logger.Info("realtime chunk appended",
		logging.String(logging.FieldEventType, "realtime_chunk"),
		logging.String(logging.FieldSlideKey, notes.SlideKey(slide-1)),
		logging.Int("chars", len(text)),
	)
	return results.Sorted(current), nil
}

// Result returns the accumulated notes of session id.
func (s *Sessions) Result(_ context.Context, id string) (results.Notes, error) {
	if err := s.exists(id); err != nil {
		return nil, err
	}
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	current, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return results.Sorted(current), nil
}

func (s *Sessions) transcribe(ctx context.Context, audioPath string) (string, error) {
	callCtx := ctx
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	text, err := s.transcriber.Transcribe(callCtx, audioPath)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "realtime", "transcribe",
				fmt.Sprintf("no response within %s", s.callTimeout), err)
		}
		return "", services.Wrap(services.ErrExternalService, "realtime", "transcribe", "chunk transcription failed", err)
	}
	return strings.TrimSpace(text), nil
}

// matchSlide returns the 1-based slide whose caption best matches text. The
// deck index is built on first use and kept for the session.
func (s *Sessions) matchSlide(ctx context.Context, id, deckPath, text string, seq int) (int, error) {
	s.mu.Lock()
	idx := s.indexes[id]
	s.mu.Unlock()
	if idx == nil {
		workDir := filepath.Join(s.sessionDir(id), "deck")
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return 0, services.Wrap(services.ErrResource, "realtime", "index deck", "create work dir", err)
		}
		var err error
		idx, err = s.indexer.IndexDeck(ctx, deckPath, workDir)
		if err != nil {
			return 0, err
		}
		s.mu.Lock()
		s.indexes[id] = idx
		s.mu.Unlock()
		logging.WithContext(ctx, s.logger).Info("realtime deck indexed",
			logging.String(logging.FieldEventType, "realtime_deck_indexed"),
			logging.Int("slides", idx.Len()),
		)
	}
	match, err := idx.Match(ctx, seq, text)
	if err != nil {
		return 0, err
	}
	return match.MatchedSlideIndex + 1, nil
}

// deckPath returns the stored deck of session id, or "" when it has none.
func (s *Sessions) deckPath(id string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.sessionDir(id), sessionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", services.Wrap(services.ErrResource, "realtime", "load session", id, err)
	}
	var info sessionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return "", services.Wrap(services.ErrResource, "realtime", "load session", "corrupt "+sessionFile, err)
	}
	if info.Deck == "" {
		return "", nil
	}
	return filepath.Join(s.sessionDir(id), info.Deck), nil
}

func countSegments(doc map[string]notes.Note) int {
	n := 0
	for _, note := range doc {
		n += len(note.Segments)
	}
	return n
}

// appendText adds text to slide{n}.Segments.segment{n}, separating chunks
// with one space.
func appendText(doc map[string]notes.Note, slide int, text string) {
	slideKey := notes.SlideKey(slide - 1)
	segmentKey := notes.SegmentKey(slide)
	note, ok := doc[slideKey]
	if !ok {
		note = notes.Empty()
	}
	note = note.Normalize()
	entry, ok := note.Segments[segmentKey]
	if !ok {
		entry = notes.SegmentEntry{IsImportant: "false", PageNumber: strconv.Itoa(slide)}
	}
	if entry.Text == "" {
		entry.Text = text
	} else {
		entry.Text += " " + text
	}
	note.Segments[segmentKey] = entry
	doc[slideKey] = note
}

func (s *Sessions) sessionDir(id string) string {
	return filepath.Join(s.root, id)
}

// exists rejects ids that are not plain uuids so they can never address a
// path outside root.
func (s *Sessions) exists(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	info, err := os.Stat(s.sessionDir(id))
	if err != nil || !info.IsDir() {
		return ErrNotFound
	}
	return nil
}

func (s *Sessions) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Sessions) newChunkDir(id string) (string, error) {
	name := s.now().UTC().Format("20060102T150405.000000000")
	dir := filepath.Join(s.sessionDir(id), "chunks", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrResource, "realtime", "store chunk", "create chunk dir", err)
	}
	return dir, nil
}

func (s *Sessions) load(id string) (map[string]notes.Note, error) {
	data, err := os.ReadFile(filepath.Join(s.sessionDir(id), resultFile))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]notes.Note{}, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrResource, "realtime", "load result", id, err)
	}
	doc := map[string]notes.Note{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, services.Wrap(services.ErrResource, "realtime", "load result", "corrupt "+resultFile, err)
	}
	return doc, nil
}

func (s *Sessions) save(id string, doc map[string]notes.Note) error {
	data, err := json.MarshalIndent(results.Sorted(doc), "", "  ")
	if err != nil {
		return services.Wrap(services.ErrResource, "realtime", "save result", "encode", err)
	}
	if err := fileutil.WriteAtomic(filepath.Join(s.sessionDir(id), resultFile), data, 0o644); err != nil {
		return services.Wrap(services.ErrResource, "realtime", "save result", id, err)
	}
	return nil
}
