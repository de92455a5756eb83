// Package session drives the end-to-end generation flow: chunk the input,
// synthesize each chunk in order, persist every artifact, and merge
// multi-part sessions into one combined clip.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/narrata-labs/narrata-core/internal/chunker"
	"github.com/narrata-labs/narrata-core/internal/config"
	"github.com/narrata-labs/narrata-core/internal/history"
	"github.com/narrata-labs/narrata-core/internal/protocol"
	"github.com/narrata-labs/narrata-core/internal/synth"
	"github.com/narrata-labs/narrata-core/internal/wavcodec"
)

// State identifies what the orchestrator is currently doing.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateMerging
	StateRegenerating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateMerging:
		return "merging"
	case StateRegenerating:
		return "regenerating"
	}
	return "unknown"
}

// Session outcomes recorded once a run settles.
const (
	OutcomeOK      = "ok"
	OutcomeAborted = "aborted"
	OutcomeError   = "error"
)

// Status is a point-in-time snapshot of the orchestrator. Progress is an
// advisory simulation, not a measurement of provider progress.
type Status struct {
	State       State
	ChunkIndex  int
	ChunkTotal  int
	Progress    float64
	LastOutcome string
	LastError   string
}

// Notifier receives session lifecycle events. Implementations must not block.
type Notifier interface {
	SessionUpdate(evt protocol.SessionEvent)
	SessionDone(evt protocol.SessionEvent)
	ItemSaved(evt protocol.ItemEvent)
}

type noopNotifier struct{}

func (noopNotifier) SessionUpdate(protocol.SessionEvent) {}
func (noopNotifier) SessionDone(protocol.SessionEvent)   {}
func (noopNotifier) ItemSaved(protocol.ItemEvent)        {}

var partLabel = regexp.MustCompile(`^\[Part \d+/\d+\]\s*`)

// StripPartLabel removes the "[Part i/n]" prefix that multi-chunk sessions
// attach to stored item text.
func StripPartLabel(text string) string {
	return partLabel.ReplaceAllString(text, "")
}

// Orchestrator owns the generation state machine. One generation session or
// one regeneration may be active at a time, enforced by state checks.
type Orchestrator struct {
	cfg    config.SessionConfig
	synth  synth.Synthesizer
	store  *history.Store
	notify Notifier
	logger *slog.Logger
	clock  func() time.Time

	mu          sync.Mutex
	state       State
	chunkIndex  int
	chunkTotal  int
	progress    float64
	lastOutcome string
	lastErr     error
	aborted     bool
	cancelRun   context.CancelFunc
	items       []history.Item // metadata only, newest first
	batch       []string       // tracked multi-chunk batch, timestamp order
	merged      []byte
	mergedDur   time.Duration
}

// New builds an orchestrator and loads existing history. A history read
// failure degrades to an empty list rather than blocking startup.
func New(ctx context.Context, cfg config.SessionConfig, s synth.Synthesizer, store *history.Store, notify Notifier, logger *slog.Logger) *Orchestrator {
	if notify == nil {
		notify = noopNotifier{}
	}
	o := &Orchestrator{
		cfg:    cfg,
		synth:  s,
		store:  store,
		notify: notify,
		logger: logger.With(slog.String("component", "session")),
		clock:  time.Now,
	}

	items, err := store.List(ctx)
	if err != nil {
		o.logger.Warn("history load failed, starting empty", slog.String("error", err.Error()))
		return o
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	for i := range items {
		items[i].Audio = nil
	}
	o.items = items
	return o
}

// Run executes one full generation session synchronously. It returns a
// ValidationError before any state change when the input is rejected, and
// ErrBusy when a session or regeneration is already active.
func (o *Orchestrator) Run(ctx context.Context, text string, voice synth.Voice) error {
	if err := validateInput(text, voice, o.cfg.MaxInputChars); err != nil {
		return err
	}
	runCtx, err := o.begin(ctx, StateGenerating)
	if err != nil {
		return err
	}
	return o.run(runCtx, text, voice)
}

// Start validates input synchronously and runs the session in the
// background. Progress is observable through Status and the Notifier.
func (o *Orchestrator) Start(ctx context.Context, text string, voice synth.Voice) error {
	if err := validateInput(text, voice, o.cfg.MaxInputChars); err != nil {
		return err
	}
	runCtx, err := o.begin(ctx, StateGenerating)
	if err != nil {
		return err
	}
	go func() {
		_ = o.run(runCtx, text, voice)
	}()
	return nil
}

func validateInput(text string, voice synth.Voice, maxChars int) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Reason: "text is empty"}
	}
	if n := utf8.RuneCountInString(text); n > maxChars {
		return &ValidationError{Reason: fmt.Sprintf("text is %d characters, limit is %d", n, maxChars)}
	}
	if !voice.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown voice %q", voice)}
	}
	return nil
}

func (o *Orchestrator) run(runCtx context.Context, text string, voice synth.Voice) error {
	defer o.startProgressTicker(runCtx)()

	chunks := chunker.Split(text, o.cfg.ChunkChars)
	ids := make([]string, 0, len(chunks))

	for i, ch := range chunks {
		o.setChunk(ch.Index, ch.Total)
		o.publishProgress()

		clip, synthErr := o.synth.Synthesize(runCtx, synth.Request{Text: ch.Text, Voice: voice})
		if o.isAborted() {
			// The in-flight result is discarded; persisted items remain.
			return o.finish(OutcomeAborted, nil)
		}
		if synthErr != nil {
			return o.finish(OutcomeError, &ServiceError{Err: synthErr})
		}

		stored := ch.Text
		if ch.Total > 1 {
			stored = fmt.Sprintf("[Part %d/%d] %s", ch.Index, ch.Total, ch.Text)
		}
		data, encErr := wavcodec.Encode(clip)
		if encErr != nil {
			return o.finish(OutcomeError, &ServiceError{Err: encErr})
		}

		item := history.Item{
			ID:        uuid.NewString(),
			Text:      stored,
			Voice:     string(voice),
			CreatedAt: o.clock().UTC(),
			Duration:  clip.Duration(),
			Audio:     data,
		}
		if saveErr := o.store.Save(runCtx, item); saveErr != nil {
			return o.finish(OutcomeError, &StorageError{Op: "save", Err: saveErr})
		}
		o.prepend(item)
		ids = append(ids, item.ID)
		o.notify.ItemSaved(itemEvent(item))

		if i < len(chunks)-1 {
			if pauseErr := o.pause(runCtx); pauseErr != nil {
				return o.finish(OutcomeAborted, nil)
			}
			if o.isAborted() {
				return o.finish(OutcomeAborted, nil)
			}
		}
	}

	if len(ids) > 1 {
		o.transition(StateMerging)
		o.publishProgress()
		if o.isAborted() {
			return o.finish(OutcomeAborted, nil)
		}
		if mergeErr := o.mergeBatch(runCtx, ids); mergeErr != nil {
			if o.isAborted() {
				return o.finish(OutcomeAborted, nil)
			}
			return o.finish(OutcomeError, mergeErr)
		}
	}
	return o.finish(OutcomeOK, nil)
}

// Regenerate re-synthesizes a single existing item under the same id with
// its original voice, then re-merges the tracked batch when the item
// belongs to it.
func (o *Orchestrator) Regenerate(ctx context.Context, id string) error {
	item, ok, err := o.store.Get(ctx, id)
	if err != nil {
		return &StorageError{Op: "get", Err: err}
	}
	if !ok {
		return &ValidationError{Reason: fmt.Sprintf("unknown item %q", id)}
	}
	voice, err := synth.ParseVoice(item.Voice)
	if err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	runCtx, err := o.begin(ctx, StateRegenerating)
	if err != nil {
		return err
	}
	defer o.startProgressTicker(runCtx)()

	clip, synthErr := o.synth.Synthesize(runCtx, synth.Request{Text: StripPartLabel(item.Text), Voice: voice})
	if o.isAborted() {
		return o.finish(OutcomeAborted, nil)
	}
	if synthErr != nil {
		return o.finish(OutcomeError, &ServiceError{Err: synthErr})
	}
	data, encErr := wavcodec.Encode(clip)
	if encErr != nil {
		return o.finish(OutcomeError, &ServiceError{Err: encErr})
	}

	// CreatedAt stays untouched so a re-merge keeps the original part order.
	item.Audio = data
	item.Duration = clip.Duration()
	if saveErr := o.store.Save(runCtx, item); saveErr != nil {
		return o.finish(OutcomeError, &StorageError{Op: "save", Err: saveErr})
	}
	o.replace(item)
	o.notify.ItemSaved(itemEvent(item))

	if o.inBatch(id) {
		o.transition(StateMerging)
		if mergeErr := o.mergeBatch(runCtx, o.BatchIDs()); mergeErr != nil {
			if o.isAborted() {
				return o.finish(OutcomeAborted, nil)
			}
			return o.finish(OutcomeError, mergeErr)
		}
	}
	return o.finish(OutcomeOK, nil)
}

// Cancel requests cooperative cancellation. The in-flight chunk settles and
// its result is discarded; everything already persisted is kept.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateIdle {
		return
	}
	o.aborted = true
	if o.cancelRun != nil {
		o.cancelRun()
	}
}

// Delete removes one item from the store and the in-memory view. Deleting a
// member of the tracked batch invalidates the batch and its merged artifact.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrBusy
	}
	if err := o.store.Delete(ctx, id); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	for i := range o.items {
		if o.items[i].ID == id {
			o.items = append(o.items[:i], o.items[i+1:]...)
			break
		}
	}
	for _, member := range o.batch {
		if member == id {
			o.batch, o.merged, o.mergedDur = nil, nil, 0
			break
		}
	}
	return nil
}

// Clear empties the history and drops any tracked batch.
func (o *Orchestrator) Clear(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrBusy
	}
	if err := o.store.Clear(ctx); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	o.items = nil
	o.batch, o.merged, o.mergedDur = nil, nil, 0
	return nil
}

// Status returns a snapshot of the state machine.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		State:       o.state,
		ChunkIndex:  o.chunkIndex,
		ChunkTotal:  o.chunkTotal,
		Progress:    o.progress,
		LastOutcome: o.lastOutcome,
	}
	if o.lastErr != nil {
		st.LastError = o.lastErr.Error()
	}
	return st
}

// Items returns the in-memory history view, newest first, without audio
// payloads. Audio is fetched on demand via ItemAudio.
func (o *Orchestrator) Items() []history.Item {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]history.Item, len(o.items))
	copy(out, o.items)
	return out
}

// ItemAudio fetches one item's encoded WAV bytes from the store.
func (o *Orchestrator) ItemAudio(ctx context.Context, id string) ([]byte, error) {
	item, ok, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	if !ok {
		return nil, ErrNotFound
	}
	return item.Audio, nil
}

// Merged returns the combined artifact of the tracked batch, if any.
func (o *Orchestrator) Merged() ([]byte, time.Duration, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.merged == nil {
		return nil, 0, false
	}
	return o.merged, o.mergedDur, true
}

// BatchIDs returns the tracked batch membership in timestamp order.
func (o *Orchestrator) BatchIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.batch))
	copy(out, o.batch)
	return out
}

func (o *Orchestrator) begin(parent context.Context, next State) (context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return nil, ErrBusy
	}
	o.state = next
	o.aborted = false
	o.progress = 0
	o.chunkIndex, o.chunkTotal = 0, 0
	o.lastOutcome = ""
	o.lastErr = nil
	if next == StateGenerating {
		// A new session supersedes the previous batch.
		o.batch, o.merged, o.mergedDur = nil, nil, 0
	}
	ctx, cancel := context.WithCancel(parent)
	o.cancelRun = cancel
	return ctx, nil
}

func (o *Orchestrator) finish(outcome string, err error) error {
	o.mu.Lock()
	if o.cancelRun != nil {
		o.cancelRun()
		o.cancelRun = nil
	}
	o.state = StateIdle
	o.aborted = false
	o.lastOutcome = outcome
	o.lastErr = err
	if outcome == OutcomeOK {
		o.progress = 100
	}
	o.mu.Unlock()

	o.notify.SessionDone(protocol.SessionEvent{
		State:     StateIdle.String(),
		Outcome:   outcome,
		Progress:  o.Status().Progress,
		Timestamp: o.clock().UTC(),
	})
	if err != nil {
		o.logger.Warn("session failed", slog.String("outcome", outcome), slog.String("error", err.Error()))
	} else {
		o.logger.Info("session settled", slog.String("outcome", outcome))
	}
	return err
}

func (o *Orchestrator) transition(next State) {
	o.mu.Lock()
	o.state = next
	o.mu.Unlock()
}

func (o *Orchestrator) setChunk(index, total int) {
	o.mu.Lock()
	o.chunkIndex, o.chunkTotal = index, total
	o.mu.Unlock()
}

func (o *Orchestrator) isAborted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.aborted
}

func (o *Orchestrator) prepend(item history.Item) {
	item.Audio = nil
	o.mu.Lock()
	o.items = append([]history.Item{item}, o.items...)
	o.mu.Unlock()
}

func (o *Orchestrator) replace(item history.Item) {
	item.Audio = nil
	o.mu.Lock()
	for i := range o.items {
		if o.items[i].ID == item.ID {
			o.items[i] = item
			break
		}
	}
	o.mu.Unlock()
}

func (o *Orchestrator) inBatch(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, member := range o.batch {
		if member == id {
			return true
		}
	}
	return false
}

// pause waits the fixed inter-chunk delay, honoring cancellation.
func (o *Orchestrator) pause(ctx context.Context) error {
	delay := time.Duration(o.cfg.InterChunkDelayMS) * time.Millisecond
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// mergeBatch reads the given items back, sorts them by creation timestamp,
// merges their clips and encodes the combined artifact.
func (o *Orchestrator) mergeBatch(ctx context.Context, ids []string) error {
	type timed struct {
		id   string
		clip wavcodec.Clip
		at   time.Time
	}
	entries := make([]timed, 0, len(ids))
	for _, id := range ids {
		item, ok, err := o.store.Get(ctx, id)
		if err != nil {
			return &StorageError{Op: "get", Err: err}
		}
		if !ok {
			return &StorageError{Op: "get", Err: fmt.Errorf("item %q missing during merge", id)}
		}
		clip, err := wavcodec.Decode(item.Audio)
		if err != nil {
			return &StorageError{Op: "decode", Err: err}
		}
		entries = append(entries, timed{id: id, clip: clip, at: item.CreatedAt})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	clips := make([]wavcodec.Clip, len(entries))
	ordered := make([]string, len(entries))
	for i, e := range entries {
		clips[i] = e.clip
		ordered[i] = e.id
	}
	merged, err := wavcodec.Merge(clips)
	if err != nil {
		return fmt.Errorf("merge batch: %w", err)
	}
	data, err := wavcodec.Encode(merged)
	if err != nil {
		return fmt.Errorf("encode merged batch: %w", err)
	}

	o.mu.Lock()
	o.merged = data
	o.mergedDur = merged.Duration()
	o.batch = ordered
	o.mu.Unlock()

	o.logger.Info("batch merged",
		slog.Int("parts", len(ordered)),
		slog.Duration("duration", merged.Duration()))
	return nil
}

// startProgressTicker animates the advisory progress value toward 95 while
// a run is active. It never reaches 100 on its own; finish snaps it there
// on success.
func (o *Orchestrator) startProgressTicker(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(150 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				o.mu.Lock()
				if o.state != StateIdle && o.progress < 95 {
					o.progress += (95 - o.progress) * 0.08
				}
				o.mu.Unlock()
			}
		}
	}()
	return func() { close(done) }
}

func (o *Orchestrator) publishProgress() {
	st := o.Status()
	o.notify.SessionUpdate(protocol.SessionEvent{
		State:      st.State.String(),
		ChunkIndex: st.ChunkIndex,
		ChunkTotal: st.ChunkTotal,
		Progress:   st.Progress,
		Timestamp:  o.clock().UTC(),
	})
}

func itemEvent(item history.Item) protocol.ItemEvent {
	return protocol.ItemEvent{
		ID:         item.ID,
		Text:       item.Text,
		Voice:      item.Voice,
		DurationMS: item.Duration.Milliseconds(),
		Timestamp:  item.CreatedAt,
	}
}
