package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"toolcrib-api/internal/cache"
	"toolcrib-api/internal/model"
	"toolcrib-api/internal/repository"
	"toolcrib-api/pkg/logger"
)

// DefaultDedupWindow is how close two reports of the same fingerprint must be
// for the second to be dropped.
const DefaultDedupWindow = 5 * time.Second

// Outcome tells whether a draft was persisted.
type Outcome string

const (
	OutcomeStored  Outcome = "stored"
	OutcomeIgnored Outcome = "ignored"
)

// RecordResult is returned by Recorder.Record. Event is set only when stored.
type RecordResult struct {
	Outcome Outcome
	EventID int64
	Event   *model.ToolEvent
}

// Recorder validates drafts, suppresses duplicates and appends events.
type Recorder struct {
	store  repository.Store
	cache  cache.Cache
	window time.Duration
	loc    *time.Location
	now    func() time.Time
	log    *zap.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithCache enables the dedup fast path.
func WithCache(c cache.Cache) RecorderOption {
	return func(r *Recorder) { r.cache = c }
}

// WithDedupWindow overrides DefaultDedupWindow.
func WithDedupWindow(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithLocation sets the zone for timestamps that carry no offset.
func WithLocation(loc *time.Location) RecorderOption {
	return func(r *Recorder) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder with a 5s window in the local zone.
func NewRecorder(store repository.Store, log *zap.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		window: DefaultDedupWindow,
		loc:    time.Local,
		now:    time.Now,
		log:    logger.Named(log, "recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Window returns the duplicate suppression window.
func (r *Recorder) Window() time.Duration {
	return r.window
}

// Record stores the draft unless an event with the same fingerprint lies
// strictly within the window of its timestamp. The lookup and the insert run
// in one transaction. A draft whose tool resolves in the catalog is stored
// with that tool's tool_id; raw_data keeps what the device sent.
func (r *Recorder) Record(ctx context.Context, draft model.EventDraft) (RecordResult, error) {
	e, err := r.build(draft)
	if err != nil {
		return RecordResult{}, err
	}
	fp := e.Fingerprint()

	if r.cachedDuplicate(ctx, fp, e.Timestamp) {
		r.log.Debug("duplicate event ignored", zap.String("fingerprint", fp.Key()), zap.String("source", "cache"))
		return RecordResult{Outcome: OutcomeIgnored}, nil
	}

	var (
		stored bool
		newest = e.Timestamp
	)
	err = r.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.LockFingerprint(ctx, fp.Key()); err != nil {
			return err
		}
		prior, err := tx.LatestMatchingEvent(ctx, fp)
		if err != nil {
			return err
		}
		if prior != nil {
			if withinWindow(prior.Timestamp, e.Timestamp, r.window) {
				return nil
			}
			if prior.Timestamp.After(newest) {
				newest = prior.Timestamp
			}
		}
		// Stored under the catalog's tool_id so status lookups group a
		// name-only report with the tool the reconciler will charge.
		tool, err := tx.FindTool(ctx, e.ToolID, e.ToolName)
		if err != nil {
			return err
		}
		if tool != nil {
			e.ToolID = tool.ToolID
		}
		if err := tx.InsertEvent(ctx, e); err != nil {
			return err
		}
		stored = true
		return nil
	})
	if err != nil {
		return RecordResult{}, fmt.Errorf("failed to record event: %w", err)
	}

	if !stored {
		r.log.Debug("duplicate event ignored", zap.String("fingerprint", fp.Key()), zap.String("source", "store"))
		return RecordResult{Outcome: OutcomeIgnored}, nil
	}

	r.remember(ctx, fp, newest)
	r.log.Info("event recorded",
		zap.Int64("event_id", e.ID),
		zap.String("event", string(e.Event)),
		zap.String("tool_id", e.ToolID),
		zap.String("tray_id", e.TrayID),
		zap.String("client_ip", e.ClientIP))
	return RecordResult{Outcome: OutcomeStored, EventID: e.ID, Event: e}, nil
}

func (r *Recorder) build(d model.EventDraft) (*model.ToolEvent, error) {
	if strings.TrimSpace(d.Event) == "" {
		return nil, invalid("event", "is required")
	}
	kind, ok := model.ParseEventKind(d.Event)
	if !ok {
		return nil, invalid("event", fmt.Sprintf("unknown event kind %q", d.Event))
	}

	return &model.ToolEvent{
		Timestamp:      r.resolveTimestamp(d.Timestamp),
		Event:          kind,
		ServiceStation: strings.TrimSpace(d.ServiceStation),
		Unit:           strings.TrimSpace(d.Unit),
		UnitID:         strings.TrimSpace(d.UnitID),
		UserID:         strings.TrimSpace(d.UserID),
		UserName:       strings.TrimSpace(d.UserName),
		TrayID:         strings.TrimSpace(d.TrayID),
		ToolID:         strings.TrimSpace(d.ToolID),
		ToolName:       strings.TrimSpace(d.ToolName),
		DeviceID:       strings.TrimSpace(d.DeviceID),
		ClientIP:       strings.TrimSpace(d.ClientIP),
		RawData:        model.RawJSON(d.Raw),
	}, nil
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
}

// Fractional seconds are accepted after the seconds field even though these
// layouts do not spell them out.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// resolveTimestamp parses the device timestamp, falling back to now.
func (r *Recorder) resolveTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		if t, ok := ParseTimestamp(raw, r.loc); ok {
			return t.UTC()
		}
		r.log.Warn("unparsable event timestamp, using server time", zap.String("timestamp", raw))
	}
	return r.now().UTC()
}

// ParseTimestamp accepts RFC 3339 and the naive "YYYY-MM-DD[T ]HH:MM:SS[.fff]"
// forms; naive values are read in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func withinWindow(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < window
}

func (r *Recorder) cachedDuplicate(ctx context.Context, fp model.Fingerprint, ts time.Time) bool {
	if r.cache == nil {
		return false
	}
	data, err := r.cache.Get(ctx, dedupKey(fp))
	if err != nil {
		if err != cache.ErrCacheMiss {
			r.log.Warn("dedup cache read failed", zap.Error(err))
		}
		return false
	}
	last, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return false
	}
	return withinWindow(last, ts, r.window)
}

// remember caches the newest stored timestamp of the fingerprint, the same
// value LatestMatchingEvent would return. Cache errors only cost the fast path.
func (r *Recorder) remember(ctx context.Context, fp model.Fingerprint, ts time.Time) {
	if r.cache == nil {
		return
	}
	value := []byte(ts.UTC().Format(time.RFC3339Nano))
	if err := r.cache.Set(ctx, dedupKey(fp), value, r.window); err != nil {
		r.log.Warn("dedup cache write failed", zap.Error(err))
	}
}

func dedupKey(fp model.Fingerprint) string {
	return "dedup:" + fp.Key()
}
