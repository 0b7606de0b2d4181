package router

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/pulse/pkg/events"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/metrics"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/preferences"
	"github.com/dmitrymomot/pulse/pkg/ratelimit"
)

const defaultBaseLimit = 10

// Router picks the channels of a notification and delivers over each.
type Router struct {
	mu         sync.RWMutex
	processors map[notifications.Channel]Processor
	fallbacks  map[notifications.Channel][]notifications.Channel

	baseLimits   map[notifications.Channel]int
	defaultLimit int
	limiter      *ratelimit.Limiter
	prefs        preferences.Source
	events       events.Publisher
	metrics      *metrics.Metrics
	log          *slog.Logger
	now          func() time.Time
}

// Option configures a Router.
type Option func(*Router)

func WithPreferences(src preferences.Source) Option {
	return func(r *Router) { r.prefs = src }
}

// WithBaseLimits sets the per-channel limit before the priority multiplier.
func WithBaseLimits(limits map[notifications.Channel]int) Option {
	return func(r *Router) {
		for ch, n := range limits {
			r.baseLimits[ch] = n
		}
	}
}

// WithDefaultLimit applies to channels without a base limit.
func WithDefaultLimit(n int) Option {
	return func(r *Router) {
		if n > 0 {
			r.defaultLimit = n
		}
	}
}

// WithFallbacks replaces the default fallback chains.
func WithFallbacks(fb map[notifications.Channel][]notifications.Channel) Option {
	return func(r *Router) {
		if fb != nil {
			r.fallbacks = cloneFallbacks(fb)
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(r *Router) {
		if p != nil {
			r.events = p
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// BaseLimitsFromConfig converts the env map into channel keys.
func BaseLimitsFromConfig(cfg Config) map[notifications.Channel]int {
	out := make(map[notifications.Channel]int, len(cfg.BaseLimits))
	for ch, n := range cfg.BaseLimits {
		out[notifications.Channel(ch)] = n
	}
	return out
}

func New(limiter *ratelimit.Limiter, opts ...Option) (*Router, error) {
	if limiter == nil {
		return nil, ErrLimiterRequired
	}
	r := &Router{
		processors:   make(map[notifications.Channel]Processor),
		fallbacks:    DefaultFallbacks(),
		baseLimits:   make(map[notifications.Channel]int),
		defaultLimit: defaultBaseLimit,
		limiter:      limiter,
		events:       events.Discard,
		log:          slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RegisterProcessor binds p to channel, replacing any previous processor.
func (r *Router) RegisterProcessor(channel notifications.Channel, p Processor) error {
	if channel == "" {
		return notifications.Required("channel")
	}
	if p == nil {
		return notifications.Required("processor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[channel] = p
	return nil
}

// SetFallbackChannels replaces the fallback chain of channel.
func (r *Router) SetFallbackChannels(channel notifications.Channel, list []notifications.Channel) error {
	if channel == "" {
		return notifications.Required("channel")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[channel] = slices.Clone(list)
	return nil
}

// FallbackChannels returns a copy of the chain for channel.
func (r *Router) FallbackChannels(channel notifications.Channel) []notifications.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.fallbacks[channel])
}

// RegisteredChannels lists channels with a processor, sorted.
func (r *Router) RegisteredChannels() []notifications.Channel {
	r.mu.RLock()
	out := make([]notifications.Channel, 0, len(r.processors))
	for ch := range r.processors {
		out = append(out, ch)
	}
	r.mu.RUnlock()
	slices.Sort(out)
	return out
}

// ChannelCapabilities returns false for an unknown channel.
func (r *Router) ChannelCapabilities(channel notifications.Channel) (Capabilities, bool) {
	p, ok := r.processor(channel)
	if !ok {
		return Capabilities{}, false
	}
	return p.Capabilities(), true
}

func (r *Router) processor(channel notifications.Channel) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processors[channel]
	return p, ok
}

// Limit returns the priority-scaled rate limit of channel.
func (r *Router) Limit(channel notifications.Channel, priority notifications.Priority) int {
	base, ok := r.baseLimits[channel]
	if !ok {
		base = r.defaultLimit
	}
	return priority.ScaleLimit(base)
}

// Route delivers req over its effective channels. Per-channel failures and
// skips are part of the result, not errors.
func (r *Router) Route(ctx context.Context, req Request) (Result, error) {
	if req.ID == "" {
		return Result{}, notifications.Required("id")
	}
	if len(req.Channels) == 0 {
		return Result{}, notifications.Required("channels")
	}
	priority, err := notifications.ParsePriority(string(req.Priority))
	if err != nil {
		return Result{}, err
	}
	req.Priority = priority

	start := r.now()
	var prefs *preferences.Preferences
	if req.UserID != "" && r.prefs != nil {
		if prefs, err = r.prefs.Get(ctx, req.UserID); err != nil {
			return Result{}, fmt.Errorf("load preferences for %s: %w", req.UserID, err)
		}
	}

	requested := dedupe(req.Channels)
	res := Result{NotificationID: req.ID}
	res.Summary.Requested = len(requested)

	effective, disabled := r.effectiveChannels(requested, prefs)
	for _, ch := range disabled {
		res.Results.add(ChannelResult{Channel: ch, Outcome: OutcomeSkipped, Reason: ReasonDisabledByUser})
	}

	// Channels tried in this route are never tried again as a fallback.
	tried := make(map[notifications.Channel]bool, len(requested)+len(effective))
	for _, ch := range requested {
		tried[ch] = true
	}
	for _, ch := range effective {
		tried[ch] = true
	}

	for _, ch := range effective {
		cr := r.processChannel(ctx, ch, req, prefs)
		res.Results.add(cr)
		if cr.Outcome == OutcomeFailed {
			r.walkFallbacks(ctx, ch, req, prefs, tried, &res.Results)
		}
	}

	res.Summary.Successful = len(res.Results.Successful)
	res.Summary.Failed = len(res.Results.Failed)
	res.Summary.Skipped = len(res.Results.Skipped)
	res.Summary.Attempted = res.Summary.Successful + res.Summary.Failed

	r.observe(ctx, req, res, r.now().Sub(start))
	return res, nil
}

// effectiveChannels applies preferences: drops disabled channels, appends
// preferred ones with a processor, then orders by channel priority.
func (r *Router) effectiveChannels(requested []notifications.Channel, prefs *preferences.Preferences) (effective, disabled []notifications.Channel) {
	if prefs == nil {
		return requested, nil
	}
	for _, ch := range requested {
		if prefs.Disabled(ch) {
			disabled = append(disabled, ch)
			continue
		}
		effective = append(effective, ch)
	}
	for _, ch := range prefs.PreferredChannels {
		if slices.Contains(requested, ch) || slices.Contains(effective, ch) || prefs.Disabled(ch) {
			continue
		}
		if _, ok := r.processor(ch); ok {
			effective = append(effective, ch)
		}
	}
	if len(prefs.ChannelPriority) > 0 {
		rank := func(ch notifications.Channel) int {
			if i := slices.Index(prefs.ChannelPriority, ch); i >= 0 {
				return i
			}
			return len(prefs.ChannelPriority)
		}
		sort.SliceStable(effective, func(i, j int) bool {
			return rank(effective[i]) < rank(effective[j])
		})
	}
	return effective, disabled
}

// walkFallbacks tries the chain of failed in order and stops at the first
// success.
func (r *Router) walkFallbacks(ctx context.Context, failed notifications.Channel, req Request, prefs *preferences.Preferences, tried map[notifications.Channel]bool, out *Results) {
	for _, fb := range r.FallbackChannels(failed) {
		if tried[fb] {
			continue
		}
		tried[fb] = true
		cr := r.processChannel(ctx, fb, req, prefs)
		cr.FallbackFor = failed
		out.add(cr)
		if cr.Outcome == OutcomeSuccessful {
			return
		}
	}
}

func (r *Router) processChannel(ctx context.Context, ch notifications.Channel, req Request, prefs *preferences.Preferences) ChannelResult {
	proc, ok := r.processor(ch)
	if !ok {
		return failed(ch, fmt.Errorf("%w: %s", ErrNoProcessor, ch))
	}

	recipient := req.UserID
	if recipient == "" {
		recipient = req.ID
	}
	key := string(ch) + ":" + recipient
	limit := r.Limit(ch, req.Priority)
	slot, err := r.limiter.Allow(ctx, key, limit)
	if err != nil {
		return failed(ch, err)
	}
	if !slot.Allowed {
		return skipped(ch, ReasonRateLimited)
	}

	cr := r.deliver(ctx, ch, proc, req, prefs)
	if cr.Outcome != OutcomeSuccessful {
		if err := r.limiter.Cancel(ctx, slot); err != nil {
			r.log.LogAttrs(ctx, slog.LevelWarn, "failed to release channel rate slot",
				logger.Component("router"), logger.Channel(ch), logger.Error(err))
		}
	}
	return cr
}

// deliver runs the preference gates and the processor for a channel that
// already holds a rate slot.
func (r *Router) deliver(ctx context.Context, ch notifications.Channel, proc Processor, req Request, prefs *preferences.Preferences) ChannelResult {
	if prefs.Disabled(ch) {
		return skipped(ch, ReasonDisabledByUser)
	}
	bypass := prefs != nil && prefs.SkipQuietHoursForUrgent && req.Priority == notifications.PriorityUrgent
	if !bypass && prefs.InQuietHours(ch, r.now()) {
		return skipped(ch, ReasonQuietHours)
	}

	if err := proc.Validate(req.Content); err != nil {
		return failed(ch, err)
	}

	receipt, err := safeProcess(ctx, proc, Payload{
		NotificationID: req.ID,
		UserID:         req.UserID,
		Channel:        ch,
		Content:        req.Content,
		Priority:       req.Priority,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return failed(ch, err)
	}

	if req.UserID != "" && r.prefs != nil {
		if err := r.prefs.UpdateLastContact(ctx, req.UserID, ch, r.now()); err != nil {
			r.log.LogAttrs(ctx, slog.LevelWarn, "failed to update last contact",
				logger.Component("router"), logger.UserID(req.UserID), logger.Channel(ch), logger.Error(err))
		}
	}
	return ChannelResult{Channel: ch, Outcome: OutcomeSuccessful, Receipt: &receipt}
}

func safeProcess(ctx context.Context, p Processor, payload Payload) (receipt Receipt, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrProcessorPanicked, rec)
		}
	}()
	return p.Process(ctx, payload)
}

func failed(ch notifications.Channel, err error) ChannelResult {
	return ChannelResult{Channel: ch, Outcome: OutcomeFailed, Error: err.Error()}
}

func skipped(ch notifications.Channel, reason SkipReason) ChannelResult {
	return ChannelResult{Channel: ch, Outcome: OutcomeSkipped, Reason: reason}
}

func (r *Router) observe(ctx context.Context, req Request, res Result, d time.Duration) {
	outcome := "failure"
	if res.Summary.Successful > 0 {
		outcome = "success"
	}
	r.metrics.RouteCompleted(outcome, d)
	for _, bucket := range [][]ChannelResult{res.Results.Successful, res.Results.Failed, res.Results.Skipped} {
		for _, cr := range bucket {
			r.metrics.ChannelOutcome(string(cr.Channel), string(cr.Outcome))
		}
	}

	r.log.LogAttrs(ctx, slog.LevelDebug, "notification routed",
		logger.Component("router"),
		logger.NotificationID(req.ID),
		logger.UserID(req.UserID),
		logger.Count("successful", res.Summary.Successful),
		logger.Count("failed", res.Summary.Failed),
		logger.Count("skipped", res.Summary.Skipped),
		logger.Duration(d),
	)
	events.Emit(ctx, r.events, r.log, events.NotificationRouted, events.Payload{
		"notificationId": req.ID,
		"userId":         req.UserID,
		"priority":       req.Priority,
		"summary":        res.Summary,
		"durationMs":     d.Milliseconds(),
	})
}

func dedupe(in []notifications.Channel) []notifications.Channel {
	out := make([]notifications.Channel, 0, len(in))
	for _, ch := range in {
		if ch != "" && !slices.Contains(out, ch) {
			out = append(out, ch)
		}
	}
	return out
}
