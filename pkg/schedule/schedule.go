// Package schedule runs periodic maintenance tasks.
//
//	s := schedule.New()
//	s.Every(10).Minutes().Name("catalog:warm").Run(warmCatalog)
//	s.Cron("30 3 * * *").Name("blobs:sweep").WithoutOverlapping().Run(sweep)
//	s.Start(ctx)
//	defer s.Wait()
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

// Task is a scheduled unit of work. ctx is cancelled on shutdown.
type Task func(ctx context.Context) error

type entry struct {
	id        string
	interval  time.Duration
	cronExpr  string
	task      Task
	noOverlap bool

	mu      sync.Mutex
	lastRun time.Time
	lastMin time.Time
	running bool
}

// Scheduler dispatches due entries once per tick.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	tick    time.Duration
	wg      sync.WaitGroup
}

// New returns a scheduler that checks entries every second.
func New() *Scheduler { return &Scheduler{tick: time.Second} }

// Builder configures one entry before Run registers it.
type Builder struct {
	s *Scheduler
	e *entry
}

// Every starts a fluent builder with n units.
func (s *Scheduler) Every(n int) *Freq { return &Freq{s: s, n: n} }

// Hourly runs the task every hour.
func (s *Scheduler) Hourly() *Builder { return s.Every(1).Hours() }

// Daily runs the task every 24 hours.
func (s *Scheduler) Daily() *Builder { return s.Every(24).Hours() }

// Cron runs the task when a 5-field expression (min hour dom mon dow)
// matches the current minute. Fields accept *, n, */n, a-b and comma lists.
func (s *Scheduler) Cron(expr string) *Builder {
	return &Builder{s: s, e: &entry{cronExpr: expr}}
}

// Freq picks the unit for Every.
type Freq struct {
	s *Scheduler
	n int
}

func (f *Freq) build(unit time.Duration) *Builder {
	return &Builder{s: f.s, e: &entry{interval: time.Duration(f.n) * unit}}
}

func (f *Freq) Seconds() *Builder { return f.build(time.Second) }
func (f *Freq) Minutes() *Builder { return f.build(time.Minute) }
func (f *Freq) Hours() *Builder   { return f.build(time.Hour) }

// WithoutOverlapping skips a run while the previous one is still going.
func (b *Builder) WithoutOverlapping() *Builder {
	b.e.noOverlap = true
	return b
}

// Name sets the identifier used in logs and listings.
func (b *Builder) Name(id string) *Builder {
	b.e.id = id
	return b
}

// Run registers the task.
func (b *Builder) Run(fn Task) {
	b.e.task = fn
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	b.s.entries = append(b.s.entries, b.e)
}

// Start runs the dispatch loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	logger.Info("schedule: scheduler started", "tasks", len(s.List()))
}

// Wait blocks until the loop and every running task have returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule: scheduler stopped")
			return
		case now := <-ticker.C:
			s.mu.Lock()
			current := append([]*entry(nil), s.entries...)
			s.mu.Unlock()
			for _, e := range current {
				if e.due(now) {
					s.dispatch(ctx, e, now)
				}
			}
		}
	}
}

func (e *entry) due(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cronExpr != "" {
		minute := now.Truncate(time.Minute)
		if minute.Equal(e.lastMin) || !matchCron(e.cronExpr, now) {
			return false
		}
		e.lastMin = minute
		return true
	}
	return e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.interval
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if e.noOverlap && e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping task", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", fmt.Sprint(r))
			}
		}()
		start := time.Now()
		if err := e.task(ctx); err != nil {
			logger.Error("schedule: task failed", "id", e.id, "error", err)
			return
		}
		logger.Debug("schedule: task finished", "id", e.id, "duration", time.Since(start).String())
	}()
}

// List returns "id  [frequency]" for every registered entry.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		freq := e.cronExpr
		if freq == "" {
			freq = e.interval.String()
		}
		out = append(out, fmt.Sprintf("%s  [%s]", e.id, freq))
	}
	return out
}

// ─── Cron matching ────────────────────────────────────────────────────────────

func matchCron(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	vals := []int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, f := range fields {
		if !matchField(f, vals[i]) {
			return false
		}
	}
	return true
}

func matchField(field string, val int) bool {
	for _, part := range strings.Split(field, ",") {
		if matchPart(part, val) {
			return true
		}
	}
	return false
}

func matchPart(part string, val int) bool {
	switch {
	case part == "*":
		return true
	case strings.HasPrefix(part, "*/"):
		step, err := strconv.Atoi(part[2:])
		return err == nil && step > 0 && val%step == 0
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		l, err1 := strconv.Atoi(lo)
		h, err2 := strconv.Atoi(hi)
		return err1 == nil && err2 == nil && val >= l && val <= h
	}
	n, err := strconv.Atoi(part)
	return err == nil && n == val
}
