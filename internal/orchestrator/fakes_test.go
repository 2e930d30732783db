package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-rotator/internal/filtering"
	"github.com/spigell/job-rotator/internal/history"
	"github.com/spigell/job-rotator/internal/platform"
	"github.com/spigell/job-rotator/internal/quota"
	"github.com/spigell/job-rotator/internal/retry"
)

var errStore = errors.New("store unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memQuota struct {
	mu      sync.Mutex
	states  map[string]quota.State
	saveErr error
	now     func() time.Time
}

func (m *memQuota) Load(_ context.Context, name string) quota.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[name]; ok {
		return s
	}
	return quota.Fresh(m.now())
}

func (m *memQuota) Save(_ context.Context, name string, s quota.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.states[name] = s
	return nil
}

func (m *memQuota) Close() error { return nil }

func (m *memQuota) get(name string) quota.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[name]
}

type memHistory struct {
	mu      sync.Mutex
	records []history.Record
	err     error
}

func (m *memHistory) Append(_ context.Context, r history.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memHistory) Load(context.Context) ([]history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Record(nil), m.records...), nil
}

func (m *memHistory) Close() error { return nil }

func (m *memHistory) outcomes() map[string]platform.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]platform.Outcome, len(m.records))
	for _, r := range m.records {
		out[r.Platform+"/"+r.JobID] = r.Outcome
	}
	return out
}

type recordingObserver struct {
	mu        sync.Mutex
	cycles    int
	abandoned []string
	quotas    map[string]quota.State
}

func (r *recordingObserver) ObserveQuota(name string, s quota.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quotas == nil {
		r.quotas = make(map[string]quota.State)
	}
	r.quotas[name] = s
}

func (r *recordingObserver) ObserveCycle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
}

func (r *recordingObserver) ObserveAbandoned(name, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned = append(r.abandoned, name+": "+reason)
}

type fakeAdapter struct {
	name    string
	pages   [][]*platform.Candidate
	authErr error
	actErr  map[string]error
	altErr  map[string]error
	outcome map[string]platform.Outcome
	onAct   func(ctx context.Context, c *platform.Candidate)

	page     int
	searches []string
	fetched  []string
	acted    []string
	closed   bool
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Authenticate(context.Context, platform.Credentials) error { return f.authErr }

func (f *fakeAdapter) Search(_ context.Context, keyword, _ string) error {
	f.searches = append(f.searches, keyword)
	f.page = 0
	return nil
}

func (f *fakeAdapter) ListCandidates(context.Context) ([]*platform.Candidate, error) {
	if f.page >= len(f.pages) {
		return nil, nil
	}
	out := make([]*platform.Candidate, 0, len(f.pages[f.page]))
	for _, c := range f.pages[f.page] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeAdapter) FetchDetails(_ context.Context, c *platform.Candidate) (*platform.Candidate, error) {
	f.fetched = append(f.fetched, c.ID)
	d := *c
	d.CompanyInfo = "company of " + c.Company
	return &d, nil
}

func (f *fakeAdapter) Act(ctx context.Context, c *platform.Candidate, s retry.Strategy) (platform.Outcome, error) {
	if s != retry.Direct {
		if err := f.altErr[c.ID]; err != nil {
			return "", err
		}
		return "", retry.ErrUnsupportedStrategy
	}
	if f.onAct != nil {
		f.onAct(ctx, c)
	}
	if err := f.actErr[c.ID]; err != nil {
		return "", err
	}
	f.acted = append(f.acted, c.ID)
	if o, ok := f.outcome[c.ID]; ok {
		return o, nil
	}
	return platform.Applied, nil
}

func (f *fakeAdapter) NextPage(context.Context) (bool, error) {
	f.page++
	return f.page < len(f.pages), nil
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func page(platformName string, ids ...string) []*platform.Candidate {
	out := make([]*platform.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, &platform.Candidate{
			ID:       id,
			Platform: platformName,
			Title:    "Engineer " + id,
			Company:  "Company " + id,
		})
	}
	return out
}

type harness struct {
	clock    *fakeClock
	quota    *memQuota
	history  *memHistory
	observer *recordingObserver
	logs     *observer.ObservedLogs
	filter   *filtering.Config
	tracker  *history.Tracker

	sleeps  []time.Duration
	onSleep func(d time.Duration)
}

func newHarness() *harness {
	clock := &fakeClock{now: time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)}
	return &harness{
		clock:    clock,
		quota:    &memQuota{states: make(map[string]quota.State), now: clock.Now},
		history:  &memHistory{},
		observer: &recordingObserver{},
		filter: &filtering.Config{
			CurrentExperience: filtering.ExperienceUnset,
			Weights:           filtering.DefaultWeights(),
		},
	}
}

func (h *harness) exhaust(name string, daily int) {
	s := quota.Fresh(h.clock.Now())
	s.DailyCount = daily
	s.WeeklyCount = daily
	h.quota.states[name] = s
}

func (h *harness) sleep(ctx context.Context, d time.Duration) error {
	h.sleeps = append(h.sleeps, d)
	h.clock.Advance(d)
	if h.onSleep != nil {
		h.onSleep(d)
	}
	return ctx.Err()
}

func (h *harness) build(t *testing.T, cfg Config, platforms ...Platform) *Orchestrator {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)
	h.logs = logs
	h.tracker = history.NewTracker(h.history, nil, log)

	if len(cfg.Keywords) == 0 {
		cfg.Keywords = []string{"golang"}
	}
	if cfg.RunID == "" {
		cfg.RunID = "run-1"
	}

	o, err := New(cfg, Deps{
		Quota:      h.quota,
		Limiter:    quota.NewLimiter(30*time.Second, h.clock.Now),
		Retry:      retry.New(retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond}, nil, log),
		Validator:  filtering.NewValidator(h.filter, log),
		Filter:     h.filter,
		Exclusions: filtering.NewExclusions(),
		Tracker:    h.tracker,
		Observer:   h.observer,
		Logger:     log,
		Sleep:      h.sleep,
	}, platforms)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return o
}

func limits(daily int) quota.Limits { return quota.Limits{Daily: daily} }
