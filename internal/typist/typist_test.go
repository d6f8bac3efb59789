package typist

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ghostkeys/internal/config"
	"ghostkeys/internal/injector"
)

// fakeInjector records every injection call instead of touching the OS.
type fakeInjector struct {
	mu   sync.Mutex
	ops  []string
	slow time.Duration
}

func (f *fakeInjector) Name() string { return "fake" }

func (f *fakeInjector) TypeText(text string) error {
	if f.slow > 0 {
		time.Sleep(f.slow)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "text:"+text)
	return nil
}

func (f *fakeInjector) TapKey(key string) error {
	if f.slow > 0 {
		time.Sleep(f.slow)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "key:"+key)
	return nil
}

func (f *fakeInjector) Close() error { return nil }

func (f *fakeInjector) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

// newTestEngine wires an engine to the fake backend and counts acquisitions.
func newTestEngine(t *testing.T, fake *fakeInjector) (*Engine, *int) {
	t.Helper()
	m := config.NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	e := New(m)
	acquired := new(int)
	e.newBackend = func(string) (injector.Injector, error) {
		*acquired++
		return fake, nil
	}
	t.Cleanup(e.Close)
	return e, acquired
}

func waitJob(t *testing.T, job *Job) error {
	t.Helper()
	select {
	case <-job.Done():
		return job.Err()
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for job")
		return nil
	}
}

func ms(n int) *time.Duration {
	d := time.Duration(n) * time.Millisecond
	return &d
}

// TestTypeTextExactOrder tests that submitted text is injected verbatim
func TestTypeTextExactOrder(t *testing.T) {
	fake := &fakeInjector{}
	e, _ := newTestEngine(t, fake)

	job, err := e.Submit(Request{Text: "hello world", Source: "test", Delay: ms(0)})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := waitJob(t, job); err != nil {
		t.Fatalf("Expected job to succeed, got %v", err)
	}

	ops := fake.recorded()
	if len(ops) != 1 || ops[0] != "text:hello world" {
		t.Errorf("Expected single verbatim injection, got %v", ops)
	}
	typed, total := job.Progress()
	if typed != 11 || total != 11 {
		t.Errorf("Expected progress 11/11, got %d/%d", typed, total)
	}
}

// TestNewlinesAndTabsBecomeKeys tests control character translation
func TestNewlinesAndTabsBecomeKeys(t *testing.T) {
	fake := &fakeInjector{}
	e, _ := newTestEngine(t, fake)

	job, err := e.Submit(Request{Text: "one\r\ntwo\tthree", Source: "test", Delay: ms(0)})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := waitJob(t, job); err != nil {
		t.Fatalf("Expected job to succeed, got %v", err)
	}

	want := []string{"text:one", "key:enter", "text:two", "key:tab", "text:three"}
	got := fake.recorded()
	if len(got) != len(want) {
		t.Fatalf("Expected ops %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}
}

// TestEmptyTextNoBackendAcquisition tests that empty submissions complete
// immediately without acquiring any backend
func TestEmptyTextNoBackendAcquisition(t *testing.T) {
	fake := &fakeInjector{}
	e, acquired := newTestEngine(t, fake)

	job, err := e.Submit(Request{Text: "", Source: "test"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case <-job.Done():
	default:
		t.Fatal("Expected empty job to be done on return from Submit")
	}
	if job.Err() != nil {
		t.Errorf("Expected no error for empty text, got %v", job.Err())
	}
	if *acquired != 0 {
		t.Errorf("Expected no backend acquisition for empty text, got %d", *acquired)
	}
	if len(fake.recorded()) != 0 {
		t.Errorf("Expected no injections for empty text, got %v", fake.recorded())
	}
	if st := e.Status(); st.State != StateIdle || st.Queued != 0 {
		t.Errorf("Expected idle engine after empty submit, got %+v", st)
	}
}

// TestBackendFailureIsReported tests that an acquisition failure surfaces as
// the job's error instead of taking the engine down
func TestBackendFailureIsReported(t *testing.T) {
	fake := &fakeInjector{}
	e, _ := newTestEngine(t, fake)

	boom := errors.New("no display")
	e.newBackend = func(string) (injector.Injector, error) { return nil, boom }

	job, err := e.Submit(Request{Text: "hi", Source: "test", Delay: ms(0)})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	jobErr := waitJob(t, job)
	if !errors.Is(jobErr, boom) {
		t.Errorf("Expected job error to wrap the backend failure, got %v", jobErr)
	}

	// Engine must still accept and run later jobs
	e.newBackend = func(string) (injector.Injector, error) { return fake, nil }
	job2, err := e.Submit(Request{Text: "ok", Source: "test", Delay: ms(0)})
	if err != nil {
		t.Fatalf("Submit after failure failed: %v", err)
	}
	if err := waitJob(t, job2); err != nil {
		t.Errorf("Expected engine to recover, got %v", err)
	}
}

// TestJobsRunSequentially tests that two queued jobs never interleave
func TestJobsRunSequentially(t *testing.T) {
	fake := &fakeInjector{slow: 2 * time.Millisecond}
	e, _ := newTestEngine(t, fake)

	job1, err := e.Submit(Request{Text: "ab", Source: "test", Delay: ms(0), Interval: ms(1)})
	if err != nil {
		t.Fatalf("Submit 1 failed: %v", err)
	}
	job2, err := e.Submit(Request{Text: "cd", Source: "test", Delay: ms(0), Interval: ms(1)})
	if err != nil {
		t.Fatalf("Submit 2 failed: %v", err)
	}

	if err := waitJob(t, job1); err != nil {
		t.Fatalf("Job 1 failed: %v", err)
	}
	if err := waitJob(t, job2); err != nil {
		t.Fatalf("Job 2 failed: %v", err)
	}

	joined := strings.Join(fake.recorded(), " ")
	if joined != "text:a text:b text:c text:d" {
		t.Errorf("Expected strict a b c d ordering, got %q", joined)
	}
}

// TestCancelDuringStartDelay tests that canceling during the countdown
// prevents any backend acquisition
func TestCancelDuringStartDelay(t *testing.T) {
	fake := &fakeInjector{}
	e, acquired := newTestEngine(t, fake)

	job, err := e.Submit(Request{Text: "never", Source: "test", Delay: ms(10000)})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	job.Cancel()

	if err := waitJob(t, job); !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected ErrCanceled, got %v", err)
	}
	if *acquired != 0 {
		t.Errorf("Expected no acquisition for job canceled in delay, got %d", *acquired)
	}
	if len(fake.recorded()) != 0 {
		t.Errorf("Expected no injections, got %v", fake.recorded())
	}
}

// TestCancelByID tests targeted cancellation of a queued job
func TestCancelByID(t *testing.T) {
	fake := &fakeInjector{slow: 10 * time.Millisecond}
	e, _ := newTestEngine(t, fake)

	job1, err := e.Submit(Request{Text: "a\nb\nc", Source: "test", Delay: ms(0)})
	if err != nil {
		t.Fatalf("Submit 1 failed: %v", err)
	}
	job2, err := e.Submit(Request{Text: "zzz", Source: "test", Delay: ms(0)})
	if err != nil {
		t.Fatalf("Submit 2 failed: %v", err)
	}

	if !e.Cancel(job2.ID) {
		t.Error("Expected Cancel to find the queued job")
	}
	if e.Cancel(99999) {
		t.Error("Expected Cancel of unknown ID to report false")
	}

	if err := waitJob(t, job2); !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected job 2 to be canceled, got %v", err)
	}
	if err := waitJob(t, job1); err != nil {
		t.Errorf("Expected job 1 to finish normally, got %v", err)
	}
	for _, op := range fake.recorded() {
		if strings.Contains(op, "z") {
			t.Errorf("Canceled job was partially typed: %v", fake.recorded())
		}
	}
}

// TestCancelAllCancelsQueued tests the emergency stop
func TestCancelAllCancelsQueued(t *testing.T) {
	fake := &fakeInjector{slow: 20 * time.Millisecond}
	e, _ := newTestEngine(t, fake)

	job1, _ := e.Submit(Request{Text: "a\nb\nc\nd", Source: "test", Delay: ms(0)})
	job2, _ := e.Submit(Request{Text: "qq", Source: "test", Delay: ms(0)})
	job3, _ := e.Submit(Request{Text: "ww", Source: "test", Delay: ms(0)})

	time.Sleep(10 * time.Millisecond)
	e.CancelAll()

	waitJob(t, job1)
	if err := waitJob(t, job2); !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected queued job 2 canceled, got %v", err)
	}
	if err := waitJob(t, job3); !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected queued job 3 canceled, got %v", err)
	}
	for _, op := range fake.recorded() {
		if strings.Contains(op, "q") || strings.Contains(op, "w") {
			t.Errorf("Canceled job was partially typed: %v", fake.recorded())
		}
	}
}

// TestSubmitAfterClose tests that a closed engine rejects work
func TestSubmitAfterClose(t *testing.T) {
	fake := &fakeInjector{}
	e, _ := newTestEngine(t, fake)
	e.Close()

	if _, err := e.Submit(Request{Text: "late", Source: "test"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

// TestSegments tests text splitting and unit counting
func TestSegments(t *testing.T) {
	tests := []struct {
		in    string
		want  []string
		units int
	}{
		{"plain", []string{"text:plain"}, 5},
		{"a\nb", []string{"text:a", "key:enter", "text:b"}, 3},
		{"a\r\nb", []string{"text:a", "key:enter", "text:b"}, 3},
		{"a\rb", []string{"text:a", "key:enter", "text:b"}, 3},
		{"\t", []string{"key:tab"}, 1},
		{"\n\n", []string{"key:enter", "key:enter"}, 2},
		{"héllo", []string{"text:héllo"}, 5},
	}

	for _, tt := range tests {
		segs := segments(tt.in)
		var got []string
		for _, s := range segs {
			if s.key != "" {
				got = append(got, "key:"+s.key)
			} else {
				got = append(got, "text:"+s.text)
			}
		}
		if len(got) != len(tt.want) {
			t.Errorf("segments(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("segments(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
		if u := countUnits(segs); u != tt.units {
			t.Errorf("countUnits(%q) = %d, want %d", tt.in, u, tt.units)
		}
	}
}
