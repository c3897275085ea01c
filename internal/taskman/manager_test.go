package taskman

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// worker is a controllable work function: it signals when it starts and
// blocks until released.
type worker struct {
	started chan struct{}
	release chan struct{}
	result  any
	err     error
}

func newWorker() *worker {
	return &worker{started: make(chan struct{}), release: make(chan struct{})}
}

func (w *worker) fn() (any, error) {
	close(w.started)
	<-w.release
	return w.result, w.err
}

func waitStarted(t *testing.T, w *worker, label string) {
	t.Helper()
	select {
	case <-w.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s did not start within 2s", label)
	}
}

func assertNotStarted(t *testing.T, w *worker, label string) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	select {
	case <-w.started:
		t.Fatalf("%s started but should still be queued", label)
	default:
	}
}

func waitSettled(t *testing.T, h *Handle, label string) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := h.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("%s did not settle within 2s", label)
	}
	return result, err
}

func typeStatus(t *testing.T, st Status, name string) TypeStatus {
	t.Helper()
	for _, ts := range st.Types {
		if ts.Type == name {
			return ts
		}
	}
	t.Fatalf("type %q missing from status", name)
	return TypeStatus{}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestConcurrencyCap(t *testing.T) {
	m := New()

	workers := make([]*worker, 6)
	for i := range workers {
		workers[i] = newWorker()
		m.Submit(TypeAPIRequest, fmt.Sprintf("req-%d", i), workers[i].fn)
	}

	// Limit is 5: the first five start, the sixth waits.
	for i := 0; i < 5; i++ {
		waitStarted(t, workers[i], fmt.Sprintf("req-%d", i))
	}
	assertNotStarted(t, workers[5], "req-5")

	ts := typeStatus(t, m.Status(), "api_request")
	if ts.Running != 5 || ts.Queued != 1 {
		t.Fatalf("got running=%d queued=%d, want 5/1", ts.Running, ts.Queued)
	}

	close(workers[0].release)
	waitStarted(t, workers[5], "req-5")

	for i := 1; i < 6; i++ {
		close(workers[i].release)
	}
}

func TestFIFOWithinType(t *testing.T) {
	m := New()

	starts := make(chan string, 3)
	releases := make(map[string]chan struct{})
	for _, label := range []string{"a", "b", "c"} {
		label := label
		releases[label] = make(chan struct{})
		m.Submit(TypeMovieScan, label, func() (any, error) {
			starts <- label
			<-releases[label]
			return nil, nil
		})
	}

	// movie_scan has limit 1, so admissions must follow submission order.
	for _, want := range []string{"a", "b", "c"} {
		select {
		case got := <-starts:
			if got != want {
				t.Fatalf("admitted %q before %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("task %q never admitted", want)
		}
		close(releases[want])
	}
}

func TestExclusivityGroup(t *testing.T) {
	m := New()

	scan := newWorker()
	m.Submit(TypeMediaScan, "scan", scan.fn)
	waitStarted(t, scan, "scan")

	// metadata_hash shares the library IO group with media_scan, so it must
	// wait even though its own limit (1) is unsaturated.
	hash := newWorker()
	hHash := m.Submit(TypeMetadataHash, "hash", hash.fn)
	assertNotStarted(t, hash, "hash")

	close(scan.release)
	waitStarted(t, hash, "hash")
	close(hash.release)
	waitSettled(t, hHash, "hash")
}

func TestPriorityOrderAcrossTypes(t *testing.T) {
	m := New()

	scan := newWorker()
	m.Submit(TypeMediaScan, "scan", scan.fn)
	waitStarted(t, scan, "scan")

	// Both queue behind the running scan via the shared group. Submit the
	// lower-priority blurhash first to prove priority beats arrival order.
	blur := newWorker()
	m.Submit(TypeBlurhash, "blur", blur.fn)
	hash := newWorker()
	m.Submit(TypeMetadataHash, "hash", hash.fn)

	close(scan.release)

	// metadata_hash (priority 30) wins over blurhash (priority 40), and once
	// running it keeps blurhash out through the same group.
	waitStarted(t, hash, "hash")
	assertNotStarted(t, blur, "blur")

	close(hash.release)
	waitStarted(t, blur, "blur")
	close(blur.release)
}

func TestBandwidthGroupScenario(t *testing.T) {
	m := New()

	downloads := make([]*worker, 3)
	for i := range downloads {
		downloads[i] = newWorker()
		m.Submit(TypeDownload, fmt.Sprintf("dl-%d", i), downloads[i].fn)
	}
	waitStarted(t, downloads[0], "dl-0")
	waitStarted(t, downloads[1], "dl-1")
	assertNotStarted(t, downloads[2], "dl-2")

	// cache_cleanup shares the bandwidth group with download: it stays queued
	// until every download has finished.
	cleanup := newWorker()
	m.Submit(TypeCacheCleanup, "cleanup", cleanup.fn)
	assertNotStarted(t, cleanup, "cleanup")

	close(downloads[0].release)
	waitStarted(t, downloads[2], "dl-2")
	assertNotStarted(t, cleanup, "cleanup")

	close(downloads[1].release)
	close(downloads[2].release)
	waitStarted(t, cleanup, "cleanup")
	close(cleanup.release)
}

func TestHistoryBound(t *testing.T) {
	m := New()
	clock := newFakeClock()
	m.clock = clock

	for i := 1; i <= 5; i++ {
		name := fmt.Sprintf("job-%d", i)
		h := m.Submit(TypeCacheCleanup, name, func() (any, error) {
			return nil, nil
		})
		waitSettled(t, h, name)
		clock.advance(time.Minute)
	}

	ts := typeStatus(t, m.Status(), "cache_cleanup")
	if len(ts.History) != historyCap {
		t.Fatalf("history has %d entries, want %d", len(ts.History), historyCap)
	}
	// Newest first.
	for i, want := range []string{"job-5", "job-4", "job-3"} {
		if ts.History[i].Name != want {
			t.Fatalf("history[%d] = %q, want %q", i, ts.History[i].Name, want)
		}
	}
	if ts.History[0].AgoSeconds >= ts.History[1].AgoSeconds {
		t.Fatalf("history not ordered by recency: %v then %v", ts.History[0].AgoSeconds, ts.History[1].AgoSeconds)
	}
}

// faultyClock panics on the next Now call after arm, then behaves again.
type faultyClock struct {
	mu   sync.Mutex
	trip bool
}

func (c *faultyClock) arm() {
	c.mu.Lock()
	c.trip = true
	c.mu.Unlock()
}

func (c *faultyClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.trip {
		c.trip = false
		panic("clock backend gone")
	}
	return time.Now()
}

func TestHistoryFaultDoesNotBlockCompletion(t *testing.T) {
	m := New()
	clock := &faultyClock{}
	m.clock = clock

	first := newWorker()
	h1 := m.Submit(TypeMovieScan, "first", first.fn)
	waitStarted(t, first, "first")

	second := newWorker()
	m.Submit(TypeMovieScan, "second", second.fn)
	assertNotStarted(t, second, "second")

	// The next clock read happens while the completion is recorded; a panic
	// there must still free the slot, settle the handle and admit the queue.
	clock.arm()
	close(first.release)

	if _, err := waitSettled(t, h1, "first"); err != nil {
		t.Fatalf("completed task settled with %v", err)
	}
	waitStarted(t, second, "second")

	ts := typeStatus(t, m.Status(), "movie_scan")
	if ts.Running != 1 || ts.Queued != 0 {
		t.Fatalf("running=%d queued=%d after history fault, want 1/0", ts.Running, ts.Queued)
	}
	if len(ts.History) != 0 {
		t.Fatalf("history has %d entries, want none after the failed update", len(ts.History))
	}
	close(second.release)
}

func TestCancelPendingScope(t *testing.T) {
	m := New()

	runningScan := newWorker()
	m.Submit(TypeMovieScan, "running", runningScan.fn)
	waitStarted(t, runningScan, "running")

	queued := make([]*Handle, 3)
	for i := range queued {
		w := newWorker()
		queued[i] = m.Submit(TypeMovieScan, fmt.Sprintf("queued-%d", i), w.fn)
	}

	other := newWorker()
	m.Submit(TypeTVScan, "tv", other.fn)
	waitStarted(t, other, "tv")
	otherQueued := newWorker()
	hOther := m.Submit(TypeTVScan, "tv-queued", otherQueued.fn)

	if n := m.CancelPending(TypeMovieScan); n != 3 {
		t.Fatalf("canceled %d tasks, want 3", n)
	}
	for i, h := range queued {
		_, err := waitSettled(t, h, fmt.Sprintf("queued-%d", i))
		if !errors.Is(err, ErrCanceled) {
			t.Fatalf("queued-%d settled with %v, want ErrCanceled", i, err)
		}
	}

	// The running movie_scan and the other type's queue are untouched.
	st := m.Status()
	if ts := typeStatus(t, st, "movie_scan"); ts.Running != 1 || ts.Queued != 0 {
		t.Fatalf("movie_scan running=%d queued=%d, want 1/0", ts.Running, ts.Queued)
	}
	if ts := typeStatus(t, st, "tv_scan"); ts.Queued != 1 {
		t.Fatalf("tv_scan queued=%d, want 1", ts.Queued)
	}

	close(runningScan.release)
	close(other.release)
	waitStarted(t, otherQueued, "tv-queued")
	close(otherQueued.release)
	waitSettled(t, hOther, "tv-queued")
}

func TestNoSlotLeak(t *testing.T) {
	m := New()

	for i := 0; i < 1000; i++ {
		var h *Handle
		if i%2 == 0 {
			h = m.Submit(TypeMetadataHash, "ok", func() (any, error) { return i, nil })
		} else {
			h = m.Submit(TypeMetadataHash, "bad", func() (any, error) { return nil, errors.New("boom") })
		}
		waitSettled(t, h, fmt.Sprintf("task-%d", i))
	}

	ts := typeStatus(t, m.Status(), "metadata_hash")
	if ts.Running != 0 || ts.Queued != 0 {
		t.Fatalf("after 1000 completions: running=%d queued=%d, want 0/0", ts.Running, ts.Queued)
	}
}

func TestWorkErrorPropagation(t *testing.T) {
	m := New()

	wantErr := errors.New("probe failed")
	h := m.Submit(TypeMovieScan, "fails", func() (any, error) { return nil, wantErr })
	if _, err := waitSettled(t, h, "fails"); !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want the work function's own error", err)
	}

	// A panic settles the handle with an error and frees the slot.
	h = m.Submit(TypeMovieScan, "panics", func() (any, error) { panic("worker bug") })
	if _, err := waitSettled(t, h, "panics"); err == nil {
		t.Fatal("panicking task settled without error")
	}

	next := newWorker()
	m.Submit(TypeMovieScan, "next", next.fn)
	waitStarted(t, next, "next")
	close(next.release)
}

func TestResultPropagation(t *testing.T) {
	m := New()

	h := m.Submit(TypeAPIRequest, "answer", func() (any, error) { return 42, nil })
	result, err := waitSettled(t, h, "answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
}

func TestSubmitImmediate(t *testing.T) {
	m := New()

	// With capacity free, the task is registered as running before
	// SubmitImmediate returns, even though the goroutine may not have
	// entered the work function yet.
	w1 := newWorker()
	m.SubmitImmediate(TypeMediaScan, "first", w1.fn)
	if ts := typeStatus(t, m.Status(), "media_scan"); ts.Running != 1 {
		t.Fatalf("immediate submit not running, status running=%d", ts.Running)
	}

	// Capacity exhausted: the failed immediate check falls back to the queue
	// instead of rejecting.
	w2 := newWorker()
	h2 := m.SubmitImmediate(TypeMediaScan, "second", w2.fn)
	if ts := typeStatus(t, m.Status(), "media_scan"); ts.Queued != 1 {
		t.Fatalf("failed immediate submit not queued, status queued=%d", ts.Queued)
	}

	close(w1.release)
	waitStarted(t, w2, "second")
	close(w2.release)
	waitSettled(t, h2, "second")
}

func TestMonotonicIDs(t *testing.T) {
	m := New()

	var last int64
	for i := 0; i < 10; i++ {
		w := newWorker()
		m.Submit(TypeAPIRequest, fmt.Sprintf("req-%d", i), w.fn)
		waitStarted(t, w, fmt.Sprintf("req-%d", i))

		st := m.Status()
		id := st.Running[len(st.Running)-1].ID
		if id <= last {
			t.Fatalf("task id %d not greater than previous %d", id, last)
		}
		last = id
		close(w.release)
	}
}

func TestUnknownType(t *testing.T) {
	m := New()

	h := m.Submit(TaskType(99), "bogus", func() (any, error) { return nil, nil })
	if _, err := waitSettled(t, h, "bogus"); err == nil {
		t.Fatal("unknown task type settled without error")
	}
	if st := m.Status(); len(st.Running) != 0 {
		t.Fatalf("unknown type left %d running entries", len(st.Running))
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("media_scan")
	if err != nil || typ != TypeMediaScan {
		t.Fatalf("ParseType(media_scan) = %v, %v", typ, err)
	}
	if _, err := ParseType("nonsense"); err == nil {
		t.Fatal("ParseType accepted an unknown name")
	}
}

func TestCascadingAdmissions(t *testing.T) {
	m := New()

	// One media_scan completion must unblock, in one pass, work queued
	// across several types freed by the same group.
	scan := newWorker()
	m.Submit(TypeMediaScan, "scan", scan.fn)
	waitStarted(t, scan, "scan")

	hash := newWorker()
	m.Submit(TypeMetadataHash, "hash", hash.fn)
	movie := newWorker()
	m.Submit(TypeMovieScan, "movie", movie.fn)

	// movie_scan is not in the group: it starts while the scan still runs.
	waitStarted(t, movie, "movie")
	assertNotStarted(t, hash, "hash")

	close(scan.release)
	waitStarted(t, hash, "hash")
	close(hash.release)
	close(movie.release)
}
