package alert

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/baikal/sentinel/internal/model"
)

type fakeNotifier struct {
	delivered []string
	fail      bool
}

func (f *fakeNotifier) Notify(title, body string) error {
	if f.fail {
		return errors.New("notification primitive unavailable")
	}
	f.delivered = append(f.delivered, title)
	return nil
}

func critical(summary string) model.Insight {
	return model.Insight{Summary: summary, Severity: model.SeverityCritical}
}

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

// TestRateLimitSoundness is testable property #11: at most
// max_per_window deliveries occur in any window.
func TestRateLimitSoundness(t *testing.T) {
	notifier := &fakeNotifier{}
	now := time.Unix(0, 0)
	d := New(notifier, zerolog.Nop(), WithMaxPerWindow(3), WithWindow(60*time.Second), WithMaxQueueSize(100))
	d.now = fixedClock(&now)

	for i := 0; i < 5; i++ {
		d.SendAlert(critical("x"))
	}

	if len(notifier.delivered) != 3 {
		t.Fatalf("delivered = %d, want 3", len(notifier.delivered))
	}
	if d.PendingLen() != 2 {
		t.Fatalf("PendingLen() = %d, want 2", d.PendingLen())
	}
}

// TestDispatcherScenarioE mirrors scenario E exactly.
func TestDispatcherScenarioE(t *testing.T) {
	notifier := &fakeNotifier{}
	now := time.Unix(0, 0)
	d := New(notifier, zerolog.Nop(), WithMaxPerWindow(3), WithWindow(60*time.Second), WithMaxQueueSize(2))
	d.now = fixedClock(&now)

	insights := make([]model.Insight, 6)
	for i := range insights {
		insights[i] = critical(string(rune('1' + i)))
	}

	for i := 0; i < 5; i++ {
		d.SendAlert(insights[i])
	}

	if len(notifier.delivered) != 3 {
		t.Fatalf("delivered = %d, want 3 (I1,I2,I3)", len(notifier.delivered))
	}
	if d.PendingLen() != 2 {
		t.Fatalf("PendingLen() = %d, want 2 (I4,I5)", d.PendingLen())
	}
	if d.pending[0].Summary != "4" || d.pending[1].Summary != "5" {
		t.Fatalf("pending = %v, want [4 5]", d.pending)
	}

	d.SendAlert(insights[5])
	if d.PendingLen() != 2 {
		t.Fatalf("after overflow PendingLen() = %d, want 2", d.PendingLen())
	}
	if d.pending[0].Summary != "5" || d.pending[1].Summary != "6" {
		t.Fatalf("pending after overflow = %v, want [5 6]", d.pending)
	}

	now = time.Unix(61, 0)
	delivered := d.Tick()
	if delivered != 2 {
		t.Fatalf("Tick() delivered = %d, want 2", delivered)
	}
	if len(notifier.delivered) != 5 || notifier.delivered[3] != "System Alert: 5" || notifier.delivered[4] != "System Alert: 6" {
		t.Fatalf("delivered = %v, want I1..I3 then I5,I6", notifier.delivered)
	}
}

// TestDeferredQueueBound is testable property #12.
func TestDeferredQueueBound(t *testing.T) {
	notifier := &fakeNotifier{}
	now := time.Unix(0, 0)
	d := New(notifier, zerolog.Nop(), WithMaxPerWindow(0), WithMaxQueueSize(3))
	d.now = fixedClock(&now)

	for i := 0; i < 10; i++ {
		d.SendAlert(critical("x"))
		if d.PendingLen() > 3 {
			t.Fatalf("PendingLen() = %d exceeds cap 3", d.PendingLen())
		}
	}
}

// TestDrainProgress is testable property #13.
func TestDrainProgress(t *testing.T) {
	notifier := &fakeNotifier{}
	now := time.Unix(0, 0)
	d := New(notifier, zerolog.Nop(), WithMaxPerWindow(1), WithWindow(time.Second), WithMaxQueueSize(100))
	d.now = fixedClock(&now)

	for i := 0; i < 4; i++ {
		d.SendAlert(critical("x"))
	}
	if d.PendingLen() != 3 {
		t.Fatalf("PendingLen() = %d, want 3", d.PendingLen())
	}

	for i := 0; i < 3 && d.PendingLen() > 0; i++ {
		now = now.Add(2 * time.Second)
		d.Tick()
	}

	if d.PendingLen() != 0 {
		t.Fatalf("expected queue fully drained, PendingLen() = %d", d.PendingLen())
	}
}

func TestNonCriticalInsightIsNotDispatched(t *testing.T) {
	notifier := &fakeNotifier{}
	d := New(notifier, zerolog.Nop())
	d.SendAlert(model.Insight{Summary: "x", Severity: model.SeverityWarning})

	if len(notifier.delivered) != 0 || d.PendingLen() != 0 {
		t.Fatal("expected non-critical insight to produce no notification and no deferral")
	}
}

func TestNotificationFailureIsNotReenqueued(t *testing.T) {
	notifier := &fakeNotifier{fail: true}
	d := New(notifier, zerolog.Nop())
	d.SendAlert(critical("x"))

	if d.PendingLen() != 0 {
		t.Fatal("expected failed notification to be dropped, not re-enqueued")
	}
}

// TestConcurrentSendAlertAndTickDoNotRace exercises SendAlert running on
// one goroutine while Tick runs on another, the same split the
// orchestrator's evaluator and notification-ticker goroutines produce.
// Run with -race to verify the mutex actually serializes d.sent/d.pending.
func TestConcurrentSendAlertAndTickDoNotRace(t *testing.T) {
	notifier := &fakeNotifier{}
	d := New(notifier, zerolog.Nop(), WithMaxPerWindow(3), WithWindow(10*time.Millisecond), WithMaxQueueSize(50))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.SendAlert(critical("x"))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Tick()
		}
	}()

	wg.Wait()
}

func TestRenderTruncatesTitleAndBody(t *testing.T) {
	longSummary := strings.Repeat("x", 500)
	recs := []string{"a", "b", "c", "d", "e"}
	ins := model.Insight{Summary: longSummary, Recommendations: recs, Severity: model.SeverityCritical}

	title, body := render(ins)
	if len(title) > titleMaxLen {
		t.Errorf("title len %d exceeds %d", len(title), titleMaxLen)
	}
	if len(body) > bodyMaxLen {
		t.Errorf("body len %d exceeds %d", len(body), bodyMaxLen)
	}
	if !strings.Contains(body, "... and 2 more") {
		t.Errorf("expected trailing more-count line, body = %q", body)
	}
}
