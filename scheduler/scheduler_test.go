package scheduler

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/linj121/convo/im/imtest"
)

type fakeTimer struct {
	mu      sync.Mutex
	started int
	stopped int
}

func (t *fakeTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started++
}

func (t *fakeTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped++
}

func (t *fakeTimer) counts() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started, t.stopped
}

func newTestScheduler(t *testing.T, session *imtest.Session, tasks []Task, defaultTZ string) *Scheduler {
	t.Helper()
	s, err := New(Options{
		Session:         session,
		Tasks:           tasks,
		DefaultTimeZone: defaultTZ,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewBuildsJobPerTaskIncludingDisabled(t *testing.T) {
	session := imtest.NewSession("bot")
	off := false
	enabled := validTask("on")
	disabled := validTask("off")
	disabled.Enabled = &off

	s := newTestScheduler(t, session, []Task{enabled, disabled}, "")
	jobs := s.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].Name() != "on" || jobs[1].Name() != "off" {
		t.Fatalf("job order = %q, %q", jobs[0].Name(), jobs[1].Name())
	}
	if !jobs[0].enabled || jobs[1].enabled {
		t.Fatalf("enabled flags = %v, %v", jobs[0].enabled, jobs[1].enabled)
	}
}

func TestStartAllJobsSkipsDisabled(t *testing.T) {
	session := imtest.NewSession("bot")
	off := false
	enabled := validTask("on")
	disabled := validTask("off")
	disabled.Enabled = &off

	s := newTestScheduler(t, session, []Task{enabled, disabled}, "")
	timers := make([]*fakeTimer, 2)
	for i, job := range s.Jobs() {
		timers[i] = &fakeTimer{}
		job.timer = timers[i]
	}

	s.StartAllJobs()
	// Idempotent: a second start must not start timers again.
	s.StartAllJobs()

	if started, _ := timers[0].counts(); started != 1 {
		t.Fatalf("enabled job started %d times, want 1", started)
	}
	if started, _ := timers[1].counts(); started != 0 {
		t.Fatalf("disabled job started %d times, want 0", started)
	}

	s.StopAllJobs()
	if _, stopped := timers[0].counts(); stopped != 1 {
		t.Fatalf("enabled job stopped %d times, want 1", stopped)
	}
	// Stop is unconditional so a later runtime enable cannot leak timers.
	if _, stopped := timers[1].counts(); stopped != 1 {
		t.Fatalf("disabled job stopped %d times, want 1", stopped)
	}
}

func TestJobLocationPrecedence(t *testing.T) {
	session := imtest.NewSession("bot")

	own := validTask("own")
	own.TimeZone = "Asia/Shanghai"
	inherited := validTask("inherited")

	s := newTestScheduler(t, session, []Task{own, inherited}, "America/Toronto")
	jobs := s.Jobs()
	if got := jobs[0].location.String(); got != "Asia/Shanghai" {
		t.Fatalf("task timezone = %q, want Asia/Shanghai", got)
	}
	if got := jobs[1].location.String(); got != "America/Toronto" {
		t.Fatalf("inherited timezone = %q, want America/Toronto", got)
	}

	s = newTestScheduler(t, session, []Task{validTask("local")}, "")
	if got := s.Jobs()[0].location; got != time.Local {
		t.Fatalf("fallback location = %v, want host local", got)
	}
}

func TestNewRejectsInvalidDefaultTimezone(t *testing.T) {
	session := imtest.NewSession("bot")
	if _, err := New(Options{Session: session, DefaultTimeZone: "Mars/Olympus"}); err == nil {
		t.Fatal("invalid default timezone accepted")
	}
}

func TestTickSkipsOverlappingRun(t *testing.T) {
	ran := 0
	job := &Job{name: "t", run: func() { ran++ }}

	job.inFlight.Store(true)
	job.tick(slog.Default())
	if ran != 0 {
		t.Fatal("overlapping tick was not skipped")
	}

	job.inFlight.Store(false)
	job.tick(slog.Default())
	if ran != 1 {
		t.Fatalf("run invoked %d times, want 1", ran)
	}
}

func TestRunTaskSendsToResolvedRoom(t *testing.T) {
	session := imtest.NewSession("bot")
	family := session.AddRoom(imtest.NewRoom("family"))

	task := validTask("greet")
	s := newTestScheduler(t, session, nil, "")
	produce, err := s.templates.Producer(task.Action.Template)
	if err != nil {
		t.Fatalf("Producer: %v", err)
	}

	s.runTask(task, produce)

	texts := family.SaidTexts()
	if len(texts) != 1 || texts[0] != "good morning" {
		t.Fatalf("room received %q", texts)
	}
}

func TestRunTaskFailureIsContained(t *testing.T) {
	session := imtest.NewSession("bot")
	family := session.AddRoom(imtest.NewRoom("family"))
	s := newTestScheduler(t, session, nil, "")

	// Unresolvable target: nothing is sent, nothing panics.
	missing := validTask("missing")
	missing.Target.Name = "nowhere"
	produce, _ := s.templates.Producer(missing.Action.Template)
	s.runTask(missing, produce)

	// Failing producer: a dead media URL must not take the scheduler down.
	broken := validTask("broken")
	broken.Action.Input = ActionInput{Type: ContentImage, Location: "http://127.0.0.1:1/missing.jpg"}
	produce, _ = s.templates.Producer(broken.Action.Template)
	s.runTask(broken, produce)

	// A healthy task still works afterwards.
	greet := validTask("greet")
	produce, _ = s.templates.Producer(greet.Action.Template)
	s.runTask(greet, produce)

	texts := family.SaidTexts()
	if len(texts) != 1 || texts[0] != "good morning" {
		t.Fatalf("room received %q, want only the healthy task's message", texts)
	}
}

func TestOnceTimerDoesNotScheduleThePast(t *testing.T) {
	fired := false
	timer := &onceTimer{
		at:     time.Now().Add(-time.Hour),
		fn:     func() { fired = true },
		logger: slog.Default(),
		name:   "t",
	}
	timer.Start()
	timer.Stop()
	if fired {
		t.Fatal("past instant fired")
	}

	task := validTask("once")
	task.CronTime = time.Now().Add(time.Hour).Format(time.RFC3339)
	session := imtest.NewSession("bot")
	s := newTestScheduler(t, session, []Task{task}, "")
	if _, ok := s.Jobs()[0].timer.(*onceTimer); !ok {
		t.Fatalf("timer = %T, want onceTimer", s.Jobs()[0].timer)
	}
}
