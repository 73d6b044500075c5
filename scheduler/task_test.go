package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validTask(name string) Task {
	return Task{
		Name:     name,
		Target:   Target{Type: TargetRoom, Name: "family"},
		CronTime: "0 9 * * *",
		Action: Action{
			Template: TemplateCustomMessage,
			Input:    ActionInput{Type: ContentText, Text: "good morning"},
		},
	}
}

func TestTaskValidate(t *testing.T) {
	if err := validTask("ok").Validate(); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Task)
		want   string
	}{
		{
			name:   "empty name",
			mutate: func(task *Task) { task.Name = " " },
			want:   "name of the task cannot be empty",
		},
		{
			name:   "bad target type",
			mutate: func(task *Task) { task.Target.Type = "channel" },
			want:   "target type must be contact or room",
		},
		{
			name:   "empty target name",
			mutate: func(task *Task) { task.Target.Name = "" },
			want:   "target name cannot be empty",
		},
		{
			name:   "empty cron time",
			mutate: func(task *Task) { task.CronTime = "" },
			want:   "cronTime cannot be empty",
		},
		{
			name:   "garbage cron time",
			mutate: func(task *Task) { task.CronTime = "whenever" },
			want:   "neither a cron expression nor an RFC3339 instant",
		},
		{
			name:   "bad timezone",
			mutate: func(task *Task) { task.TimeZone = "Mars/Olympus" },
			want:   "invalid timezone",
		},
		{
			name:   "empty text",
			mutate: func(task *Task) { task.Action.Input.Text = "" },
			want:   "text message cannot be empty",
		},
		{
			name:   "unknown template",
			mutate: func(task *Task) { task.Action.Template = "Fancy" },
			want:   "unknown action template",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := validTask("t")
			tc.mutate(&task)
			err := task.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestTaskValidateAggregatesAllErrors(t *testing.T) {
	task := Task{CronTime: "nope", Action: Action{Template: "Fancy"}}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{
		"name of the task cannot be empty",
		"target type must be contact or room",
		"target name cannot be empty",
		"neither a cron expression nor an RFC3339 instant",
		"unknown action template",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("aggregated error missing %q:\n%v", want, err)
		}
	}
}

func TestTaskCronFormats(t *testing.T) {
	for _, cronTime := range []string{
		"0 9 * * *",
		"30 0 9 * * *",
		"@hourly",
		"@every 5m",
		"2030-06-01T09:00:00Z",
		"2030-06-01T09:00:00-04:00",
	} {
		task := validTask("t")
		task.CronTime = cronTime
		if err := task.Validate(); err != nil {
			t.Fatalf("cronTime %q rejected: %v", cronTime, err)
		}
	}
}

func TestTaskFireAt(t *testing.T) {
	task := validTask("t")
	task.CronTime = "2030-06-01T09:00:00Z"
	at, ok := task.fireAt()
	if !ok {
		t.Fatal("RFC3339 instant not detected")
	}
	if at.Year() != 2030 {
		t.Fatalf("fireAt = %v", at)
	}

	task.CronTime = "0 9 * * *"
	if _, ok := task.fireAt(); ok {
		t.Fatal("cron expression misdetected as instant")
	}
}

func TestTaskIsEnabled(t *testing.T) {
	task := validTask("t")
	if !task.IsEnabled() {
		t.Fatal("task without enabled flag must default to enabled")
	}
	off := false
	task.Enabled = &off
	if task.IsEnabled() {
		t.Fatal("task with enabled: false reported enabled")
	}
}

func TestValidateTasksAggregatesAcrossTasks(t *testing.T) {
	bad := validTask("bad")
	bad.CronTime = "nope"
	dupA := validTask("twin")
	dupB := validTask("twin")

	err := ValidateTasks([]Task{bad, dupA, dupB})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{
		`task "bad" is invalid`,
		`task name "twin" is not unique`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("aggregated error missing %q:\n%v", want, err)
		}
	}
}

func TestLoadTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	body := `
- name: greet
  target:
    type: room
    name: family
  cronTime: "0 9 * * *"
  timeZone: America/Toronto
  action:
    template: CustomMessage
    input:
      type: text
      text: good morning
- name: headlines
  enabled: false
  target:
    type: contact
    name: alice
  cronTime: "@daily"
  action:
    template: News
    input:
      topic: technology
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write tasks file: %v", err)
	}

	tasks, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("LoadTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].Name != "greet" || !tasks[0].IsEnabled() {
		t.Fatalf("task[0] = %+v", tasks[0])
	}
	if tasks[1].IsEnabled() {
		t.Fatal("task[1] must be disabled")
	}
}

func TestLoadTasksRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	body := `
- name: greet
  frequency: often
  target:
    type: room
    name: family
  cronTime: "0 9 * * *"
  action:
    template: CustomMessage
    input:
      type: text
      text: hi
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write tasks file: %v", err)
	}
	if _, err := LoadTasks(path); err == nil {
		t.Fatal("unknown field accepted")
	}
}
