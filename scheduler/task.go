// Package scheduler runs declarative, timezone-aware cron jobs that
// resolve a conversation target and send a templated payload.
package scheduler

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// cronParser accepts both 5-field and 6-field (leading seconds)
// expressions plus @descriptors, matching the original task format.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type TargetType string

const (
	TargetContact TargetType = "contact"
	TargetRoom    TargetType = "room"
)

// Target is the abstract addressing spec resolved to a live handle at
// fire-time.
type Target struct {
	Type TargetType `yaml:"type"`
	Name string     `yaml:"name"`
}

type TemplateTag string

const (
	TemplateCustomMessage TemplateTag = "CustomMessage"
	TemplateWeather       TemplateTag = "Weather"
	TemplateNews          TemplateTag = "News"
)

type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
	ContentAudio ContentKind = "audio"
	ContentVideo ContentKind = "video"
)

// ActionInput carries the template-specific payload. Which fields are
// meaningful depends on the action's template tag; Validate enforces
// the per-template schema.
type ActionInput struct {
	// CustomMessage
	Type     ContentKind `yaml:"type,omitempty"`
	Text     string      `yaml:"text,omitempty"`
	Location string      `yaml:"location,omitempty"`
	Filename string      `yaml:"filename,omitempty"`
	// Weather
	Cities []string `yaml:"cities,omitempty"`
	// News
	Topic string `yaml:"topic,omitempty"`
}

// Action pairs a template tag with its schema-validated input.
type Action struct {
	Template TemplateTag `yaml:"template"`
	Input    ActionInput `yaml:"input"`
}

// Task is one declarative scheduled send. CronTime is either a cron
// expression (optionally with a leading seconds field) or an RFC3339
// instant for a one-shot job.
type Task struct {
	Name     string `yaml:"name"`
	Target   Target `yaml:"target"`
	CronTime string `yaml:"cronTime"`
	TimeZone string `yaml:"timeZone,omitempty"`
	Action   Action `yaml:"action"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled applies the enabled-by-default rule.
func (t Task) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// fireAt returns the one-shot instant when CronTime is an RFC3339
// timestamp rather than a cron expression.
func (t Task) fireAt() (time.Time, bool) {
	at, err := time.Parse(time.RFC3339, strings.TrimSpace(t.CronTime))
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

func (t Task) Validate() error {
	var errs []error

	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, fmt.Errorf("name of the task cannot be empty"))
	}
	switch t.Target.Type {
	case TargetContact, TargetRoom:
	default:
		errs = append(errs, fmt.Errorf("target type must be contact or room, got %q", t.Target.Type))
	}
	if strings.TrimSpace(t.Target.Name) == "" {
		errs = append(errs, fmt.Errorf("target name cannot be empty, specify a contact or room"))
	}

	if strings.TrimSpace(t.CronTime) == "" {
		errs = append(errs, fmt.Errorf("cronTime cannot be empty"))
	} else if _, ok := t.fireAt(); !ok {
		if _, err := cronParser.Parse(t.CronTime); err != nil {
			errs = append(errs, fmt.Errorf("cronTime %q is neither a cron expression nor an RFC3339 instant: %w", t.CronTime, err))
		}
	}

	if t.TimeZone != "" {
		if _, err := time.LoadLocation(t.TimeZone); err != nil {
			errs = append(errs, fmt.Errorf("invalid timezone %q, use a tz database name", t.TimeZone))
		}
	}

	if err := t.Action.validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (a Action) validate() error {
	switch a.Template {
	case TemplateCustomMessage:
		return a.Input.validateCustomMessage()
	case TemplateWeather:
		if len(a.Input.Cities) == 0 {
			return fmt.Errorf("cities array cannot be empty")
		}
		for _, city := range a.Input.Cities {
			if strings.TrimSpace(city) == "" {
				return fmt.Errorf("city name cannot be empty")
			}
		}
		return nil
	case TemplateNews:
		return nil
	default:
		return fmt.Errorf("unknown action template %q", a.Template)
	}
}

func (in ActionInput) validateCustomMessage() error {
	switch in.Type {
	case ContentText:
		if strings.TrimSpace(in.Text) == "" {
			return fmt.Errorf("text message cannot be empty")
		}
		return nil
	case ContentImage, ContentAudio, ContentVideo:
		if !isHTTPURL(in.Location) {
			if _, err := os.Stat(in.Location); err != nil {
				return fmt.Errorf("location %q must be a valid URL or an accessible file path", in.Location)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown custom message content type %q", in.Type)
	}
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

// ValidateTasks validates every task and aggregates all failures into
// one error so a broken definition list reports completely on startup.
// Task names must be unique.
func ValidateTasks(tasks []Task) error {
	var errs []error
	seen := make(map[string]bool)
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("task %q is invalid: %w", task.Name, err))
			continue
		}
		if seen[task.Name] {
			errs = append(errs, fmt.Errorf("task name %q is not unique", task.Name))
			continue
		}
		seen[task.Name] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("the following task definition(s) are invalid: %w", errors.Join(errs...))
	}
	return nil
}

// LoadTasks reads and validates task definitions from a yaml file.
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}
	var tasks []Task
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&tasks); err != nil {
		return nil, fmt.Errorf("parse tasks file %s: %w", path, err)
	}
	if err := ValidateTasks(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
