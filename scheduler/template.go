package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/linj121/convo/im"
)

// Producer turns a validated action into a sendable payload. Producers
// are pure: all state comes in through the action.
type Producer func(ctx context.Context, action Action) (im.Sayable, error)

// TemplateSetOptions configures the template set.
type TemplateSetOptions struct {
	// HTTPClient fetches URL-sourced media. Defaults to a client with
	// a 30-second timeout.
	HTTPClient *http.Client
}

// TemplateSet maps template tags to their message producers.
type TemplateSet struct {
	httpClient *http.Client
}

func NewTemplateSet(opts TemplateSetOptions) *TemplateSet {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TemplateSet{httpClient: client}
}

// Producer returns the message producer bound to a template tag.
func (s *TemplateSet) Producer(tag TemplateTag) (Producer, error) {
	switch tag {
	case TemplateCustomMessage:
		return s.customMessage, nil
	case TemplateWeather:
		return weatherMessage, nil
	case TemplateNews:
		return newsMessage, nil
	default:
		return nil, fmt.Errorf("unknown action template %q", tag)
	}
}

func (s *TemplateSet) customMessage(ctx context.Context, action Action) (im.Sayable, error) {
	if action.Template != TemplateCustomMessage {
		return nil, fmt.Errorf("expected template CustomMessage, got %s", action.Template)
	}
	input := action.Input

	switch input.Type {
	case ContentText:
		return im.Text(input.Text), nil
	case ContentImage, ContentAudio, ContentVideo:
		data, err := s.fetchResource(ctx, input.Location)
		if err != nil {
			return nil, err
		}
		filename := input.Filename
		if filename == "" {
			filename = filenameFromLocation(input.Location)
		}
		return im.FileBoxFromBytes(filename, data), nil
	default:
		return nil, fmt.Errorf("invalid input type %q", input.Type)
	}
}

// fetchResource loads media content from an http(s) URL or a local
// file path.
func (s *TemplateSet) fetchResource(ctx context.Context, location string) ([]byte, error) {
	if !isHTTPURL(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("failed to read file at %s: %w", location, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", location, err)
	}
	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", location, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: %s", location, res.Status)
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", location, err)
	}
	return data, nil
}

func filenameFromLocation(location string) string {
	if parsed, err := url.Parse(location); err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		return path.Base(parsed.Path)
	}
	return filepath.Base(location)
}

// weatherMessage is a placeholder until a real weather API is wired
// in: it answers with a search-engine query for the requested cities.
func weatherMessage(_ context.Context, action Action) (im.Sayable, error) {
	if action.Template != TemplateWeather {
		return nil, fmt.Errorf("expected template Weather, got %s", action.Template)
	}
	cities := action.Input.Cities
	display := strings.Join(cities, ",")
	query := strings.Join(strings.Fields(strings.ReplaceAll(display, ",", " ")), "+")

	wording := "are the weathers"
	if len(cities) == 1 {
		wording = "is the weather"
	}
	return im.Text(fmt.Sprintf("Here %s for %s: https://www.google.com/search?q=weather+for+%s", wording, display, query)), nil
}

// newsMessage is a placeholder until a real news API is wired in: it
// answers with a search-engine query for the requested topic.
func newsMessage(_ context.Context, action Action) (im.Sayable, error) {
	if action.Template != TemplateNews {
		return nil, fmt.Errorf("expected template News, got %s", action.Template)
	}
	topic := action.Input.Topic
	if strings.TrimSpace(topic) == "" {
		topic = "default"
	}
	query := strings.Join(strings.Fields(topic), "+")
	return im.Text(fmt.Sprintf("Here are some news for %q: https://www.google.com/search?q=%s", topic, query)), nil
}
