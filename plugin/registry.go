package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/linj121/convo/im"
)

const pluginManagerHelp = `Plugin Manager
• Usage: /plugin [OPTION]
• Option:
-l | --list     list all plugins
-e | --enable  [N] enable plugin number N
-d | --disable [N] disable plugin number N
-h | --help     display help message
• Example:
/plugin --list
/plugin --disable 2
/plugin -e 1
/plugin -h`

var pluginManagerTrigger = regexp.MustCompile(`(?i)^ */plugin`)

type registryEntry struct {
	plugin  Plugin
	enabled bool
}

// RegistryOptions configures a Registry. One registry serves the whole
// process; construct it once and hand it to every caller.
type RegistryOptions struct {
	// Session supplies the logged-in identity for admin authorization.
	Session im.Session
	// GroupChatWhiteList and ContactWhiteList gate message admission
	// by exact, case-sensitive name match.
	GroupChatWhiteList []string
	ContactWhiteList   []string
	Logger             *slog.Logger
}

// Registry gates, routes, and administers plugins. Plugins are tried in
// registration order and the first matching validator wins.
type Registry struct {
	session            im.Session
	groupChatWhiteList map[string]bool
	contactWhiteList   map[string]bool
	logger             *slog.Logger

	mu       sync.Mutex
	entries  []*registryEntry
	mappings map[im.MessageType][]*registryEntry
}

func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		session:            opts.Session,
		groupChatWhiteList: make(map[string]bool),
		contactWhiteList:   make(map[string]bool),
		logger:             logger,
		mappings:           make(map[im.MessageType][]*registryEntry),
	}
	for _, name := range opts.GroupChatWhiteList {
		r.groupChatWhiteList[name] = true
	}
	for _, name := range opts.ContactWhiteList {
		r.contactWhiteList[name] = true
	}
	return r, nil
}

// Register adds a plugin with default metadata (enabled) and indexes it
// under every message type it validates. Registering the same plugin
// instance twice is rejected.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.plugin == p {
			return fmt.Errorf("plugin %q is already registered", p.Name())
		}
	}
	entry := &registryEntry{plugin: p, enabled: true}
	r.entries = append(r.entries, entry)
	for msgType := range p.Validators() {
		r.mappings[msgType] = append(r.mappings[msgType], entry)
	}
	return nil
}

func (r *Registry) entryFor(p Plugin) (*registryEntry, error) {
	for _, entry := range r.entries {
		if entry.plugin == p {
			return entry, nil
		}
	}
	return nil, fmt.Errorf("plugin %q is not registered", p.Name())
}

// EnablePlugin marks a registered plugin enabled. No-op when already
// enabled.
func (r *Registry) EnablePlugin(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, err := r.entryFor(p)
	if err != nil {
		return err
	}
	entry.enabled = true
	return nil
}

// DisablePlugin marks a registered plugin disabled. No-op when already
// disabled.
func (r *Registry) DisablePlugin(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, err := r.entryFor(p)
	if err != nil {
		return err
	}
	entry.enabled = false
	return nil
}

// ListAllPlugins returns plugins in registration order, optionally only
// the enabled ones.
func (r *Registry) ListAllPlugins(enabledOnly bool) []Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Plugin
	for _, entry := range r.entries {
		if enabledOnly && !entry.enabled {
			continue
		}
		out = append(out, entry.plugin)
	}
	return out
}

// IsEnabled reports the enabled flag of a registered plugin.
func (r *Registry) IsEnabled(p Plugin) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, err := r.entryFor(p)
	if err != nil {
		return false, err
	}
	return entry.enabled, nil
}

// Dispatch routes one inbound message: admission control first, then
// the in-band plugin manager command, then ordered first-match plugin
// dispatch. At most one plugin handles any given message.
func (r *Registry) Dispatch(ctx context.Context, msg im.Message) error {
	ok, err := r.checkMessageSource(msg)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if msg.Type() == im.MessageTypeText && pluginManagerTrigger.MatchString(msg.Text()) {
		r.runPluginManager(ctx, msg)
		return nil
	}

	r.mu.Lock()
	entries := append([]*registryEntry(nil), r.mappings[msg.Type()]...)
	r.mu.Unlock()
	if len(entries) == 0 {
		return nil
	}

	for _, entry := range entries {
		r.mu.Lock()
		enabled := entry.enabled
		r.mu.Unlock()
		if !enabled {
			continue
		}

		validator := entry.plugin.Validators()[msg.Type()]
		if validator == nil {
			return fmt.Errorf("plugin %q has no validator for message type %s", entry.plugin.Name(), msg.Type())
		}
		match, err := validator(ctx, msg)
		if err != nil {
			return fmt.Errorf("validator of plugin %q: %w", entry.plugin.Name(), err)
		}
		if !match {
			continue
		}

		r.logger.Debug("dispatching plugin", "plugin", entry.plugin.Name())
		if err := entry.plugin.Handle(ctx, msg); err != nil {
			r.logger.Error("plugin handler failed", "plugin", entry.plugin.Name(), "error", err)
			notice := fmt.Sprintf("Something went wrong with the plugin: %s, please try again later", entry.plugin.Name())
			if respondErr := im.Respond(ctx, msg, im.Text(notice)); respondErr != nil {
				r.logger.Error("failed to send failure notice", "plugin", entry.plugin.Name(), "error", respondErr)
			}
		}
		// First match wins, success or not.
		return nil
	}
	return nil
}

// checkMessageSource applies the admission whitelists: group messages
// by room topic, direct messages by the effective conversation
// partner's name.
func (r *Registry) checkMessageSource(msg im.Message) (bool, error) {
	if im.IsFromGroupChat(msg) {
		return r.groupChatWhiteList[msg.Room().Topic()], nil
	}
	name, err := im.TargetContactName(msg)
	if err != nil {
		return false, err
	}
	return r.contactWhiteList[name], nil
}

// runPluginManager executes the in-band /plugin command and contains
// its outcomes: expected control-flow errors are logged at info level,
// anything else gets an error log and a generic in-conversation notice.
func (r *Registry) runPluginManager(ctx context.Context, msg im.Message) {
	err := r.pluginManager(ctx, msg)
	if err == nil {
		return
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrInvalidArgument) {
		r.logger.Info("plugin manager rejected command", "reason", err)
		return
	}
	r.logger.Error("plugin manager failed", "error", err)
	notice := "Something went wrong with the plugin manager. Please try again later."
	if respondErr := im.Respond(ctx, msg, im.Text(notice)); respondErr != nil {
		r.logger.Error("failed to send failure notice", "error", respondErr)
	}
}

func (r *Registry) pluginManager(ctx context.Context, msg im.Message) error {
	argv := parseCommandLine(msg.Text())
	if len(argv) == 0 || !pluginManagerTrigger.MatchString(argv[0].Value) {
		return fmt.Errorf("parse command %q", msg.Text())
	}
	if len(argv) > 2 {
		errMsg := fmt.Sprintf("[ERROR] Too many argument pairs. Expecting 1, got %d", len(argv)-1)
		if err := im.Respond(ctx, msg, im.Text(errMsg+"\nEnter /plugin -h for help")); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrInvalidArgument, errMsg)
	}
	if len(argv) < 2 || argv[1].Flag == "" {
		errMsg := "[ERROR] A flag must be provided!"
		if err := im.Respond(ctx, msg, im.Text(errMsg+"\nEnter /plugin -h for help")); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrInvalidArgument, errMsg)
	}

	flag, value := argv[1].Flag, argv[1].Value
	switch flag {
	case "help", "h":
		return im.Respond(ctx, msg, im.Text(pluginManagerHelp))
	case "list", "l":
		return im.Respond(ctx, msg, im.Text(r.pluginListText()))
	case "enable", "e", "disable", "d":
		return r.setPluginEnabled(ctx, msg, flag, value)
	default:
		errMsg := fmt.Sprintf("Invalid flag: %s", flag)
		if err := im.Respond(ctx, msg, im.Text(errMsg+"\nEnter /plugin -h for help")); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrInvalidArgument, errMsg)
	}
}

// authorize permits plugin state changes only to the logged-in account
// itself.
func (r *Registry) authorize(ctx context.Context, msg im.Message) error {
	if msg.Talker().Name() != r.session.CurrentUser().Name() {
		if err := im.Respond(ctx, msg, im.Text("Permission denied. You are not an admin!")); err != nil {
			return err
		}
		return fmt.Errorf("%w: plugin manager requires the logged-in account", ErrUnauthorized)
	}
	return nil
}

func (r *Registry) setPluginEnabled(ctx context.Context, msg im.Message, flag, value string) error {
	if err := r.authorize(ctx, msg); err != nil {
		return err
	}

	respondInvalid := func(errMsg string) error {
		if err := im.Respond(ctx, msg, im.Text(errMsg)); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrInvalidArgument, errMsg)
	}

	if value == "" {
		return respondInvalid("[ERROR] Got empty argument. A number is required for this flag.")
	}
	pluginNum, err := strconv.Atoi(value)
	if err != nil {
		return respondInvalid(fmt.Sprintf("[ERROR] Expecting a number for flag %s, got %s", flag, value))
	}

	r.mu.Lock()
	total := len(r.entries)
	r.mu.Unlock()
	if pluginNum < 1 || pluginNum > total {
		return respondInvalid(fmt.Sprintf("[ERROR] Expecting a plugin number from 1 to %d, got %d", total, pluginNum))
	}

	r.mu.Lock()
	entry := r.entries[pluginNum-1]
	name := entry.plugin.Name()
	enable := flag == "enable" || flag == "e"
	already := entry.enabled == enable
	if !already {
		entry.enabled = enable
	}
	r.mu.Unlock()

	verb := "enabled"
	if !enable {
		verb = "disabled"
	}
	if already {
		return im.Respond(ctx, msg, im.Text(fmt.Sprintf("Plugin #%d (%s) is already %s", pluginNum, name, verb)))
	}
	return im.Respond(ctx, msg, im.Text(fmt.Sprintf("[SUCCESS] Plugin #%d (%s) has been %s", pluginNum, name, verb)))
}

func (r *Registry) pluginListText() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString("Plugin List 👇\n\n")
	for i, entry := range r.entries {
		state := "[Enabled] ✅"
		if !entry.enabled {
			state = "[Disabled] ❌"
		}
		fmt.Fprintf(&b, "%d. %s\n• Name: %s\n• Version: %s\n• Description: %s\n",
			i+1, state, entry.plugin.Name(), entry.plugin.Version(), entry.plugin.Description())
		if i != len(r.entries)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
