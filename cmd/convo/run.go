package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/linj121/convo/bot"
	"github.com/linj121/convo/im"
	"github.com/linj121/convo/im/console"
	"github.com/linj121/convo/internal/llmstore"
	"github.com/linj121/convo/internal/logutil"
	"github.com/linj121/convo/llm"
	"github.com/linj121/convo/plugin"
	"github.com/linj121/convo/providers/openai"
	"github.com/linj121/convo/scheduler"
)

const stopTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the gateway: session, plugins, and scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runGateway(ctx)
		},
	}
	cmd.Flags().String("tasks", "", "Scheduled tasks file (yaml).")
	_ = viper.BindPFlag("tasks.file", cmd.Flags().Lookup("tasks"))
	return cmd
}

func runGateway(ctx context.Context) error {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	store, err := llmstore.Open(viper.GetString("store.path"))
	if err != nil {
		return err
	}
	defer store.Close()

	apiKey := strings.TrimSpace(viper.GetString("llm.api_key"))
	if apiKey == "" {
		return fmt.Errorf("missing llm.api_key (set via config or %s_LLM_API_KEY)", envPrefix)
	}
	model := viper.GetString("llm.model")

	defaultClient, err := openai.New(ctx, openai.Options{
		APIKey:       apiKey,
		Model:        model,
		Assistant:    llm.AssistantDefault,
		Instructions: viper.GetString("llm.assistant.default.instructions"),
		Store:        store,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	session, err := console.New(console.Options{
		SelfName: viper.GetString("console.self_name"),
		PeerName: viper.GetString("console.peer_name"),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	registry, err := registryFromViper(session, logger)
	if err != nil {
		return err
	}
	if err := registerPlugins(ctx, registry, defaultClient, store, apiKey, model, logger); err != nil {
		return err
	}

	sched, err := schedulerFromViper(session, logger)
	if err != nil {
		return err
	}

	service, err := bot.New(bot.Options{
		Session:   session,
		Registry:  registry,
		Scheduler: sched,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := service.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return service.Stop(stopCtx)
}

func registryFromViper(session im.Session, logger *slog.Logger) (*plugin.Registry, error) {
	return plugin.NewRegistry(plugin.RegistryOptions{
		Session:            session,
		GroupChatWhiteList: viper.GetStringSlice("whitelist.rooms"),
		ContactWhiteList:   viper.GetStringSlice("whitelist.contacts"),
		Logger:             logger,
	})
}

// registerPlugins wires every configured plugin in a fixed order; the
// order is visible to users through /plugin --list numbering.
func registerPlugins(ctx context.Context, registry *plugin.Registry, defaultClient llm.Client, store *llmstore.Store, apiKey, model string, logger *slog.Logger) error {
	chatBot, err := plugin.NewChatBot(plugin.ChatBotOptions{
		TriggerNames:  viper.GetStringSlice("bot.names"),
		LLM:           defaultClient,
		AudioResponse: viper.GetBool("bot.audio_response"),
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	if err := registry.Register(chatBot); err != nil {
		return err
	}

	if viper.GetBool("plugins.habit_tracker.enabled") {
		habitClient, err := openai.New(ctx, openai.Options{
			APIKey:       apiKey,
			Model:        model,
			Assistant:    llm.AssistantHabitTracker,
			Instructions: viper.GetString("llm.assistant.habit_tracker.instructions"),
			Store:        store,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		habitTracker, err := plugin.NewHabitTracker(plugin.HabitTrackerOptions{
			LLM:    habitClient,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		if err := registry.Register(habitTracker); err != nil {
			return err
		}
	}

	if viper.GetBool("plugins.holiday.enabled") {
		holidayBot, err := plugin.NewHolidayBot(plugin.HolidayBotOptions{
			AssetsDir: viper.GetString("assets.dir"),
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		if err := registry.Register(holidayBot); err != nil {
			return err
		}
	}

	if viper.GetBool("plugins.test.enabled") {
		if err := registry.Register(plugin.NewTestPlugin(plugin.TestPluginOptions{Logger: logger})); err != nil {
			return err
		}
	}
	return nil
}

func schedulerFromViper(session im.Session, logger *slog.Logger) (*scheduler.Scheduler, error) {
	var tasks []scheduler.Task
	if file := strings.TrimSpace(viper.GetString("tasks.file")); file != "" {
		loaded, err := scheduler.LoadTasks(file)
		if err != nil {
			return nil, err
		}
		tasks = loaded
	}
	return scheduler.New(scheduler.Options{
		Session:         session,
		Tasks:           tasks,
		DefaultTimeZone: viper.GetString("scheduler.timezone"),
		Logger:          logger,
	})
}
