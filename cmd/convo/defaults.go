package main

import (
	"github.com/spf13/viper"
)

func initViperDefaults() {
	// LLM provider
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.assistant.default.instructions",
		"You are a helpful and humorous friend in a group chat. Keep replies short and conversational.")
	viper.SetDefault("llm.assistant.habit_tracker.instructions",
		"You receive a JSON habit check-in with time, name, event, and note. "+
			"Reply with a short encouraging summary addressed to the person.")

	// Identifier store
	viper.SetDefault("store.path", "convo.db")

	// Admission whitelists (exact name match)
	viper.SetDefault("whitelist.rooms", []string{})
	viper.SetDefault("whitelist.contacts", []string{})

	// Chat bot plugin
	viper.SetDefault("bot.names", []string{"convo"})
	viper.SetDefault("bot.audio_response", false)

	// Optional plugins
	viper.SetDefault("plugins.habit_tracker.enabled", true)
	viper.SetDefault("plugins.holiday.enabled", false)
	viper.SetDefault("plugins.test.enabled", false)
	viper.SetDefault("assets.dir", "assets")

	// Scheduled tasks
	viper.SetDefault("tasks.file", "")
	viper.SetDefault("scheduler.timezone", "")

	// Console transport
	viper.SetDefault("console.self_name", "convo")
	viper.SetDefault("console.peer_name", "you")
}
