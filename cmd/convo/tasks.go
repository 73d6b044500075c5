package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/linj121/convo/scheduler"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect scheduled task definitions",
	}
	cmd.AddCommand(newTasksValidateCmd())
	return cmd
}

func newTasksValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a tasks file and report every problem at once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := strings.TrimSpace(viper.GetString("tasks.file"))
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				file = args[0]
			}
			if file == "" {
				return fmt.Errorf("no tasks file given (pass a path or set tasks.file)")
			}
			tasks, err := scheduler.LoadTasks(file)
			if err != nil {
				return err
			}
			enabled := 0
			for _, task := range tasks {
				if task.IsEnabled() {
					enabled++
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d task(s), %d enabled\n", file, len(tasks), enabled)
			return nil
		},
	}
}
