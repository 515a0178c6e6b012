package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mementohq/memento-go/engine"
)

func init() {
	prefs := &cobra.Command{
		Use:   "prefs",
		Short: "Manage boost and suppress topics",
		Long: "Boosted topics rank matching memories higher in search and ask; suppressed\n" +
			"topics rank them lower without hiding them. A topic can only be on one side.",
		Run: runShowPrefs,
	}

	prefs.AddCommand(prefMutation("boost [topic]", "Boost a topic", (*engine.Engine).AddBoost))
	prefs.AddCommand(prefMutation("unboost [topic]", "Stop boosting a topic", (*engine.Engine).RemoveBoost))
	prefs.AddCommand(prefMutation("suppress [topic]", "Suppress a topic", (*engine.Engine).AddSuppress))
	prefs.AddCommand(prefMutation("unsuppress [topic]", "Stop suppressing a topic", (*engine.Engine).RemoveSuppress))

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Clear all boost and suppress topics",
		Run: func(cmd *cobra.Command, args []string) {
			owner := requireOwner()
			e, cleanup := mustEngine()
			defer cleanup()
			if err := e.ResetPreferences(cmd.Context(), owner); err != nil {
				exitErr("reset preferences", err)
			}
			fmt.Println("preferences cleared")
		},
	}
	prefs.AddCommand(reset)

	RootCmd.AddCommand(prefs)
}

func prefMutation(use, short string, mutate func(*engine.Engine, context.Context, string, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			owner := requireOwner()
			topic := strings.Join(args, " ")
			e, cleanup := mustEngine()
			defer cleanup()
			if err := mutate(e, cmd.Context(), owner, topic); err != nil {
				exitErr("update preferences", err)
			}
			fmt.Println("ok")
		},
	}
}

func runShowPrefs(cmd *cobra.Command, args []string) {
	owner := requireOwner()
	e, cleanup := mustEngine()
	defer cleanup()

	prefs, err := e.Preferences(cmd.Context(), owner)
	if err != nil {
		exitErr("get preferences", err)
	}
	fmt.Printf("boost:    %s\n", strings.Join(prefs.BoostTopics, ", "))
	fmt.Printf("suppress: %s\n", strings.Join(prefs.SuppressTopics, ", "))
}

// mustEngine builds the engine from config or exits.
func mustEngine() (*engine.Engine, func()) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	e, cleanup, err := buildEngine(cfg)
	if err != nil {
		exitErr("build engine", err)
	}
	return e, cleanup
}
