package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	list := &cobra.Command{
		Use:   "list",
		Short: "List your memories, newest first",
		Run:   runListMemories,
	}
	list.Flags().IntP("limit", "l", 50, "Max memories")
	RootCmd.AddCommand(list)

	rm := &cobra.Command{
		Use:   "rm [memory-id]",
		Short: "Delete a memory and its index entries",
		Args:  cobra.ExactArgs(1),
		Run:   runDeleteMemory,
	}
	RootCmd.AddCommand(rm)
}

func runListMemories(cmd *cobra.Command, args []string) {
	owner := requireOwner()
	limit, _ := cmd.Flags().GetInt("limit")

	e, cleanup := mustEngine()
	defer cleanup()

	memories, err := e.ListMemories(cmd.Context(), owner, limit)
	if err != nil {
		exitErr("list memories", err)
	}
	for _, m := range memories {
		preview := m.Content
		if len(preview) > 60 {
			preview = preview[:60] + "..."
		}
		fmt.Printf("%s  %-6s %-7s %s\n", m.ID, m.ContentType, m.Status, preview)
	}
}

func runDeleteMemory(cmd *cobra.Command, args []string) {
	owner := requireOwner()

	e, cleanup := mustEngine()
	defer cleanup()

	if err := e.DeleteMemory(cmd.Context(), owner, args[0]); err != nil {
		exitErr("delete memory", err)
	}
	fmt.Printf("deleted %s\n", args[0])
}
