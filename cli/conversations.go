package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	conversations := &cobra.Command{
		Use:   "conversations",
		Short: "List your conversations",
		Run:   runListConversations,
	}
	RootCmd.AddCommand(conversations)

	show := &cobra.Command{
		Use:   "show [conversation-id]",
		Short: "Show a conversation's messages",
		Args:  cobra.ExactArgs(1),
		Run:   runShowConversation,
	}
	RootCmd.AddCommand(show)
}

func runListConversations(cmd *cobra.Command, args []string) {
	owner := requireOwner()
	e, cleanup := mustEngine()
	defer cleanup()

	convs, err := e.ListConversations(cmd.Context(), owner)
	if err != nil {
		exitErr("list conversations", err)
	}
	for _, c := range convs {
		fmt.Printf("%s  %s  %s\n", c.ID, c.UpdatedAt.Format("2006-01-02 15:04"), c.Title)
	}
}

func runShowConversation(cmd *cobra.Command, args []string) {
	owner := requireOwner()
	e, cleanup := mustEngine()
	defer cleanup()

	msgs, err := e.ConversationMessages(cmd.Context(), owner, args[0])
	if err != nil {
		exitErr("show conversation", err)
	}
	for _, m := range msgs {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
		if len(m.CitedChunkIDs) > 0 {
			fmt.Printf("  cites: %v\n", m.CitedChunkIDs)
		}
	}
}
