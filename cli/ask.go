package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mementohq/memento-go/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a question against your memory",
		Long: "Ask a question and stream a source-cited answer drawn from your ingested\n" +
			"memories. Use --conversation to continue an earlier conversation.",
		Args: cobra.MinimumNArgs(1),
		Run:  runAsk,
	}

	cmd.Flags().String("conversation", "", "Conversation id to continue")
	cmd.Flags().IntP("limit", "k", 0, "Retrieval depth (default from config)")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	owner := requireOwner()
	conversationID, _ := cmd.Flags().GetString("conversation")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	e, cleanup, err := buildEngine(cfg)
	if err != nil {
		exitErr("build engine", err)
	}
	defer cleanup()

	stream, err := e.AskStream(cmd.Context(), engine.AskRequest{
		OwnerID:        owner,
		Question:       strings.Join(args, " "),
		ConversationID: conversationID,
		K:              limit,
	})
	if err != nil {
		exitErr("ask", err)
	}

	for fragment := range stream.Fragments() {
		fmt.Print(fragment)
	}
	res := <-stream.Done()
	fmt.Println()
	if res.Err != nil {
		exitErr("ask", res.Err)
	}

	if len(res.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, s := range res.Sources {
			fmt.Printf("  [%d] %s (%s, similarity %.2f)\n", i+1, s.MemoryID, s.ContentType, s.Similarity)
		}
	}
	fmt.Printf("\nConversation: %s\n", res.ConversationID)
}
