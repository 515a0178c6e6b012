package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mementohq/memento-go/core"
	"github.com/mementohq/memento-go/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search your memory",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("limit", "k", 0, "Max results (default from config)")
	cmd.Flags().StringP("type", "t", "", "Filter by content type")

	RootCmd.AddCommand(cmd)

	popular := &cobra.Command{
		Use:   "popular",
		Short: "Show your most repeated search queries",
		Run:   runPopular,
	}
	popular.Flags().IntP("limit", "l", 10, "Max rows")
	RootCmd.AddCommand(popular)
}

func runSearch(cmd *cobra.Command, args []string) {
	owner := requireOwner()
	limit, _ := cmd.Flags().GetInt("limit")
	typeFlag, _ := cmd.Flags().GetString("type")

	req := engine.SearchRequest{
		OwnerID: owner,
		Query:   strings.Join(args, " "),
		K:       limit,
	}
	if typeFlag != "" {
		ct := core.ContentType(typeFlag)
		req.ContentType = &ct
	}

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	e, cleanup, err := buildEngine(cfg)
	if err != nil {
		exitErr("build engine", err)
	}
	defer cleanup()

	results, err := e.Search(cmd.Context(), req)
	if err != nil {
		exitErr("search", err)
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}

func runPopular(cmd *cobra.Command, args []string) {
	owner := requireOwner()
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

	popular, err := e.PopularSearches(cmd.Context(), owner, limit)
	if err != nil {
		exitErr("popular searches", err)
	}
	for _, qc := range popular {
		fmt.Printf("%5d  %s\n", qc.Count, qc.Query)
	}
}
