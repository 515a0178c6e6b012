package cli

import (
	"github.com/spf13/cobra"

	"github.com/mementohq/memento-go/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  "Serve the REST API plus streaming ask over server-sent events and websocket.",
		Run:   runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	e, cleanup, err := buildEngine(cfg)
	if err != nil {
		exitErr("build engine", err)
	}
	defer cleanup()

	if err := server.New(e).ListenAndServe(cfg.Server.Addr); err != nil {
		exitErr("serve", err)
	}
}
