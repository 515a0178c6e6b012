package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mementohq/memento-go/core"
	"github.com/mementohq/memento-go/engine"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [text...]",
		Short: "Ingest normalized text into your memory",
		Long: "Ingest text into your personal memory. Reads from arguments, or from a file\n" +
			"with --file, or from stdin when neither is given. Content must already be\n" +
			"normalized text; run OCR or transcription before ingesting.",
		Run: runIngest,
	}

	cmd.Flags().StringP("type", "t", "text", "Content type: text, image, pdf or audio")
	cmd.Flags().StringP("file", "f", "", "Read content from a file")
	cmd.Flags().String("source-ref", "", "Opaque reference to the stored original")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	owner := requireOwner()
	contentType, _ := cmd.Flags().GetString("type")
	file, _ := cmd.Flags().GetString("file")
	sourceRef, _ := cmd.Flags().GetString("source-ref")

	var content string
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			exitErr("read file", err)
		}
		content = string(data)
	case len(args) > 0:
		content = strings.Join(args, " ")
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		content = string(data)
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

	m, err := e.Ingest(cmd.Context(), engine.IngestRequest{
		OwnerID:     owner,
		ContentType: core.ContentType(contentType),
		Content:     content,
		SourceRef:   sourceRef,
	})
	if err != nil {
		exitErr("ingest", err)
	}
	fmt.Printf("ingested memory %s\n", m.ID)
}
