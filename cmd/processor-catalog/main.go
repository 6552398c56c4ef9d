// Command processor-catalog prints the Document AI processor types available in a
// location and the processors configured in the project.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/Lllllllleong/documentocrflow/internal/config"
	"github.com/Lllllllleong/documentocrflow/internal/docai"
	"github.com/Lllllllleong/documentocrflow/internal/gcp"
	"github.com/joho/godotenv"
)

func main() {
	showTypes := flag.Bool("types", true, "print available processor types")
	showProcessors := flag.Bool("processors", true, "print configured processors")
	selectName := flag.String("select", "", "exit non-zero unless a processor with this display name exists")
	flag.Parse()
	os.Exit(run(*showTypes, *showProcessors, *selectName))
}

func run(showTypes, showProcessors bool, selectName string) int {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 2
	}

	ctx := context.Background()
	client, err := gcp.NewDocumentAIClient(ctx, cfg.DocumentAILocation)
	if err != nil {
		slog.Error("Failed to create Document AI client", "error", err)
		return 1
	}
	defer client.Close()

	svc := docai.NewService(client, gcp.LocationParent(cfg.ProjectID, cfg.DocumentAILocation))
	types, processors, err := svc.Catalog(ctx)
	if err != nil {
		slog.Error("Failed to fetch processor catalog", "error", err, "parent", svc.Parent())
		return 1
	}

	if showTypes {
		docai.PrintProcessorTypes(os.Stdout, types)
	}
	if showProcessors {
		docai.PrintProcessors(os.Stdout, processors)
	}
	if selectName != "" {
		p, err := docai.GetProcessor(processors, selectName)
		if err != nil {
			slog.Error("Processor selection failed", "error", err)
			return 1
		}
		slog.Info("Processor selected.", "displayName", p.GetDisplayName(), "name", p.GetName())
	}
	return 0
}
