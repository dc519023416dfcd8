package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coauthor-labs/knowledge-engine/internal/adapters/driven/storage/memory"
	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	coresvc "github.com/coauthor-labs/knowledge-engine/internal/core/services"
)

// setupTestServices wires the commands against in-memory stores seeded
// with two overlapping contract documents in the default workspace. The
// returned cleanup resets the injected services and shared flags.
func setupTestServices() func() {
	entityStore := memory.NewEntityStore()
	catalog := memory.NewCatalog()
	index := memory.NewTextIndex()
	querylog := memory.NewQueryLogStore()

	harvester := coresvc.NewHarvestService(entityStore, catalog, index, 0)
	for _, id := range []string{"doc-1", "doc-2"} {
		doc := domain.Document{
			ID:          id,
			WorkspaceID: "default",
			Title:       "Services Agreement " + id,
			Type:        domain.DocumentTypeContract,
			Extraction: domain.Extraction{
				Type: domain.DocumentTypeContract,
				Contract: &domain.ContractExtraction{
					Parties:      []domain.ContractParty{{Name: "Acme Corp", Role: "vendor"}},
					GoverningLaw: "Delaware",
				},
			},
		}
		_, _ = harvester.Harvest(context.Background(), doc, nil)
	}

	SetServices(&Services{
		Harvester:  harvester,
		Related:    coresvc.NewRelatedService(entityStore, catalog, nil),
		Search:     coresvc.NewSearchService(index, entityStore, catalog, nil, querylog),
		IndexAdmin: coresvc.NewIndexService(catalog, entityStore, index),
		QueryLog:   querylog,
	})

	return func() {
		SetServices(nil)
		flagWorkspace = "default"
	}
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "knowledge", rootCmd.Use)
}

func TestRootCmd_HasWorkspaceFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("workspace")
	assert.NotNil(t, flag)
	assert.Equal(t, "w", flag.Shorthand)
	assert.Equal(t, "default", flag.DefValue)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	commands := rootCmd.Commands()
	commandNames := make([]string, 0, len(commands))
	for _, cmd := range commands {
		commandNames = append(commandNames, cmd.Name())
	}

	assert.Contains(t, commandNames, "harvest")
	assert.Contains(t, commandNames, "remove")
	assert.Contains(t, commandNames, "related")
	assert.Contains(t, commandNames, "ask")
	assert.Contains(t, commandNames, "index")
	assert.Contains(t, commandNames, "log")
	assert.Contains(t, commandNames, "version")
}

func TestVersionCmd_Output(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"version"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "dev")
}
