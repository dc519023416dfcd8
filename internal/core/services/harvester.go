package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coauthor-labs/knowledge-engine/internal/core/domain"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driven"
	"github.com/coauthor-labs/knowledge-engine/internal/core/ports/driving"
	"github.com/coauthor-labs/knowledge-engine/internal/logger"
)

// Ensure HarvestService implements the interface.
var _ driving.Harvester = (*HarvestService)(nil)

// DefaultMaxEntitiesPerWorkspace is the canonical entity ceiling applied
// when no limit is configured.
const DefaultMaxEntitiesPerWorkspace = 10000

// rawEntity is one candidate entity produced by a document-type mapper,
// before canonicalisation and dedup.
type rawEntity struct {
	entityType domain.EntityType
	name       string
	fieldPath  string
	context    string
}

// harvestMapper maps one extraction variant to its raw entities.
type harvestMapper func(domain.Extraction) []rawEntity

// harvestMappers is the dispatch table: each document type owns a fixed,
// explicit field-to-entity-type mapping. Adding a document type means
// adding a variant to the extraction union and a mapper here.
var harvestMappers = map[domain.DocumentType]harvestMapper{
	domain.DocumentTypeContract: mapContract,
	domain.DocumentTypeInvoice:  mapInvoice,
	domain.DocumentTypeMeeting:  mapMeeting,
	domain.DocumentTypeReport:   mapReport,
}

// HarvestService deterministically maps extraction payloads into canonical
// entities and mentions, and keeps the text index in step.
type HarvestService struct {
	entities    driven.EntityStore
	catalog     driven.DocumentCatalog
	index       driven.TextIndex
	maxEntities int
}

// NewHarvestService creates a new harvest service. maxEntities bounds the
// number of canonical entities per workspace; zero applies the default.
func NewHarvestService(
	entities driven.EntityStore,
	catalog driven.DocumentCatalog,
	index driven.TextIndex,
	maxEntities int,
) *HarvestService {
	if maxEntities <= 0 {
		maxEntities = DefaultMaxEntitiesPerWorkspace
	}
	return &HarvestService{
		entities:    entities,
		catalog:     catalog,
		index:       index,
		maxEntities: maxEntities,
	}
}

// Harvest maps one document's extraction payload into canonical entities
// and mentions. Per-entity failures are aggregated into the result's error
// list and never abort the batch; hitting the workspace entity ceiling
// skips only new-entity creation for the remainder of the batch.
func (s *HarvestService) Harvest(
	ctx context.Context, doc domain.Document, confidence map[string]float64,
) (*domain.HarvestResult, error) {
	logger.Section("Harvest")
	logger.Debug("Document: %s (%s)", doc.ID, doc.Extraction.Type)

	if doc.ID == "" || doc.WorkspaceID == "" {
		return nil, domain.ErrInvalidInput
	}
	mapper, ok := harvestMappers[doc.Extraction.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDocumentType, doc.Extraction.Type)
	}

	result := &domain.HarvestResult{
		DocumentID: doc.ID,
		ByType:     make(map[domain.EntityType]int),
	}

	// Snapshot the document and refresh its index record first, so the
	// index reflects the latest extraction even if entity processing
	// degrades below.
	if err := s.catalog.SaveDocument(ctx, doc); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("catalog save: %v", err))
	}
	if err := s.index.SyncDocument(ctx, driven.IndexDocument{
		DocumentID:  doc.ID,
		WorkspaceID: doc.WorkspaceID,
		Title:       doc.Title,
		ContentText: doc.Extraction.Text(),
	}); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("document index sync: %v", err))
	}

	count, err := s.entities.CountEntities(ctx, doc.WorkspaceID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("entity count: %v", err))
	}

	for _, raw := range mapper(doc.Extraction) {
		normalized := domain.NormalizeName(raw.name)
		if normalized == "" {
			continue
		}
		result.ByType[raw.entityType]++

		entity, created, err := s.resolveEntity(ctx, doc.WorkspaceID, raw, normalized, &count, result)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", raw.fieldPath, err))
			continue
		}
		if entity == nil {
			continue // Ceiling reached and entity does not already exist.
		}

		if created {
			result.EntitiesCreated++
			// Reused entities are not re-pushed: their text hasn't changed.
			if err := s.index.SyncEntity(ctx, driven.IndexEntity{
				EntityID:    entity.ID,
				WorkspaceID: entity.WorkspaceID,
				Name:        entity.Name,
				Aliases:     strings.Join(entity.Aliases, " "),
			}); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("entity index sync %s: %v", entity.ID, err))
			}
		} else {
			result.EntitiesReused++
		}

		conf, ok := confidence[raw.fieldPath]
		if !ok {
			conf = 1.0
		}
		added, err := s.entities.AddMention(ctx, domain.Mention{
			EntityID:   entity.ID,
			DocumentID: doc.ID,
			FieldPath:  raw.fieldPath,
			Context:    raw.context,
			Confidence: clamp01(conf),
			Source:     "extraction",
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("mention %s: %v", raw.fieldPath, err))
			continue
		}
		if added {
			result.MentionsCreated++
		} else {
			result.MentionsSkipped++
		}
	}

	logger.Info("Harvested %s: %d created, %d reused, %d mentions, %d errors",
		doc.ID, result.EntitiesCreated, result.EntitiesReused, result.MentionsCreated, len(result.Errors))
	return result, nil
}

// resolveEntity finds or creates the canonical entity for one raw entity,
// honouring the workspace ceiling. Returns (nil, nil) when the ceiling
// blocks creation and no existing entity matches.
func (s *HarvestService) resolveEntity(
	ctx context.Context,
	workspaceID string,
	raw rawEntity,
	normalized string,
	count *int,
	result *domain.HarvestResult,
) (*domain.Entity, bool, error) {
	if *count >= s.maxEntities {
		// Ceiling reached: existing entities keep processing, new ones are skipped.
		entity, err := s.entities.Find(ctx, workspaceID, raw.entityType, normalized)
		if errors.Is(err, domain.ErrNotFound) {
			if !result.LimitReached {
				result.LimitReached = true
				result.Errors = append(result.Errors,
					fmt.Sprintf("%v (%d entities)", domain.ErrEntityLimitExceeded, s.maxEntities))
				logger.Warn("Entity ceiling reached in workspace %s", workspaceID)
			}
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return entity, false, nil
	}

	entity, created, err := s.entities.FindOrCreate(ctx, domain.Entity{
		WorkspaceID:    workspaceID,
		Type:           raw.entityType,
		Name:           strings.TrimSpace(raw.name),
		NormalizedName: normalized,
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		*count++
	}
	return entity, created, nil
}

// RemoveDocument deletes a document's mentions, index records and catalog
// snapshot, decrementing the affected entity counts.
func (s *HarvestService) RemoveDocument(ctx context.Context, workspaceID, documentID string) error {
	logger.Debug("Removing document %s from workspace %s", documentID, workspaceID)

	var errs []error
	if err := s.entities.DeleteDocumentMentions(ctx, workspaceID, documentID); err != nil {
		errs = append(errs, fmt.Errorf("delete mentions: %w", err))
	}
	if err := s.index.RemoveDocument(ctx, workspaceID, documentID); err != nil {
		errs = append(errs, fmt.Errorf("remove index record: %w", err))
	}
	if err := s.catalog.DeleteDocument(ctx, workspaceID, documentID); err != nil {
		errs = append(errs, fmt.Errorf("delete catalog snapshot: %w", err))
	}
	return errors.Join(errs...)
}

// ==================== Document-Type Mappers ====================

func mapContract(ex domain.Extraction) []rawEntity {
	c := ex.Contract
	if c == nil {
		return nil
	}

	var raws []rawEntity
	for i, party := range c.Parties {
		context := "contract party"
		if party.Role != "" {
			context = "contract party (" + party.Role + ")"
		}
		raws = append(raws, rawEntity{
			entityType: domain.ClassifyPartyName(party.Name),
			name:       party.Name,
			fieldPath:  fmt.Sprintf("parties[%d].name", i),
			context:    context,
		})
	}
	if c.EffectiveDate != "" {
		raws = append(raws, rawEntity{domain.EntityTypeDate, c.EffectiveDate, "effectiveDate", "contract effective date"})
	}
	if c.ExpirationDate != "" {
		raws = append(raws, rawEntity{domain.EntityTypeDate, c.ExpirationDate, "expirationDate", "contract expiration date"})
	}
	for i, pt := range c.PaymentTerms {
		raws = append(raws, rawEntity{
			entityType: domain.EntityTypeAmount,
			name:       domain.FormatAmount(pt.Currency, pt.Amount),
			fieldPath:  fmt.Sprintf("paymentTerms[%d].amount", i),
			context:    pt.Description,
		})
	}
	if c.GoverningLaw != "" {
		raws = append(raws, rawEntity{domain.EntityTypeLocation, c.GoverningLaw, "governingLaw", "governing law"})
	}
	for i, term := range c.KeyTerms {
		raws = append(raws, rawEntity{domain.EntityTypeTerm, term, fmt.Sprintf("keyTerms[%d]", i), "contract key term"})
	}
	return raws
}

func mapInvoice(ex domain.Extraction) []rawEntity {
	inv := ex.Invoice
	if inv == nil {
		return nil
	}

	var raws []rawEntity
	if inv.Vendor != "" {
		raws = append(raws, rawEntity{domain.EntityTypeOrganization, inv.Vendor, "vendor", "invoice vendor"})
	}
	if inv.Customer != "" {
		raws = append(raws, rawEntity{domain.ClassifyPartyName(inv.Customer), inv.Customer, "customer", "invoice customer"})
	}
	if inv.InvoiceDate != "" {
		raws = append(raws, rawEntity{domain.EntityTypeDate, inv.InvoiceDate, "invoiceDate", "invoice date"})
	}
	if inv.DueDate != "" {
		raws = append(raws, rawEntity{domain.EntityTypeDate, inv.DueDate, "dueDate", "invoice due date"})
	}
	if inv.Total != 0 {
		raws = append(raws, rawEntity{
			entityType: domain.EntityTypeAmount,
			name:       domain.FormatAmount(inv.Currency, inv.Total),
			fieldPath:  "total",
			context:    "invoice total",
		})
	}
	for i, li := range inv.LineItems {
		if li.Description == "" {
			continue
		}
		raws = append(raws, rawEntity{domain.EntityTypeProduct, li.Description, fmt.Sprintf("lineItems[%d].description", i), "invoice line item"})
	}
	return raws
}

func mapMeeting(ex domain.Extraction) []rawEntity {
	m := ex.Meeting
	if m == nil {
		return nil
	}

	var raws []rawEntity
	if m.Date != "" {
		raws = append(raws, rawEntity{domain.EntityTypeDate, m.Date, "date", "meeting date"})
	}
	for i, attendee := range m.Attendees {
		raws = append(raws, rawEntity{domain.EntityTypePerson, attendee, fmt.Sprintf("attendees[%d]", i), "meeting attendee"})
	}
	for i, decision := range m.Decisions {
		raws = append(raws, rawEntity{domain.EntityTypeConcept, decision, fmt.Sprintf("decisions[%d]", i), "meeting decision"})
	}
	for i, item := range m.ActionItems {
		if item.Assignee == "" {
			continue
		}
		raws = append(raws, rawEntity{
			entityType: domain.EntityTypePerson,
			name:       item.Assignee,
			fieldPath:  fmt.Sprintf("actionItems[%d].assignee", i),
			context:    item.Task,
		})
	}
	return raws
}

func mapReport(ex domain.Extraction) []rawEntity {
	r := ex.Report
	if r == nil {
		return nil
	}

	var raws []rawEntity
	if r.Author != "" {
		raws = append(raws, rawEntity{domain.EntityTypePerson, r.Author, "author", "report author"})
	}
	for i, topic := range r.Topics {
		raws = append(raws, rawEntity{domain.EntityTypeConcept, topic, fmt.Sprintf("topics[%d]", i), "report topic"})
	}
	for i, org := range r.Organizations {
		raws = append(raws, rawEntity{domain.EntityTypeOrganization, org, fmt.Sprintf("organizations[%d]", i), "organization referenced"})
	}
	for i, loc := range r.Locations {
		raws = append(raws, rawEntity{domain.EntityTypeLocation, loc, fmt.Sprintf("locations[%d]", i), "location referenced"})
	}
	for i, term := range r.KeyTerms {
		raws = append(raws, rawEntity{domain.EntityTypeTerm, term, fmt.Sprintf("keyTerms[%d]", i), "report key term"})
	}
	return raws
}
