package reference

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/bitrixepl/engine/internal/bitrix"
	"github.com/bitrixepl/engine/internal/fieldmap"
	"github.com/bitrixepl/engine/internal/observability"
	"github.com/bitrixepl/engine/internal/warehouse/schema"
	"github.com/bitrixepl/engine/internal/warehouse/upsert"
)

// Service is the Reference Sync Service (spec.md §4.G).
type Service struct {
	client  *bitrix.Client
	builder *schema.Builder
	writer  *upsert.Writer
	logger  *observability.Logger
	entries []Entry
}

// New constructs a Service bound to the default registry.
func New(client *bitrix.Client, builder *schema.Builder, writer *upsert.Writer, logger *observability.Logger) *Service {
	return &Service{client: client, builder: builder, writer: writer, logger: logger, entries: DefaultRegistry()}
}

// Entries returns the registry this service syncs.
func (s *Service) Entries() []Entry {
	return s.entries
}

func (s *Service) entryFields(e Entry) []fieldmap.Field {
	fields := make([]fieldmap.Field, len(e.Fields))
	for i, f := range e.Fields {
		fields[i] = fieldmap.Field{Column: f.Name, SQLType: f.SQLType}
	}
	return fields
}

// EnsureTable reconciles entry's warehouse table.
func (s *Service) EnsureTable(ctx context.Context, e Entry) error {
	return s.builder.EnsureReferenceTable(ctx, e.TableName, s.entryFields(e), e.UniqueKey)
}

// SyncOne runs the fetch-merge-upsert flow for a single registry entry,
// dispatching to entry-specific logic for crm_deal_category (default
// pipeline prepend) and crm_status (category iteration).
func (s *Service) SyncOne(ctx context.Context, name string) (int, error) {
	entry, ok := Lookup(s.entries, name)
	if !ok {
		return 0, fmt.Errorf("reference: unknown registry entry %q", name)
	}

	if entry.APIMethod == "" {
		// enum_values has no API method; it is populated opportunistically
		// by user-field discovery during entity syncs (spec.md §4.G). This
		// call only guarantees the table exists.
		return 0, s.EnsureTable(ctx, entry)
	}

	if err := s.EnsureTable(ctx, entry); err != nil {
		return 0, err
	}

	var records []map[string]any
	var err error

	switch entry.Name {
	case "crm_deal_category":
		records, err = s.fetchDealCategories(ctx)
	case "crm_status":
		records, err = s.fetchStatuses(ctx)
	default:
		records, err = s.client.GetAll(ctx, entry.APIMethod, nil)
	}
	if err != nil {
		return 0, fmt.Errorf("reference: fetch %s: %w", entry.Name, err)
	}

	lowered := make([]map[string]any, len(records))
	for i, r := range records {
		lowered[i] = lowerKeys(r)
	}

	processed, err := s.writer.Write(ctx, entry.TableName, lowered, entry.UniqueKey)
	if err != nil {
		return processed, fmt.Errorf("reference: write %s: %w", entry.Name, err)
	}
	return processed, nil
}

// SyncAll runs SyncOne for every API-backed registry entry, aggregating
// failures with multierr so one entry's failure doesn't block the rest.
func (s *Service) SyncAll(ctx context.Context) (map[string]int, error) {
	results := make(map[string]int)
	var errs error
	for _, e := range s.entries {
		if e.APIMethod == "" {
			continue
		}
		n, err := s.SyncOne(ctx, e.Name)
		results[e.Name] = n
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return results, errs
}

// fetchDealCategories fetches crm.dealcategory.list and prepends the
// default pipeline (id=0), which Bitrix omits from the list response
// (spec.md §4.G).
func (s *Service) fetchDealCategories(ctx context.Context) ([]map[string]any, error) {
	categories, err := s.client.GetAll(ctx, "crm.dealcategory.list", nil)
	if err != nil {
		return nil, err
	}

	defaultRaw, err := s.client.Call(ctx, "crm.dealcategory.default.get", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch default pipeline: %w", err)
	}
	var def map[string]any
	if len(defaultRaw) > 0 {
		if decodeErr := decodeInto(defaultRaw, &def); decodeErr != nil {
			return nil, fmt.Errorf("decode default pipeline: %w", decodeErr)
		}
	}

	if def == nil {
		def = map[string]any{"ID": "0", "NAME": "General"}
	}
	return append([]map[string]any{def}, categories...), nil
}

// fetchStatuses implements spec.md §4.G's crm_status category iteration:
// base statuses, plus every deal category's stages fetched in parallel,
// merged and deduplicated by (status_id, entity_id, category_id).
func (s *Service) fetchStatuses(ctx context.Context) ([]map[string]any, error) {
	base, err := s.client.GetAll(ctx, "crm.status.list", nil)
	if err != nil {
		return nil, err
	}
	for _, r := range base {
		if v, ok := r["CATEGORY_ID"]; !ok || fmt.Sprintf("%v", v) == "" {
			r["CATEGORY_ID"] = "0"
		}
	}

	categories, err := s.fetchDealCategories(ctx)
	if err != nil {
		return nil, err
	}
	categoryIDs := make([]string, 0, len(categories)+1)
	seenCat := map[string]bool{}
	for _, c := range categories {
		id := fmt.Sprintf("%v", c["ID"])
		if !seenCat[id] {
			seenCat[id] = true
			categoryIDs = append(categoryIDs, id)
		}
	}
	if !seenCat["0"] {
		categoryIDs = append([]string{"0"}, categoryIDs...)
	}

	type stageResult struct {
		categoryID string
		stages     []map[string]any
		err        error
	}
	resultsCh := make(chan stageResult, len(categoryIDs))
	var wg sync.WaitGroup
	for _, catID := range categoryIDs {
		wg.Add(1)
		go func(catID string) {
			defer wg.Done()
			stages, err := s.fetchDealStages(ctx, catID)
			resultsCh <- stageResult{categoryID: catID, stages: stages, err: err}
		}(catID)
	}
	wg.Wait()
	close(resultsCh)

	var errs error
	all := append([]map[string]any{}, base...)
	for res := range resultsCh {
		if res.err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fetch deal stages for category %s: %w", res.categoryID, res.err))
			continue
		}
		all = append(all, res.stages...)
	}
	if errs != nil {
		return nil, errs
	}

	return dedupeByKey(all, []string{"STATUS_ID", "ENTITY_ID", "CATEGORY_ID"}), nil
}

// fetchDealStages fetches one category's deal stages, tagging each
// record with ENTITY_ID (DEAL_STAGE for the default pipeline,
// DEAL_STAGE_<id> otherwise) and CATEGORY_ID.
func (s *Service) fetchDealStages(ctx context.Context, categoryID string) ([]map[string]any, error) {
	stages, err := s.client.GetAll(ctx, "crm.dealcategory.stage.list", map[string]any{"id": categoryID})
	if err != nil {
		return nil, err
	}

	entityID := "DEAL_STAGE"
	if categoryID != "0" {
		entityID = "DEAL_STAGE_" + categoryID
	}
	for _, st := range stages {
		st["ENTITY_ID"] = entityID
		st["CATEGORY_ID"] = categoryID
	}
	return stages, nil
}

func dedupeByKey(records []map[string]any, keys []string) []map[string]any {
	seen := make(map[string]bool, len(records))
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		var sb strings.Builder
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("%v", r[k]))
			sb.WriteByte('\x00')
		}
		key := sb.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// lowerKeys lower-cases every key of a record, per spec.md §4.G
// ("Records are lower-cased key-by-key before writer invocation because
// Bitrix returns uppercase keys that must align with the registry column
// names").
func lowerKeys(record map[string]any) map[string]any {
	lowered := make(map[string]any, len(record))
	for k, v := range record {
		lowered[strings.ToLower(k)] = v
	}
	return lowered
}
