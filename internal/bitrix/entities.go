package bitrix

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bitrixepl/engine/internal/fieldmap"
)

// EntityType enumerates every Bitrix entity type this client dispatches
// on (spec.md §4.A GetEntities).
type EntityType string

const (
	EntityDeal             EntityType = "deal"
	EntityContact          EntityType = "contact"
	EntityLead             EntityType = "lead"
	EntityCompany          EntityType = "company"
	EntityUser             EntityType = "user"
	EntityTask             EntityType = "task"
	EntityCall             EntityType = "call"
	EntityStageHistoryDeal EntityType = "stage_history_deal"
	EntityStageHistoryLead EntityType = "stage_history_lead"
)

// crmMethodName maps each entity type backed by crm.<type>.list to the
// <type> segment of its method names.
var crmMethodName = map[EntityType]string{
	EntityDeal:    "deal",
	EntityContact: "contact",
	EntityLead:    "lead",
	EntityCompany: "company",
}

// isCRMEntity reports whether entityType is one of the four core CRM
// entities dispatched via crm.<type>.list / crm.<type>.get.
func isCRMEntity(entityType EntityType) (string, bool) {
	name, ok := crmMethodName[entityType]
	return name, ok
}

// GetEntities dispatches a listing call per spec.md §4.A's per-entity
// rules and returns the flat, normalized record list.
func (c *Client) GetEntities(ctx context.Context, entityType EntityType, filter map[string]any, selectFields []string) ([]map[string]any, error) {
	switch {
	case func() bool { _, ok := isCRMEntity(entityType); return ok }():
		crmType, _ := isCRMEntity(entityType)
		params := crmListParams(filter, selectFields)
		return c.GetAll(ctx, fmt.Sprintf("crm.%s.list", crmType), params)

	case entityType == EntityUser:
		params := map[string]any{}
		if filter != nil {
			params["FILTER"] = filter
		}
		return c.GetAll(ctx, "user.get", params)

	case entityType == EntityTask:
		records, err := c.GetAll(ctx, "tasks.task.list", taskListParams(filter, selectFields))
		if err != nil {
			return nil, err
		}
		normalized := make([]map[string]any, len(records))
		for i, r := range records {
			normalized[i] = NormalizeTaskKeys(r)
		}
		return normalized, nil

	case entityType == EntityCall:
		records, err := c.GetAll(ctx, "voximplant.statistic.get", callParams(filter))
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			remapCallID(r)
		}
		return records, nil

	case entityType == EntityStageHistoryDeal:
		return c.getStageHistory(ctx, 2, filter)

	case entityType == EntityStageHistoryLead:
		return c.getStageHistory(ctx, 1, filter)

	default:
		return nil, fmt.Errorf("bitrix: unknown entity type %q", entityType)
	}
}

// GetEntity fetches a single record by ID, following the same dispatch
// rules as GetEntities, for webhook-driven single-record syncs.
func (c *Client) GetEntity(ctx context.Context, entityType EntityType, id string) (map[string]any, error) {
	switch {
	case func() bool { _, ok := isCRMEntity(entityType); return ok }():
		crmType, _ := isCRMEntity(entityType)
		raw, err := c.Call(ctx, fmt.Sprintf("crm.%s.get", crmType), map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("bitrix: decode %s.get: %w", crmType, err)
		}
		return record, nil

	case entityType == EntityUser:
		records, err := c.GetAll(ctx, "user.get", map[string]any{"FILTER": map[string]any{"ID": id}})
		if err != nil {
			return nil, err
		}
		return firstOrNil(records), nil

	case entityType == EntityTask:
		records, err := c.GetAll(ctx, "tasks.task.list", map[string]any{"filter": map[string]any{"ID": id}})
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, nil
		}
		return NormalizeTaskKeys(records[0]), nil

	case entityType == EntityCall:
		records, err := c.GetAll(ctx, "voximplant.statistic.get", map[string]any{"FILTER": map[string]any{"CALL_ID": id}})
		if err != nil {
			return nil, err
		}
		rec := firstOrNil(records)
		if rec != nil {
			remapCallID(rec)
		}
		return rec, nil

	case entityType == EntityStageHistoryDeal:
		records, err := c.getStageHistory(ctx, 2, map[string]any{"OWNER_ID": id})
		return firstOrNil(records), err

	case entityType == EntityStageHistoryLead:
		records, err := c.getStageHistory(ctx, 1, map[string]any{"OWNER_ID": id})
		return firstOrNil(records), err

	default:
		return nil, fmt.Errorf("bitrix: unknown entity type %q", entityType)
	}
}

func firstOrNil(records []map[string]any) map[string]any {
	if len(records) == 0 {
		return nil
	}
	return records[0]
}

func crmListParams(filter map[string]any, selectFields []string) map[string]any {
	if filter == nil {
		filter = map[string]any{">ID": 0}
	}
	if selectFields == nil {
		selectFields = []string{"*", "UF_*"}
	}
	return map[string]any{
		"FILTER": filter,
		"SELECT": selectFields,
	}
}

func taskListParams(filter map[string]any, selectFields []string) map[string]any {
	params := map[string]any{}
	if filter != nil {
		params["filter"] = filter
	}
	if selectFields != nil {
		params["select"] = selectFields
	}
	return params
}

func callParams(filter map[string]any) map[string]any {
	params := map[string]any{}
	if filter != nil {
		params["FILTER"] = filter
	}
	return params
}

// remapCallID moves CALL_ID onto ID in place, since the upsert writer
// uses ID (renamed bitrix_id) as the replication key (spec.md §4.A).
func remapCallID(record map[string]any) {
	if id, ok := record["CALL_ID"]; ok {
		record["ID"] = id
	}
}

// getStageHistory fetches crm.stagehistory.list for the given
// entityTypeId, tolerating both result-shape variants (dict with
// "items", or list of dicts each with "items").
func (c *Client) getStageHistory(ctx context.Context, entityTypeID int, filter map[string]any) ([]map[string]any, error) {
	params := map[string]any{"entityTypeId": entityTypeID}
	if filter != nil {
		params["filter"] = filter
	}
	return c.GetAll(ctx, "crm.stagehistory.list", params)
}

// canonicalTypeMaps holds the built-in field-type substitutions for
// entity types whose metadata endpoints return no type information
// (spec.md §4.A GetEntityFields/GetUserFields).
var canonicalTypeMaps = map[EntityType]map[string]string{
	EntityUser: {
		"ID": "integer", "EMAIL": "string", "NAME": "string", "LAST_NAME": "string",
		"ACTIVE": "boolean", "LAST_LOGIN": "datetime", "WORK_POSITION": "string",
		"UF_DEPARTMENT": "string",
	},
	EntityCall: {
		"ID": "integer", "CALL_ID": "string", "PORTAL_USER_ID": "integer",
		"PHONE_NUMBER": "string", "CALL_START_DATE": "datetime", "CALL_DURATION": "integer",
		"CALL_FAILED_CODE": "integer", "CALL_TYPE": "integer", "COST": "double",
	},
	EntityStageHistoryDeal: {
		"ID": "integer", "OWNER_ID": "integer", "STAGE_ID": "string",
		"CREATED_TIME": "datetime", "TYPE_ID": "integer",
	},
	EntityStageHistoryLead: {
		"ID": "integer", "OWNER_ID": "integer", "STAGE_ID": "string",
		"CREATED_TIME": "datetime", "TYPE_ID": "integer",
	},
}

// GetEntityFields fetches an entity type's standard field metadata,
// substituting the canonical type map for endpoints that return none.
func (c *Client) GetEntityFields(ctx context.Context, entityType EntityType) ([]fieldmap.BitrixFieldMeta, error) {
	if canonical, ok := canonicalTypeMaps[entityType]; ok {
		return canonicalFieldMetas(canonical), nil
	}

	crmType, ok := isCRMEntity(entityType)
	if !ok {
		return nil, fmt.Errorf("bitrix: no field metadata source for entity type %q", entityType)
	}

	raw, err := c.Call(ctx, fmt.Sprintf("crm.%s.fields", crmType), nil)
	if err != nil {
		return nil, err
	}
	return decodeFieldMetas(raw)
}

// GetUserFields fetches UF_* user-defined field metadata for an entity
// type via crm.userfield.list.
func (c *Client) GetUserFields(ctx context.Context, entityType EntityType) ([]fieldmap.BitrixFieldMeta, error) {
	entityCode, ok := crmUserFieldEntityID(entityType)
	if !ok {
		return nil, nil
	}
	raw, err := c.Call(ctx, "crm.userfield.list", map[string]any{
		"filter": map[string]any{"ENTITY_ID": entityCode},
	})
	if err != nil {
		return nil, err
	}
	return decodeFieldMetas(raw)
}

// crmUserFieldEntityID maps an entity type to the ENTITY_ID value
// crm.userfield.list expects (e.g. "CRM_DEAL").
func crmUserFieldEntityID(entityType EntityType) (string, bool) {
	crmType, ok := isCRMEntity(entityType)
	if !ok {
		return "", false
	}
	return "CRM_" + CamelToUpperSnake(crmType), true
}

func canonicalFieldMetas(types map[string]string) []fieldmap.BitrixFieldMeta {
	metas := make([]fieldmap.BitrixFieldMeta, 0, len(types))
	for fieldID, fieldType := range types {
		metas = append(metas, fieldmap.BitrixFieldMeta{FieldID: fieldID, Type: fieldType, Title: fieldID})
	}
	return metas
}

func decodeFieldMetas(raw json.RawMessage) ([]fieldmap.BitrixFieldMeta, error) {
	var byID map[string]struct {
		Type            string `json:"type"`
		Title           string `json:"title"`
		FormLabel       string `json:"formLabel"`
		IsMultiple      bool   `json:"isMultiple"`
		ListColumnLabel struct {
			RU string `json:"ru"`
		} `json:"LIST_COLUMN_LABEL"`
		EditFormLabel struct {
			RU string `json:"ru"`
		} `json:"EDIT_FORM_LABEL"`
	}
	if err := json.Unmarshal(raw, &byID); err != nil {
		// crm.userfield.list returns a list, not a dict; fall back.
		var asList []struct {
			FieldName       string `json:"FIELD_NAME"`
			UserTypeID      string `json:"USER_TYPE_ID"`
			Multiple        string `json:"MULTIPLE"`
			ListColumnLabel struct {
				RU string `json:"ru"`
			} `json:"LIST_COLUMN_LABEL"`
			EditFormLabel struct {
				RU string `json:"ru"`
			} `json:"EDIT_FORM_LABEL"`
		}
		if err2 := json.Unmarshal(raw, &asList); err2 != nil {
			return nil, fmt.Errorf("bitrix: decode field metadata: %w", err)
		}
		metas := make([]fieldmap.BitrixFieldMeta, 0, len(asList))
		for _, f := range asList {
			metas = append(metas, fieldmap.BitrixFieldMeta{
				FieldID:         f.FieldName,
				Type:            f.UserTypeID,
				IsMultiple:      f.Multiple == "Y",
				ListColumnLabel: f.ListColumnLabel.RU,
				EditFormLabel:   f.EditFormLabel.RU,
			})
		}
		return metas, nil
	}

	metas := make([]fieldmap.BitrixFieldMeta, 0, len(byID))
	for fieldID, meta := range byID {
		metas = append(metas, fieldmap.BitrixFieldMeta{
			FieldID:         fieldID,
			Type:            meta.Type,
			Title:           meta.Title,
			FormLabel:       meta.FormLabel,
			IsMultiple:      meta.IsMultiple,
			ListColumnLabel: meta.ListColumnLabel.RU,
			EditFormLabel:   meta.EditFormLabel.RU,
		})
	}
	return metas, nil
}
