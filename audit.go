package upkeep

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Bookkeeping columns are never part of the recorded value maps; the audit
// trail tracks domain state, not its own plumbing.
var auditExcludedFields = map[string]bool{
	"CreatedAt":  true,
	"CreatedBy":  true,
	"ModifiedAt": true,
	"ModifiedBy": true,
	"IsDeleted":  true,
	"DeletedAt":  true,
	"DeletedBy":  true,
}

type auditDraft struct {
	entity     any
	entityType string
	action     string
	oldValues  map[string]any
	newValues  map[string]any
	changed    []string
	at         time.Time
	audit      *AuditContext
}

type changeSet struct {
	mu     sync.Mutex
	drafts []*auditDraft
}

func (c *changeSet) add(d *auditDraft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drafts = append(c.drafts, d)
}

func (c *changeSet) take() []*auditDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	drafts := c.drafts
	c.drafts = nil
	return drafts
}

// prepareInsert runs the pre-commit pipeline for a new entity: assign a key
// if the caller did not, stamp creation fields, and capture the draft audit
// entry with every scalar value.
func prepareInsert(ctx context.Context, entity any) {
	now := time.Now()
	ac, _ := AuditContextFrom(ctx)

	ensureEntityID(entity)

	if a, ok := entity.(Auditable); ok {
		a.StampCreated(now, actorID(ac))
	}

	if ac == nil || isAuditLog(entity) {
		return
	}

	values := snapshotValues(entity)
	ac.changes.add(&auditDraft{
		entity:     entity,
		entityType: entityTypeName(entity),
		action:     ActionAdded,
		newValues:  values,
		changed:    sortedKeys(values),
		at:         now,
		audit:      ac,
	})
}

// prepareUpdate stamps modification fields and captures a draft holding only
// the properties that actually changed. Creation stamps are restored from the
// loaded row so an update can never rewrite them.
func prepareUpdate(ctx context.Context, old, entity any) {
	now := time.Now()
	ac, _ := AuditContextFrom(ctx)

	if a, ok := entity.(Auditable); ok {
		if prev, isAuditable := old.(Auditable); isAuditable {
			createdAt, createdBy := prev.CreationStamp()
			a.RestoreCreationStamp(createdAt, createdBy)
		}
		a.StampModified(now, actorID(ac))
	}

	if ac == nil || isAuditLog(entity) {
		return
	}

	oldValues := snapshotValues(old)
	newValues := snapshotValues(entity)
	changed, oldChanged, newChanged := diffValues(oldValues, newValues)
	if len(changed) == 0 {
		return
	}

	ac.changes.add(&auditDraft{
		entity:     entity,
		entityType: entityTypeName(entity),
		action:     ActionModified,
		oldValues:  oldChanged,
		newValues:  newChanged,
		changed:    changed,
		at:         now,
		audit:      ac,
	})
}

// prepareUpdateDraft records a modification draft for an entity mutated via
// a direct SQL update, where stamping already happened in the statement
// itself.
func prepareUpdateDraft(ac *AuditContext, old, entity any, at time.Time) {
	if ac == nil || isAuditLog(entity) {
		return
	}

	changed, oldChanged, newChanged := diffValues(snapshotValues(old), snapshotValues(entity))
	if len(changed) == 0 {
		return
	}

	ac.changes.add(&auditDraft{
		entity:     entity,
		entityType: entityTypeName(entity),
		action:     ActionModified,
		oldValues:  oldChanged,
		newValues:  newChanged,
		changed:    changed,
		at:         at,
		audit:      ac,
	})
}

// prepareDelete captures the delete draft and, when the entity supports it,
// converts the pending hard delete into a soft delete. Returns true when the
// caller must perform an update instead of a row removal.
func prepareDelete(ctx context.Context, entity any) bool {
	now := time.Now()
	ac, _ := AuditContextFrom(ctx)

	values := snapshotValues(entity)

	soft := false
	if sd, ok := entity.(SoftDeletable); ok {
		sd.MarkDeleted(now, actorID(ac))
		soft = true
	}

	if ac != nil && !isAuditLog(entity) {
		ac.changes.add(&auditDraft{
			entity:     entity,
			entityType: entityTypeName(entity),
			action:     ActionDeleted,
			oldValues:  values,
			changed:    sortedKeys(values),
			at:         now,
			audit:      ac,
		})
	}

	return soft
}

// flushAuditTrail persists all captured drafts as AuditLog rows. It runs as a
// second save after the primary commit so inserted entities contribute their
// final keys, and the actor is resolved at flush time so registration entries
// pick up the user id assigned during the save.
func flushAuditTrail(ctx context.Context, db bun.IDB) error {
	ac, ok := AuditContextFrom(ctx)
	if !ok {
		return nil
	}

	drafts := ac.changes.take()
	if len(drafts) == 0 {
		return nil
	}

	logs := make([]*AuditLog, 0, len(drafts))
	for _, d := range drafts {
		userID, username := d.audit.Actor()
		logs = append(logs, &AuditLog{
			ID:                uuid.New(),
			EntityType:        d.entityType,
			EntityID:          entityKey(d.entity),
			Action:            d.action,
			UserID:            userID,
			Username:          username,
			Timestamp:         d.at,
			OldValues:         marshalAuditJSON(d.oldValues),
			NewValues:         marshalAuditJSON(d.newValues),
			ChangedProperties: marshalAuditJSON(d.changed),
			IPAddress:         d.audit.IP(),
			UserAgent:         d.audit.UserAgent(),
		})
	}

	_, err := db.NewInsert().Model(&logs).Exec(ctx)
	return err
}

func actorID(ac *AuditContext) *uuid.UUID {
	if ac == nil {
		return nil
	}
	id, _ := ac.Actor()
	return id
}

func isAuditLog(entity any) bool {
	_, ok := entity.(*AuditLog)
	return ok
}

func entityTypeName(entity any) string {
	t := reflect.TypeOf(entity)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// entityKey resolves the entity's primary key as a string. Called at flush
// time, after the primary save, so generated keys are final.
func entityKey(entity any) string {
	id := uuidFromEntity(entity)
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

func ensureEntityID(entity any) {
	if uuidFromEntity(entity) == uuid.Nil {
		assignEntityUUID(entity, uuid.New())
	}
}

// auditRedactedValue stands in for credential values in the audit trail
const auditRedactedValue = "[REDACTED]"

// secretBearer is implemented by entities carrying live credentials that the
// audit trail records only in redacted form.
type secretBearer interface {
	SecretFields() []string
}

// snapshotValues captures every exported scalar property of the entity,
// excluding the audit bookkeeping columns and redacting credential fields.
// Relations, slices, and embedded structs are not part of the audit payload.
func snapshotValues(entity any) map[string]any {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	out := map[string]any{}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous || !field.IsExported() || auditExcludedFields[field.Name] {
			continue
		}
		if val, ok := scalarValue(v.Field(i)); ok {
			out[field.Name] = val
		}
	}

	if sb, ok := entity.(secretBearer); ok {
		for _, name := range sb.SecretFields() {
			if s, present := out[name].(string); present && s != "" {
				out[name] = auditRedactedValue
			}
		}
	}

	return out
}

func scalarValue(v reflect.Value) (any, bool) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, true
		}
		return scalarValue(v.Elem())
	}

	switch x := v.Interface().(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	case uuid.UUID:
		return x.String(), true
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return v.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return nil, false
}

func diffValues(oldValues, newValues map[string]any) ([]string, map[string]any, map[string]any) {
	changed := []string{}
	oldChanged := map[string]any{}
	newChanged := map[string]any{}

	for name, newVal := range newValues {
		oldVal, existed := oldValues[name]
		if existed && reflect.DeepEqual(oldVal, newVal) {
			continue
		}
		changed = append(changed, name)
		oldChanged[name] = oldVal
		newChanged[name] = newVal
	}
	sort.Strings(changed)
	return changed, oldChanged, newChanged
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func marshalAuditJSON(v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case map[string]any:
		if len(x) == 0 {
			return ""
		}
	case []string:
		if len(x) == 0 {
			return ""
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
