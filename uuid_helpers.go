package upkeep

import (
	"reflect"

	"github.com/google/uuid"
)

// uuidFromEntity reads the uuid primary key of any pointer-to-struct entity
func uuidFromEntity(entity any) uuid.UUID {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return uuid.Nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return uuid.Nil
	}

	f := v.FieldByName("ID")
	if !f.IsValid() {
		return uuid.Nil
	}
	if id, ok := f.Interface().(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func assignEntityUUID(entity any, id uuid.UUID) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	f := v.FieldByName("ID")
	if !f.IsValid() || !f.CanSet() {
		return
	}
	if _, ok := f.Interface().(uuid.UUID); ok {
		f.Set(reflect.ValueOf(id))
	}
}
