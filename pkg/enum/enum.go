package enum

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	mutex    sync.RWMutex
	registry = map[reflect.Type]map[string]any{}
)

// New registers value as a member of its enum type and returns it unchanged,
// so enums are declared as `Active = enum.New(Status("active"))`.
func New[T ~string](value T) T {
	mutex.Lock()
	defer mutex.Unlock()

	t := reflect.TypeOf(value)
	if _, ok := registry[t]; !ok {
		registry[t] = map[string]any{}
	}

	registry[t][string(value)] = value
	return value
}

// ToEnum parses s into a registered member of T.
func ToEnum[T ~string](s string) (T, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	var defaultT T
	members, ok := registry[reflect.TypeOf(defaultT)]
	if !ok {
		return defaultT, fmt.Errorf("not found enum type %T", defaultT)
	}

	v, ok := members[s]
	if !ok {
		return defaultT, fmt.Errorf("not found value %s in enum %T", s, defaultT)
	}

	return v.(T), nil
}
