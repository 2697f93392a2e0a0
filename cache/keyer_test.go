package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestKeyer_DeterministicForMaps(t *testing.T) {
	keyer := NewDefaultKeyer()

	// Same content, different insertion order
	map1 := map[string]any{"b": 2, "a": 1, "c": 3}
	map2 := map[string]any{"a": 1, "c": 3, "b": 2}
	map3 := map[string]any{"c": 3, "b": 2, "a": 1}

	key1, err := keyer.Key(map1)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	key2, err := keyer.Key(map2)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	key3, err := keyer.Key(map3)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if key1 != key2 || key2 != key3 {
		t.Errorf("Keys should be equal for same content:\n  %s\n  %s\n  %s", key1, key2, key3)
	}
}

func TestKeyer_ArrayOrderPreserved(t *testing.T) {
	keyer := NewDefaultKeyer()

	key1, err := keyer.Key(map[string]any{"items": []any{1, 2, 3}})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	key2, err := keyer.Key(map[string]any{"items": []any{3, 2, 1}})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if key1 == key2 {
		t.Errorf("Keys should differ for different array order: %s", key1)
	}
}

func TestKeyer_NestedMaps(t *testing.T) {
	keyer := NewDefaultKeyer()

	nested1 := map[string]any{
		"outer": map[string]any{"z": 26, "a": 1, "m": 13},
		"other": "value",
	}
	nested2 := map[string]any{
		"other": "value",
		"outer": map[string]any{"a": 1, "m": 13, "z": 26},
	}

	key1, err := keyer.Key(nested1)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	key2, err := keyer.Key(nested2)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	if key1 != key2 {
		t.Errorf("Keys should be equal for nested maps:\n  key1=%s\n  key2=%s", key1, key2)
	}
}

func TestKeyer_KeyFormat(t *testing.T) {
	keyer := NewDefaultKeyer()

	key, err := keyer.Key(map[string]any{"to": "a@example.com"})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	// sha256 of the canonical form {"to":"a@example.com"}
	sum := sha256.Sum256([]byte(`{"to":"a@example.com"}`))
	if want := hex.EncodeToString(sum[:]); key != want {
		t.Errorf("Key() = %s, want %s", key, want)
	}
	if len(key) != 64 {
		t.Errorf("Key length = %d, want 64", len(key))
	}
	if err := ValidateKey(key); err != nil {
		t.Errorf("fingerprint should be a valid cache key: %v", err)
	}
}

func TestKeyer_DistinctValues(t *testing.T) {
	keyer := NewDefaultKeyer()

	tests := []struct {
		name string
		a, b any
	}{
		{"nil vs empty map", nil, map[string]any{}},
		{"different recipient", map[string]any{"to": "a"}, map[string]any{"to": "b"}},
		{"extra field", map[string]any{"to": "a"}, map[string]any{"to": "a", "x": 1}},
		{"string vs number", map[string]any{"x": "1"}, map[string]any{"x": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ka, err := keyer.Key(tt.a)
			if err != nil {
				t.Fatalf("Key(a) error = %v", err)
			}
			kb, err := keyer.Key(tt.b)
			if err != nil {
				t.Fatalf("Key(b) error = %v", err)
			}
			if ka == kb {
				t.Errorf("Keys should differ, both %s", ka)
			}
		})
	}
}

func TestKeyer_StringMapMatchesAnyMap(t *testing.T) {
	keyer := NewDefaultKeyer()

	k1, _ := keyer.Key(map[string]string{"b": "2", "a": "1"})
	k2, _ := keyer.Key(map[string]any{"a": "1", "b": "2"})
	if k1 != k2 {
		t.Errorf("map[string]string and map[string]any with same content should match")
	}
}

func TestKeyer_UnsupportedValue(t *testing.T) {
	keyer := NewDefaultKeyer()

	_, err := keyer.Key(map[string]any{"ch": make(chan int)})
	if err == nil {
		t.Error("Key() should fail for values JSON cannot encode")
	}
}
