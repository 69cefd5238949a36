package entity

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/hbnb/storage"
)

func TestRegistry_CoversEveryKind(t *testing.T) {
	reg := Registry()
	if diff := cmp.Diff(slices.Sorted(slices.Values(Kinds)), reg.Kinds()); diff != "" {
		t.Fatalf("registry and Kinds disagree (-Kinds +registry):\n%s", diff)
	}
	for _, kind := range Kinds {
		if _, ok := constructors[kind]; !ok {
			t.Errorf("no constructor for kind %s", kind)
		}
		m, err := Create(kind, nil)
		if err != nil {
			t.Fatalf("Create(%s): %v", kind, err)
		}
		if m.Kind() != kind {
			t.Errorf("Create(%s).Kind() = %s", kind, m.Kind())
		}
	}
}

func TestRegistry_FactoryRebuildsKind(t *testing.T) {
	m := New(nil)
	factory, err := Registry().Lookup(KindBaseModel)
	if err != nil {
		t.Fatal(err)
	}
	obj, err := factory(nil, m.ToRecord())
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, ok := obj.(*BaseModel); !ok {
		t.Fatalf("factory returned %T, want *BaseModel", obj)
	}
}

func TestRegistry_FactoryErrorIsNilObject(t *testing.T) {
	factory, _ := Registry().Lookup(KindBaseModel)
	obj, err := factory(nil, storage.Record{})
	if err == nil {
		t.Fatal("expected error for empty record")
	}
	if obj != nil {
		t.Fatalf("factory returned non-nil object %#v with error", obj)
	}
}

func TestCreate_UnknownKind(t *testing.T) {
	if _, err := Create("Ghost", nil); !errors.Is(err, storage.ErrUnknownKind) {
		t.Fatalf("Create(Ghost) = %v, want ErrUnknownKind", err)
	}
}
