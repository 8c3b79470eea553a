package links

import (
	"reflect"
	"testing"

	"github.com/idsov/recordstore/src/chain"
	"github.com/idsov/recordstore/src/common"
)

func TestIndex(t *testing.T) {
	idx := NewIndex()
	anchor := Anchor("all_health_records")

	if l := idx.List(anchor); len(l) != 0 {
		t.Fatalf("empty anchor should list nothing, got %v", l)
	}

	idx.Add(anchor, "a")
	idx.Add(anchor, "b")
	idx.Add(anchor, "c")
	if idx.Add(anchor, "b") {
		t.Fatalf("adding twice should be a no-op")
	}

	if l := idx.List(anchor); !reflect.DeepEqual(l, []string{"a", "b", "c"}) {
		t.Fatalf("expected insertion order, got %v", l)
	}

	idx.Remove(anchor, "b")
	if idx.Remove(anchor, "b") {
		t.Fatalf("removing a missing target should be a no-op")
	}

	if l := idx.List(anchor); !reflect.DeepEqual(l, []string{"a", "c"}) {
		t.Fatalf("expected [a c], got %v", l)
	}

	idx.Add(anchor, "b")
	if l := idx.List(anchor); !reflect.DeepEqual(l, []string{"a", "c", "b"}) {
		t.Fatalf("expected [a c b], got %v", l)
	}

	if !idx.Contains(anchor, "c") || idx.Contains(anchor, "z") {
		t.Fatalf("Contains is wrong")
	}

	other := Anchor("other")
	if other == anchor {
		t.Fatalf("anchors of different paths should differ")
	}
	if len(idx.List(other)) != 0 {
		t.Fatalf("anchors should be independent")
	}
}

func TestRebuild(t *testing.T) {
	store := chain.NewInmemStore(10)
	log := chain.NewLog(store, common.NewTestEntry(t, "chain"))
	content := chain.NewContentStore(store)

	insert := func(a *chain.Action) *chain.Action {
		res, err := log.Insert(a)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	put := func(s string) string {
		h, err := content.Put([]byte(s))
		if err != nil {
			t.Fatal(err)
		}
		return h
	}

	r1 := insert(chain.NewCreateAction("A", 1, put("one")))
	r2 := insert(chain.NewCreateAction("A", 2, put("two")))
	u := insert(chain.NewUpdateAction("A", 3, put("two bis"), r2.Hex(), r2.Hex()))
	insert(chain.NewDeleteAction("A", 4, u.Hex()))
	insert(chain.NewDeleteAction("A", 5, r1.Hex()))
	r3 := insert(chain.NewCreateAction("A", 6, put("three")))

	anchor := Anchor("all_health_records")
	idx := NewIndex()
	idx.Add(anchor, "stale")

	if err := idx.Rebuild(anchor, store); err != nil {
		t.Fatal(err)
	}

	expected := []string{r2.Hex(), r3.Hex()}
	if l := idx.List(anchor); !reflect.DeepEqual(l, expected) {
		t.Fatalf("expected %v, got %v", expected, l)
	}
}
