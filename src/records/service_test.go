package records

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/idsov/recordstore/src/chain"
	cm "github.com/idsov/recordstore/src/common"
	"github.com/idsov/recordstore/src/compress"
	"github.com/idsov/recordstore/src/links"
	"github.com/idsov/recordstore/src/record"
	"github.com/sirupsen/logrus"
)

// fakeNow returns a clock function that advances one second per call.
func fakeNow() func() time.Time {
	var (
		mu sync.Mutex
		t  = time.Unix(1600000000, 0)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(t *testing.T, author string, store chain.Store) *Service {
	return NewService(store, links.NewIndex(), Config{
		Author: author,
		Now:    fakeNow(),
		Logger: cm.NewTestLogger(t, logrus.DebugLevel).WithField("prefix", "records"),
	})
}

func sampleRecord() record.HealthRecord {
	return record.HealthRecord{
		FirstName:     "Jackson",
		FamilyName:    "Donald",
		Age:           20,
		Height:        180,
		Weight:        90,
		BloodType:     "O+",
		BloodPressure: 60,
	}
}

func decode(t *testing.T, e *chain.Entry, err error) record.HealthRecord {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
	var r record.HealthRecord
	if err := e.Decode(&r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestCreateAndReadOriginal(t *testing.T) {
	s := newTestService(t, "alice", chain.NewInmemStore(100))

	hash, err := s.CreateRecord(sampleRecord())
	if err != nil {
		t.Fatal(err)
	}

	e, err := s.ReadOriginal(hash)
	if got := decode(t, e, err); !reflect.DeepEqual(got, sampleRecord()) {
		t.Fatalf("expected %v, got %v", sampleRecord(), got)
	}
}

func TestListAllRecords(t *testing.T) {
	s := newTestService(t, "alice", chain.NewInmemStore(100))

	if l := s.ListAllRecords(); len(l) != 0 {
		t.Fatalf("expected 0 records, got %d", len(l))
	}

	hash, err := s.CreateRecord(sampleRecord())
	if err != nil {
		t.Fatal(err)
	}

	l := s.ListAllRecords()
	if len(l) != 1 || l[0] != hash {
		t.Fatalf("expected [%s], got %v", hash, l)
	}

	// no intervening writes
	if again := s.ListAllRecords(); !reflect.DeepEqual(l, again) {
		t.Fatalf("list should be stable: %v vs %v", l, again)
	}

	if _, err := s.DeleteRecord(hash); err != nil {
		t.Fatal(err)
	}

	if l := s.ListAllRecords(); len(l) != 0 {
		t.Fatalf("expected 0 records after delete, got %d", len(l))
	}
}

func TestUpdateRecord(t *testing.T) {
	s := newTestService(t, "alice", chain.NewInmemStore(100))

	p1 := sampleRecord()
	p2 := sampleRecord()
	p2.Weight = 85
	p3 := sampleRecord()
	p3.Weight = 80
	p3.Age = 21

	origin, err := s.CreateRecord(p1)
	if err != nil {
		t.Fatal(err)
	}

	u1, err := s.UpdateRecord(origin, origin, p2)
	if err != nil {
		t.Fatal(err)
	}

	u2, err := s.UpdateRecord(origin, u1, p3)
	if err != nil {
		t.Fatal(err)
	}

	e, err := s.ReadLatest(origin)
	if got := decode(t, e, err); !reflect.DeepEqual(got, p3) {
		t.Fatalf("latest: expected %v, got %v", p3, got)
	}

	e, err = s.ReadOriginal(u2)
	if got := decode(t, e, err); !reflect.DeepEqual(got, p1) {
		t.Fatalf("original: expected %v, got %v", p1, got)
	}

	revisions, err := s.GetAllRevisions(origin)
	if err != nil {
		t.Fatal(err)
	}
	if len(revisions) != 3 {
		t.Fatalf("expected 3 revisions, got %d", len(revisions))
	}
	for i, want := range []record.HealthRecord{p1, p2, p3} {
		if got := decode(t, revisions[i].Entry, nil); !reflect.DeepEqual(got, want) {
			t.Fatalf("revision %d: expected %v, got %v", i, want, got)
		}
	}

	latest, err := s.LatestAction(origin)
	if err != nil {
		t.Fatal(err)
	}
	if latest.Hex() != u2 {
		t.Fatalf("latest action should be the second update")
	}

	// updates do not touch membership
	if l := s.ListAllRecords(); len(l) != 1 || l[0] != origin {
		t.Fatalf("expected [%s], got %v", origin, l)
	}
}

func TestNSequentialUpdates(t *testing.T) {
	s := newTestService(t, "alice", chain.NewInmemStore(100))

	origin, err := s.CreateRecord(map[string]int{"n": 0})
	if err != nil {
		t.Fatal(err)
	}

	const n = 10
	prev := origin
	for i := 1; i <= n; i++ {
		if prev, err = s.UpdateRecord(origin, prev, map[string]int{"n": i}); err != nil {
			t.Fatal(err)
		}
	}

	revisions, err := s.GetAllRevisions(origin)
	if err != nil {
		t.Fatal(err)
	}
	if len(revisions) != n+1 {
		t.Fatalf("expected %d revisions, got %d", n+1, len(revisions))
	}

	for i, e := range revisions.Entries() {
		var m map[string]int
		if err := e.Decode(&m); err != nil {
			t.Fatal(err)
		}
		if m["n"] != i {
			t.Fatalf("revision %d holds %d", i, m["n"])
		}
	}
}

func TestDeletes(t *testing.T) {
	s := newTestService(t, "alice", chain.NewInmemStore(100))

	hash, err := s.CreateRecord(sampleRecord())
	if err != nil {
		t.Fatal(err)
	}

	d1, err := s.DeleteRecord(hash)
	if err != nil {
		t.Fatal(err)
	}

	deletes, err := s.GetAllDeletes(hash)
	if err != nil {
		t.Fatal(err)
	}
	if len(deletes) != 1 {
		t.Fatalf("expected 1 delete, got %d", len(deletes))
	}

	if _, err := s.DeleteRecord(hash); err != nil {
		t.Fatal(err)
	}

	deletes, err = s.GetAllDeletes(hash)
	if err != nil {
		t.Fatal(err)
	}
	if len(deletes) != 2 {
		t.Fatalf("expected 2 deletes, got %d", len(deletes))
	}

	oldest, err := s.GetOldestDelete(hash)
	if err != nil {
		t.Fatal(err)
	}
	if oldest.Hex() != d1 {
		t.Fatalf("oldest delete should be the first one")
	}

	// history stays readable
	e, err := s.ReadLatest(hash)
	if got := decode(t, e, err); !reflect.DeepEqual(got, sampleRecord()) {
		t.Fatalf("expected %v, got %v", sampleRecord(), got)
	}
}

func TestDeleteUpdateKeepsMembership(t *testing.T) {
	s := newTestService(t, "alice", chain.NewInmemStore(100))

	origin, _ := s.CreateRecord(sampleRecord())
	update, err := s.UpdateRecord(origin, origin, sampleRecord())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.DeleteRecord(update); err != nil {
		t.Fatal(err)
	}

	if l := s.ListAllRecords(); len(l) != 1 {
		t.Fatalf("deleting an update should not remove the record, got %v", l)
	}
}

func TestErrors(t *testing.T) {
	s := newTestService(t, "alice", chain.NewInmemStore(100))
	missing := chain.NewCreateAction("nobody", 1, "0XAB").Hex()

	_, err := s.ReadOriginal(missing)
	if !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	var opErr *OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected an OpError, got %T", err)
	}
	if opErr.Hash != missing || opErr.Op != "read original" {
		t.Fatalf("OpError should carry the operation and hash, got %+v", opErr)
	}

	if _, err := s.UpdateRecord(missing, missing, sampleRecord()); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	if _, err := s.DeleteRecord(missing); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	if _, err := s.CreateRecord(func() {}); !cm.IsStore(err, cm.Serialization) {
		t.Fatalf("expected Serialization, got %v", err)
	}

	hash, _ := s.CreateRecord(sampleRecord())
	if _, err := s.GetOldestDelete(hash); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	var wrong struct {
		FirstName int `codec:"first_name"`
	}
	e, _ := s.ReadOriginal(hash)
	if err := e.Decode(&wrong); !cm.IsStore(err, cm.Serialization) {
		t.Fatalf("expected Serialization, got %v", err)
	}
}

func TestTimestampsAreMonotonic(t *testing.T) {
	frozen := time.Unix(1600000000, 0)
	s := NewService(chain.NewInmemStore(100), nil, Config{
		Author: "alice",
		Now:    func() time.Time { return frozen },
		Logger: cm.NewTestEntry(t, "records"),
	})

	hash, _ := s.CreateRecord(sampleRecord())
	d1, _ := s.DeleteRecord(hash)
	d2, _ := s.DeleteRecord(hash)

	a1, _ := s.Store().GetAction(d1)
	a2, _ := s.Store().GetAction(d2)
	if a2.Timestamp() <= a1.Timestamp() {
		t.Fatalf("timestamps should increase with a frozen clock")
	}

	oldest, err := s.GetOldestDelete(hash)
	if err != nil {
		t.Fatal(err)
	}
	if oldest.Hex() != d1 {
		t.Fatalf("oldest delete should be the first one")
	}
}

func TestApplyRemote(t *testing.T) {
	alice := newTestService(t, "alice", chain.NewInmemStore(100))
	bob := newTestService(t, "bob", chain.NewInmemStore(100))

	origin, _ := alice.CreateRecord(sampleRecord())
	p2 := sampleRecord()
	p2.BloodPressure = 70
	update, _ := alice.UpdateRecord(origin, origin, p2)

	ship := func(hash string) error {
		a, err := alice.Store().GetAction(hash)
		if err != nil {
			t.Fatal(err)
		}
		var entries [][]byte
		if a.EntryHash() != "" {
			e, err := alice.Store().GetEntry(a.EntryHash())
			if err != nil {
				t.Fatal(err)
			}
			entries = append(entries, e.Bytes())
		}
		cp := &chain.Action{Body: a.Body}
		return bob.ApplyRemote(entries, cp)
	}

	// out of order: the update before its origin
	if err := ship(update); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
	if bob.Has(update) {
		t.Fatalf("rejected action should not be stored")
	}

	if err := ship(origin); err != nil {
		t.Fatal(err)
	}
	if err := ship(update); err != nil {
		t.Fatal(err)
	}
	// re-delivery
	if err := ship(update); err != nil {
		t.Fatalf("re-delivery should succeed, got %v", err)
	}

	e, err := bob.ReadLatest(origin)
	if got := decode(t, e, err); !reflect.DeepEqual(got, p2) {
		t.Fatalf("expected %v, got %v", p2, got)
	}

	if l := bob.ListAllRecords(); len(l) != 1 || l[0] != origin {
		t.Fatalf("remote create should be listed, got %v", l)
	}

	if bob.Store().ActionCount() != 2 {
		t.Fatalf("expected 2 actions, got %d", bob.Store().ActionCount())
	}
}

func TestRebuild(t *testing.T) {
	store := chain.NewInmemStore(100)
	s := newTestService(t, "alice", store)

	var hashes []string
	for i := 0; i < 3; i++ {
		h, err := s.CreateRecord(map[string]string{"name": fmt.Sprintf("r%d", i)})
		if err != nil {
			t.Fatal(err)
		}
		hashes = append(hashes, h)
	}
	if _, err := s.DeleteRecord(hashes[1]); err != nil {
		t.Fatal(err)
	}

	// a fresh service over the same store, as after a restart
	restarted := NewService(store, links.NewIndex(), Config{
		Author: "alice",
		Now:    func() time.Time { return time.Unix(0, 0) },
		Logger: cm.NewTestEntry(t, "records"),
	})

	if l := restarted.ListAllRecords(); len(l) != 0 {
		t.Fatalf("index should be empty before rebuild")
	}

	if err := restarted.Rebuild(); err != nil {
		t.Fatal(err)
	}

	expected := []string{hashes[0], hashes[2]}
	if l := restarted.ListAllRecords(); !reflect.DeepEqual(l, expected) {
		t.Fatalf("expected %v, got %v", expected, l)
	}

	// the clock resumes after the timestamps of the previous run
	h, err := restarted.CreateRecord(map[string]string{"name": "r3"})
	if err != nil {
		t.Fatal(err)
	}
	last, _ := store.GetAction(h)
	first, _ := store.GetAction(hashes[2])
	if last.Timestamp() <= first.Timestamp() {
		t.Fatalf("timestamps went backwards after restart")
	}
}

// forEachStore runs f against an InmemStore and a BadgerStore.
func forEachStore(t *testing.T, f func(t *testing.T, store chain.Store)) {
	t.Run("Inmem", func(t *testing.T) {
		f(t, chain.NewInmemStore(1000))
	})

	t.Run("Badger", func(t *testing.T) {
		logger := cm.NewTestLogger(t, logrus.WarnLevel).WithField("prefix", "badger")
		store, err := chain.NewBadgerStore(1000, filepath.Join(t.TempDir(), "badger"), compress.Zstd, logger)
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()
		f(t, store)
	})
}

func TestConcurrentWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, store chain.Store) {
		s := newTestService(t, "alice", store)

		shared, err := s.CreateRecord(map[string]int{"i": -1})
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				hash, err := s.CreateRecord(map[string]int{"i": i})
				if err != nil {
					t.Error(err)
					return
				}
				if _, err := s.UpdateRecord(hash, hash, map[string]int{"i": i + 100}); err != nil {
					t.Error(err)
					return
				}

				var got map[string]int
				e, err := s.ReadLatest(hash)
				if err == nil {
					err = e.Decode(&got)
				}
				if err != nil {
					t.Error(err)
					return
				}
				if got["i"] != i+100 {
					t.Errorf("record %d: expected %d, got %d", i, i+100, got["i"])
				}

				if revisions, err := s.GetAllRevisions(shared); err != nil || len(revisions) != 1 {
					t.Errorf("shared record: %d revisions, %v", len(revisions), err)
				}
				if _, err := s.GetRecordDetails(shared); err != nil {
					t.Error(err)
				}
				s.ListAllRecords()
			}(i)
		}
		wg.Wait()

		if l := s.ListAllRecords(); len(l) != 21 {
			t.Fatalf("expected 21 records, got %d", len(l))
		}
		if s.Store().ActionCount() != 41 {
			t.Fatalf("expected 41 actions, got %d", s.Store().ActionCount())
		}
	})
}
