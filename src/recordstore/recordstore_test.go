package recordstore

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/idsov/recordstore/src/config"
	"github.com/idsov/recordstore/src/crypto/keys"
	"github.com/idsov/recordstore/src/record"
	"github.com/sirupsen/logrus"
)

func newTestConfig(t *testing.T, store bool) *config.Config {
	conf := config.NewTestConfig(t, logrus.WarnLevel)
	conf.SetDataDir(t.TempDir())
	conf.DatabaseDir = filepath.Join(conf.DataDir, config.DefaultBadgerFile)
	conf.Store = store
	conf.NoService = true
	return conf
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

func TestInitKey(t *testing.T) {
	conf := newTestConfig(t, false)

	rs := NewRecordStore(conf)
	if err := rs.Init(); err != nil {
		t.Fatal(err)
	}
	defer rs.Shutdown()

	if _, err := os.Stat(conf.Keyfile()); err != nil {
		t.Fatalf("a key should have been written to %s: %v", conf.Keyfile(), err)
	}

	author := keys.PublicKeyHex(&conf.Key.PublicKey)
	if rs.Records.Author() != author {
		t.Fatalf("author should be %s, not %s", author, rs.Records.Author())
	}

	// a second node in the same datadir reads the same key
	conf2 := newTestConfig(t, false)
	conf2.SetDataDir(conf.DataDir)

	rs2 := NewRecordStore(conf2)
	if err := rs2.Init(); err != nil {
		t.Fatal(err)
	}
	defer rs2.Shutdown()

	if rs2.Records.Author() != author {
		t.Fatalf("second node should reuse key %s, not %s", author, rs2.Records.Author())
	}
}

func TestInitStoreReload(t *testing.T) {
	conf := newTestConfig(t, true)

	rs := NewRecordStore(conf)
	if err := rs.Init(); err != nil {
		t.Fatal(err)
	}

	hash, err := rs.Records.CreateRecord(sampleRecord())
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := rs.Records.CreateRecord(record.HealthRecord{FirstName: "Jane"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rs.Records.DeleteRecord(deleted); err != nil {
		t.Fatal(err)
	}

	rs.Shutdown()

	conf2 := newTestConfig(t, true)
	conf2.SetDataDir(conf.DataDir)
	conf2.DatabaseDir = conf.DatabaseDir

	rs2 := NewRecordStore(conf2)
	if err := rs2.Init(); err != nil {
		t.Fatal(err)
	}
	defer rs2.Shutdown()

	if l := rs2.Records.ListAllRecords(); !reflect.DeepEqual(l, []string{hash}) {
		t.Fatalf("reloaded list should be [%s], not %v", hash, l)
	}

	entry, err := rs2.Records.ReadLatest(hash)
	if err != nil {
		t.Fatal(err)
	}
	var r record.HealthRecord
	if err := entry.Decode(&r); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r, sampleRecord()) {
		t.Fatalf("reloaded record should be %v, not %v", sampleRecord(), r)
	}
}

func TestInitBadCompression(t *testing.T) {
	conf := newTestConfig(t, true)
	conf.Compression = "brotli"

	rs := NewRecordStore(conf)
	if err := rs.Init(); err == nil {
		t.Fatalf("Init should fail with an unknown compression")
	}
}

func TestRunShutdown(t *testing.T) {
	conf := newTestConfig(t, true)
	conf.NoService = false
	conf.ServiceAddr = "127.0.0.1:0"

	rs := NewRecordStore(conf)
	if err := rs.Init(); err != nil {
		t.Fatal(err)
	}

	if rs.Service == nil {
		t.Fatalf("HTTP service should be initialized")
	}

	errc := make(chan error, 1)
	go func() {
		errc <- rs.Run(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)
	rs.Shutdown()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Run should return nil after Shutdown, not %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Run did not return after Shutdown")
	}

	if err := rs.Run(context.Background()); err == nil {
		t.Fatalf("Run should fail after Shutdown")
	}
}
