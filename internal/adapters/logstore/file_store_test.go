package logstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
)

func mustReport(t *testing.T, body string) *domain.Report {
	t.Helper()
	r, err := domain.NewReport([]byte(body))
	if err != nil {
		t.Fatalf("new report: %v", err)
	}
	return &r
}

func TestLoadEmptyFileIsEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	log, err := Load(path)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if log.Len() != 0 {
		t.Fatalf("expected empty log, got %d entries", log.Len())
	}

	if err := Persist(log, path); err != nil {
		t.Fatalf("persist empty: %v", err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != "[]" {
		t.Fatalf("expected empty log to persist as [], got %q", raw)
	}
	again, err := Load(path)
	if err != nil || again.Len() != 0 {
		t.Fatalf("expected idempotent empty round trip, got %v entries err=%v", again, err)
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"truncated":  `[{"timestamp":"2024-05-01T12:00:00Z","tpv":{"class":"TPV"`,
		"not_array":  `{"timestamp":"2024-05-01T12:00:00Z"}`,
		"null":       `null`,
		"wrong_slot": `[{"timestamp":"2024-05-01T12:00:00Z","tpv":{"class":"SKY"}}]`,
		"bad_class":  `[{"timestamp":"2024-05-01T12:00:00Z","gst":{"class":"WATCH"}}]`,
		"whitespace": "  \n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".json")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); !errors.Is(err, ErrCorruptLog) {
				t.Fatalf("expected ErrCorruptLog, got %v", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	log := domain.NewLog()
	log.Append(domain.Observation{
		Timestamp: ts,
		TPV:       mustReport(t, `{"class":"TPV","mode":3,"lat":60.1,"lon":24.9}`),
		SKY:       mustReport(t, `{"class":"SKY","nSat":7}`),
	})
	log.Append(domain.Observation{Timestamp: ts.Add(10 * time.Second)})
	log.Append(domain.Observation{
		Timestamp: ts.Add(20 * time.Second),
		Device:    mustReport(t, `{"class":"DEVICE","path":"/dev/ttyACM0"}`),
		PPS:       mustReport(t, `{"class":"PPS","real_sec":1714564820}`),
		GST:       mustReport(t, `{"class":"GST","rms":1.2}`),
	})

	if err := Persist(log, path); err != nil {
		t.Fatalf("persist: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := log.Entries()
	got := loaded.Entries()
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Fatalf("entry %d: timestamp %s != %s", i, got[i].Timestamp, want[i].Timestamp)
		}
		for _, k := range domain.AllKinds {
			w, g := want[i].Get(k), got[i].Get(k)
			if (w == nil) != (g == nil) {
				t.Fatalf("entry %d: slot %s presence mismatch", i, k)
			}
			if w != nil && (g.Kind != w.Kind || !bytes.Equal(g.Body, w.Body)) {
				t.Fatalf("entry %d: slot %s body %s != %s", i, k, g.Body, w.Body)
			}
		}
	}
}

func TestPersistLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.json")
	for i := 0; i < 3; i++ {
		log := domain.NewLog()
		for j := 0; j <= i; j++ {
			log.Append(domain.Observation{Timestamp: time.Unix(int64(j), 0).UTC()})
		}
		if err := Persist(log, path); err != nil {
			t.Fatalf("persist %d: %v", i, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "log.json" {
		t.Fatalf("expected only log.json in dir, got %v", entries)
	}
}

func TestPersistFailureKeepsPreviousContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.json")
	log := domain.NewLog(domain.Observation{Timestamp: time.Unix(1, 0).UTC()})
	if err := Persist(log, path); err != nil {
		t.Fatalf("persist: %v", err)
	}
	before, _ := os.ReadFile(path)

	// A directory in place of the target makes the rename fail.
	blocked := filepath.Join(dir, "blocked")
	if err := os.MkdirAll(filepath.Join(blocked, "child"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := Persist(log, blocked); err == nil {
		t.Fatalf("expected persist onto a non-empty directory to fail")
	}

	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Fatalf("unrelated log content changed")
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file %s left behind", e.Name())
		}
	}
}

func TestCreateSessionNamesAndRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 5, 1, 12, 30, 45, 0, time.UTC)

	store, err := CreateSession(dir, start)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if want := filepath.Join(dir, "2024-05-01T12-30-45_GPS_data.json"); store.Path() != want {
		t.Fatalf("expected path %s, got %s", want, store.Path())
	}
	raw, _ := os.ReadFile(store.Path())
	if string(raw) != "[]" {
		t.Fatalf("expected new session file to hold [], got %q", raw)
	}

	if _, err := CreateSession(dir, start); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected ErrExist on second create, got %v", err)
	}
}

func TestFileStoreAppendHistoryIsStable(t *testing.T) {
	store, err := CreateSession(t.TempDir(), time.Unix(0, 0))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	log, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var previous []byte
	for k := 1; k <= 4; k++ {
		log.Append(domain.Observation{
			Timestamp: time.Unix(int64(k*10), 0).UTC(),
			TPV:       mustReport(t, `{"class":"TPV","mode":2}`),
		})
		if err := store.Persist(log); err != nil {
			t.Fatalf("persist cycle %d: %v", k, err)
		}
		raw, err := os.ReadFile(store.Path())
		if err != nil {
			t.Fatalf("read cycle %d: %v", k, err)
		}
		reloaded, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode cycle %d: %v", k, err)
		}
		if reloaded.Len() != k {
			t.Fatalf("cycle %d: expected %d entries, got %d", k, k, reloaded.Len())
		}
		if previous != nil {
			// the earlier array minus its closing bracket must prefix the new one
			prefix := previous[:len(previous)-1]
			if !bytes.HasPrefix(raw, prefix) {
				t.Fatalf("cycle %d rewrote earlier history", k)
			}
		}
		previous = raw

		stats := store.Stats()
		if stats.Entries != k || stats.SizeBytes != int64(len(raw)) || stats.LastPersist.IsZero() {
			t.Fatalf("cycle %d: unexpected stats %+v", k, stats)
		}
	}
}

func TestOpenRejectsDirectory(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected opening a directory to fail")
	}
}

func TestNewSessionCreatesFileOnFirstLoad(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewSession(dir, start)

	if want := filepath.Join(dir, "2024-05-01T12-00-00_GPS_data.json"); store.Path() != want {
		t.Fatalf("expected path %s, got %s", want, store.Path())
	}
	if _, err := os.Stat(store.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no file before the first load, got %v", err)
	}

	log, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if log.Len() != 0 {
		t.Fatalf("expected empty log, got %d entries", log.Len())
	}
	raw, err := os.ReadFile(store.Path())
	if err != nil || string(raw) != "[]" {
		t.Fatalf("expected [] on disk, got %q (%v)", raw, err)
	}

	log.Append(domain.Observation{Timestamp: start})
	if err := store.Persist(log); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if again, err := store.Load(); err != nil || again.Len() != 1 {
		t.Fatalf("second load must read the file, not recreate it: %v", err)
	}

	if _, err := NewSession(dir, start).Load(); !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected a second session at the same instant to be refused, got %v", err)
	}
}
