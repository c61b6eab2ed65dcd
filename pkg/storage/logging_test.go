package storage

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.DebugLevel)
	return log
}

func TestWithLoggingRecordsCalls(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	b := WithLogging(NewMemory(), log)
	ctx := context.Background()

	if err := b.WriteFile(ctx, "HEAD", []byte("ref: refs/heads/main\n")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := b.ReadFile(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("ReadFile(missing) err = %v, want not found", err)
	}

	entries := hook.AllEntries()
	if len(entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(entries))
	}
	if entries[0].Data["op"] != "write" || entries[0].Data["path"] != "HEAD" {
		t.Fatalf("unexpected write entry fields: %v", entries[0].Data)
	}
	if entries[0].Data["bytes"] != 21 {
		t.Fatalf("bytes = %v, want 21", entries[0].Data["bytes"])
	}
	if entries[1].Level != logrus.DebugLevel {
		t.Fatalf("not-found read logged at %s, want debug", entries[1].Level)
	}
}

func TestWithLoggingWarnsOnFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	b := WithLogging(NewMemory(), log)

	if err := b.WriteFile(context.Background(), "../escape", []byte("x")); err == nil {
		t.Fatal("expected error for escaping path")
	}
	last := hook.LastEntry()
	if last == nil {
		t.Fatal("expected a log entry")
	}
	if last.Level != logrus.WarnLevel {
		t.Fatalf("level = %s, want warning", last.Level)
	}
	if _, ok := last.Data[logrus.ErrorKey]; !ok {
		t.Fatalf("warning entry missing error field: %v", last.Data)
	}
}

func TestWithLoggingNilLogger(t *testing.T) {
	mem := NewMemory()
	if got := WithLogging(mem, nil); got != Backend(mem) {
		t.Fatal("WithLogging(nil) should return the backend unchanged")
	}
}
