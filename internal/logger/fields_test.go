package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  platform  ", Value: "  headhunter  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "platform" || fields[0].String != "headhunter" {
		t.Fatalf("unexpected field: %+v", fields[0])
	}

	if empty := StringFields(); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithFields(zap.New(core), zap.String("foo", "bar")).Info("test log")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["foo"] != "bar" {
		t.Fatalf("expected field foo=bar, got %v", entries[0].ContextMap())
	}

	fallback := WithFields(nil, zap.String("baz", "qux"))
	if fallback == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}
	fallback.Info("another log")
}

func TestCandidateFields(t *testing.T) {
	fields := CandidateFields("headhunter", "42", "")
	if len(fields) != 2 {
		t.Fatalf("expected company to be omitted, got %d fields", len(fields))
	}
	if fields[0].Key != FieldPlatform || fields[1].Key != FieldCandidate {
		t.Fatalf("unexpected keys: %s, %s", fields[0].Key, fields[1].Key)
	}
}

func TestForPlatform(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	ForPlatform(zap.New(core), "dice").Info("selected")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldPlatform] != "dice" {
		t.Fatalf("expected platform field, got %v", ctx)
	}
}

func TestAIFields(t *testing.T) {
	fields := AIFields("gemini", "gemini-2.5-pro")
	if len(fields) != 2 || fields[0].Key != FieldProvider || fields[1].Key != FieldModel {
		t.Fatalf("unexpected ai fields: %+v", fields)
	}
}
