// Package models tests for data model definitions.
package models

import (
	"testing"
	"time"
)

func TestUUID_Value(t *testing.T) {
	id := UUID("123e4567-e89b-12d3-a456-426614174000")

	val, err := id.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if val != "123e4567-e89b-12d3-a456-426614174000" {
		t.Errorf("Value() = %v, want original string", val)
	}
}

func TestUUID_Scan_nil(t *testing.T) {
	var id UUID
	if err := id.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if id != "" {
		t.Errorf("Scan(nil) = %q, want empty string", id)
	}
}

func TestUUID_Scan_bytes(t *testing.T) {
	var id UUID
	if err := id.Scan([]byte("abc-123")); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if id != "abc-123" {
		t.Errorf("Scan() = %q, want abc-123", id)
	}
}

func TestMetadata_HasResource(t *testing.T) {
	m := &Metadata{}
	if m.HasResource() {
		t.Error("HasResource() = true for empty ResourceURI")
	}
	m.ResourceURI = "https://source.example.com/r1"
	if !m.HasResource() {
		t.Error("HasResource() = false for non-empty ResourceURI")
	}
}

func TestMetadata_AddTag_deduplicates(t *testing.T) {
	m := &Metadata{}
	m.AddTag("replicated")
	m.AddTag("replicated")
	if len(m.Tags) != 1 {
		t.Errorf("len(Tags) = %d, want 1", len(m.Tags))
	}
}

func TestMetadata_AppendLineage_preservesOrder(t *testing.T) {
	m := &Metadata{}
	m.AppendLineage("source-a")
	m.AppendLineage("source-b")

	want := []string{"source-a", "source-b"}
	if len(m.Lineage) != len(want) {
		t.Fatalf("len(Lineage) = %d, want %d", len(m.Lineage), len(want))
	}
	for i, v := range want {
		if m.Lineage[i] != v {
			t.Errorf("Lineage[%d] = %q, want %q", i, m.Lineage[i], v)
		}
	}
}

func TestFilterIndex_zeroValueIsEmpty(t *testing.T) {
	idx := FilterIndex{FilterID: "f1"}
	if !idx.ModifiedSince.IsZero() {
		t.Error("zero-value FilterIndex should have an empty ModifiedSince")
	}
}

func TestReplicationItem_startBeforeDone(t *testing.T) {
	start := time.Now()
	done := start.Add(time.Millisecond)
	item := ReplicationItem{StartTime: start, DoneTime: done}
	if item.DoneTime.Before(item.StartTime) {
		t.Error("DoneTime must not precede StartTime")
	}
}
