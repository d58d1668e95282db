package main

import (
	"testing"
	"time"
)

func TestDateRange(t *testing.T) {
	now := time.Date(2025, 8, 1, 22, 0, 0, 0, time.UTC)
	got, err := dateRange("", 3, now)
	if err != nil || len(got) != 3 || got[2].Format("2006-01-02") != "2025-08-03" {
		t.Fatalf("unexpected: %v %v", got, err)
	}
	if _, err := dateRange("2025-13-01", 1, now); err == nil {
		t.Fatalf("expected error for bad date")
	}
	if _, err := dateRange("", 0, now); err == nil {
		t.Fatalf("expected error for zero days")
	}
}

func TestPickRegions(t *testing.T) {
	all, err := pickRegions("")
	if err != nil || len(all) == 0 {
		t.Fatalf("expected the full table: %v", err)
	}
	some, err := pickRegions("nobeyama, bisei")
	if err != nil || len(some) != 2 {
		t.Fatalf("unexpected: %v %v", some, err)
	}
	if _, err := pickRegions("nobeyama,atlantis"); err == nil {
		t.Fatalf("expected error for unknown region")
	}
}
