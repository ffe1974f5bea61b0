package candidate_test

import (
	"errors"
	"testing"
	"time"

	"certissuer/internal/candidate"
	"certissuer/internal/services"
)

func validRecord() candidate.Record {
	return candidate.Record{
		StudentID:   42,
		DisplayName: "Ana Torres",
		CourseID:    7,
		CourseName:  "Primeros Auxilios",
		Score:       18,
		AssessedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestValidateAcceptsPassingRecord(t *testing.T) {
	if err := validRecord().Validate(15); err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	cases := map[string]func(*candidate.Record){
		"student":   func(r *candidate.Record) { r.StudentID = 0 },
		"name":      func(r *candidate.Record) { r.DisplayName = "   " },
		"course":    func(r *candidate.Record) { r.CourseName = "" },
		"date":      func(r *candidate.Record) { r.AssessedAt = time.Time{} },
		"threshold": func(r *candidate.Record) { r.Score = 14.9 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rec := validRecord()
			mutate(&rec)
			err := rec.Validate(15)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrData) {
				t.Fatalf("expected data error, got %v", err)
			}
		})
	}
}

func TestNationalIDPlaceholder(t *testing.T) {
	rec := validRecord()
	if got := rec.NationalIDOrPlaceholder(); got != "12345678" {
		t.Fatalf("expected placeholder, got %q", got)
	}
	blank := "  "
	rec.NationalID = &blank
	if rec.HasNationalID() || rec.NationalIDOrPlaceholder() != candidate.PlaceholderNationalID {
		t.Fatal("expected blank national id to use placeholder")
	}
	id := "70123456"
	rec.NationalID = &id
	if got := rec.NationalIDOrPlaceholder(); got != id {
		t.Fatalf("expected %q, got %q", id, got)
	}
}

func TestExpiresAtAddsOneYear(t *testing.T) {
	got := validRecord().ExpiresAt().Format("02/01/2006")
	if got != "01/03/2025" {
		t.Fatalf("expected 01/03/2025, got %s", got)
	}
}

func TestVerificationURL(t *testing.T) {
	got, err := candidate.VerificationURL("https://example.org/verificar/?lang=es", "a b&c")
	if err != nil {
		t.Fatalf("VerificationURL: %v", err)
	}
	want := "https://example.org/verificar/?code=a+b%26c&lang=es"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if _, err := candidate.VerificationURL("/relative", "x"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for relative base, got %v", err)
	}
}

func TestParseKey(t *testing.T) {
	key, err := candidate.ParseKey(" 42:7 ")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if key.StudentID != 42 || key.CourseID != 7 {
		t.Fatalf("unexpected key %+v", key)
	}
	for _, bad := range []string{"42", "x:7", "42:", "0:7", "42:-1"} {
		if _, err := candidate.ParseKey(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
