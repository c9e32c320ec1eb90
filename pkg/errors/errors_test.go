package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		shown     bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, shown: true, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, shown: true},
		{code: CodeForbidden, status: http.StatusForbidden, shown: true},
		{code: CodeNotFound, status: http.StatusNotFound, shown: true},
		{code: CodeConflict, status: http.StatusConflict, shown: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, shown: true},
		{code: CodeCorruptData, status: http.StatusInternalServerError},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s has no public message", tt.code)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.ShowMessage != tt.shown {
			t.Fatalf("code %s expected message shown %v got %v", tt.code, tt.shown, meta.ShowMessage)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "name is required")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "name is required" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detailed := base.WithDetails(map[string]any{"field": "name"})
	if detailed.Details() == nil {
		t.Fatalf("details should be preserved")
	}
	if base.Details() != nil {
		t.Fatalf("WithDetails must not change the receiver")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "write cart")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Error() != "DEPENDENCY_ERROR: write cart: boom" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
}

func TestAsAndIsCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "product 7 not found"))
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeNotFound) {
		t.Fatalf("expected IsCode to match")
	}
	if IsCode(stdErrors.New("plain"), CodeNotFound) {
		t.Fatalf("plain errors carry no code")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Constraint: "kv_entries_pkey", Table: "kv_entries", Message: "duplicate key value"}
	err := Wrap(CodeConflict, pqErr, "set key")

	dump := Dump(err)
	if dump.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", dump.Code)
	}
	if dump.SQL == nil || dump.SQL.Driver != "pq" || dump.SQL.Code != "23505" || dump.SQL.Constraint != "kv_entries_pkey" {
		t.Fatalf("unexpected sql detail %+v", dump.SQL)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", dump.Chain)
	}
	fields := dump.Fields()
	if fields["sql_code"] != "23505" || fields["sql_table"] != "kv_entries" {
		t.Fatalf("unexpected log fields %v", fields)
	}
}

func TestDumpRecognisesSQLiteErrors(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("UNIQUE constraint failed: kv_entries.entry_key"), "set key")
	dump := Dump(err)
	if dump.SQL == nil || dump.SQL.Driver != "sqlite" {
		t.Fatalf("expected sqlite detail, got %+v", dump.SQL)
	}
	if Dump(New(CodeNotFound, "missing")).SQL != nil {
		t.Fatalf("plain typed errors carry no sql detail")
	}
	if _, ok := Dump(New(CodeNotFound, "missing")).Fields()["sql_driver"]; ok {
		t.Fatalf("no sql fields expected")
	}
}

func TestIsCodeWalksNestedTypedErrors(t *testing.T) {
	inner := New(CodeCorruptData, "bad blob")
	outer := Wrap(CodeDependency, inner, "load catalog")
	if !IsCode(outer, CodeDependency) || !IsCode(outer, CodeCorruptData) {
		t.Fatalf("expected both codes in the chain")
	}
	if IsCode(outer, CodeNotFound) {
		t.Fatalf("unexpected code match")
	}
	if !stdErrors.Is(outer, New(CodeCorruptData, "")) {
		t.Fatalf("errors.Is should match by code")
	}
}
