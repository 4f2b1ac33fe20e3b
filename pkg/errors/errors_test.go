package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeInvalidInput, status: http.StatusBadRequest, publicMsg: "invalid input", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeAI, status: http.StatusBadGateway, publicMsg: MessageAIFailed, retryable: true},
		{code: CodeStorage, status: http.StatusBadGateway, publicMsg: "failed to save", retryable: true},
		{code: CodeDatabase, status: http.StatusInternalServerError, publicMsg: "failed to save", retryable: true},
		{code: CodeProcessing, status: http.StatusInternalServerError, publicMsg: "processing failed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
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
	base := New(CodeInvalidInput, "missing image")
	if base.Code() != CodeInvalidInput {
		t.Fatalf("expected invalid input code, got %s", base.Code())
	}
	if base.Message() != "missing image" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "image"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDatabase, cause, "insert products")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDatabase {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestPublicMessageHidesInternals(t *testing.T) {
	aiErr := Wrap(CodeAI, stdErrors.New("401 invalid api key"), "vision request failed")
	if got := aiErr.PublicMessage(); got != MessageAIFailed {
		t.Fatalf("expected fixed ai message, got %q", got)
	}

	dbErr := New(CodeDatabase, "pq: relation products does not exist")
	if got := dbErr.PublicMessage(); got != "failed to save" {
		t.Fatalf("expected generic save message, got %q", got)
	}

	inputErr := New(CodeInvalidInput, "query is required")
	if got := inputErr.PublicMessage(); got != "query is required" {
		t.Fatalf("expected own message for invalid input, got %q", got)
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeNotFound, "draft not found")
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestEnsureKeepsTypedErrors(t *testing.T) {
	typed := New(CodeStorage, "upload failed")
	if got := Ensure(typed, CodeInternal, "x"); got != typed {
		t.Fatalf("expected typed error to pass through")
	}
	got := Ensure(stdErrors.New("plain"), CodeDatabase, "save")
	if got.Code() != CodeDatabase {
		t.Fatalf("expected database code, got %s", got.Code())
	}
	if Ensure(nil, CodeInternal, "x") != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestRecoveredProducesProcessingError(t *testing.T) {
	got := Recovered("index out of range")
	if got.Code() != CodeProcessing {
		t.Fatalf("expected processing code, got %s", got.Code())
	}
	if got.Details() != nil {
		t.Fatalf("panic value must not leak into details")
	}
	cause := stdErrors.New("nil map")
	if !stdErrors.Is(Recovered(cause), cause) {
		t.Fatalf("expected recovered error cause preserved")
	}
}

func TestDumpCollectsChainAndRawSize(t *testing.T) {
	cause := stdErrors.New("unexpected token")
	err := Wrap(CodeProcessing, cause, "parse model output").
		WithDetails(map[string]any{"raw_content": "not json"})

	d := Dump(fmt.Errorf("extract: %w", err))
	if d.Code != CodeProcessing {
		t.Fatalf("expected processing code, got %s", d.Code)
	}
	if d.RawBytes != len("not json") {
		t.Fatalf("expected raw size %d, got %d", len("not json"), d.RawBytes)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if _, ok := d.Fields()["pg_code"]; ok {
		t.Fatalf("pg fields must be omitted without a postgres error")
	}
}

func TestDumpReadsPostgresErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23502", Message: "null value in column", TableName: "products"}
	d := Dump(Wrap(CodeDatabase, pgErr, "insert products"))
	if d.PGCode != "23502" || d.PGTable != "products" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if !d.Retryable {
		t.Fatalf("database errors are retryable")
	}
	if d.Fields()["pg_code"] != "23502" {
		t.Fatalf("expected pg_code in log fields")
	}

	if got := Dump(nil); got.TopMessage != "" {
		t.Fatalf("expected empty dump for nil error")
	}
}
