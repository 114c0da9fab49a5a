package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "snapshot not found")
		if err.Error() != "[NOT_FOUND] snapshot not found" {
			t.Errorf("expected [NOT_FOUND] snapshot not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("permission denied")
		err := Wrap(original, CodeIO, "read source file")
		expected := "[IO_ERROR] read source file: permission denied"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("WrapPathSortsContext", func(t *testing.T) {
		err := WrapPath(errors.New("boom"), CodeParse, "parse failed", "src/lib.rs")
		err = AddContext(err, CtxCrate, "demo")
		expected := "[PARSE_ERROR] parse failed: boom (crate=demo path=src/lib.rs)"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid glob")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("scan: %w", New(CodeManifest, "bad Cargo.toml"))
		if !IsCode(err, CodeManifest) {
			t.Error("expected IsCode to see through fmt.Errorf wrapping")
		}
		if CodeOf(errors.New("plain")) != "" {
			t.Error("expected empty code for plain error")
		}
	})

	t.Run("AddContextPromotesPlainError", func(t *testing.T) {
		err := AddContext(errors.New("plain"), CtxOperation, "merge")
		if !IsCode(err, CodeInternal) {
			t.Fatalf("expected CodeInternal, got %v", err)
		}
	})
}
