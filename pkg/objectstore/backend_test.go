// Copyright (c) 2025 Aiven Ltd
// See LICENSE for details

package objectstore

import (
	"testing"

	"github.com/aiven/astacus/pkg/errors"
)

func TestNotFoundUsesNotFoundCode(t *testing.T) {
	err := NotFound("blob", "missing-hex")
	se, ok := err.(*errors.StructuredError)
	if !ok {
		t.Fatalf("expected *errors.StructuredError, got %T", err)
	}
	if se.Code != errors.ErrCodeNotFound {
		t.Fatalf("want ErrCodeNotFound, got %s", se.Code)
	}
}
