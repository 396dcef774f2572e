package domain_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/domain"
)

func fieldNames(t *testing.T, err error) []string {
	t.Helper()
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	names := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestValidateMeta_Valid(t *testing.T) {
	meta := &domain.DocumentMeta{TenantID: uuid.New(), Title: "  FY24 return  ", Tags: []string{"tax"}}
	require.NoError(t, domain.ValidateMeta(meta))
	assert.Equal(t, "FY24 return", meta.Title)
}

func TestValidateMeta_MissingFields(t *testing.T) {
	err := domain.ValidateMeta(&domain.DocumentMeta{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ElementsMatch(t, []string{"firm_id", "title"}, fieldNames(t, err))
}

func TestValidateMeta_Nil(t *testing.T) {
	err := domain.ValidateMeta(nil)
	assert.Equal(t, []string{"meta"}, fieldNames(t, err))
}

func TestValidateMeta_TooLong(t *testing.T) {
	err := domain.ValidateMeta(&domain.DocumentMeta{TenantID: uuid.New(), Title: strings.Repeat("x", 256)})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Fields, 1)
	assert.Equal(t, "title", ve.Fields[0].Field)
	assert.Equal(t, "must be at most 255", ve.Fields[0].Message)
}

func TestValidateFileRef(t *testing.T) {
	valid := &domain.FileRef{StorageKey: "k", MimeType: "application/pdf", Size: 10, Hash: "abc"}
	require.NoError(t, domain.ValidateFileRef(valid))

	err := domain.ValidateFileRef(&domain.FileRef{})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ElementsMatch(t,
		[]string{"file.storage_key", "file.mime_type", "file.size", "file.content_hash"},
		fieldNames(t, err))

	assert.Equal(t, []string{"file"}, fieldNames(t, domain.ValidateFileRef(nil)))
}

func TestValidateChangeNotes(t *testing.T) {
	assert.NoError(t, domain.ValidateChangeNotes("fixed totals"))
	assert.ErrorIs(t, domain.ValidateChangeNotes(" \t\n"), domain.ErrValidation)
}
