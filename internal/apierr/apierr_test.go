package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, New(ProfileNotFound, "not found", nil, nil).HTTPStatus())
	assert.Equal(t, http.StatusUnprocessableEntity, New(ValidationError, "bad body", nil, nil).HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, New(ScraperUnavailable, "down", nil, nil).HTTPStatus())
}

func TestFromUnwrapsExistingError(t *testing.T) {
	original := New(CompanyNotFound, "no such company", errors.New("db: no rows"), nil)
	wrapped := fmt.Errorf("handler: %w", original)

	got := From(wrapped)
	assert.Equal(t, CompanyNotFound, got.Code)
}

func TestFromFallsBackToInternalError(t *testing.T) {
	got := From(errors.New("boom"))
	assert.Equal(t, InternalError, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus())
}

func TestFromNilIsNil(t *testing.T) {
	assert.Nil(t, From(nil))
}
