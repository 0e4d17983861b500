package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeID(t *testing.T) {
	assert.True(t, SafeID("acc-123"))
	assert.True(t, SafeID("user_42.b"))
	assert.False(t, SafeID(""))
	assert.False(t, SafeID("acc;drop table"))
	assert.False(t, SafeID("a b"))
	assert.False(t, SafeID("a/b"))
}

func TestSanitizeStruct_TrimsStrings(t *testing.T) {
	req := CreateTokenRequest{
		UserID:    "  acc-1  ",
		UserEmail: " ada@example.com\n",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "acc-1", req.UserID)
	assert.Equal(t, "ada@example.com", req.UserEmail)
}

func TestSanitizeStruct_PointerFields(t *testing.T) {
	type form struct {
		Name *string
	}
	name := "  Ada  "
	f := form{Name: &name}
	SanitizeStruct(&f)

	assert.Equal(t, "Ada", *f.Name)
}

func TestSanitizeStruct_NonStructIgnored(t *testing.T) {
	s := "  untouched  "
	SanitizeStruct(&s)
	assert.Equal(t, "  untouched  ", s)

	SanitizeStruct(nil)
}
