package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Video ")
	require.NoError(t, err)
	require.Equal(t, CategoryVideo, c)

	_, err = ParseCategory("audio")
	require.Error(t, err)
	require.False(t, Category("").Valid())
}

func TestOriginTokenBeforeCreateAssignsID(t *testing.T) {
	token := &OriginToken{Token: "secret"}
	require.NoError(t, token.BeforeCreate(nil))
	require.Len(t, token.ID, 36)

	token = &OriginToken{ID: "fixed"}
	require.NoError(t, token.BeforeCreate(nil))
	require.Equal(t, "fixed", token.ID)
}

func TestCacheEntryOptionalValues(t *testing.T) {
	entry := CacheEntry{Validator: OptionalString("abc"), ContentType: OptionalString("")}
	require.Equal(t, "abc", entry.ValidatorValue())
	require.Nil(t, entry.ContentType)
	require.Empty(t, entry.ContentTypeValue())
}
