package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type listQuery struct {
	Category string `form:"category" validate:"media_category"`
	Page     int    `form:"page" validate:"gte=1"`
	PerPage  int    `form:"per_page" validate:"gte=1,lte=500"`
}

type settingsPatch struct {
	ImageMaxMB *float64 `json:"image_cache_max_size_mb" validate:"omitempty,gte=0"`
	Clearance  *string  `json:"cf_clearance" validate:"omitempty,max=4096"`
}

func TestValidateStructSuccess(t *testing.T) {
	require.NoError(t, ValidateStruct(listQuery{Category: "video", Page: 1, PerPage: 50}))
	require.NoError(t, ValidateStruct(listQuery{Page: 3, PerPage: 1}))
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(listQuery{Category: "audio", Page: 0, PerPage: 1000})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, "media_category", fields["category"])
	require.Equal(t, "gte", fields["page"])
	require.Equal(t, "lte", fields["per_page"])
	require.Contains(t, err.Error(), "per_page failed on lte=500")
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	negative := -1.0
	err := ValidateStruct(settingsPatch{ImageMaxMB: &negative})
	require.Error(t, err)

	vErrs := err.(ValidationErrors)
	require.Equal(t, "image_cache_max_size_mb", vErrs[0].Field)
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("origin_host", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "assets.example.com"
	})
	require.NoError(t, err)

	type custom struct {
		Value string `validate:"origin_host"`
	}

	require.NoError(t, ValidateStruct(custom{Value: "assets.example.com"}))
	require.Error(t, ValidateStruct(custom{Value: "other"}))
}
