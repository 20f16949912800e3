package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-admin/internal/domain/coupon"
)

func TestParseCatalog_SeedFile(t *testing.T) {
	data, err := os.ReadFile("../../db/seed/catalog.json")
	require.NoError(t, err)

	cat, err := parseCatalog(data)
	require.NoError(t, err)

	assert.Len(t, cat.Products, 6)
	assert.Len(t, cat.Units, 3)
	require.Len(t, cat.Coupons, 4)
	assert.Equal(t, "WELCOME10", cat.Coupons[0].Code)
	assert.Equal(t, coupon.TypePercent, cat.Coupons[0].Type)
	assert.Nil(t, cat.Coupons[0].ExpiresAt)
	assert.NotNil(t, cat.Coupons[2].ExpiresAt)
	assert.Equal(t, "0.5", cat.Coupons[3].Amount.String())

	berries := cat.Products[5]
	require.NotNil(t, berries.Custom)
	assert.Equal(t, "bag", berries.Custom.Label)
	assert.Equal(t, "5.75", berries.Price.StringFixed(2))
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "malformed",
			input:   `{"products": [`,
			wantErr: "decode catalog",
		},
		{
			name:    "unknown category",
			input:   `{"types":["T"],"vendors":["V"],"units":[{"label":"kg","name":"Kilogram"}],"products":[{"name":"A","category":"Nope","type":"T","vendor":"V","unit":"kg","price":"1","quantity":1}]}`,
			wantErr: `unknown category "Nope"`,
		},
		{
			name:    "unknown unit",
			input:   `{"categories":["C"],"types":["T"],"vendors":["V"],"products":[{"name":"A","category":"C","type":"T","vendor":"V","unit":"kg","price":"1","quantity":1}]}`,
			wantErr: `unknown unit "kg"`,
		},
		{
			name:    "bad price",
			input:   `{"products":[{"name":"A","price":"cheap"}]}`,
			wantErr: "field price",
		},
		{
			name:    "unknown coupon type",
			input:   `{"coupons":[{"code":"X","type":"bogo","amount":"1"}]}`,
			wantErr: `unknown type "bogo"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCatalog([]byte(tt.input))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
