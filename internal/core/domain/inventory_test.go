package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidProductID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "plain", id: "sku-123", want: true},
		{name: "with_colon", id: "apple:iphone-15", want: true},
		{name: "empty", id: "", want: false},
		{name: "blank", id: "   ", want: false},
		{name: "control_char", id: "sku\n1", want: false},
		{name: "max_length", id: strings.Repeat("a", MaxProductIDLength), want: true},
		{name: "too_long", id: strings.Repeat("a", MaxProductIDLength+1), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidProductID(tt.id))
		})
	}
}

func TestStrategyValid(t *testing.T) {
	assert.True(t, StrategyScript.Valid())
	assert.True(t, StrategyCAS.Valid())
	assert.False(t, Strategy("read-then-write").Valid())
	assert.False(t, Strategy("").Valid())
}
