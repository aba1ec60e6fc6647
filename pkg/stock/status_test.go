package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStatus(t *testing.T) {
	tests := []struct {
		name    string
		qty     int
		min     int
		reorder int
		want    Status
	}{
		{"three of five", 3, 5, 10, StatusCritical},
		{"seven of five", 7, 5, 10, StatusLow},
		{"twelve of five", 12, 5, 10, StatusInStock},
		{"at minimum", 5, 5, 10, StatusCritical},
		{"below minimum", 0, 5, 10, StatusCritical},
		{"between thresholds", 8, 5, 10, StatusLow},
		{"at reorder point", 10, 5, 10, StatusLow},
		{"above reorder point", 11, 5, 10, StatusInStock},
		{"reorder below minimum", 3, 5, 2, StatusCritical},
		{"zero thresholds", 1, 0, 0, StatusInStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetStatus(tt.qty, tt.min, tt.reorder))
		})
	}
}

func TestEffectiveReorderPoint(t *testing.T) {
	assert.Equal(t, 10, EffectiveReorderPoint(5, nil))

	explicit := 7
	assert.Equal(t, 7, EffectiveReorderPoint(5, &explicit))

	zero := 0
	assert.Equal(t, 0, EffectiveReorderPoint(5, &zero))
}
