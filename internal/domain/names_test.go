package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		want string
		kind AccountKind
	}{
		{"tax", "Server (tax)", KindTax},
		{"town-New_Haven", "New Haven", KindTown},
		{"nation-Grand_Old_Union", "Grand Old Union", KindNation},
		{"Steve_01", "Steve_01", KindPlayer},
		{"taxman", "taxman", KindPlayer},
		{"my-town-x", "my-town-x", KindPlayer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.name))
			assert.Equal(t, tt.kind, ClassifyName(tt.name))
		})
	}
}
