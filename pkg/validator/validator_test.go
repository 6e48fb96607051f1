package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomRules(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	type subject struct {
		Phone string `validate:"omitempty,phone"`
		Zone  string `validate:"omitempty,timezone_name"`
	}

	tests := []struct {
		name  string
		in    subject
		valid bool
	}{
		{"empty is allowed", subject{}, true},
		{"e164 phone", subject{Phone: "+15550001111"}, true},
		{"bare digits", subject{Phone: "5550001111"}, true},
		{"too short", subject{Phone: "+1555"}, false},
		{"letters", subject{Phone: "+1555CALLNOW"}, false},
		{"iana zone", subject{Zone: "America/New_York"}, true},
		{"bogus zone", subject{Zone: "Mars/Olympus_Mons"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
