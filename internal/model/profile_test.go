package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserProfileMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		profile UserProfile
		want    []string
	}{
		{
			name: "complete profile",
			profile: UserProfile{
				FullName:    "Dana Levi",
				PhoneNumber: "0501234567",
				NationalID:  "123456789",
				DateOfBirth: "1990-04-12",
				Gender:      "female",
			},
			want: nil,
		},
		{
			name: "complete profile with hebrew values",
			profile: UserProfile{
				FullName:    "א",
				PhoneNumber: "050",
				NationalID:  "1",
				DateOfBirth: "1990-01-01",
				Gender:      "נקבה",
			},
			want: nil,
		},
		{
			name:    "empty profile",
			profile: UserProfile{},
			want:    []string{"full_name", "phone_number", "national_id", "date_of_birth", "gender"},
		},
		{
			name: "optional fields do not count",
			profile: UserProfile{
				FullName:    "Dana Levi",
				PhoneNumber: "0501234567",
				NationalID:  "123456789",
				DateOfBirth: "1990-04-12",
				Gender:      "female",
				Email:       "",
				City:        "",
			},
			want: nil,
		},
		{
			name: "single missing field",
			profile: UserProfile{
				FullName:    "Dana Levi",
				PhoneNumber: "0501234567",
				NationalID:  "123456789",
				Gender:      "female",
			},
			want: []string{"date_of_birth"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.MissingFields())
			assert.Equal(t, len(tt.want) == 0, tt.profile.IsComplete())
		})
	}
}
