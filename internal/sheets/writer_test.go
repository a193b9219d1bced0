package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisee/polisee/internal/model"
)

func TestPrepareRows(t *testing.T) {
	w := &Writer{}

	candidates := []model.RefundCandidate{
		{Description: "unused rider", Type: "rider", Amount: 120.50, Confidence: 0.9},
		{Description: "duplicate coverage", Type: "overlap", Amount: 75, Confidence: 0.42},
	}

	rows := w.prepareRows("harel-2024.pdf", candidates)
	require.Len(t, rows, 6) // title, spacer, header, 2 candidates, total

	assert.Equal(t, "Refund Results", rows[0][0])
	assert.Equal(t, "harel-2024.pdf", rows[0][1])
	assert.Equal(t, []any{"Description", "Type", "Amount", "Confidence"}, rows[2])

	assert.Equal(t, "unused rider", rows[3][0])
	assert.Equal(t, 120.50, rows[3][2])
	assert.Equal(t, "90%", rows[3][3])
	assert.Equal(t, "42%", rows[4][3])

	total := rows[5]
	assert.Equal(t, "Total", total[0])
	assert.Equal(t, 195.50, total[2])
}

func TestPrepareRowsEmpty(t *testing.T) {
	w := &Writer{}
	rows := w.prepareRows("policy.pdf", nil)
	require.Len(t, rows, 4)
	assert.Equal(t, 0.0, rows[3][2])
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "service account",
			cfg:     Config{ServiceAccountPath: "/tmp/sa.json", SpreadsheetName: "Refunds"},
			wantErr: false,
		},
		{
			name: "oauth credentials",
			cfg: Config{
				ClientID: "id", ClientSecret: "secret", RefreshToken: "tok",
				SpreadsheetID: "abc",
			},
			wantErr: false,
		},
		{
			name:    "no auth",
			cfg:     Config{SpreadsheetName: "Refunds"},
			wantErr: true,
		},
		{
			name:    "no spreadsheet target",
			cfg:     Config{ServiceAccountPath: "/tmp/sa.json"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
