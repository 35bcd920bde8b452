package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRoster() Roster {
	return Roster{
		Title:    "Launch",
		Subtitle: "2 attendees",
		Columns: []Column{
			{Key: "name", Title: "Name", Weight: 2},
			{Key: "status", Title: "Status"},
		},
		Rows: []map[string]string{
			{"name": "Ada, Countess", "status": "checked_in"},
			{"name": "Grace", "status": "pending"},
		},
		GeneratedAt: time.Date(2025, 12, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestRenderCSV(t *testing.T) {
	out, err := Render(FormatCSV, sampleRoster())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "roster_csv", out)
}

func TestRenderPDF(t *testing.T) {
	out, err := Render(FormatPDF, sampleRoster())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRejectsBadInput(t *testing.T) {
	_, err := Render(FormatCSV, Roster{})
	assert.Error(t, err)
	_, err = Render(Format("xlsx"), sampleRoster())
	assert.Error(t, err)
}

func TestColumnWidthsUseWeights(t *testing.T) {
	widths := columnWidths([]Column{{Weight: 3}, {}})
	assert.InDelta(t, 142.5, widths[0], 0.001)
	assert.InDelta(t, 47.5, widths[1], 0.001)
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}
