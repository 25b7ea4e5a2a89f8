package patient

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/amsmonitor/internal/domain/therapy"
)

func TestRenalAlert(t *testing.T) {
	tests := []struct {
		egfr string
		want bool
	}{
		{"29.9", true},
		{" 12 ", true},
		{"30", false},
		{"65", false},
		{"", false},
		{"pending", false},
		{"25 mL/min", true},
		{"45 mL/min/1.73m2", false},
		{"<15", true},
		{">90 mL/min", false},
		{"12.5.3", true},
		{".", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, renalAlert(tt.egfr), tt.egfr)
	}
}

func TestRecordTransfer(t *testing.T) {
	r := sampleRecord(t, "Dina", time.Now())
	at := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)

	_, err := r.Transfer(TransferInput{Ward: "ICU", Bed: "2"})
	var ve *therapy.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "at", ve.Field)

	entry, err := r.Transfer(TransferInput{Ward: " ICU ", Bed: "2", At: at})
	require.NoError(t, err)
	assert.Equal(t, "Medical Ward 3", entry.FromWard)
	assert.Equal(t, "1", entry.FromBed)
	assert.Equal(t, "ICU", entry.ToWard)
	assert.Equal(t, "ICU", r.Ward)
	assert.Equal(t, "2", r.Bed)
}

func TestRecordPatch(t *testing.T) {
	r := sampleRecord(t, "Dina", time.Now())

	p, err := r.Patch(FieldWard, FieldEpisodes)
	require.NoError(t, err)
	assert.JSONEq(t, `"Medical Ward 3"`, string(p[FieldWard]))
	assert.JSONEq(t, `[]`, string(p[FieldEpisodes]))

	_, err = r.Patch("nonexistent")
	assert.Error(t, err)
}

func TestView_NearingStopAndNew(t *testing.T) {
	now := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	r := sampleRecord(t, "Dina", now.Add(-30*time.Hour))
	ep, err := therapy.NewEpisode(therapy.EpisodeInput{
		Drug: "Cefazolin", Dose: "1g", FrequencyHours: 8,
		StartDate: therapy.NewDate(2024, time.January, 1), PlannedDays: 7,
	}, now)
	require.NoError(t, err)
	r.Episodes = append(r.Episodes, ep)

	v := NewView(r, now)
	assert.False(t, v.IsNew)
	assert.True(t, v.NearingStop)
	require.Len(t, v.Episodes, 1)
	assert.Equal(t, 6, v.Episodes[0].CalendarDay)
	assert.Equal(t, "Day 1", v.Episodes[0].DoseDuration)
	assert.Len(t, v.Episodes[0].Days, 6)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Contains(t, doc, "hospital_number")
	assert.Contains(t, doc, "flags")
	var episodes []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["episodes"], &episodes))
	assert.Contains(t, episodes[0], "episode")
	assert.Contains(t, episodes[0], "calendar_day")
}

func TestRecordJSON_LegacyWithoutAdministrations(t *testing.T) {
	r, err := decodeRecord([]byte(`{"id":"6f1c2f4e-8a51-4c36-9a0e-1b2d3c4e5f60","name":"Old","admission_status":"Admitted","episodes":[]}`))
	require.NoError(t, err)
	require.NotNil(t, r.Administrations)
	assert.False(t, r.Flags(time.Now()).MissedDoses)
}
