package therapy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.February, Day: 29}, d)

	_, err = ParseDate("29/02/2024")
	assert.Error(t, err)
}

func TestDateOf_UsesLocation(t *testing.T) {
	manila := time.FixedZone("PHT", 8*3600)
	utcLate := time.Date(2024, time.January, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, NewDate(2024, time.January, 2), DateOf(utcLate.In(manila)))
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2024, time.February, 28)
	assert.Equal(t, NewDate(2024, time.March, 1), d.AddDays(2))
	assert.Equal(t, -2, d.DaysSince(d.AddDays(2)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.Equal(t, NewDate(2024, time.February, 1), NewDate(2024, time.January, 32))
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		On Date `json:"on"`
	}
	b, err := json.Marshal(wrapper{On: NewDate(2024, time.July, 4)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":"2024-07-04"}`, string(b))

	b, err = json.Marshal(wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"on":null}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"on":""}`), &w))
	assert.True(t, w.On.IsZero())
	assert.Error(t, json.Unmarshal([]byte(`{"on":"July 4"}`), &w))
}
