package training

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreak(t *testing.T) {
	today := MustParseDate("2024-03-10")
	day := func(offset int) Date { return today.AddDays(offset) }

	tests := []struct {
		name  string
		dates []Date
		want  int
	}{
		{"no sessions", nil, 0},
		{"today only", []Date{day(0)}, 1},
		{"yesterday only", []Date{day(-1)}, 1},
		{"two days ago only", []Date{day(-2)}, 0},
		{"three consecutive ending today", []Date{day(0), day(-1), day(-2)}, 3},
		{"run ending yesterday", []Date{day(-1), day(-2), day(-3)}, 3},
		{"gap breaks the run", []Date{day(0), day(-2), day(-3)}, 1},
		{"duplicates count once", []Date{day(0), day(0), day(-1), day(-1)}, 2},
		{"unordered input", []Date{day(-2), day(0), day(-1)}, 3},
		{"future dates ignored", []Date{day(1), day(0)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Streak(tt.dates, today))
		})
	}
}

func TestStreakAcrossMonthBoundary(t *testing.T) {
	today := MustParseDate("2024-03-01")
	dates := []Date{MustParseDate("2024-03-01"), MustParseDate("2024-02-29"), MustParseDate("2024-02-28")}
	assert.Equal(t, 3, Streak(dates, today))
}

func TestDateCalendarHelpers(t *testing.T) {
	d := MustParseDate("2024-03-14") // Thursday
	assert.Equal(t, time.Thursday, d.Weekday())
	assert.Equal(t, "2024-03-11", d.WeekStart().String())
	assert.Equal(t, "2024-03-01", d.MonthStart().String())
	assert.Equal(t, "2024-03-11", MustParseDate("2024-03-11").WeekStart().String())
	assert.Equal(t, "2024-03-11", MustParseDate("2024-03-17").WeekStart().String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.After(d.AddDays(-1)))
}

func TestDateScanAndJSON(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2024-01-02"))
	assert.Equal(t, "2024-01-02", d.String())

	require.NoError(t, d.Scan([]byte("2024-01-03T00:00:00Z")))
	assert.Equal(t, "2024-01-03", d.String())

	require.NoError(t, d.Scan(time.Date(2024, 1, 4, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-01-04", d.String())

	require.Error(t, d.Scan(42))

	b, err := json.Marshal(struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}{D: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-01-04","z":null}`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal([]byte(`"2023-12-31"`), &back))
	assert.Equal(t, MustParseDate("2023-12-31"), back)
}

func TestDefaultPresets(t *testing.T) {
	presets := DefaultPresets()
	assert.Equal(t, []string{"advanced", "beginner", "intermediate"}, presets.Names())
	assert.True(t, presets.Has(DifficultyIntermediate))
	assert.False(t, presets.Has("expert"))

	adv := presets[DifficultyAdvanced]
	assert.Equal(t, 12, adv.ContractTime)
	assert.Equal(t, 6, adv.RelaxTime)
	assert.Equal(t, 15, adv.RepsPerSet)
	assert.Equal(t, 4, adv.SetsCount)
	assert.Equal(t, "Advanced", adv.NameEn)
}

func TestLoadPresetsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
expert:
  name_en: Expert
  contract_time: 15
  relax_time: 5
  reps_per_set: 20
  sets_count: 5
  daily_sessions: 4
`), 0o600))

	presets, err := LoadPresets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"expert"}, presets.Names())

	_, err = ParsePresets([]byte("broken:\n  contract_time: 0\n"))
	require.Error(t, err)
}
