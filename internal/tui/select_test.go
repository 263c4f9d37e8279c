package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookdex/internal/source"
)

func testRecords() []source.Record {
	return []source.Record{
		{
			ExternalID:    "X1",
			Source:        "google_books",
			Title:         "Dune",
			Authors:       []string{"Frank Herbert"},
			PublishedDate: "1965-08-01",
			PageCount:     412,
			Language:      "en",
		},
		{
			ExternalID:    "OL1W",
			Source:        "open_library",
			Title:         "Dune Messiah",
			Authors:       []string{"Frank Herbert"},
			PublishedDate: "1969",
			IsImported:    true,
		},
	}
}

// driveProgram replaces the bubbletea runtime with a scripted key sequence.
func driveProgram(t *testing.T, keys ...string) func() {
	t.Helper()

	original := runProgram
	runProgram = func(m tea.Model) (tea.Model, error) {
		current := m
		for _, key := range keys {
			var msg tea.Msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
			switch key {
			case "enter":
				msg = tea.KeyMsg{Type: tea.KeyEnter}
			case "down":
				msg = tea.KeyMsg{Type: tea.KeyDown}
			case "esc":
				msg = tea.KeyMsg{Type: tea.KeyEsc}
			}
			current, _ = current.Update(msg)
		}
		return current, nil
	}
	return func() { runProgram = original }
}

func TestSelectEmptyResultsSkips(t *testing.T) {
	result, err := Select("dune", nil)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)
	assert.Nil(t, result.Selection)
}

func TestSelectEnterPicksHighlighted(t *testing.T) {
	defer driveProgram(t, "enter")()

	result, err := Select("dune", testRecords())
	require.NoError(t, err)
	assert.Equal(t, ActionSelected, result.Action)
	require.NotNil(t, result.Selection)
	assert.Equal(t, "X1", result.Selection.ExternalID)
}

func TestSelectNavigatesBeforePicking(t *testing.T) {
	defer driveProgram(t, "down", "enter")()

	result, err := Select("dune", testRecords())
	require.NoError(t, err)
	assert.Equal(t, ActionSelected, result.Action)
	require.NotNil(t, result.Selection)
	assert.Equal(t, "OL1W", result.Selection.ExternalID)
}

func TestSelectSkipAndStopKeys(t *testing.T) {
	defer driveProgram(t, "s")()
	result, err := Select("dune", testRecords())
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)

	defer driveProgram(t, "q")()
	result, err = Select("dune", testRecords())
	require.NoError(t, err)
	assert.Equal(t, ActionStopped, result.Action)

	defer driveProgram(t, "esc")()
	result, err = Select("dune", testRecords())
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, result.Action)
}

func TestFormatMetadata(t *testing.T) {
	record := testRecords()[0]
	metadata := formatMetadata(record, 80)
	assert.Contains(t, metadata, "Frank Herbert")
	assert.Contains(t, metadata, "412p")
	assert.Contains(t, metadata, "EN")

	assert.Equal(t, "No metadata available", formatMetadata(source.Record{}, 80))
}

func TestPublishedYearLabel(t *testing.T) {
	assert.Equal(t, "1965", publishedYearLabel("1965-08-01"))
	assert.Equal(t, "1969", publishedYearLabel("1969"))
	assert.Equal(t, "?", publishedYearLabel(""))
}
