package titleparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse_ModernFormat(t *testing.T) {
	m := Parse("Jane Smith - A-24-006 - March 3, 2024 - Sacramento")
	assert.Equal(t, "Jane Smith", m.RequestorName)
	assert.Equal(t, "A-24-006", m.LetterID)
	assert.Equal(t, "March 3, 2024", m.LetterDate)
	assert.Equal(t, "Sacramento", m.City)
}

func TestParse_Era8494Format(t *testing.T) {
	m := Parse("John Doe, Request Year: 1991 Advice Letter # 91-123")
	assert.Equal(t, "John Doe", m.RequestorName)
	assert.Equal(t, "1991", m.LetterDate)
	assert.Equal(t, "91-123", m.LetterID)
}

func TestParse_Era9519Format(t *testing.T) {
	m := Parse("City of Fresno Year: 2003 Advice Letter # A-03-045")
	assert.Equal(t, "City of Fresno", m.RequestorName)
	assert.Equal(t, "2003", m.LetterDate)
	assert.Equal(t, "A-03-045", m.LetterID)
}

func TestParse_LetterIDFallbackOnly(t *testing.T) {
	m := Parse("Miscellaneous document referencing I-05-201 with no other structure")
	assert.Equal(t, "I-05-201", m.LetterID)
	assert.Empty(t, m.RequestorName)
	assert.Empty(t, m.LetterDate)
	assert.Empty(t, m.City)
}

func TestParse_NoMatchReturnsEmpty(t *testing.T) {
	m := Parse("completely unstructured title with no identifier")
	assert.Equal(t, Metadata{}, m)
}

func TestYearFromTags(t *testing.T) {
	y, ok := YearFromTags("1998,advice-letter,conflict-of-interest")
	assert.True(t, ok)
	assert.Equal(t, 1998, y)

	_, ok = YearFromTags("no-year-here")
	assert.False(t, ok)
}

func TestYearFromURL(t *testing.T) {
	y, ok := YearFromURL("https://fppc.ca.gov/advice/1998/A-98-001.pdf")
	assert.True(t, ok)
	assert.Equal(t, 1998, y)

	_, ok = YearFromURL("https://fppc.ca.gov/advice/no-year/A-98-001.pdf")
	assert.False(t, ok)
}
