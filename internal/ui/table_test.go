package ui

import (
	"testing"

	"github.com/jp-hoehmann/bun/internal/session"
	"github.com/jp-hoehmann/bun/internal/theme"
	"github.com/stretchr/testify/assert"
)

func TestSchemeTableView(t *testing.T) {
	view := SchemeTableView(theme.Schemes, "Teal")

	for _, s := range theme.Schemes {
		assert.Contains(t, view, s.Name)
	}
	assert.Contains(t, view, "#009688")
}

func TestPeopleViews(t *testing.T) {
	assert.Contains(t, PeopleTableView(nil), "Nobody")
	assert.Contains(t, PeopleCompactView(nil), "Nobody")

	people := []session.Person{
		{StreamID: "1", Name: "ada", Local: true},
		{StreamID: "2", Name: "a very long name that does not fit anywhere"},
	}
	table := PeopleTableView(people)
	assert.Contains(t, table, "publishing")
	assert.Contains(t, table, "pending")
	assert.Contains(t, table, "...")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab", truncate("abcdef", 2))
	assert.Equal(t, "abc...", truncate("abcdefghij", 6))
}
