package notify

import (
	"strings"
	"unicode/utf8"

	"github.com/nidhogg/tappy/internal/skill"
	"github.com/nidhogg/tappy/internal/store"
)

// Limits bounds the stored notification text.
type Limits struct {
	TitleMax   int
	ExcerptMax int
}

// DefaultLimits match the notifications table columns.
var DefaultLimits = Limits{TitleMax: 255, ExcerptMax: 200}

// Build turns a formatted result into an unsaved notification for entryID.
func Build(entryID int64, text, skillID string, f skill.Formatted, limits Limits) *store.Notification {
	if limits.TitleMax <= 0 {
		limits.TitleMax = DefaultLimits.TitleMax
	}
	if limits.ExcerptMax <= 0 {
		limits.ExcerptMax = DefaultLimits.ExcerptMax
	}

	status := string(f.InboxStatus)
	if status == "" {
		status = string(skill.InboxPending)
	}

	links := make([]store.Link, 0, len(f.Links))
	for _, l := range f.Links {
		links = append(links, store.Link{Label: l.Label, URL: l.URL})
	}

	id := entryID
	return &store.Notification{
		EntryID: &id,
		SkillID: skillID,
		Title:   truncate(f.Title, limits.TitleMax),
		Message: f.Message,
		Action:  f.Action,
		Status:  status,
		Links:   links,
		Excerpt: truncate(strings.TrimSpace(text), limits.ExcerptMax),
	}
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
