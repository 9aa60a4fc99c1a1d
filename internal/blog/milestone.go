package blog

import (
	"strconv"
	"strings"
)

// MilestoneKind classifies how loudly a milestone gets celebrated.
type MilestoneKind string

const (
	MilestoneSpecial MilestoneKind = "special"
	MilestoneMajor   MilestoneKind = "major"
	MilestoneMinor   MilestoneKind = "minor"
)

// Milestone is a celebratory label for a post's ordinal number.
type Milestone struct {
	Text  string        `json:"text"`
	Emoji string        `json:"emoji"`
	Kind  MilestoneKind `json:"type"`
}

type fixedMilestone struct {
	number int
	text   string
	emoji  string
}

var specialMilestones = []fixedMilestone{
	{1, "First Post!", "🎉"},
	{100, "Centennial Post!", "💯"},
	{365, "Daily Dose Complete!", "📅"},
	{500, "Half Thousand!", "🏆"},
	{1000, "One Thousand Posts!", "🌟"},
	{10000, "Ten Thousand Posts!", "🚀"},
	{200, "Double Century!", "🎉🎉"},
	{250, "Quarter Thousand!", "✨✨"},
	{750, "Three-Quarter Thousand!", "💫💫"},
}

var funMilestones = []fixedMilestone{
	{404, "Post Not Found!", "🔍"},
	{123, "One Two Three!", "🔢"},
	{333, "Triple Three!", "✨✨✨"},
}

// GetMilestone maps a post number to its milestone, if any. The checks are
// order-sensitive: special table, then every 250th past 100, then the fixed
// 150 label, then every 50th past 100, then every 10th that is not a 50th,
// then the fun table.
func GetMilestone(postNumber int) (Milestone, bool) {
	for _, m := range specialMilestones {
		if postNumber == m.number {
			return Milestone{Text: m.text, Emoji: m.emoji, Kind: MilestoneSpecial}, true
		}
	}

	if postNumber > 100 && postNumber%250 == 0 {
		return Milestone{
			Text:  formatNumber(postNumber) + " Posts!",
			Emoji: "🎊",
			Kind:  MilestoneMajor,
		}, true
	}

	if postNumber == 150 {
		return Milestone{Text: "One Hundred Fifty Posts!", Emoji: "🎉", Kind: MilestoneMajor}, true
	}

	if postNumber > 100 && postNumber%50 == 0 {
		return Milestone{
			Text:  formatNumber(postNumber) + " Posts!",
			Emoji: "🎯",
			Kind:  MilestoneMajor,
		}, true
	}

	if postNumber%10 == 0 && postNumber%50 != 0 {
		return Milestone{
			Text:  formatNumber(postNumber) + ordinalSuffix(postNumber) + " Post!",
			Emoji: "✨",
			Kind:  MilestoneMinor,
		}, true
	}

	for _, m := range funMilestones {
		if postNumber == m.number {
			return Milestone{Text: m.text, Emoji: m.emoji, Kind: MilestoneSpecial}, true
		}
	}

	return Milestone{}, false
}

// formatNumber groups thousands with commas: 1234567 -> "1,234,567".
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	var groups []string
	for len(s) > 3 {
		groups = append([]string{s[len(s)-3:]}, groups...)
		s = s[:len(s)-3]
	}
	groups = append([]string{s}, groups...)
	return strings.Join(groups, ",")
}

// ordinalSuffix returns the English ordinal suffix for n.
func ordinalSuffix(n int) string {
	if rem := n % 100; rem >= 11 && rem <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
