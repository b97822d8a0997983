package reporting

import (
	"fmt"
	"sort"
	"strings"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	if r.Leaderboard != nil {
		sb.WriteString(fmt.Sprintf("# %s Leaderboard\n\n", r.Project))
	} else {
		sb.WriteString(fmt.Sprintf("# %s Holder Badges\n\n", r.Project))
	}
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.Timestamp))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))

	writeSummary(&sb, r.Summary)
	writeThresholds(&sb, r.Summary.Thresholds)

	if r.Badges != nil {
		writeTier(&sb, "Basic", r.Badges.BasicHandles, r.Badges.BasicAddresses)
		if r.Badges.UpgradedHandles != nil {
			writeTier(&sb, "Upgraded", r.Badges.UpgradedHandles, r.Badges.UpgradedAddresses)
		}
	}
	if r.Leaderboard != nil {
		writeLeaderboard(&sb, r)
	}
	return sb.String()
}

func writeSummary(sb *strings.Builder, s RunSummary) {
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Mode | %s |\n", s.Mode))
	sb.WriteString(fmt.Sprintf("| Identities | %d |\n", s.Identities))

	provenances := make([]string, 0, len(s.MembersByProvenance))
	for p := range s.MembersByProvenance {
		provenances = append(provenances, p)
	}
	sort.Strings(provenances)
	for _, p := range provenances {
		sb.WriteString(fmt.Sprintf("| Wallets (%s) | %d |\n", p, s.MembersByProvenance[p]))
	}

	sb.WriteString(fmt.Sprintf("| Unresolved Addresses | %d |\n", s.Unresolved))
	sb.WriteString(fmt.Sprintf("| Link Conflicts | %d |\n", s.Conflicts))
	sb.WriteString("\n")

	if len(s.OracleFallbacks) > 0 {
		sb.WriteString(fmt.Sprintf("**Oracle fallback used for:** %s\n\n", strings.Join(s.OracleFallbacks, ", ")))
	}
}

func writeThresholds(sb *strings.Builder, rows []ThresholdRow) {
	if len(rows) == 0 {
		return
	}
	sb.WriteString("## Requirements\n\n")
	sb.WriteString("| Tier | Kind | Asset | Minimum | Dynamic |\n")
	sb.WriteString("|------|------|-------|---------|---------|\n")
	for _, t := range rows {
		dynamic := "no"
		if t.Dynamic {
			dynamic = "yes"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n", t.Tier, t.Kind, t.Symbol, t.Required, dynamic))
	}
	sb.WriteString("\n")
}

func writeTier(sb *strings.Builder, name string, handles, addresses []string) {
	sb.WriteString(fmt.Sprintf("## %s Tier\n\n", name))
	sb.WriteString(fmt.Sprintf("%d handles, %d wallets.\n\n", len(handles), len(addresses)))
	if len(handles) == 0 {
		sb.WriteString("No eligible holders.\n\n")
		return
	}
	for _, h := range handles {
		sb.WriteString(fmt.Sprintf("- @%s\n", h))
	}
	sb.WriteString("\n")
}

func writeLeaderboard(sb *strings.Builder, r *Report) {
	sb.WriteString("## Rankings\n\n")
	if len(r.Leaderboard.Entries) == 0 {
		sb.WriteString("No ranked holders.\n\n")
		return
	}
	sb.WriteString("| Rank | Handle | Points | Move | Primary Wallet |\n")
	sb.WriteString("|------|--------|--------|------|----------------|\n")
	for i, e := range r.Leaderboard.Entries {
		move := ""
		if i < len(r.Movements) {
			move = formatMove(r.Movements[i])
		}
		sb.WriteString(fmt.Sprintf("| %d | @%s | %s | %s | `%s` |\n",
			e.Rank, e.Handle, formatPoints(e.TotalPoints), move, e.PrimaryAddress))
	}
	sb.WriteString("\n")
}

func formatMove(m Movement) string {
	switch d := m.Delta(); {
	case m.PreviousRank == 0:
		return "new"
	case d > 0:
		return fmt.Sprintf("+%d", d)
	case d < 0:
		return fmt.Sprintf("%d", d)
	default:
		return "="
	}
}
