package telegram

import (
	"fmt"
	"strings"

	"cart-meal-planner/internal/meal"
	"cart-meal-planner/internal/metrics"
	"cart-meal-planner/internal/planner"
	"cart-meal-planner/internal/schedule"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatSummary renders the week grid and what is left of the cart.
func formatSummary(v planner.View) string {
	p := v.Plan
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *Week of %s* (v%d)\n\n", p.WeekOf.Format("Jan 2"), v.Version))

	for _, d := range schedule.Days {
		sb.WriteString(fmt.Sprintf("*%s*\n", d.Short()))
		for _, t := range schedule.SlotTypes {
			slot, err := p.Slot(schedule.SlotID{Day: d, Type: t})
			if err != nil {
				continue
			}
			icon := "🍽"
			if t == meal.KindSnack {
				icon = "🥕"
			}
			title := "_empty_"
			if slot.Meal != nil {
				title = escape(slot.Meal.Title)
				if slot.Meal.TimeMinutes > 0 {
					title += fmt.Sprintf(" (%d min)", slot.Meal.TimeMinutes)
				}
			}
			if slot.Locked {
				title += " 🔒"
			}
			sb.WriteString(fmt.Sprintf("%s %s\n", icon, title))
		}
	}

	sb.WriteString("\n🧺 *Left in cart*\n")
	left := p.Pool.Available()
	if len(left) == 0 {
		sb.WriteString("_everything is allocated_\n")
	}
	for _, ing := range left {
		sb.WriteString(fmt.Sprintf("• %s: %s %s\n", escape(ing.Name), ing.Remaining().String(), ing.Unit))
	}
	return sb.String()
}

func reportNote(head, summary string, problems []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s.", head, escape(summary)))
	for _, p := range problems {
		sb.WriteString("\n• ")
		sb.WriteString(escape(p))
	}
	return sb.String()
}

func formatStats(usage []metrics.DailyUsage, health metrics.Health) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Generator Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(health.Lines())
	return sb.String()
}
