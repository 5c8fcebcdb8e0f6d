package google

import (
	"fmt"
	"strings"

	"payback/internal/core"
)

const defaultPrefix = "Payback"

// sheetTitle names the tab of a period, e.g. "Payback 2025-05".
func sheetTitle(prefix string, p core.Period) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return fmt.Sprintf("%s %s", prefix, p)
}

// a1 quotes a sheet title for use in A1 notation.
func a1(title, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), cells)
}

var memberHeader = []any{"Member", "Email", "Role", "Status", "Amount", "Receipt"}

// monthRows lays a month view out as sheet rows.
func monthRows(view core.MonthView) [][]any {
	rows := [][]any{{"Period", view.Period.String()}}

	if view.Bill == nil {
		rows = append(rows, []any{"No bill recorded"})
	} else {
		b := view.Bill
		rows = append(rows, []any{
			"Payer", b.PayerName,
			"Total", b.TotalAmount.String(),
			"Split", view.SplitAmount.String(),
			"Receipt", deref(b.ReceiptURL),
		})
	}

	rows = append(rows, []any{}, memberHeader)
	for _, m := range view.Members {
		role := "member"
		if m.IsPayer {
			role = "payer"
		}
		amount := ""
		if m.DisplayAmount != nil {
			amount = m.DisplayAmount.String()
		}
		receipt := ""
		if m.Payment != nil {
			receipt = deref(m.Payment.ReceiptURL)
		}
		rows = append(rows, []any{m.Member.Name, deref(m.Member.Email), role, m.Status, amount, receipt})
	}

	if view.Bill != nil {
		rows = append(rows, []any{}, []any{
			"Collected", view.Collected.String(),
			"Outstanding", view.Outstanding.String(),
		})
	}
	return rows
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
