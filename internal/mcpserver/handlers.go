package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/remitwise/internal/channels"
	"github.com/mbd888/remitwise/internal/transfer"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client        *Client
	defaultSender string
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client, defaultSender string) *Handlers {
	return &Handlers{client: client, defaultSender: defaultSender}
}

// HandleGetRate returns the rates for a pair.
func (h *Handlers) HandleGetRate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, to := currencyArgs(req)
	if from == "" || to == "" {
		return mcp.NewToolResultError("from and to are required"), nil
	}

	q, err := h.client.GetRate(ctx, from, to)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get rate: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s → %s (%s rate)\n", q.From, q.To, q.Source)
	fmt.Fprintf(&sb, "  Market:     %g\n", q.MarketRate)
	fmt.Fprintf(&sb, "  remitwise:  %g (markup %s)\n", q.HouseRate, q.HouseMarkup)
	fmt.Fprintf(&sb, "  Competitor: %g (markup %s)\n", q.CompetitorRate, q.CompetitorMarkup)
	fmt.Fprintf(&sb, "  Recipient gets %s more with remitwise\n", q.SavingsPercent)
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCompareChannels lists every channel's payout for one amount.
func (h *Handlers) HandleCompareChannels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, to := currencyArgs(req)
	if from == "" || to == "" {
		return mcp.NewToolResultError("from and to are required"), nil
	}
	amount := req.GetFloat("amount", 0)
	if amount < 0 {
		return mcp.NewToolResultError("amount must be positive"), nil
	}

	cmp, err := h.client.CompareChannels(ctx, from, to, amount)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compare channels: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sending %g %s to %s (market rate %g, %s)\n\n",
		cmp.Amount, cmp.SourceCurrency, cmp.TargetCurrency, cmp.MarketRate, cmp.RateSource)
	writeQuote(&sb, 0, cmp.OurService, cmp.TargetCurrency)
	for i, q := range cmp.Competitors {
		writeQuote(&sb, i+1, q, cmp.TargetCurrency)
	}
	if cmp.Savings != nil {
		fmt.Fprintf(&sb, "\nSaves %g %s (%s) vs %s\n",
			cmp.Savings.Amount, cmp.TargetCurrency, cmp.Savings.Percent, cmp.Savings.VsCompetitor)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleOptimizeChannels ranks channels, using distances when supplied.
func (h *Handlers) HandleOptimizeChannels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, to := currencyArgs(req)
	if from == "" || to == "" {
		return mcp.NewToolResultError("from and to are required"), nil
	}
	amount := req.GetFloat("amount", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount must be positive"), nil
	}

	args := req.GetArguments()
	res, err := h.client.OptimizeChannels(ctx, transfer.OptimizeRequest{
		Amount:           amount,
		SourceCurrency:   from,
		TargetCurrency:   to,
		AvailableBrands:  stringList(args["available_brands"]),
		BrandDistancesKm: floatMap(args["distances_km"]),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to optimize channels: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(res.Recommendation)
	sb.WriteString("\n\n")
	for i, q := range res.Options {
		writeQuote(&sb, i+1, q, res.Currency)
	}
	if len(res.UnresolvedBrands) > 0 {
		fmt.Fprintf(&sb, "\nUnrecognised brands: %s\n", strings.Join(res.UnresolvedBrands, ", "))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleAssessFraud scores a transfer attempt.
func (h *Handlers) HandleAssessFraud(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sender := req.GetString("sender_id", h.defaultSender)
	if sender == "" {
		return mcp.NewToolResultError("sender_id is required"), nil
	}
	amount := req.GetFloat("amount", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount must be positive"), nil
	}

	ar := transfer.AssessRequest{
		SenderID:          sender,
		Amount:            amount,
		SourceCurrency:    strings.ToUpper(req.GetString("from", "USD")),
		TargetCurrency:    strings.ToUpper(req.GetString("to", "PHP")),
		NewRecipient:      req.GetBool("is_new_recipient", false),
		IPCountryMismatch: req.GetBool("ip_country_mismatch", false),
		DeviceChanged:     req.GetBool("device_changed", false),
	}
	if _, ok := req.GetArguments()["local_hour"]; ok {
		hour := req.GetInt("local_hour", 0)
		ar.LocalHour = &hour
	}

	rec, err := h.client.AssessFraud(ctx, ar)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to assess transfer: %v", err)), nil
	}

	a := rec.Assessment
	var sb strings.Builder
	fmt.Fprintf(&sb, "Decision: %s (score %d/100)\n", strings.ToUpper(string(a.Decision)), a.Score)
	if len(a.Flags) == 0 {
		sb.WriteString("No risk rules fired.\n")
	} else {
		sb.WriteString("Rules fired:\n")
		for _, f := range a.Flags {
			fmt.Fprintf(&sb, "  - %s\n", f)
		}
	}
	fmt.Fprintf(&sb, "Sender history: %d transfer(s) in 24h, 7-day average %g\n", a.History.Count24h, a.History.Avg7d)
	fmt.Fprintf(&sb, "Assessment ID: %s\n", rec.ID)
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleTransferHistory lists recent transfers.
func (h *Handlers) HandleTransferHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sender := req.GetString("sender_id", h.defaultSender)
	if sender == "" {
		return mcp.NewToolResultError("sender_id is required"), nil
	}

	recs, err := h.client.History(ctx, sender)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get history: %v", err)), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("No transfers found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d recent transfer(s) for %s:\n", len(recs), sender)
	for i, t := range recs {
		fmt.Fprintf(&sb, "%d. %g %s → %g %s", i+1, t.Amount, t.SourceCurrency, t.RecipientReceives, t.TargetCurrency)
		if t.RecipientName != "" {
			fmt.Fprintf(&sb, " to %s", t.RecipientName)
		}
		fmt.Fprintf(&sb, " [%s] at %s (id %s)\n", t.Status, t.CreatedAt.Format(time.RFC3339), t.ID)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func currencyArgs(req mcp.CallToolRequest) (string, string) {
	return strings.ToUpper(strings.TrimSpace(req.GetString("from", ""))),
		strings.ToUpper(strings.TrimSpace(req.GetString("to", "")))
}

func writeQuote(sb *strings.Builder, rank int, q channels.Quote, currency string) {
	if rank == 0 {
		fmt.Fprintf(sb, "★ %s: %g %s (fee %g, %s)", q.Name, q.RecipientGets, currency, q.Fee, q.FeePercent)
	} else {
		fmt.Fprintf(sb, "%d. %s: %g %s (fee %g, %s)", rank, q.Name, q.RecipientGets, currency, q.Fee, q.FeePercent)
	}
	if q.DistanceKm != nil && q.TimeMin != nil {
		fmt.Fprintf(sb, ", %g km (~%g min)", *q.DistanceKm, *q.TimeMin)
	}
	sb.WriteString("\n")
}

// stringList accepts a JSON array of strings or a comma-separated string.
func stringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		out = t
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func floatMap(v any) map[string]float64 {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, x := range m {
		if f, ok := x.(float64); ok {
			out[k] = f
		}
	}
	return out
}
