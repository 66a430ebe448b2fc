package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the remitwise MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGetRate = mcp.NewTool("get_rate",
	mcp.WithDescription(
		"Get the current exchange rate for a currency pair. "+
			"Returns the market rate, the remitwise rate and a typical competitor rate, "+
			"and says whether the market rate is live, cached or a static fallback."),
	mcp.WithString("from",
		mcp.Required(),
		mcp.Description("Source currency ISO code (e.g. 'USD')")),
	mcp.WithString("to",
		mcp.Required(),
		mcp.Description("Target currency ISO code (e.g. 'PHP')")),
)

var ToolCompareChannels = mcp.NewTool("compare_channels",
	mcp.WithDescription(
		"Compare what a recipient gets through remitwise and through each remittance brand "+
			"(Wise, Remitly, Western Union...) for one amount. Brands are listed best payout first."),
	mcp.WithString("from",
		mcp.Required(),
		mcp.Description("Source currency ISO code")),
	mcp.WithString("to",
		mcp.Required(),
		mcp.Description("Target currency ISO code")),
	mcp.WithNumber("amount",
		mcp.Description("Amount to send in the source currency (default 1000)")),
)

var ToolOptimizeChannels = mcp.NewTool("optimize_channels",
	mcp.WithDescription(
		"Recommend the best channel to send money through. "+
			"When distances to brand agent locations are given, nearby locations can beat a slightly better payout."),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Amount to send in the source currency")),
	mcp.WithString("from",
		mcp.Required(),
		mcp.Description("Source currency ISO code")),
	mcp.WithString("to",
		mcp.Required(),
		mcp.Description("Target currency ISO code")),
	mcp.WithArray("available_brands",
		mcp.Description("Brands the sender can use, free-form (e.g. ['western union', 'remitly']). Empty means all."),
		mcp.Items(map[string]any{"type": "string"})),
	mcp.WithObject("distances_km",
		mcp.Description("Distance in km to each brand's nearest location, e.g. {\"Western Union\": 1.2}")),
)

var ToolAssessFraud = mcp.NewTool("assess_fraud",
	mcp.WithDescription(
		"Score a transfer attempt for fraud risk before sending. "+
			"Returns a 0-100 score, an allow/review/block decision and the rules that fired."),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Amount of the attempted transfer")),
	mcp.WithString("sender_id",
		mcp.Description("Sender identifier; defaults to the configured sender")),
	mcp.WithString("from",
		mcp.Description("Source currency ISO code (default USD)")),
	mcp.WithString("to",
		mcp.Description("Target currency ISO code (default PHP)")),
	mcp.WithBoolean("is_new_recipient",
		mcp.Description("First transfer to this recipient")),
	mcp.WithBoolean("ip_country_mismatch",
		mcp.Description("Request IP country differs from the account country")),
	mcp.WithBoolean("device_changed",
		mcp.Description("Request comes from a device not seen before")),
	mcp.WithNumber("local_hour",
		mcp.Description("Sender's local hour 0-23; defaults to the server clock")),
)

var ToolTransferHistory = mcp.NewTool("transfer_history",
	mcp.WithDescription("List a sender's most recent transfers, newest first."),
	mcp.WithString("sender_id",
		mcp.Description("Sender identifier; defaults to the configured sender")),
)
