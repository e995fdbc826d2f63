package classifier

import "github.com/openmanus/manus/pkg/models"

// capabilityKeywords maps each capability tag to the description signals
// that vote for it. Matching is case-insensitive substring containment.
var capabilityKeywords = map[models.CapabilityTag][]string{
	models.CapStockScreening: {
		"screen",
		"screener",
		"filter stocks",
		"stock picks",
		"shortlist",
		"watchlist",
		"candidates under",
	},
	models.CapTechnicalAnalysis: {
		"technical",
		"chart",
		"indicator",
		"rsi",
		"macd",
		"moving average",
		"bollinger",
		"support and resistance",
		"trend",
	},
	models.CapFundamentalAnalysis: {
		"fundamental",
		"valuation",
		"earnings",
		"balance sheet",
		"income statement",
		"p/e",
		"revenue growth",
		"cash flow",
		"dividend",
	},
	models.CapCodeGeneration: {
		"code",
		"coding",
		"program",
		"programming",
		"function",
		"script",
		"refactor",
		"debug",
		"implement",
		"bug",
	},
	models.CapResearch: {
		"research",
		"summarize",
		"summary",
		"explain",
		"information",
		"overview",
		"compare",
		"investigate",
		"report",
	},
}
