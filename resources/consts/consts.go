package consts

import (
	"time"
)

const (
	DurationRetryRequest = 3 * time.Second
	DurationTyping       = 5 * time.Second
	DurationReplyTimeout = 90 * time.Second
	DurationMediaTimeout = 3 * time.Minute

	IntRetryAttempts = 3

	MinTimeBetweenRequests = 2 * time.Second
	BroadcastPerSecond     = 20

	IntPrivateHistory   = 30
	IntPrivateBudget    = 3000
	IntSearchResults    = 10
	IntSummaryMessages  = 150
	IntLexiconTop       = 10
	IntLeaderboardSize  = 10
	IntStatsTop         = 10
	DurationStatsWindow = 30 * 24 * time.Hour
)
