package domain

import (
	"time"

	"github.com/sjpiano/paytrack/internal/platform/timeouts"
)

// reconcileCallTimeout caps a reconcile_payments tool call.
const reconcileCallTimeout = timeouts.Run

// lookupCallTimeout caps read-only tool calls such as ledger lookups.
const lookupCallTimeout = 30 * time.Second
