// Package timeouts defines the timeout defaults shared by paytrack commands.
package timeouts

import "time"

// StoreCall caps a single roster or invoice store round trip.
const StoreCall = 5 * time.Second

// MailboxSearch caps collecting one run's candidate emails.
const MailboxSearch = 30 * time.Second

// ReceiptSend caps one receipt delivery, including the SMTP handshake.
const ReceiptSend = 20 * time.Second

// Run caps one full reconciliation run started from the MCP surface.
const Run = 5 * time.Minute

// Shutdown limits how long servers and exporters get to drain on exit.
const Shutdown = 5 * time.Second
