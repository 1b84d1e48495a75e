// Package domain is the reconciliation core: it turns payment-notification
// emails into claims, matches each claim against the roster, gates invoice
// creation on a per-billing-period ledger check, and sequences the invoice
// write and receipt send for every email.
//
// Everything outside this package (mailbox, roster and invoice stores,
// receipt delivery) is reached through the interfaces in collaborators.go.
package domain
