// Package queue defines message payloads exchanged over the message broker.
package queue

// TransactionSignedEvent is published when every document of a
// transaction has been signed.  It carries enough information for
// downstream consumers (notification/email dispatch, analytics) to act
// without querying the primary database.
type TransactionSignedEvent struct {
    TransactionID  uint64   `json:"transaction_id"`
    UserID         uint64   `json:"user_id"`
    BatchNumber    string   `json:"batch_number"`
    SignatoryEmail string   `json:"signatory_email"`
    ClientEmail    string   `json:"client_email"`
    Documents      []string `json:"documents"`
    SignedCount    int      `json:"signed_count"`
    SignedAt       string   `json:"signed_at"`
}
