package model

import "time"

// Invoice statuses.  A PENDING invoice may be bound into a transaction,
// which flips it to IN_TRANSACTION; when the bound document is signed the
// invoice follows to SIGNED.  Any status other than PENDING blocks the
// invoice from being linked into a second transaction.
const (
    InvoicePending       = "PENDING"
    InvoiceInTransaction = "IN_TRANSACTION"
    InvoiceSigned        = "SIGNED"
)

// Invoice is a pre-existing user-owned record that can be bound into a
// document instead of a fresh upload.  The stored filename is the pairing
// key against newly uploaded XML files.
type Invoice struct {
    ID        uint64    // invoices.id
    UserID    uint64    // invoices.user_id
    Number    string    // invoices.number
    Filename  string    // invoices.filename (normalized base name)
    PDFFile   []byte    // invoices.pdf_file
    XMLFile   []byte    // invoices.xml_file
    Status    string    // invoices.status
    CreatedAt time.Time // invoices.created_at
    UpdatedAt time.Time // invoices.updated_at
}
