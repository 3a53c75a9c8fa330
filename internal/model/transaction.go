package model

import "time"

// Transaction statuses.  SIGNING is a transient state held by the batch
// signing orchestrator while it walks the documents; a transaction is
// SIGNED exactly when every child document is SIGNED.
const (
    TransactionCreated = "CREATED"
    TransactionSigning = "SIGNING"
    TransactionSigned  = "SIGNED"
)

// Document statuses.
const (
    DocumentCreated = "CREATED"
    DocumentSigned  = "SIGNED"
)

// Transaction groups one or more paired invoice documents that are routed
// together for a single PIN-authorized signing event.  The transaction is
// owned by the user who created it; the public signing link is scoped by
// the transaction ID alone and the PIN acts as the authorization boundary.
//
// Fields:
//  ID             – primary key identifier.
//  UserID         – user who created the transaction.
//  BatchNumber    – free-text invoice batch number supplied on upload.
//  SignatoryEmail – contact address of the signatory.
//  ClientEmail    – contact address of the client.
//  Status         – CREATED, SIGNING or SIGNED.
//  SignedAt       – when the full batch was signed (null until then).
//  CreatedAt      – creation timestamp.
type Transaction struct {
    ID             uint64     // transactions.id
    UserID         uint64     // transactions.user_id
    BatchNumber    string     // transactions.batch_number
    SignatoryEmail string     // transactions.signatory_email
    ClientEmail    string     // transactions.client_email
    Status         string     // transactions.status
    SignedAt       *time.Time // transactions.signed_at (nullable)
    CreatedAt      time.Time  // transactions.created_at
}

// Document is one PDF+XML pair belonging to exactly one transaction.  The
// PDF bytes are immutable once stored; XMLSigned is populated exactly once
// by the signing step, together with Status and SignedAt, and never
// reverted.  InvoiceID is set when the document was built from a
// pre-existing invoice rather than a fresh upload.
type Document struct {
    ID            uint64     // documents.id
    TransactionID uint64     // documents.transaction_id
    InvoiceID     *uint64    // documents.invoice_id (nullable)
    Filename      string     // documents.filename (normalized base name)
    PDFFile       []byte     // documents.pdf_file
    XMLFile       []byte     // documents.xml_file
    XMLSigned     []byte     // documents.xml_signed (nil until signed)
    Status        string     // documents.status
    SignedAt      *time.Time // documents.signed_at (nullable)
    CreatedAt     time.Time  // documents.created_at
}
