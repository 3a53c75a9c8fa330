package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/invoice-signing/internal/model"
)

// DocumentRepo provides access to the documents table.  Documents are
// created in bulk alongside their parent transaction and mutated exactly
// once per row by the signing step.  Reads never take locks; writes to
// distinct documents proceed independently.
type DocumentRepo struct {
    db *sql.DB
}

// NewDocumentRepo returns a new DocumentRepo bound to the given database.
func NewDocumentRepo(db *sql.DB) *DocumentRepo { return &DocumentRepo{db: db} }

// DocumentRecord mirrors the documents table for insertion.  Only fields
// needed at creation time are exposed; status defaults to CREATED.
type DocumentRecord struct {
    TransactionID uint64
    InvoiceID     *uint64
    Filename      string
    PDFFile       []byte
    XMLFile       []byte
}

// CreateBulkTx inserts multiple document rows in a single statement
// within the provided transaction.  Passing an empty slice has no effect
// and returns nil.
func (r *DocumentRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, docs []DocumentRecord) error {
    if len(docs) == 0 {
        return nil
    }
    query := `INSERT INTO documents (transaction_id, invoice_id, filename, pdf_file, xml_file, status) VALUES `
    args := make([]interface{}, 0, len(docs)*6)
    for i, d := range docs {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?)"
        var invoiceID interface{}
        if d.InvoiceID != nil {
            invoiceID = *d.InvoiceID
        }
        args = append(args, d.TransactionID, invoiceID, d.Filename, d.PDFFile, d.XMLFile, model.DocumentCreated)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

const documentColumns = `id, transaction_id, invoice_id, filename, pdf_file, xml_file, xml_signed, status, signed_at, created_at`

func scanDocument(scan func(dest ...interface{}) error) (model.Document, error) {
    var d model.Document
    var invoiceID sql.NullInt64
    var xmlSigned []byte
    var signedAt sql.NullTime
    err := scan(&d.ID, &d.TransactionID, &invoiceID, &d.Filename,
        &d.PDFFile, &d.XMLFile, &xmlSigned, &d.Status, &signedAt, &d.CreatedAt)
    if err != nil {
        return model.Document{}, err
    }
    if invoiceID.Valid {
        iid := uint64(invoiceID.Int64)
        d.InvoiceID = &iid
    }
    if len(xmlSigned) > 0 {
        d.XMLSigned = xmlSigned
    }
    if signedAt.Valid {
        at := signedAt.Time
        d.SignedAt = &at
    }
    return d, nil
}

// GetByID returns a single document with its blobs.  sql.ErrNoRows is
// returned when the document does not exist.
func (r *DocumentRepo) GetByID(ctx context.Context, id uint64) (*model.Document, error) {
    const q = `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`
    row := r.db.QueryRowContext(ctx, q, id)
    d, err := scanDocument(row.Scan)
    if err != nil {
        return nil, err
    }
    return &d, nil
}

// ListByTransaction returns all documents of a transaction including
// their blobs, ordered by filename for deterministic signing order.  An
// empty slice is returned when the transaction has no documents.
func (r *DocumentRepo) ListByTransaction(ctx context.Context, transactionID uint64) ([]model.Document, error) {
    const q = `SELECT ` + documentColumns + ` FROM documents WHERE transaction_id = ? ORDER BY filename, id`
    rows, err := r.db.QueryContext(ctx, q, transactionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    docs := make([]model.Document, 0)
    for rows.Next() {
        d, err := scanDocument(rows.Scan)
        if err != nil {
            return nil, err
        }
        docs = append(docs, d)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return docs, nil
}

// DocumentListing is the public, byte-free view of a document used by
// the unauthenticated signing surface.
type DocumentListing struct {
    ID       uint64 `json:"id"`
    Filename string `json:"filename"`
    Status   string `json:"status"`
}

// ListingsByTransaction returns id, filename and status per document —
// never raw bytes.  It backs the public document list.
func (r *DocumentRepo) ListingsByTransaction(ctx context.Context, transactionID uint64) ([]DocumentListing, error) {
    const q = `SELECT id, filename, status FROM documents WHERE transaction_id = ? ORDER BY filename, id`
    rows, err := r.db.QueryContext(ctx, q, transactionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]DocumentListing, 0)
    for rows.Next() {
        var l DocumentListing
        if err := rows.Scan(&l.ID, &l.Filename, &l.Status); err != nil {
            return nil, err
        }
        out = append(out, l)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// MarkSigned sets status, signed XML bytes and the signed timestamp
// together.  The guard on status makes the call idempotent: signing an
// already signed document is a no-op success, which lets a retried batch
// skip completed documents without re-signing them or touching their
// signed_at.
func (r *DocumentRepo) MarkSigned(ctx context.Context, id uint64, signedXML []byte, signedAt time.Time) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE documents SET status = ?, xml_signed = ?, signed_at = ? WHERE id = ? AND status <> ?`,
        model.DocumentSigned, signedXML, signedAt.UTC(), id, model.DocumentSigned)
    return err
}
