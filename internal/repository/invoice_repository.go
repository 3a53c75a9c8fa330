package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/iliyamo/invoice-signing/internal/model"
)

// InvoiceRepo provides access to pre-existing invoices that users can
// bind into transactions instead of uploading fresh files.  The status
// column serializes linking: only a PENDING invoice can be bound, and
// the flip to IN_TRANSACTION happens inside the same database
// transaction as the document insert, so an invoice cannot be spent
// into two concurrent batches.
type InvoiceRepo struct {
    db *sql.DB
}

// NewInvoiceRepo returns a new InvoiceRepo bound to the given database.
func NewInvoiceRepo(db *sql.DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

// Create inserts a new PENDING invoice and returns its ID.  The
// filename is normalized by the caller (matcher.BaseName) before it is
// stored, since it is the pairing key for later linking.
func (r *InvoiceRepo) Create(ctx context.Context, userID uint64, number, filename string, pdf, xml []byte) (uint64, error) {
    res, err := r.db.ExecContext(ctx,
        `INSERT INTO invoices (user_id, number, filename, pdf_file, xml_file, status) VALUES (?, ?, ?, ?, ?, ?)`,
        userID, number, filename, pdf, xml, model.InvoicePending)
    if err != nil {
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// InvoiceSummary is the byte-free listing row for the owning user.
type InvoiceSummary struct {
    ID       uint64 `json:"id"`
    Number   string `json:"number"`
    Filename string `json:"filename"`
    Status   string `json:"status"`
}

// ListByUser returns the caller's invoices, optionally filtered by
// status.  Blobs are never included in listings.
func (r *InvoiceRepo) ListByUser(ctx context.Context, userID uint64, status string) ([]InvoiceSummary, error) {
    q := `SELECT id, number, filename, status FROM invoices WHERE user_id = ?`
    args := []interface{}{userID}
    if status = strings.TrimSpace(strings.ToUpper(status)); status != "" {
        q += ` AND status = ?`
        args = append(args, status)
    }
    q += ` ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]InvoiceSummary, 0)
    for rows.Next() {
        var s InvoiceSummary
        if err := rows.Scan(&s.ID, &s.Number, &s.Filename, &s.Status); err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// LockPendingForUserTx loads the given invoices with row locks inside
// the provided transaction, validating ownership and linkability.  It
// returns ErrForbidden when an invoice belongs to a different user,
// ErrInvoiceUnavailable when one is not PENDING and sql.ErrNoRows when
// one does not exist.  The SELECT ... FOR UPDATE holds the rows until
// the caller commits, serializing concurrent link attempts.
func (r *InvoiceRepo) LockPendingForUserTx(ctx context.Context, tx *sql.Tx, ids []uint64, userID uint64) ([]model.Invoice, error) {
    invoices := make([]model.Invoice, 0, len(ids))
    const q = `SELECT id, user_id, number, filename, pdf_file, xml_file, status
               FROM invoices WHERE id = ? FOR UPDATE`
    for _, id := range ids {
        var inv model.Invoice
        err := tx.QueryRowContext(ctx, q, id).Scan(
            &inv.ID, &inv.UserID, &inv.Number, &inv.Filename, &inv.PDFFile, &inv.XMLFile, &inv.Status)
        if err != nil {
            return nil, err
        }
        if inv.UserID != userID {
            return nil, ErrForbidden
        }
        if inv.Status != model.InvoicePending {
            return nil, ErrInvoiceUnavailable
        }
        invoices = append(invoices, inv)
    }
    return invoices, nil
}

// MarkInTransactionTx flips the given invoices to IN_TRANSACTION within
// the provided transaction.  Callers must have locked the rows first.
func (r *InvoiceRepo) MarkInTransactionTx(ctx context.Context, tx *sql.Tx, ids []uint64) error {
    if len(ids) == 0 {
        return nil
    }
    query := `UPDATE invoices SET status = ? WHERE id IN (`
    args := make([]interface{}, 0, len(ids)+1)
    args = append(args, model.InvoiceInTransaction)
    for i, id := range ids {
        if i > 0 {
            query += ","
        }
        query += "?"
        args = append(args, id)
    }
    query += ")"
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}
