package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/invoice-signing/internal/model"
)

// TransactionRepo provides CRUD operations for transactions.  A
// transaction groups the documents of one signing batch; its status
// machine (CREATED -> SIGNING -> SIGNED) is driven exclusively by the
// signing orchestrator.  All timestamp fields are stored in UTC.
type TransactionRepo struct {
    db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions
// spanning multiple repositories.
func (r *TransactionRepo) DB() *sql.DB { return r.db }

// TransactionRecord mirrors the schema of the transactions table.  It is
// used internally by the repository when constructing or scanning rows.
type TransactionRecord struct {
    ID             uint64
    UserID         uint64
    BatchNumber    string
    SignatoryEmail string
    ClientEmail    string
    Status         string
    SignedAt       *time.Time
    CreatedAt      time.Time
}

// CreateTx inserts a new transaction within the scope of an existing
// database transaction and populates the generated ID on the provided
// record.  The caller must commit or rollback.  Status starts as CREATED.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, rec *TransactionRecord) error {
    const q = `INSERT INTO transactions (user_id, batch_number, signatory_email, client_email, status)
               VALUES (?, ?, ?, ?, ?)`
    result, err := tx.ExecContext(ctx, q, rec.UserID, rec.BatchNumber, rec.SignatoryEmail, rec.ClientEmail, model.TransactionCreated)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    rec.ID = uint64(id)
    rec.Status = model.TransactionCreated
    return nil
}

// scanTransaction reads one transactions row into a model.Transaction.
func scanTransaction(row *sql.Row) (*model.Transaction, error) {
    var t model.Transaction
    var signedAt sql.NullTime
    err := row.Scan(&t.ID, &t.UserID, &t.BatchNumber, &t.SignatoryEmail, &t.ClientEmail,
        &t.Status, &signedAt, &t.CreatedAt)
    if err != nil {
        return nil, err
    }
    if signedAt.Valid {
        at := signedAt.Time
        t.SignedAt = &at
    }
    return &t, nil
}

const transactionColumns = `id, user_id, batch_number, signatory_email, client_email, status, signed_at, created_at`

// GetByID returns a transaction by ID regardless of owner.  The public
// signing surface uses it; ownership is not an authorization boundary
// there.  When no row exists, sql.ErrNoRows is returned.
func (r *TransactionRepo) GetByID(ctx context.Context, id uint64) (*model.Transaction, error) {
    const q = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`
    return scanTransaction(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDForUser returns a transaction by ID after enforcing ownership.
// It returns sql.ErrNoRows when the transaction does not exist and
// ErrForbidden when it belongs to a different user.
func (r *TransactionRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Transaction, error) {
    t, err := r.GetByID(ctx, id)
    if err != nil {
        return nil, err
    }
    if t.UserID != userID {
        return nil, ErrForbidden
    }
    return t, nil
}

// TransactionSummary is the listing row returned to the owning user: the
// transaction plus how many of its documents are signed.
type TransactionSummary struct {
    ID            uint64  `json:"id"`
    BatchNumber   string  `json:"batch_number"`
    Status        string  `json:"status"`
    DocumentCount int     `json:"document_count"`
    SignedCount   int     `json:"signed_count"`
    SignedAt      *string `json:"signed_at,omitempty"`
    CreatedAt     string  `json:"created_at"`
}

// ListByUser returns all transactions for the given user, newest first,
// with per-transaction document counts.  When no transactions exist an
// empty slice is returned.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uint64) ([]TransactionSummary, error) {
    const q = `SELECT t.id, t.batch_number, t.status, t.signed_at, t.created_at,
                      COUNT(d.id), COALESCE(SUM(d.status = 'SIGNED'), 0)
               FROM transactions t
               LEFT JOIN documents d ON d.transaction_id = t.id
               WHERE t.user_id = ?
               GROUP BY t.id, t.batch_number, t.status, t.signed_at, t.created_at
               ORDER BY t.created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]TransactionSummary, 0)
    for rows.Next() {
        var s TransactionSummary
        var signedAt sql.NullTime
        var createdAt time.Time
        if err := rows.Scan(&s.ID, &s.BatchNumber, &s.Status, &signedAt, &createdAt, &s.DocumentCount, &s.SignedCount); err != nil {
            return nil, err
        }
        if signedAt.Valid {
            iso := signedAt.Time.UTC().Format(time.RFC3339)
            s.SignedAt = &iso
        }
        s.CreatedAt = createdAt.UTC().Format(time.RFC3339)
        out = append(out, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// BeginSigning acquires the per-transaction advisory lock by atomically
// flipping status CREATED -> SIGNING.  It distinguishes the reasons a
// flip can fail: sql.ErrNoRows for an unknown ID, ErrAlreadySigned for a
// finished transaction and ErrConflict when another signing run holds
// the lock.
func (r *TransactionRepo) BeginSigning(ctx context.Context, id uint64) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE transactions SET status = ? WHERE id = ? AND status = ?`,
        model.TransactionSigning, id, model.TransactionCreated)
    if err != nil {
        return err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 1 {
        return nil
    }
    var status string
    err = r.db.QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = ?`, id).Scan(&status)
    if err != nil {
        return err // sql.ErrNoRows when the transaction does not exist
    }
    switch status {
    case model.TransactionSigned:
        return ErrAlreadySigned
    case model.TransactionSigning:
        return ErrConflict
    }
    // Lost a race against another run that finished in between; report
    // the lock as taken and let the caller retry.
    return ErrConflict
}

// AbortSigning releases the advisory lock after a failed run by flipping
// status SIGNING -> CREATED.  Documents signed before the failure keep
// their state; a retry resumes from the unsigned remainder.
func (r *TransactionRepo) AbortSigning(ctx context.Context, id uint64) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE transactions SET status = ? WHERE id = ? AND status = ?`,
        model.TransactionCreated, id, model.TransactionSigning)
    return err
}

// FinishSigning finalizes a fully signed batch: the transaction flips
// SIGNING -> SIGNED with signed_at set, and every invoice linked through
// the batch's documents is synchronized to SIGNED.  Both updates run in
// one database transaction.
func (r *TransactionRepo) FinishSigning(ctx context.Context, id uint64, signedAt time.Time) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if _, err := tx.ExecContext(ctx,
        `UPDATE transactions SET status = ?, signed_at = ? WHERE id = ? AND status = ?`,
        model.TransactionSigned, signedAt.UTC(), id, model.TransactionSigning); err != nil {
        return err
    }
    if _, err := tx.ExecContext(ctx,
        `UPDATE invoices SET status = ?
         WHERE id IN (SELECT invoice_id FROM documents WHERE transaction_id = ? AND invoice_id IS NOT NULL)`,
        model.InvoiceSigned, id); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// DeleteForAdmin removes a transaction and, through the cascade on
// documents, all of its children.  Linked invoices that were still
// IN_TRANSACTION are released back to PENDING first so they become
// linkable again.  This path exists for administrative cleanup only.
func (r *TransactionRepo) DeleteForAdmin(ctx context.Context, id uint64) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if _, err := tx.ExecContext(ctx,
        `UPDATE invoices SET status = ?
         WHERE status = ?
           AND id IN (SELECT invoice_id FROM documents WHERE transaction_id = ? AND invoice_id IS NOT NULL)`,
        model.InvoicePending, model.InvoiceInTransaction, id); err != nil {
        return err
    }
    res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
    if err != nil {
        return err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return sql.ErrNoRows
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
