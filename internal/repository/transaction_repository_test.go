package repository

import (
    "context"
    "database/sql"
    "errors"
    "testing"
    "time"

    _ "github.com/mattn/go-sqlite3"

    "github.com/iliyamo/invoice-signing/internal/model"
)

// newTestDB opens an in-memory database with the subset of the schema the
// status-machine queries touch.  One connection keeps every statement on
// the same in-memory instance.
func newTestDB(t *testing.T) *sql.DB {
    t.Helper()
    db, err := sql.Open("sqlite3", ":memory:")
    if err != nil {
        t.Fatalf("open sqlite: %v", err)
    }
    db.SetMaxOpenConns(1)
    t.Cleanup(func() { _ = db.Close() })

    const schema = `
        CREATE TABLE transactions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            batch_number TEXT NOT NULL,
            signatory_email TEXT NOT NULL,
            client_email TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'CREATED',
            signed_at TIMESTAMP,
            created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
        );
        CREATE TABLE invoices (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            number TEXT NOT NULL,
            filename TEXT NOT NULL,
            pdf_file BLOB,
            xml_file BLOB,
            status TEXT NOT NULL DEFAULT 'PENDING'
        );
        CREATE TABLE documents (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            transaction_id INTEGER NOT NULL,
            invoice_id INTEGER,
            filename TEXT NOT NULL,
            pdf_file BLOB,
            xml_file BLOB,
            xml_signed BLOB,
            status TEXT NOT NULL DEFAULT 'CREATED',
            signed_at TIMESTAMP
        );`
    if _, err := db.Exec(schema); err != nil {
        t.Fatalf("create schema: %v", err)
    }
    return db
}

func insertTransaction(t *testing.T, db *sql.DB, status string) uint64 {
    t.Helper()
    res, err := db.Exec(
        `INSERT INTO transactions (user_id, batch_number, signatory_email, client_email, status)
         VALUES (1, 'B-1', 'sig@example.com', 'client@example.com', ?)`, status)
    if err != nil {
        t.Fatalf("insert transaction: %v", err)
    }
    id, _ := res.LastInsertId()
    return uint64(id)
}

func transactionStatus(t *testing.T, db *sql.DB, id uint64) string {
    t.Helper()
    var status string
    if err := db.QueryRow(`SELECT status FROM transactions WHERE id = ?`, id).Scan(&status); err != nil {
        t.Fatalf("read status: %v", err)
    }
    return status
}

func TestBeginSigningStatusBranches(t *testing.T) {
    db := newTestDB(t)
    repo := NewTransactionRepo(db)
    ctx := context.Background()

    if err := repo.BeginSigning(ctx, 999); !errors.Is(err, sql.ErrNoRows) {
        t.Fatalf("unknown id: got %v, want sql.ErrNoRows", err)
    }

    id := insertTransaction(t, db, model.TransactionCreated)
    if err := repo.BeginSigning(ctx, id); err != nil {
        t.Fatalf("first BeginSigning: %v", err)
    }
    if got := transactionStatus(t, db, id); got != model.TransactionSigning {
        t.Fatalf("status after acquire = %s, want SIGNING", got)
    }

    // A second run must not steal the lock.
    if err := repo.BeginSigning(ctx, id); !errors.Is(err, ErrConflict) {
        t.Fatalf("locked transaction: got %v, want ErrConflict", err)
    }

    if err := repo.AbortSigning(ctx, id); err != nil {
        t.Fatalf("AbortSigning: %v", err)
    }
    if got := transactionStatus(t, db, id); got != model.TransactionCreated {
        t.Fatalf("status after release = %s, want CREATED", got)
    }

    signed := insertTransaction(t, db, model.TransactionSigned)
    if err := repo.BeginSigning(ctx, signed); !errors.Is(err, ErrAlreadySigned) {
        t.Fatalf("signed transaction: got %v, want ErrAlreadySigned", err)
    }
}

func TestFinishSigningSyncsLinkedInvoices(t *testing.T) {
    db := newTestDB(t)
    repo := NewTransactionRepo(db)
    ctx := context.Background()

    id := insertTransaction(t, db, model.TransactionSigning)

    mustExec := func(q string, args ...interface{}) {
        t.Helper()
        if _, err := db.Exec(q, args...); err != nil {
            t.Fatalf("exec %s: %v", q, err)
        }
    }
    // Two invoices bound into the batch, one unrelated invoice that must
    // stay untouched.
    mustExec(`INSERT INTO invoices (id, user_id, number, filename, status) VALUES (10, 1, 'INV-10', 'a', ?)`, model.InvoiceInTransaction)
    mustExec(`INSERT INTO invoices (id, user_id, number, filename, status) VALUES (11, 1, 'INV-11', 'b', ?)`, model.InvoiceInTransaction)
    mustExec(`INSERT INTO invoices (id, user_id, number, filename, status) VALUES (12, 1, 'INV-12', 'c', ?)`, model.InvoicePending)
    mustExec(`INSERT INTO documents (transaction_id, invoice_id, filename, status) VALUES (?, 10, 'a', 'SIGNED')`, id)
    mustExec(`INSERT INTO documents (transaction_id, invoice_id, filename, status) VALUES (?, 11, 'b', 'SIGNED')`, id)
    mustExec(`INSERT INTO documents (transaction_id, invoice_id, filename, status) VALUES (?, NULL, 'd', 'SIGNED')`, id)

    signedAt := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
    if err := repo.FinishSigning(ctx, id, signedAt); err != nil {
        t.Fatalf("FinishSigning: %v", err)
    }

    if got := transactionStatus(t, db, id); got != model.TransactionSigned {
        t.Fatalf("transaction status = %s, want SIGNED", got)
    }
    var stamped sql.NullTime
    if err := db.QueryRow(`SELECT signed_at FROM transactions WHERE id = ?`, id).Scan(&stamped); err != nil {
        t.Fatalf("read signed_at: %v", err)
    }
    if !stamped.Valid {
        t.Fatal("signed_at must be set")
    }

    invoiceStatus := func(invID int) string {
        var s string
        if err := db.QueryRow(`SELECT status FROM invoices WHERE id = ?`, invID).Scan(&s); err != nil {
            t.Fatalf("read invoice %d: %v", invID, err)
        }
        return s
    }
    if got := invoiceStatus(10); got != model.InvoiceSigned {
        t.Fatalf("invoice 10 status = %s, want SIGNED", got)
    }
    if got := invoiceStatus(11); got != model.InvoiceSigned {
        t.Fatalf("invoice 11 status = %s, want SIGNED", got)
    }
    if got := invoiceStatus(12); got != model.InvoicePending {
        t.Fatalf("invoice 12 status = %s, want PENDING (not linked)", got)
    }
}
