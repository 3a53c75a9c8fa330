// Package signing implements the batch signing workflow: every unsigned
// document of a transaction is pushed through the signing engine one at
// a time, progress is persisted per document, and the transaction plus
// its linked invoices are finalized only when the whole batch is signed.
package signing

import (
    "context"
    "database/sql"
    "errors"
    "log"
    "time"

    "github.com/iliyamo/invoice-signing/internal/gateway"
    "github.com/iliyamo/invoice-signing/internal/model"
    "github.com/iliyamo/invoice-signing/internal/repository"
)

// ErrNotFound is returned when the transaction does not exist or has no
// documents.
var ErrNotFound = errors.New("transaction not found")

// ErrAlreadySigned is returned when every document of the transaction is
// already signed.  Double-submitting a sign request is a no-op.
var ErrAlreadySigned = errors.New("transaction already signed")

// ErrInProgress is returned when another signing run currently holds the
// transaction's advisory lock.
var ErrInProgress = errors.New("signing already in progress")

// ErrPinInvalid is returned when the engine rejects the PIN.  Documents
// signed before the rejection stay signed.
var ErrPinInvalid = errors.New("pin invalid")

// ErrSignFailed is returned when the engine fails mid-batch for reasons
// other than the PIN.  Documents signed before the failure stay signed;
// retrying the same call resumes from the unsigned remainder.
var ErrSignFailed = errors.New("signing failed")

// TransactionStore is the slice of the transaction repository the
// orchestrator drives: the CREATED -> SIGNING -> SIGNED status machine.
type TransactionStore interface {
    BeginSigning(ctx context.Context, id uint64) error
    AbortSigning(ctx context.Context, id uint64) error
    FinishSigning(ctx context.Context, id uint64, signedAt time.Time) error
}

// DocumentStore loads a transaction's documents and persists one signed
// result at a time.
type DocumentStore interface {
    ListByTransaction(ctx context.Context, transactionID uint64) ([]model.Document, error)
    MarkSigned(ctx context.Context, id uint64, signedXML []byte, signedAt time.Time) error
}

// Signer produces a signed XML payload for one document.
type Signer interface {
    SignXML(ctx context.Context, pin string, xml []byte) ([]byte, error)
}

// Result reports the outcome of a completed signing run.
type Result struct {
    SignedCount int
}

// Orchestrator walks a transaction's unsigned documents through the
// engine.  Documents are signed strictly sequentially: the engine holds
// transient PIN state per call and is not proven safe for concurrent
// use, and per-document persistence means a mid-batch failure costs
// only the unsigned remainder.
type Orchestrator struct {
    transactions TransactionStore
    documents    DocumentStore
    signer       Signer
    now          func() time.Time
}

// New constructs an Orchestrator.  All dependencies must be non-nil.
func New(transactions TransactionStore, documents DocumentStore, signer Signer) *Orchestrator {
    if transactions == nil || documents == nil || signer == nil {
        panic("nil dependency passed to signing.New")
    }
    return &Orchestrator{
        transactions: transactions,
        documents:    documents,
        signer:       signer,
        now:          func() time.Time { return time.Now().UTC() },
    }
}

// SignTransaction signs every unsigned document of the transaction with
// the given PIN.  It acquires the per-transaction advisory lock first,
// so a second concurrent call fails fast with ErrInProgress instead of
// racing.  Partial progress is never rolled back: signing is a one-way
// action, and the idempotent MarkSigned lets a retry skip documents that
// are already done.
func (o *Orchestrator) SignTransaction(ctx context.Context, transactionID uint64, pin string) (Result, error) {
    if err := o.transactions.BeginSigning(ctx, transactionID); err != nil {
        switch {
        case errors.Is(err, sql.ErrNoRows):
            return Result{}, ErrNotFound
        case errors.Is(err, repository.ErrAlreadySigned):
            return Result{}, ErrAlreadySigned
        case errors.Is(err, repository.ErrConflict):
            return Result{}, ErrInProgress
        default:
            return Result{}, err
        }
    }

    docs, err := o.documents.ListByTransaction(ctx, transactionID)
    if err != nil {
        o.release(ctx, transactionID)
        return Result{}, err
    }
    if len(docs) == 0 {
        o.release(ctx, transactionID)
        return Result{}, ErrNotFound
    }

    remaining := make([]model.Document, 0, len(docs))
    for _, d := range docs {
        if d.Status != model.DocumentSigned {
            remaining = append(remaining, d)
        }
    }
    if len(remaining) == 0 {
        // All documents were signed but the transaction never got
        // finalized (e.g. a crash between the loop and FinishSigning).
        // Converge before reporting the no-op.
        if err := o.transactions.FinishSigning(ctx, transactionID, o.now()); err != nil {
            o.release(ctx, transactionID)
            return Result{}, err
        }
        return Result{}, ErrAlreadySigned
    }

    signed := 0
    for _, doc := range remaining {
        signedXML, err := o.signer.SignXML(ctx, pin, doc.XMLFile)
        if err != nil {
            o.release(ctx, transactionID)
            if errors.Is(err, gateway.ErrPinInvalid) {
                return Result{SignedCount: signed}, ErrPinInvalid
            }
            log.Printf("signing: engine failure on document %d after %d signed: %v", doc.ID, signed, err)
            return Result{SignedCount: signed}, ErrSignFailed
        }
        // Persist immediately so a later failure costs only the rest of
        // the batch.
        if err := o.documents.MarkSigned(ctx, doc.ID, signedXML, o.now()); err != nil {
            o.release(ctx, transactionID)
            log.Printf("signing: persisting document %d failed: %v", doc.ID, err)
            return Result{SignedCount: signed}, ErrSignFailed
        }
        signed++
    }

    if err := o.transactions.FinishSigning(ctx, transactionID, o.now()); err != nil {
        o.release(ctx, transactionID)
        return Result{SignedCount: signed}, err
    }
    return Result{SignedCount: signed}, nil
}

// release returns the transaction to CREATED after a failed run.  A
// failure to release is logged only; the documents' own statuses remain
// authoritative and a later run converges.
func (o *Orchestrator) release(ctx context.Context, transactionID uint64) {
    if err := o.transactions.AbortSigning(ctx, transactionID); err != nil {
        log.Printf("signing: releasing transaction %d failed: %v", transactionID, err)
    }
}
