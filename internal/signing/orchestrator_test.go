package signing

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "testing"
    "time"

    "github.com/iliyamo/invoice-signing/internal/gateway"
    "github.com/iliyamo/invoice-signing/internal/model"
    "github.com/iliyamo/invoice-signing/internal/repository"
)

// fakeStore backs both store interfaces with in-memory state sharing the
// repository's status semantics.
type fakeStore struct {
    status    string
    docs      []model.Document
    finished  bool
    finishErr error
}

func (f *fakeStore) BeginSigning(ctx context.Context, id uint64) error {
    switch f.status {
    case "":
        return sql.ErrNoRows
    case model.TransactionSigned:
        return repository.ErrAlreadySigned
    case model.TransactionSigning:
        return repository.ErrConflict
    }
    f.status = model.TransactionSigning
    return nil
}

func (f *fakeStore) AbortSigning(ctx context.Context, id uint64) error {
    if f.status == model.TransactionSigning {
        f.status = model.TransactionCreated
    }
    return nil
}

func (f *fakeStore) FinishSigning(ctx context.Context, id uint64, signedAt time.Time) error {
    if f.finishErr != nil {
        return f.finishErr
    }
    f.status = model.TransactionSigned
    f.finished = true
    return nil
}

func (f *fakeStore) ListByTransaction(ctx context.Context, id uint64) ([]model.Document, error) {
    out := make([]model.Document, len(f.docs))
    copy(out, f.docs)
    return out, nil
}

func (f *fakeStore) MarkSigned(ctx context.Context, id uint64, signedXML []byte, signedAt time.Time) error {
    for i := range f.docs {
        if f.docs[i].ID == id {
            if f.docs[i].Status == model.DocumentSigned {
                return nil // idempotent no-op
            }
            at := signedAt
            f.docs[i].Status = model.DocumentSigned
            f.docs[i].XMLSigned = signedXML
            f.docs[i].SignedAt = &at
            return nil
        }
    }
    return sql.ErrNoRows
}

// fakeSigner accepts one PIN and can be told to fail on the nth call.
type fakeSigner struct {
    pin      string
    calls    int
    failCall int // 1-based call index that returns ErrUnavailable; 0 = never
}

func (s *fakeSigner) SignXML(ctx context.Context, pin string, xml []byte) ([]byte, error) {
    s.calls++
    if pin != s.pin {
        return nil, gateway.ErrPinInvalid
    }
    if s.failCall != 0 && s.calls == s.failCall {
        return nil, fmt.Errorf("%w: connection reset", gateway.ErrUnavailable)
    }
    return append([]byte("<signed>"), xml...), nil
}

func threeDocs() []model.Document {
    return []model.Document{
        {ID: 1, Filename: "a", XMLFile: []byte("<a/>"), Status: model.DocumentCreated},
        {ID: 2, Filename: "b", XMLFile: []byte("<b/>"), Status: model.DocumentCreated},
        {ID: 3, Filename: "c", XMLFile: []byte("<c/>"), Status: model.DocumentCreated},
    }
}

func TestSignTransactionSuccess(t *testing.T) {
    store := &fakeStore{status: model.TransactionCreated, docs: threeDocs()}
    o := New(store, store, &fakeSigner{pin: "1234"})

    res, err := o.SignTransaction(context.Background(), 7, "1234")
    if err != nil {
        t.Fatalf("SignTransaction: %v", err)
    }
    if res.SignedCount != 3 {
        t.Errorf("signed count = %d, want 3", res.SignedCount)
    }
    if !store.finished || store.status != model.TransactionSigned {
        t.Errorf("transaction not finalized: finished=%v status=%s", store.finished, store.status)
    }
    for _, d := range store.docs {
        if d.Status != model.DocumentSigned || d.XMLSigned == nil || d.SignedAt == nil {
            t.Errorf("document %d not fully signed: %+v", d.ID, d)
        }
    }
}

func TestSignTransactionIdempotent(t *testing.T) {
    store := &fakeStore{status: model.TransactionCreated, docs: threeDocs()}
    o := New(store, store, &fakeSigner{pin: "1234"})

    if _, err := o.SignTransaction(context.Background(), 7, "1234"); err != nil {
        t.Fatalf("first run: %v", err)
    }
    stamps := make([]time.Time, 0, 3)
    for _, d := range store.docs {
        stamps = append(stamps, *d.SignedAt)
    }

    _, err := o.SignTransaction(context.Background(), 7, "1234")
    if !errors.Is(err, ErrAlreadySigned) {
        t.Fatalf("second run: got %v, want ErrAlreadySigned", err)
    }
    for i, d := range store.docs {
        if !d.SignedAt.Equal(stamps[i]) {
            t.Errorf("document %d signed_at changed on no-op retry", d.ID)
        }
    }
}

func TestSignTransactionPartialFailureResumes(t *testing.T) {
    store := &fakeStore{status: model.TransactionCreated, docs: threeDocs()}
    signer := &fakeSigner{pin: "1234", failCall: 2}
    o := New(store, store, signer)

    res, err := o.SignTransaction(context.Background(), 7, "1234")
    if !errors.Is(err, ErrSignFailed) {
        t.Fatalf("got %v, want ErrSignFailed", err)
    }
    if res.SignedCount != 1 {
        t.Errorf("signed count = %d, want 1", res.SignedCount)
    }
    if store.docs[0].Status != model.DocumentSigned {
        t.Error("document 1 should remain durably signed")
    }
    if store.docs[1].Status != model.DocumentCreated || store.docs[2].Status != model.DocumentCreated {
        t.Error("documents 2-3 should remain unsigned")
    }
    if store.status != model.TransactionCreated {
        t.Errorf("advisory lock not released: status=%s", store.status)
    }
    firstStamp := *store.docs[0].SignedAt

    // Retry resumes from the unsigned remainder only.
    signer.failCall = 0
    res, err = o.SignTransaction(context.Background(), 7, "1234")
    if err != nil {
        t.Fatalf("retry: %v", err)
    }
    if res.SignedCount != 2 {
        t.Errorf("retry signed count = %d, want 2", res.SignedCount)
    }
    if !store.docs[0].SignedAt.Equal(firstStamp) {
        t.Error("document 1 signed_at must not change on retry")
    }
    if store.status != model.TransactionSigned {
        t.Errorf("status = %s, want SIGNED", store.status)
    }
}

func TestSignTransactionPinInvalid(t *testing.T) {
    store := &fakeStore{status: model.TransactionCreated, docs: threeDocs()}
    o := New(store, store, &fakeSigner{pin: "1234"})

    res, err := o.SignTransaction(context.Background(), 7, "9999")
    if !errors.Is(err, ErrPinInvalid) {
        t.Fatalf("got %v, want ErrPinInvalid", err)
    }
    if res.SignedCount != 0 {
        t.Errorf("signed count = %d, want 0", res.SignedCount)
    }
    if store.status != model.TransactionCreated {
        t.Errorf("advisory lock not released: status=%s", store.status)
    }
}

func TestSignTransactionGuards(t *testing.T) {
    o := New(&fakeStore{}, &fakeStore{}, &fakeSigner{pin: "1234"})
    if _, err := o.SignTransaction(context.Background(), 1, "1234"); !errors.Is(err, ErrNotFound) {
        t.Errorf("unknown id: got %v, want ErrNotFound", err)
    }

    busy := &fakeStore{status: model.TransactionSigning, docs: threeDocs()}
    o = New(busy, busy, &fakeSigner{pin: "1234"})
    if _, err := o.SignTransaction(context.Background(), 1, "1234"); !errors.Is(err, ErrInProgress) {
        t.Errorf("concurrent run: got %v, want ErrInProgress", err)
    }

    empty := &fakeStore{status: model.TransactionCreated}
    o = New(empty, empty, &fakeSigner{pin: "1234"})
    if _, err := o.SignTransaction(context.Background(), 1, "1234"); !errors.Is(err, ErrNotFound) {
        t.Errorf("no documents: got %v, want ErrNotFound", err)
    }
    if empty.status != model.TransactionCreated {
        t.Errorf("lock not released on empty transaction: status=%s", empty.status)
    }
}
