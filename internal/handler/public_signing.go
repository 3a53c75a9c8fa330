package handler

import (
    "context"      // detaching the signing run from the request context
    "database/sql" // sentinel errors from repository
    "errors"       // errors.Is comparisons
    "log"          // server-side cause logging for 5xx responses
    "net/http"     // HTTP status codes
    "strings"      // PIN trimming
    "time"         // event timestamp formatting

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/invoice-signing/internal/gateway"    // signing engine client
    "github.com/iliyamo/invoice-signing/internal/queue"      // signed-event payload
    "github.com/iliyamo/invoice-signing/internal/repository" // DB repositories
    queue_publisher "github.com/iliyamo/invoice-signing/internal/service" // event publishing
    "github.com/iliyamo/invoice-signing/internal/signing"    // batch orchestrator
)

// PublicSigningHandler serves the unauthenticated signing surface.  A
// signatory who receives a transaction link can inspect the document
// list, preview PDFs, verify their PIN and trigger the batch signing.
// The PIN itself is the authorization boundary; transaction and document
// ids carry no secrets, so responses never include file bytes except the
// explicit PDF preview.
type PublicSigningHandler struct {
    Transactions *repository.TransactionRepo
    Documents    *repository.DocumentRepo
    Engine       *gateway.Client
    Orchestrator *signing.Orchestrator
}

func NewPublicSigningHandler(t *repository.TransactionRepo, d *repository.DocumentRepo, e *gateway.Client, o *signing.Orchestrator) *PublicSigningHandler {
    if t == nil || d == nil || e == nil || o == nil {
        panic("nil dependency passed to NewPublicSigningHandler")
    }
    return &PublicSigningHandler{Transactions: t, Documents: d, Engine: e, Orchestrator: o}
}

type pinReq struct {
    Pin string `json:"pin"`
}

// ListDocuments handles GET /v1/public/transactions/:id/documents.  It
// returns id, filename and status per document and nothing else.  A
// transaction with no documents is indistinguishable from an unknown one.
func (h *PublicSigningHandler) ListDocuments(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
    }
    listings, err := h.Documents.ListingsByTransaction(c.Request().Context(), id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if len(listings) == 0 {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
    }
    return c.JSON(http.StatusOK, echo.Map{"documents": listings})
}

// PreviewPDF handles GET /v1/public/documents/:id/pdf.  The original PDF
// is served inline so the signatory can read what they are about to sign.
func (h *PublicSigningHandler) PreviewPDF(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid document id"})
    }
    doc, err := h.Documents.GetByID(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "document not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    c.Response().Header().Set(echo.HeaderContentDisposition, "inline; filename="+doc.Filename+".pdf")
    return c.Blob(http.StatusOK, "application/pdf", doc.PDFFile)
}

// CheckPin handles POST /v1/public/transactions/:id/pin.  It forwards the
// PIN to the signing engine in check-only mode.  Engine failure details
// are logged server-side and never leaked to the caller.
func (h *PublicSigningHandler) CheckPin(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
    }
    var req pinReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Pin) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "PIN_REQUIRED"})
    }
    if _, err := h.Transactions.GetByID(c.Request().Context(), id); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if err := h.Engine.CheckPin(c.Request().Context(), strings.TrimSpace(req.Pin)); err != nil {
        if errors.Is(err, gateway.ErrPinInvalid) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"valid": false})
        }
        log.Printf("public: pin check for transaction %d failed: %v", id, err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "signing engine unavailable"})
    }
    return c.JSON(http.StatusOK, echo.Map{"valid": true})
}

// Sign handles POST /v1/public/transactions/:id/sign.  It runs the batch
// on a context detached from the request so a dropped connection cannot
// abandon a half-signed batch.  Error codes map one-to-one onto the
// orchestrator's sentinels.
func (h *PublicSigningHandler) Sign(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
    }
    var req pinReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Pin) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "PIN_REQUIRED"})
    }

    // The run must survive the signatory closing their browser tab.
    ctx := context.WithoutCancel(c.Request().Context())

    result, err := h.Orchestrator.SignTransaction(ctx, id, strings.TrimSpace(req.Pin))
    if err != nil {
        switch {
        case errors.Is(err, signing.ErrNotFound):
            return c.JSON(http.StatusNotFound, echo.Map{"error": "NOT_FOUND"})
        case errors.Is(err, signing.ErrAlreadySigned):
            return c.JSON(http.StatusConflict, echo.Map{"error": "ALREADY_SIGNED"})
        case errors.Is(err, signing.ErrInProgress):
            return c.JSON(http.StatusConflict, echo.Map{"error": "SIGN_IN_PROGRESS"})
        case errors.Is(err, signing.ErrPinInvalid):
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "PIN_INVALID"})
        case errors.Is(err, signing.ErrSignFailed):
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "SIGN_FAILED"})
        default:
            log.Printf("public: signing transaction %d failed: %v", id, err)
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "SIGN_FAILED"})
        }
    }

    h.publishSigned(ctx, id, result.SignedCount)

    return c.JSON(http.StatusOK, echo.Map{
        "success":      true,
        "signed_count": result.SignedCount,
    })
}

// publishSigned emits the transaction.signed event.  Publishing is best
// effort: the batch is already durable in MySQL, so a broker outage only
// costs the notification.
func (h *PublicSigningHandler) publishSigned(ctx context.Context, transactionID uint64, signedCount int) {
    txn, err := h.Transactions.GetByID(ctx, transactionID)
    if err != nil {
        log.Printf("public: loading transaction %d for event failed: %v", transactionID, err)
        return
    }
    listings, err := h.Documents.ListingsByTransaction(ctx, transactionID)
    if err != nil {
        log.Printf("public: loading documents of transaction %d for event failed: %v", transactionID, err)
        return
    }
    names := make([]string, 0, len(listings))
    for _, l := range listings {
        names = append(names, l.Filename)
    }
    signedAt := time.Now().UTC()
    if txn.SignedAt != nil {
        signedAt = *txn.SignedAt
    }
    event := queue.TransactionSignedEvent{
        TransactionID:  txn.ID,
        UserID:         txn.UserID,
        BatchNumber:    txn.BatchNumber,
        SignatoryEmail: txn.SignatoryEmail,
        ClientEmail:    txn.ClientEmail,
        Documents:      names,
        SignedCount:    signedCount,
        SignedAt:       signedAt.Format(time.RFC3339),
    }
    if err := queue_publisher.PublishTransactionSigned(ctx, event); err != nil {
        log.Printf("public: publishing signed event for transaction %d failed: %v", transactionID, err)
    }
}
