package handler

import (
    "bytes"         // readers over uploaded bytes
    "database/sql"  // sentinel errors from repository
    "errors"        // errors.Is / errors.As comparisons
    "fmt"           // attachment filename formatting
    "io"            // reading multipart file contents
    "mime/multipart" // multipart file headers
    "net/http"      // HTTP status codes
    "strconv"       // parsing invoice_ids form values
    "time"          // timestamps in responses

    "github.com/labstack/echo/v4"             // Echo web framework
    "github.com/pdfcpu/pdfcpu/pkg/api"        // PDF validation
    pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model" // pdfcpu configuration

    "github.com/iliyamo/invoice-signing/internal/archive"    // zip builder
    "github.com/iliyamo/invoice-signing/internal/matcher"    // filename pairing
    "github.com/iliyamo/invoice-signing/internal/repository" // DB repositories
)

// TransactionHandler groups the repositories needed to create and read
// signing transactions.  Creation binds uploaded PDF/XML pairs and
// pre-registered invoices into one atomic unit: either every document row
// is written and every linked invoice flips to IN_TRANSACTION, or nothing
// persists at all.
type TransactionHandler struct {
    Transactions *repository.TransactionRepo
    Documents    *repository.DocumentRepo
    Invoices     *repository.InvoiceRepo
    MaxUploadMB  int // request body ceiling for multipart uploads
}

// NewTransactionHandler constructs a TransactionHandler.  All repositories
// must be non-nil.
func NewTransactionHandler(t *repository.TransactionRepo, d *repository.DocumentRepo, i *repository.InvoiceRepo, maxUploadMB int) *TransactionHandler {
    if t == nil || d == nil || i == nil {
        panic("nil repository passed to NewTransactionHandler")
    }
    return &TransactionHandler{Transactions: t, Documents: d, Invoices: i, MaxUploadMB: maxUploadMB}
}

// readUpload loads one multipart file fully into memory.
func readUpload(fh *multipart.FileHeader) (matcher.File, error) {
    f, err := fh.Open()
    if err != nil {
        return matcher.File{}, err
    }
    defer f.Close()
    data, err := io.ReadAll(f)
    if err != nil {
        return matcher.File{}, err
    }
    return matcher.File{Name: fh.Filename, Data: data}, nil
}

// validatePDF rejects uploads that pdfcpu cannot parse as a PDF with at
// least one page.
func validatePDF(data []byte) error {
    count, err := api.PageCount(bytes.NewReader(data), pdfmodel.NewDefaultConfiguration())
    if err != nil {
        return err
    }
    if count < 1 {
        return errors.New("pdf has no pages")
    }
    return nil
}

// Create handles POST /v1/transactions.  The multipart form carries
// batch_number, signatory_email, client_email, uploaded "pdfs" and "xmls"
// files and optional repeated "invoice_ids" values.  Every PDF must pair
// with an XML of the same base name; invoice_ids pair their stored
// filename against the same XML set.  Matching is all-or-nothing.
func (h *TransactionHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if max := int64(h.MaxUploadMB) << 20; max > 0 && c.Request().ContentLength > max {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "upload too large"})
    }
    form, err := c.MultipartForm()
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart form required"})
    }

    batchNumber := c.FormValue("batch_number")
    signatoryEmail := c.FormValue("signatory_email")
    clientEmail := c.FormValue("client_email")
    if batchNumber == "" || signatoryEmail == "" || clientEmail == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "batch_number, signatory_email and client_email are required"})
    }

    // parse and deduplicate invoice ids
    var invoiceIDs []uint64
    seen := make(map[uint64]struct{})
    for _, raw := range form.Value["invoice_ids"] {
        id, errParse := strconv.ParseUint(raw, 10, 64)
        if errParse != nil || id == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid invoice id: " + raw})
        }
        if _, ok := seen[id]; !ok {
            seen[id] = struct{}{}
            invoiceIDs = append(invoiceIDs, id)
        }
    }

    pdfHeaders := form.File["pdfs"]
    xmlHeaders := form.File["xmls"]
    if len(pdfHeaders) == 0 && len(invoiceIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": matcher.ErrNoDocuments.Error()})
    }

    pdfs := make([]matcher.File, 0, len(pdfHeaders))
    for _, fh := range pdfHeaders {
        f, errRead := readUpload(fh)
        if errRead != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read upload " + fh.Filename})
        }
        if errPDF := validatePDF(f.Data); errPDF != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf: " + fh.Filename})
        }
        pdfs = append(pdfs, f)
    }
    xmls := make([]matcher.File, 0, len(xmlHeaders))
    for _, fh := range xmlHeaders {
        f, errRead := readUpload(fh)
        if errRead != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read upload " + fh.Filename})
        }
        xmls = append(xmls, f)
    }

    idx, err := matcher.NewIndex(xmls)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    pairs, err := matcher.MatchPDFs(pdfs, idx)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    taken := matcher.Taken(pairs)

    ctx := c.Request().Context()
    tx, err := h.Transactions.DB().BeginTx(ctx, nil)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    rec := repository.TransactionRecord{
        UserID:         userID,
        BatchNumber:    batchNumber,
        SignatoryEmail: signatoryEmail,
        ClientEmail:    clientEmail,
    }
    if err := h.Transactions.CreateTx(ctx, tx, &rec); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create transaction"})
    }

    docs := make([]repository.DocumentRecord, 0, len(pairs)+len(invoiceIDs))
    for _, p := range pairs {
        docs = append(docs, repository.DocumentRecord{
            TransactionID: rec.ID,
            Filename:      p.BaseName,
            PDFFile:       p.PDF,
            XMLFile:       p.XML,
        })
    }

    if len(invoiceIDs) > 0 {
        locked, errLock := h.Invoices.LockPendingForUserTx(ctx, tx, invoiceIDs, userID)
        if errLock != nil {
            switch {
            case errors.Is(errLock, repository.ErrForbidden):
                return c.JSON(http.StatusForbidden, echo.Map{"error": "invoice not owned by caller"})
            case errors.Is(errLock, repository.ErrInvoiceUnavailable):
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "invoice is not available for linking"})
            case errors.Is(errLock, sql.ErrNoRows):
                return c.JSON(http.StatusBadRequest, echo.Map{"error": "invoice not found"})
            }
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock invoices"})
        }
        for _, inv := range locked {
            invID := inv.ID
            pair, errMatch := matcher.MatchInvoice(inv.Filename, idx, taken)
            if errMatch != nil {
                return c.JSON(http.StatusBadRequest, echo.Map{"error": errMatch.Error()})
            }
            docs = append(docs, repository.DocumentRecord{
                TransactionID: rec.ID,
                InvoiceID:     &invID,
                Filename:      pair.BaseName,
                PDFFile:       inv.PDFFile,
                XMLFile:       pair.XML,
            })
        }
        if err := h.Invoices.MarkInTransactionTx(ctx, tx, invoiceIDs); err != nil {
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to link invoices"})
        }
    }

    if err := h.Documents.CreateBulkTx(ctx, tx, docs); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store documents"})
    }
    if err := tx.Commit(); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit"})
    }
    committed = true

    return c.JSON(http.StatusCreated, echo.Map{
        "transaction_id": rec.ID,
        "document_count": len(docs),
    })
}

// List handles GET /v1/transactions.  It returns the caller's
// transactions with per-status document counts, newest first.
func (h *TransactionHandler) List(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    list, err := h.Transactions.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"transactions": list})
}

type documentView struct {
    ID       uint64     `json:"id"`
    Filename string     `json:"filename"`
    Status   string     `json:"status"`
    SignedAt *time.Time `json:"signed_at,omitempty"`
}

// Get handles GET /v1/transactions/:id.  Ownership is enforced: another
// user's transaction yields 403, an unknown id 404.
func (h *TransactionHandler) Get(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
    }
    ctx := c.Request().Context()
    txn, err := h.Transactions.GetByIDForUser(ctx, id, userID)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
        }
        if errors.Is(err, repository.ErrForbidden) {
            return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    docs, err := h.Documents.ListByTransaction(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    views := make([]documentView, 0, len(docs))
    for _, d := range docs {
        views = append(views, documentView{ID: d.ID, Filename: d.Filename, Status: d.Status, SignedAt: d.SignedAt})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "id":              txn.ID,
        "batch_number":    txn.BatchNumber,
        "signatory_email": txn.SignatoryEmail,
        "client_email":    txn.ClientEmail,
        "status":          txn.Status,
        "signed_at":       txn.SignedAt,
        "created_at":      txn.CreatedAt,
        "documents":       views,
    })
}

// Archive handles GET /v1/transactions/:id/archive.  It streams a zip of
// every document's PDF and XML; signed documents contribute their signed
// XML, unsigned ones the original.  Works for any mix of states.
func (h *TransactionHandler) Archive(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
    }
    ctx := c.Request().Context()
    if _, err := h.Transactions.GetByIDForUser(ctx, id, userID); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
        }
        if errors.Is(err, repository.ErrForbidden) {
            return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    docs, err := h.Documents.ListByTransaction(ctx, id)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    blob, err := archive.Build(docs)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to build archive"})
    }
    c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=transaction_%d.zip", id))
    return c.Blob(http.StatusOK, "application/zip", blob)
}

// AdminHandler exposes administrative cleanup endpoints.  Routes using it
// sit behind RequireRole("ADMIN").
type AdminHandler struct {
    Transactions *repository.TransactionRepo
}

func NewAdminHandler(t *repository.TransactionRepo) *AdminHandler {
    if t == nil {
        panic("nil repository passed to NewAdminHandler")
    }
    return &AdminHandler{Transactions: t}
}

// DeleteTransaction handles DELETE /v1/admin/transactions/:id.  Documents
// cascade away with the row; invoices still held IN_TRANSACTION by the
// deleted batch are released back to PENDING first.
func (h *AdminHandler) DeleteTransaction(c echo.Context) error {
    id, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid transaction id"})
    }
    if err := h.Transactions.DeleteForAdmin(c.Request().Context(), id); err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "transaction not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.NoContent(http.StatusNoContent)
}
