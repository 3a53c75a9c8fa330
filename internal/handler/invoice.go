package handler

import (
    "net/http" // HTTP status codes
    "strings"  // status query normalization

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/invoice-signing/internal/matcher"    // filename normalization
    "github.com/iliyamo/invoice-signing/internal/model"      // invoice statuses
    "github.com/iliyamo/invoice-signing/internal/repository" // DB repositories
)

// InvoiceHandler registers and lists pre-existing invoices.  A PENDING
// invoice can later be bound into a signing transaction by its stored
// filename.
type InvoiceHandler struct {
    Invoices    *repository.InvoiceRepo
    MaxUploadMB int
}

func NewInvoiceHandler(i *repository.InvoiceRepo, maxUploadMB int) *InvoiceHandler {
    if i == nil {
        panic("nil repository passed to NewInvoiceHandler")
    }
    return &InvoiceHandler{Invoices: i, MaxUploadMB: maxUploadMB}
}

// Create handles POST /v1/invoices.  The multipart form carries "number",
// a "pdf" file and an "xml" file.  The filename stored for pairing is the
// normalized base name of the uploaded PDF.
func (h *InvoiceHandler) Create(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if max := int64(h.MaxUploadMB) << 20; max > 0 && c.Request().ContentLength > max {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "upload too large"})
    }
    number := c.FormValue("number")
    if number == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "number is required"})
    }
    pdfHeader, err := c.FormFile("pdf")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "pdf file is required"})
    }
    xmlHeader, err := c.FormFile("xml")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "xml file is required"})
    }
    pdf, err := readUpload(pdfHeader)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read pdf upload"})
    }
    if err := validatePDF(pdf.Data); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pdf: " + pdfHeader.Filename})
    }
    xml, err := readUpload(xmlHeader)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read xml upload"})
    }

    filename := matcher.BaseName(pdf.Name)
    if filename == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "pdf filename is empty"})
    }

    id, err := h.Invoices.Create(c.Request().Context(), userID, number, filename, pdf.Data, xml.Data)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create invoice"})
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "invoice_id": id,
        "filename":   filename,
        "status":     model.InvoicePending,
    })
}

// List handles GET /v1/invoices.  An optional ?status= query narrows the
// result to one lifecycle state.
func (h *InvoiceHandler) List(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
    switch status {
    case "", model.InvoicePending, model.InvoiceInTransaction, model.InvoiceSigned:
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
    }
    list, err := h.Invoices.ListByUser(c.Request().Context(), userID, status)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"invoices": list})
}
