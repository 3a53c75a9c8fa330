package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/invoice-signing/internal/handler"
    "github.com/iliyamo/invoice-signing/internal/middleware"
)

// RegisterTransactions registers the authenticated transaction and invoice
// endpoints under /v1.  All routes require a valid JWT; both USER and
// ADMIN accounts may manage their own transactions.  Ownership of
// individual records is validated within the handlers.
func RegisterTransactions(e *echo.Echo, t *handler.TransactionHandler, i *handler.InvoiceHandler, jwtSecret string) {
    g := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("USER", "ADMIN"),
    )
    g.POST("/transactions", t.Create)
    g.GET("/transactions", t.List)
    g.GET("/transactions/:id", t.Get)
    g.GET("/transactions/:id/archive", t.Archive)

    g.POST("/invoices", i.Create)
    g.GET("/invoices", i.List)
}

// RegisterAdmin registers administrative cleanup endpoints.  Only ADMIN
// accounts pass the role middleware.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
    g := e.Group(
        "/v1/admin",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("ADMIN"),
    )
    g.DELETE("/transactions/:id", a.DeleteTransaction)
}
