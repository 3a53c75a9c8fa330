package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/invoice-signing/internal/handler"
)

// RegisterPublicSigning registers the unauthenticated signing surface.
// No JWT or role middleware applies: the transaction link plus the
// signatory's PIN are the whole authorization story.  The rate limiter
// sits on the PIN-carrying POSTs to slow brute forcing; the response
// cache shortens repeated document listings.  Either middleware may be
// nil when Redis is not configured.
func RegisterPublicSigning(e *echo.Echo, p *handler.PublicSigningHandler, rateLimit, cache echo.MiddlewareFunc) {
    g := e.Group("/v1/public")

    var cached []echo.MiddlewareFunc
    if cache != nil {
        cached = append(cached, cache)
    }
    g.GET("/transactions/:id/documents", p.ListDocuments, cached...)
    g.GET("/documents/:id/pdf", p.PreviewPDF)

    var limited []echo.MiddlewareFunc
    if rateLimit != nil {
        limited = append(limited, rateLimit)
    }
    g.POST("/transactions/:id/pin", p.CheckPin, limited...)
    g.POST("/transactions/:id/sign", p.Sign, limited...)
}
