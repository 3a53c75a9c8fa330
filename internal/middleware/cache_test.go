package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/invoice-signing/internal/config"
)

func cacheCtx(e *echo.Echo, target string, id string) echo.Context {
    req := httptest.NewRequest(http.MethodGet, target, nil)
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/public/transactions/:id/documents")
    c.SetParamNames("id")
    c.SetParamValues(id)
    return c
}

func TestCacheKeyDistinctPerTransaction(t *testing.T) {
    cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
    e := echo.New()

    k1 := cacheKeyFrom(cfg, cacheCtx(e, "/v1/public/transactions/1/documents", "1"))
    k2 := cacheKeyFrom(cfg, cacheCtx(e, "/v1/public/transactions/2/documents", "2"))
    if k1 == k2 {
        t.Fatalf("keys for different transactions must differ, both = %s", k1)
    }

    again := cacheKeyFrom(cfg, cacheCtx(e, "/v1/public/transactions/1/documents", "1"))
    if k1 != again {
        t.Fatalf("key for the same request must be stable: %s vs %s", k1, again)
    }
}

func TestCacheKeyHonorsQueryAndStrategy(t *testing.T) {
    e := echo.New()

    withQuery := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
    plain := cacheKeyFrom(withQuery, cacheCtx(e, "/v1/public/transactions/7/documents", "7"))
    queried := cacheKeyFrom(withQuery, cacheCtx(e, "/v1/public/transactions/7/documents?page=2", "7"))
    if plain == queried {
        t.Fatal("route_query strategy must separate entries by query string")
    }

    routeOnly := config.CacheConfig{Prefix: "cache", KeyStrategy: "route"}
    a := cacheKeyFrom(routeOnly, cacheCtx(e, "/v1/public/transactions/7/documents", "7"))
    b := cacheKeyFrom(routeOnly, cacheCtx(e, "/v1/public/transactions/7/documents?page=2", "7"))
    if a != b {
        t.Fatal("route strategy must ignore the query string")
    }
    c := cacheKeyFrom(routeOnly, cacheCtx(e, "/v1/public/transactions/8/documents", "8"))
    if a == c {
        t.Fatal("route strategy must still separate entries by concrete path")
    }
}
