package handler

import (
    "errors"
    "strconv"

    "github.com/labstack/echo/v4"
)

// getUserID extracts the authenticated user's ID from the request
// context.  JWTAuth stores the subject claim without normalizing its
// type, so every encoding the JWT library may produce is accepted.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric path parameter; zero is rejected because no
// generated identifier is ever zero.
func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, errors.New("invalid id")
    }
    return id, nil
}
