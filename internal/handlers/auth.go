package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/swiftdrop/delivery-gateway/internal/apperr"
	"github.com/swiftdrop/delivery-gateway/internal/model"
	"github.com/swiftdrop/delivery-gateway/internal/services"
	xhttp "github.com/swiftdrop/delivery-gateway/pkg/http"
)

// Actor identity arrives in X-User-ID / X-User-Role headers, installed by
// the auth edge in front of this service. Requests without them are
// unauthenticated.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

func actorFrom(ctx *xhttp.RequestCtx) (services.Actor, bool) {
	idRaw := string(ctx.Request.Header.Peek(headerUserID))
	roleRaw := string(ctx.Request.Header.Peek(headerUserRole))

	id, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil || id <= 0 {
		return services.Actor{}, false
	}

	role := model.Role(roleRaw)
	if !role.Valid() {
		return services.Actor{}, false
	}

	return services.Actor{ID: id, Role: role}, true
}

// requireActor resolves the caller or writes a 401 and returns false.
func requireActor(ctx *xhttp.RequestCtx) (services.Actor, bool) {
	actor, ok := actorFrom(ctx)
	if !ok {
		writeError(ctx, 401, "missing or invalid identity headers")
	}
	return actor, ok
}

// writeServiceError maps a service error to its HTTP status via the error's
// kind. Unknown errors are opaque 500s.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindInvalidTransition:
		writeError(ctx, 400, apperr.Message(err))
	case apperr.KindNotFound:
		writeError(ctx, 404, apperr.Message(err))
	case apperr.KindForbidden:
		writeError(ctx, 403, apperr.Message(err))
	case apperr.KindConflict:
		writeError(ctx, 409, apperr.Message(err))
	default:
		writeError(ctx, 500, "internal error")
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func pathParam(ctx *xhttp.RequestCtx, name string) string {
	if v, ok := ctx.UserValue(name).(string); ok {
		return v
	}
	return ""
}
