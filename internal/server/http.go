package server

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
)

// maxBodyBytes bounds request payloads read by the HTTP routes.
const maxBodyBytes = 1 << 20

// payloadFunc extracts the operation payload from an HTTP request.
type payloadFunc func(ctx kratoshttp.Context) (json.RawMessage, error)

// RegisterHTTPRoutes mounts the generic RPC route and the REST aliases on srv.
func RegisterHTTPRoutes(srv *kratoshttp.Server, reg *Registry) {
	r := srv.Route("/")

	r.POST("/v1/rpc/{operation}", func(ctx kratoshttp.Context) error {
		name := ctx.Vars().Get("operation")
		return serve(ctx, reg, name, body)
	})

	r.GET("/v1/inventories", route(reg, OpInventoryGetAll, queryFilter))
	r.POST("/v1/inventories", route(reg, OpInventoryCreate, body))
	r.GET("/v1/inventories/{id}", route(reg, OpInventoryGet, idFilter("id")))
	r.DELETE("/v1/inventories/{id}", route(reg, OpInventoryDelete, idFilter("id")))
	r.POST("/v1/inventories/{id}/attach", route(reg, OpInventoryAttachFile, fileRequest))
	r.POST("/v1/inventories/{id}/detach", route(reg, OpInventoryDetachFile, fileRequest))

	r.GET("/v1/licenses", route(reg, OpLicenseGetAll, nil))
	r.POST("/v1/licenses", route(reg, OpLicenseCreate, body))

	r.GET("/v1/components", route(reg, OpComponentGetAll, nil))
	r.GET("/v1/components/{id}", route(reg, OpComponentGet, idFilter("id")))

	// File ids are slash-separated paths.
	r.GET("/v1/files/{file:.+}/inventories", route(reg, OpFileInventories, fileInventories))
}

func route(reg *Registry, operation string, extract payloadFunc) kratoshttp.HandlerFunc {
	return func(ctx kratoshttp.Context) error {
		return serve(ctx, reg, operation, extract)
	}
}

// serve runs operation through the kratos middleware chain and writes the
// envelope with a status code derived from it.
func serve(ctx kratoshttp.Context, reg *Registry, operation string, extract payloadFunc) error {
	kratoshttp.SetOperation(ctx, operation)

	var payload json.RawMessage
	if extract != nil {
		var err error
		payload, err = extract(ctx)
		if err != nil {
			resp := failure(err)
			return ctx.Result(resp.HTTPStatus(), resp)
		}
	}

	h := ctx.Middleware(func(ctx context.Context, req any) (any, error) {
		return reg.Dispatch(ctx, operation, req.(json.RawMessage)), nil
	})
	out, err := h(ctx, payload)
	if err != nil {
		return err
	}

	resp := out.(*Response)
	return ctx.Result(resp.HTTPStatus(), resp)
}

func body(ctx kratoshttp.Context) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.E(apperr.KindValidation, "server.body", "read request body", err)
	}
	if len(data) > 0 && !json.Valid(data) {
		return nil, apperr.Validation("server.body", "request body is not valid JSON")
	}
	return data, nil
}

func queryFilter(ctx kratoshttp.Context) (json.RawMessage, error) {
	var f model.InventoryFilter
	if err := ctx.BindQuery(&f); err != nil {
		return nil, apperr.E(apperr.KindValidation, "server.query", "invalid query", err)
	}
	return json.Marshal(f)
}

func idFilter(name string) payloadFunc {
	return func(ctx kratoshttp.Context) (json.RawMessage, error) {
		id, err := pathID(ctx, name)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]int64{"id": id})
	}
}

func fileRequest(ctx kratoshttp.Context) (json.RawMessage, error) {
	id, err := pathID(ctx, "id")
	if err != nil {
		return nil, err
	}
	raw, err := body(ctx)
	if err != nil {
		return nil, err
	}
	var req FileRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, apperr.E(apperr.KindValidation, "server.fileRequest", "malformed payload", err)
		}
	}
	req.InventoryID = id
	return json.Marshal(req)
}

func fileInventories(ctx kratoshttp.Context) (json.RawMessage, error) {
	return json.Marshal(FileInventoriesRequest{FileID: ctx.Vars().Get("file")})
}

func pathID(ctx kratoshttp.Context, name string) (int64, error) {
	raw := ctx.Vars().Get(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("server.pathID", "%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

