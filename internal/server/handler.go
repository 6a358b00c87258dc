package server

import (
	"context"
	"encoding/json"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/inventory"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
)

// Operation names.
const (
	OpInventoryGetAll     = "inventory.getAll"
	OpInventoryGet        = "inventory.get"
	OpInventoryCreate     = "inventory.create"
	OpInventoryAttachFile = "inventory.attachFile"
	OpInventoryDetachFile = "inventory.detachFile"
	OpInventoryDelete     = "inventory.delete"
	OpInventoryProgress   = "inventory.progress"
	OpLicenseGetAll       = "license.getAll"
	OpLicenseCreate       = "license.create"
	OpComponentGet        = "component.get"
	OpComponentGetAll     = "component.getAll"
	OpComponentSetLicense = "component.setLicense"
	OpFileInventories     = "file.inventories"
)

// FileRequest is the payload of inventory.attachFile and inventory.detachFile.
type FileRequest struct {
	InventoryID int64  `json:"inventory_id"`
	FileID      string `json:"file_id"`
}

// FileInventoriesRequest is the payload of file.inventories.
type FileInventoriesRequest struct {
	FileID string `json:"file_id"`
}

// ProgressRequest is the payload of inventory.progress.
type ProgressRequest struct {
	DetectedFiles int `json:"detected_files"`
	IgnoredFiles  int `json:"ignored_files"`
}

// LicenseRequest is the payload of license.create.
type LicenseRequest struct {
	Name string `json:"name"`
}

// ComponentRequest is the payload of component.get.
type ComponentRequest struct {
	ID int64 `json:"id"`
}

// SetLicenseRequest is the payload of component.setLicense.
type SetLicenseRequest struct {
	ComponentID int64 `json:"component_id"`
	LicenseID   int64 `json:"license_id"`
}

// Handler adapts inventory.Service to named operations.
type Handler struct {
	svc *inventory.Service
}

// NewHandler creates a Handler backed by svc.
func NewHandler(svc *inventory.Service) *Handler {
	return &Handler{svc: svc}
}

// Register adds every operation to reg.
func (h *Handler) Register(reg *Registry) {
	reg.Register(OpInventoryGetAll, h.getAll)
	reg.Register(OpInventoryGet, h.get)
	reg.Register(OpInventoryCreate, h.create)
	reg.Register(OpInventoryAttachFile, h.attachFile)
	reg.Register(OpInventoryDetachFile, h.detachFile)
	reg.Register(OpInventoryDelete, h.delete)
	reg.Register(OpInventoryProgress, h.progress)
	reg.Register(OpLicenseGetAll, h.licenses)
	reg.Register(OpLicenseCreate, h.createLicense)
	reg.Register(OpComponentGet, h.component)
	reg.Register(OpComponentGetAll, h.components)
	reg.Register(OpComponentSetLicense, h.setComponentLicense)
	reg.Register(OpFileInventories, h.fileInventories)
}

func (h *Handler) getAll(ctx context.Context, payload json.RawMessage) (any, error) {
	var f model.InventoryFilter
	if err := decode(OpInventoryGetAll, payload, &f); err != nil {
		return nil, err
	}
	return h.svc.GetAll(ctx, f)
}

func (h *Handler) get(ctx context.Context, payload json.RawMessage) (any, error) {
	var f model.InventoryFilter
	if err := decode(OpInventoryGet, payload, &f); err != nil {
		return nil, err
	}
	return h.svc.Get(ctx, f)
}

func (h *Handler) create(ctx context.Context, payload json.RawMessage) (any, error) {
	var spec model.InventorySpec
	if err := decode(OpInventoryCreate, payload, &spec); err != nil {
		return nil, err
	}
	return h.svc.Create(ctx, spec)
}

func (h *Handler) attachFile(ctx context.Context, payload json.RawMessage) (any, error) {
	var req FileRequest
	if err := decode(OpInventoryAttachFile, payload, &req); err != nil {
		return nil, err
	}
	return h.svc.AttachFile(ctx, req.InventoryID, req.FileID)
}

func (h *Handler) detachFile(ctx context.Context, payload json.RawMessage) (any, error) {
	var req FileRequest
	if err := decode(OpInventoryDetachFile, payload, &req); err != nil {
		return nil, err
	}
	return h.svc.DetachFile(ctx, req.InventoryID, req.FileID)
}

func (h *Handler) delete(ctx context.Context, payload json.RawMessage) (any, error) {
	var f model.InventoryFilter
	if err := decode(OpInventoryDelete, payload, &f); err != nil {
		return nil, err
	}
	deleted, err := h.svc.Delete(ctx, f)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return negative{message: "no inventory matched", data: false}, nil
	}
	return true, nil
}

func (h *Handler) progress(ctx context.Context, payload json.RawMessage) (any, error) {
	var req ProgressRequest
	if err := decode(OpInventoryProgress, payload, &req); err != nil {
		return nil, err
	}
	return h.svc.Progress(ctx, req.DetectedFiles, req.IgnoredFiles)
}

func (h *Handler) licenses(ctx context.Context, _ json.RawMessage) (any, error) {
	return h.svc.Licenses(ctx)
}

func (h *Handler) createLicense(ctx context.Context, payload json.RawMessage) (any, error) {
	var req LicenseRequest
	if err := decode(OpLicenseCreate, payload, &req); err != nil {
		return nil, err
	}
	return h.svc.CreateLicense(ctx, req.Name)
}

func (h *Handler) component(ctx context.Context, payload json.RawMessage) (any, error) {
	var req ComponentRequest
	if err := decode(OpComponentGet, payload, &req); err != nil {
		return nil, err
	}
	if req.ID <= 0 {
		return nil, apperr.Validation(OpComponentGet, "id is required")
	}
	return h.svc.Component(ctx, req.ID)
}

func (h *Handler) components(ctx context.Context, _ json.RawMessage) (any, error) {
	return h.svc.Components(ctx)
}

func (h *Handler) setComponentLicense(ctx context.Context, payload json.RawMessage) (any, error) {
	var req SetLicenseRequest
	if err := decode(OpComponentSetLicense, payload, &req); err != nil {
		return nil, err
	}
	if req.ComponentID <= 0 || req.LicenseID <= 0 {
		return nil, apperr.Validation(OpComponentSetLicense, "component_id and license_id are required")
	}
	return h.svc.SetComponentLicense(ctx, req.ComponentID, req.LicenseID)
}

func (h *Handler) fileInventories(ctx context.Context, payload json.RawMessage) (any, error) {
	var req FileInventoriesRequest
	if err := decode(OpFileInventories, payload, &req); err != nil {
		return nil, err
	}
	return h.svc.InventoriesForFile(ctx, req.FileID)
}
