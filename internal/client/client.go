// Package client calls a running license inventory daemon over gRPC.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
	"github.com/go-tangra/go-tangra-license-inventory/internal/codec"
	"github.com/go-tangra/go-tangra-license-inventory/internal/model"
	"github.com/go-tangra/go-tangra-license-inventory/internal/server"
)

// DefaultTimeout bounds a single call when the caller's context has no
// deadline.
const DefaultTimeout = 30 * time.Second

// reply mirrors server.Response with the payload left undecoded.
type reply struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// Client is a connection to the daemon.
type Client struct {
	conn   *grpc.ClientConn
	secret string
}

// Dial connects to the daemon at addr. When secret is non-empty, it is sent
// as the x-client-secret gRPC metadata header on every call.
func Dial(addr, secret string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codec.Name)),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{conn: conn, secret: secret}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes operation with payload and decodes the reply data into out,
// which may be nil. A fail envelope is returned as an *apperr.Error carrying
// the server's kind.
func (c *Client) Call(ctx context.Context, operation string, payload, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	if c.secret != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-client-secret", c.secret)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", operation, err)
	}

	var resp reply
	if err := c.conn.Invoke(ctx, server.FullMethod(operation), json.RawMessage(raw), &resp); err != nil {
		return fmt.Errorf("call %s: %w", operation, err)
	}

	switch resp.Status {
	case server.StatusOK:
	case server.StatusError:
		return apperr.E(apperr.KindNotFound, operation, resp.Message)
	default:
		return apperr.E(apperr.ParseKind(resp.Code), operation, resp.Message)
	}

	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", operation, err)
	}
	return nil
}

// Inventories lists inventories matching f.
func (c *Client) Inventories(ctx context.Context, f model.InventoryFilter) ([]model.Inventory, error) {
	var out []model.Inventory
	err := c.Call(ctx, server.OpInventoryGetAll, f, &out)
	return out, err
}

// Inventory returns the single inventory selected by f.
func (c *Client) Inventory(ctx context.Context, f model.InventoryFilter) (*model.Inventory, error) {
	var out model.Inventory
	if err := c.Call(ctx, server.OpInventoryGet, f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateInventory declares a new inventory.
func (c *Client) CreateInventory(ctx context.Context, spec model.InventorySpec) (*model.Inventory, error) {
	var out model.Inventory
	if err := c.Call(ctx, server.OpInventoryCreate, spec, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AttachFile reports whether fileID was newly attached.
func (c *Client) AttachFile(ctx context.Context, inventoryID int64, fileID string) (bool, error) {
	var out bool
	err := c.Call(ctx, server.OpInventoryAttachFile, server.FileRequest{InventoryID: inventoryID, FileID: fileID}, &out)
	return out, err
}

// DetachFile reports whether fileID was attached.
func (c *Client) DetachFile(ctx context.Context, inventoryID int64, fileID string) (bool, error) {
	var out bool
	err := c.Call(ctx, server.OpInventoryDetachFile, server.FileRequest{InventoryID: inventoryID, FileID: fileID}, &out)
	return out, err
}

// Delete removes the inventory selected by f. It returns false without an
// error when nothing matched.
func (c *Client) Delete(ctx context.Context, f model.InventoryFilter) (bool, error) {
	var out bool
	err := c.Call(ctx, server.OpInventoryDelete, f, &out)
	if apperr.IsNotFound(err) {
		return false, nil
	}
	return out, err
}

// InventoriesForFile returns the ids of the inventories fileID is attached to.
func (c *Client) InventoriesForFile(ctx context.Context, fileID string) ([]int64, error) {
	var out []int64
	err := c.Call(ctx, server.OpFileInventories, server.FileInventoriesRequest{FileID: fileID}, &out)
	return out, err
}

// Progress reports identification progress for a scan.
func (c *Client) Progress(ctx context.Context, detected, ignored int) (*model.Progress, error) {
	var out model.Progress
	req := server.ProgressRequest{DetectedFiles: detected, IgnoredFiles: ignored}
	if err := c.Call(ctx, server.OpInventoryProgress, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Licenses lists every license.
func (c *Client) Licenses(ctx context.Context) ([]model.License, error) {
	var out []model.License
	err := c.Call(ctx, server.OpLicenseGetAll, nil, &out)
	return out, err
}

// CreateLicense registers a license name.
func (c *Client) CreateLicense(ctx context.Context, name string) (*model.License, error) {
	var out model.License
	if err := c.Call(ctx, server.OpLicenseCreate, server.LicenseRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Component returns the component with id.
func (c *Client) Component(ctx context.Context, id int64) (*model.Component, error) {
	var out model.Component
	if err := c.Call(ctx, server.OpComponentGet, server.ComponentRequest{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Components lists every component.
func (c *Client) Components(ctx context.Context) ([]model.Component, error) {
	var out []model.Component
	err := c.Call(ctx, server.OpComponentGetAll, nil, &out)
	return out, err
}

// SetComponentLicense rebinds a component's license.
func (c *Client) SetComponentLicense(ctx context.Context, componentID, licenseID int64) (*model.Component, error) {
	var out model.Component
	req := server.SetLicenseRequest{ComponentID: componentID, LicenseID: licenseID}
	if err := c.Call(ctx, server.OpComponentSetLicense, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
