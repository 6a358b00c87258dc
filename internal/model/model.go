// Package model defines the inventory entities and the request shapes used to
// create and select them.
package model

import (
	"strings"
	"time"

	"github.com/package-url/packageurl-go"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
)

// License is a named license such as "MIT".
type License struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Component is a declared third-party software unit, identified by
// (Name, Version, Purl).
type Component struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Purl        string `json:"purl"`
	URL         string `json:"url"`
	LicenseID   int64  `json:"license_id"`
	LicenseName string `json:"license_name,omitempty"`
}

// ComponentSpec is the input to ComponentCatalog.GetOrCreate.
type ComponentSpec struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Purl      string `json:"purl"`
	URL       string `json:"url"`
	LicenseID int64  `json:"license_id"`
}

// Inventory binds a component and its license to a set of source files.
type Inventory struct {
	ID          int64     `json:"id"`
	ComponentID int64     `json:"component_id"`
	Component   Component `json:"component"`
	License     License   `json:"license"`
	Files       []string  `json:"files"`
	CreatedAt   time.Time `json:"created_at"`
}

// InventorySpec declares a new inventory entry. Exactly one of LicenseID or
// LicenseName is needed; LicenseID wins when both are set.
type InventorySpec struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Purl        string `json:"purl"`
	URL         string `json:"url"`
	LicenseID   int64  `json:"license_id,omitempty"`
	LicenseName string `json:"license_name,omitempty"`
}

// InventoryFilter selects inventories. Zero-valued fields are ignored.
type InventoryFilter struct {
	ID          int64  `json:"id,omitempty"`
	ComponentID int64  `json:"component_id,omitempty"`
	LicenseID   int64  `json:"license_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	Purl        string `json:"purl,omitempty"`
	URL         string `json:"url,omitempty"`
	LicenseName string `json:"license_name,omitempty"`
	File        string `json:"file,omitempty"`
}

// IsEmpty reports whether no field of the filter is set.
func (f InventoryFilter) IsEmpty() bool {
	return f == InventoryFilter{}
}

// Progress summarises how much of a scan is covered by inventories.
type Progress struct {
	Detected   int `json:"detected_files"`
	Identified int `json:"identified_files"`
	Ignored    int `json:"ignored_files"`
	Percentage int `json:"percentage"`
}

// Normalize trims surrounding whitespace from every string field.
func (s *InventorySpec) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Version = strings.TrimSpace(s.Version)
	s.Purl = strings.TrimSpace(s.Purl)
	s.URL = strings.TrimSpace(s.URL)
	s.LicenseName = strings.TrimSpace(s.LicenseName)
}

// Validate checks that every field needed to create an inventory is present
// and that Purl is a well-formed package URL.
func (s InventorySpec) Validate() error {
	const op = "model.InventorySpec"

	var missing []string
	if s.Name == "" {
		missing = append(missing, "name")
	}
	if s.Version == "" {
		missing = append(missing, "version")
	}
	if s.Purl == "" {
		missing = append(missing, "purl")
	}
	if s.URL == "" {
		missing = append(missing, "url")
	}
	if s.LicenseID == 0 && s.LicenseName == "" {
		missing = append(missing, "license_id or license_name")
	}
	if len(missing) > 0 {
		return apperr.Validation(op, "missing required fields: %s", strings.Join(missing, ", "))
	}
	if s.LicenseID < 0 {
		return apperr.Validation(op, "license_id must be positive")
	}

	return ValidatePurl(s.Purl)
}

// ComponentSpec returns the component part of the spec bound to licenseID.
func (s InventorySpec) ComponentSpec(licenseID int64) ComponentSpec {
	return ComponentSpec{
		Name:      s.Name,
		Version:   s.Version,
		Purl:      s.Purl,
		URL:       s.URL,
		LicenseID: licenseID,
	}
}

// ValidatePurl reports a validation error when purl is not a package URL.
func ValidatePurl(purl string) error {
	parsed, err := packageurl.FromString(purl)
	if err != nil {
		return apperr.E(apperr.KindValidation, "model.ValidatePurl", "invalid purl "+purl, err)
	}
	if parsed.Type == "" || parsed.Name == "" {
		return apperr.Validation("model.ValidatePurl", "purl %q lacks type or name", purl)
	}
	return nil
}
