package model

import (
	"testing"

	"github.com/go-tangra/go-tangra-license-inventory/internal/apperr"
)

func validSpec() InventorySpec {
	return InventorySpec{
		Name:        "left-pad",
		Version:     "1.3.0",
		Purl:        "pkg:npm/left-pad@1.3.0",
		URL:         "https://npmjs.com/left-pad",
		LicenseName: "MIT",
	}
}

func TestInventorySpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*InventorySpec)
		wantErr bool
	}{
		{name: "valid by license name", mutate: func(*InventorySpec) {}},
		{name: "valid by license id", mutate: func(s *InventorySpec) { s.LicenseName = ""; s.LicenseID = 4 }},
		{name: "missing name", mutate: func(s *InventorySpec) { s.Name = "" }, wantErr: true},
		{name: "missing version", mutate: func(s *InventorySpec) { s.Version = "" }, wantErr: true},
		{name: "missing purl", mutate: func(s *InventorySpec) { s.Purl = "" }, wantErr: true},
		{name: "missing url", mutate: func(s *InventorySpec) { s.URL = "" }, wantErr: true},
		{name: "missing license", mutate: func(s *InventorySpec) { s.LicenseName = "" }, wantErr: true},
		{name: "negative license id", mutate: func(s *InventorySpec) { s.LicenseName = ""; s.LicenseID = -1 }, wantErr: true},
		{name: "malformed purl", mutate: func(s *InventorySpec) { s.Purl = "npm/left-pad" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSpec()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Validate() = nil, want error")
				}
				if apperr.KindOf(err) != apperr.KindValidation {
					t.Errorf("KindOf() = %v, want validation", apperr.KindOf(err))
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestInventorySpec_Normalize(t *testing.T) {
	s := InventorySpec{Name: "  left-pad ", Version: "1.3.0\n", LicenseName: " MIT"}
	s.Normalize()

	if s.Name != "left-pad" || s.Version != "1.3.0" || s.LicenseName != "MIT" {
		t.Errorf("Normalize() = %+v", s)
	}
}

func TestInventoryFilter_IsEmpty(t *testing.T) {
	if !(InventoryFilter{}).IsEmpty() {
		t.Errorf("zero filter should be empty")
	}
	if (InventoryFilter{File: "src/index.js"}).IsEmpty() {
		t.Errorf("filter with file should not be empty")
	}
}
