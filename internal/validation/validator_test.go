// Sentinel - Security Telemetry Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package validation

import (
	"strings"
	"testing"
)

// ===================================================================================================
// Singleton Validator Tests
// ===================================================================================================

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same instance")
	}
}

// ===================================================================================================
// ValidateStruct Tests
// ===================================================================================================

type ingestRequest struct {
	ActorID  string `json:"actor_id" validate:"required,max=64"`
	Action   string `json:"action" validate:"required"`
	Severity string `json:"severity" validate:"omitempty,audit_severity"`
	IP       string `json:"ip_address" validate:"omitempty,ip"`
	Limit    int    `json:"limit" validate:"min=0,max=1000"`
	Internal string `json:"-" validate:"max=3"`
}

func validIngest() ingestRequest {
	return ingestRequest{ActorID: "user-1", Action: "login", Severity: "high", IP: "10.0.0.1", Limit: 10}
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input ingestRequest
	}{
		{"all fields", validIngest()},
		{"optional fields empty", ingestRequest{ActorID: "a", Action: "b"}},
		{"ipv6", func() ingestRequest { r := validIngest(); r.IP = "2001:db8::1"; return r }()},
		{"limit bounds", func() ingestRequest { r := validIngest(); r.Limit = 1000; return r }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateStruct(&tt.input); err != nil {
				t.Errorf("ValidateStruct() = %v, want nil", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *ingestRequest)
		wantField string
		wantTag   string
	}{
		{"missing actor", func(r *ingestRequest) { r.ActorID = "" }, "actor_id", "required"},
		{"actor too long", func(r *ingestRequest) { r.ActorID = strings.Repeat("a", 65) }, "actor_id", "max"},
		{"unknown severity", func(r *ingestRequest) { r.Severity = "critical" }, "severity", "audit_severity"},
		{"bad ip", func(r *ingestRequest) { r.IP = "10.0.0" }, "ip_address", "ip"},
		{"negative limit", func(r *ingestRequest) { r.Limit = -1 }, "limit", "min"},
		{"untagged json field uses struct name", func(r *ingestRequest) { r.Internal = "toolong" }, "Internal", "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validIngest()
			tt.mutate(&req)

			verr := ValidateStruct(&req)
			if verr == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			errs := verr.Errors()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), verr)
			}
			if errs[0].Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", errs[0].Field(), tt.wantField)
			}
			if errs[0].Tag() != tt.wantTag {
				t.Errorf("Tag() = %q, want %q", errs[0].Tag(), tt.wantTag)
			}
		})
	}
}

// ===================================================================================================
// Custom Tag Tests
// ===================================================================================================

func TestTimeframeValidation(t *testing.T) {
	type overviewRequest struct {
		Timeframe string `json:"timeframe" validate:"timeframe"`
	}

	for _, tf := range []string{"1h", "24h", "7d", "30d"} {
		if err := ValidateStruct(&overviewRequest{Timeframe: tf}); err != nil {
			t.Errorf("timeframe %q rejected: %v", tf, err)
		}
	}
	for _, tf := range []string{"", "2h", "1d", "30D", "week"} {
		verr := ValidateStruct(&overviewRequest{Timeframe: tf})
		if verr == nil {
			t.Errorf("timeframe %q accepted", tf)
			continue
		}
		if got := verr.Error(); got != "timeframe must be one of: 1h, 24h, 7d, 30d" {
			t.Errorf("message = %q", got)
		}
	}
}

// ===================================================================================================
// ToAPIError Tests
// ===================================================================================================

func TestToAPIError_SingleError(t *testing.T) {
	req := validIngest()
	req.Severity = "urgent"

	apiErr := ValidateStruct(&req).ToAPIError()

	if apiErr.Code != ErrorCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrorCode)
	}
	if apiErr.Message != "severity must be one of: low, medium, high" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "severity" || apiErr.Details["value"] != "urgent" {
		t.Errorf("Details = %v", apiErr.Details)
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	req := ingestRequest{Limit: 5000}

	verr := ValidateStruct(&req)
	if verr == nil {
		t.Fatal("expected errors")
	}
	apiErr := verr.ToAPIError()

	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Details[fields] has type %T", apiErr.Details["fields"])
	}
	if len(fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(fields))
	}
	for _, want := range []string{"actor_id: actor_id is required", "action: action is required", "limit: limit must be at most 1000"} {
		if !strings.Contains(apiErr.Message, want) {
			t.Errorf("Message %q missing %q", apiErr.Message, want)
		}
	}
}

func TestToAPIError_Empty(t *testing.T) {
	apiErr := (&RequestValidationError{}).ToAPIError()
	if apiErr.Code != ErrorCode || apiErr.Message != "Validation failed" {
		t.Errorf("got %+v", apiErr)
	}
	if (&RequestValidationError{}).Error() != "validation failed" {
		t.Error("empty Error() message mismatch")
	}
}

func TestValidateStruct_NonStruct(t *testing.T) {
	verr := ValidateStruct("not a struct")
	if verr == nil {
		t.Fatal("expected error for non-struct input")
	}
	if verr.Errors()[0].Field() != "unknown" {
		t.Errorf("Field() = %q, want unknown", verr.Errors()[0].Field())
	}
}
