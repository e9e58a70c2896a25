package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type sampleInput struct {
	ListName string `json:"list_name" minLength:"1" doc:"Target list"`
	Name     string `json:"name" minLength:"5" maxLength:"120"`
	Priority string `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	Done     bool   `json:"done,omitempty"`
}

func TestValidateAcceptsGoodParams(t *testing.T) {
	s := Of[sampleInput]()
	err := s.Validate(map[string]any{"list_name": "Work", "name": "Write docs", "priority": "high"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	s := Of[sampleInput]()
	err := s.Validate(map[string]any{"name": "tiny", "priority": "critical"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(verr.Diagnostics) < 3 {
		t.Fatalf("expected diagnostics for list_name, name and priority, got %+v", verr.Diagnostics)
	}
	msg := verr.Error()
	for _, want := range []string{"list_name", "name", "priority"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %s", msg, want)
		}
	}
}

func TestValidateWrongType(t *testing.T) {
	s := Of[sampleInput]()
	if err := s.Validate(map[string]any{"list_name": "Work", "name": "Valid name", "done": "yes"}); err == nil {
		t.Fatalf("expected type error")
	}
}

func TestDecode(t *testing.T) {
	in, err := Decode[sampleInput](map[string]any{"list_name": "Work", "name": "Write docs"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.ListName != "Work" || in.Name != "Write docs" || in.Priority != "" {
		t.Fatalf("unexpected decode %+v", in)
	}
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Of[sampleInput]())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["type"] != "object" {
		t.Fatalf("expected object schema, got %v", doc["type"])
	}
	props, _ := doc["properties"].(map[string]any)
	if _, ok := props["list_name"]; !ok {
		t.Fatalf("missing list_name property: %s", data)
	}
	required, _ := doc["required"].([]any)
	for _, r := range required {
		if r == "priority" {
			t.Fatalf("priority should be optional")
		}
	}
}

func TestNormalizeStructs(t *testing.T) {
	m, err := Normalize(struct {
		ID int `json:"id"`
	}{ID: 7})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if m["id"] != float64(7) {
		t.Fatalf("unexpected %v", m)
	}
}
