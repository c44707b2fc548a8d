package validation

import "testing"

const widgetSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "quantity": {"type": "integer", "minimum": 1}
  },
  "required": ["name", "quantity"]
}`

type widget struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func TestValidatePayloadSuccess(t *testing.T) {
	v := New(0)
	out, err := ValidatePayload[widget](v, "connector:create_widget", widgetSchema, map[string]any{
		"name":     "bolt",
		"quantity": float64(3),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "bolt" || out.Quantity != 3 {
		t.Fatalf("unexpected decoded payload: %+v", out)
	}
}

func TestValidatePayloadFailure(t *testing.T) {
	v := New(0)
	_, err := ValidatePayload[widget](v, "connector:create_widget", widgetSchema, map[string]any{
		"name": "",
	})
	if err == nil {
		t.Fatal("expected a validation error for a missing required field and empty name")
	}
}

func TestValidatePayloadCachesCompiledSchema(t *testing.T) {
	v := New(0)
	for i := 0; i < 3; i++ {
		_, err := ValidatePayload[widget](v, "connector:create_widget", widgetSchema, map[string]any{
			"name":     "bolt",
			"quantity": float64(1),
		})
		if err != nil {
			t.Fatalf("unexpected error on iteration %d: %v", i, err)
		}
	}
	if v.compiled.Len() != 1 {
		t.Fatalf("expected exactly one compiled schema cached, got %d", v.compiled.Len())
	}
}
