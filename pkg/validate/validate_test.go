package validate_test

import (
	"testing"

	"github.com/shashiranjanraj/leppupy/pkg/validate"
)

type registerInput struct {
	Name  string `json:"name"  validate:"required,max=20"`
	Phone string `json:"phone" validate:"required,digits=10"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role"  validate:"nullable,in=cliente|admin"`
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(registerInput{
		Name:  "Ana",
		Phone: "3312345678",
		Email: "ana@example.com",
	})
	if validate.HasErrors(errs) {
		t.Errorf("expected no errors, got: %v", errs)
	}
}

func TestRequiredFails(t *testing.T) {
	errs := validate.Struct(&registerInput{})
	for _, f := range []string{"name", "phone", "email"} {
		if _, ok := errs[f]; !ok {
			t.Errorf("expected %s to be required", f)
		}
	}
	if _, ok := errs["role"]; ok {
		t.Error("nullable role should not be reported")
	}
}

func TestDigitsRule(t *testing.T) {
	for _, phone := range []string{"123", "33123456789", "33-1234567"} {
		errs := validate.Struct(registerInput{Name: "a", Phone: phone, Email: "a@b.co"})
		if _, ok := errs["phone"]; !ok {
			t.Errorf("expected phone %q to fail", phone)
		}
	}
}

func TestInRule(t *testing.T) {
	errs := validate.Struct(registerInput{Name: "a", Phone: "3312345678", Email: "a@b.co", Role: "root"})
	if _, ok := errs["role"]; !ok {
		t.Error("expected role to be rejected")
	}
	errs = validate.Struct(registerInput{Name: "a", Phone: "3312345678", Email: "a@b.co", Role: "admin"})
	if validate.HasErrors(errs) {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestMaxAndMin(t *testing.T) {
	type in struct {
		Name  string `json:"name"  validate:"min=2,max=4"`
		Count int    `json:"count" validate:"min=1,max=3"`
	}
	errs := validate.Struct(in{Name: "abcdef", Count: 9})
	if _, ok := errs["name"]; !ok {
		t.Error("expected name length error")
	}
	if _, ok := errs["count"]; !ok {
		t.Error("expected count bound error")
	}
	if errs := validate.Struct(in{Name: "abc", Count: 2}); validate.HasErrors(errs) {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestObjectIDRule(t *testing.T) {
	type in struct {
		ID string `json:"product_id" validate:"required,objectid"`
	}
	if errs := validate.Struct(in{ID: "xyz"}); !validate.HasErrors(errs) {
		t.Error("expected objectid error")
	}
	if errs := validate.Struct(in{ID: "65f0c0ffee0000000000abcd"}); validate.HasErrors(errs) {
		t.Errorf("unexpected errors: %v", errs)
	}
}
