package validation_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagiseum/gallery/internal/validation"
)

type signup struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type imagePatch struct {
	Name *string   `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Tags *[]string `json:"tags,omitempty" validate:"omitempty,max=10,dive,min=1,max=30,tag"`
}

func strp(s string) *string { return &s }

func TestValidate_OK(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(signup{Name: "Ada", Email: "ada@example.com", Password: "secret1"}))
	assert.NoError(t, v.Validate(imagePatch{}))
}

func TestValidate_FieldErrorsUseJSONNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(signup{Name: "A", Email: "nope", Password: ""})
	require.Error(t, err)

	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Validation error", verr.Message)
	assert.Equal(t, "must be at least 2 characters", verr.Fields["name"])
	assert.Equal(t, "must be a valid email address", verr.Fields["email"])
	assert.Equal(t, "is required", verr.Fields["password"])
	assert.True(t, strings.HasPrefix(verr.Error(), "email "))
}

func TestValidate_TagRules(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name string
		tags []string
		msg  string
	}{
		{"punctuation", []string{"ok", "no-dash"}, "may only contain letters, numbers and spaces"},
		{"too long", []string{strings.Repeat("a", 31)}, "entries must not exceed 30 characters"},
		{"too many", make11(), "must not contain more than 10 items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(imagePatch{Tags: &tt.tags})
			var verr *validation.Error
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.msg, verr.Fields["tags"])
		})
	}

	ok := []string{"sunset", "Blue Sky 2"}
	assert.NoError(t, v.Validate(imagePatch{Name: strp("x"), Tags: &ok}))
}

func TestValidate_EmptyPointerIsRejected(t *testing.T) {
	v := validation.New()
	err := v.Validate(imagePatch{Name: strp("")})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "name")
}

func make11() []string {
	out := make([]string, 11)
	for i := range out {
		out[i] = "t"
	}
	return out
}
