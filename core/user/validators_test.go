package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youpass/youpass/core"
)

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidate(t)

	tests := []struct {
		name    string
		data    NewUser
		wantTag string
	}{
		{name: "valid", data: NewUser{Name: " Jane Doe ", Email: " Jane@Example.com ", Password: "Xq9!vLp2#"}},
		{name: "missing email", data: NewUser{Name: "Jane Doe", Password: "Xq9!vLp2#"}, wantTag: "required"},
		{name: "bad email", data: NewUser{Name: "Jane Doe", Email: "jane", Password: "Xq9!vLp2#"}, wantTag: "email"},
		{name: "short password", data: NewUser{Name: "Jane Doe", Email: "jane@example.com", Password: "x9!"}, wantTag: pwdMinLenTag},
		{name: "password like name", data: NewUser{Name: "Jane Doe", Email: "jane@example.com", Password: "janedoe"}},
		{name: "six chars", data: NewUser{Name: "Jane Doe", Email: "jane@example.com", Password: "jandoe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.data
			err := data.Validate(validate)
			if tt.wantTag == "" {
				require.NoError(t, err)
				assert.Equal(t, "Jane Doe", data.Name)
				assert.Equal(t, "jane@example.com", data.Email)
				return
			}
			var vErrs validator.ValidationErrors
			require.True(t, errors.As(err, &vErrs), err)
			require.Len(t, vErrs, 1)
			assert.Equal(t, tt.wantTag, vErrs[0].Tag())
		})
	}
}

func TestChangePassword_Validate(t *testing.T) {
	validate := newValidate(t)

	assert.NoError(t, ChangePassword{Password: "Xq9!vLp2#"}.Validate(validate))
	assert.Error(t, ChangePassword{Password: "abc"}.Validate(validate))
	assert.Error(t, ResetPassword{Password: "Xq9!vLp2#"}.Validate(validate), "token is required")
	assert.NoError(t, ResetPassword{Token: "t", Password: "Xq9!vLp2#"}.Validate(validate))
}

func TestCheckPasswordSimilarity(t *testing.T) {
	assert.Equal(t, ErrPasswordTooSimilar, CheckPasswordSimilarity("janedoe", "Jane Doe", "jd@example.com"))
	assert.Equal(t, ErrPasswordTooSimilar, CheckPasswordSimilarity("jd@example", "Jane Doe", "jd@example.com"))
	assert.NoError(t, CheckPasswordSimilarity("Xq9!vLp2#", "Jane Doe", "jane@example.com"))
	assert.NoError(t, CheckPasswordSimilarity("Xq9!vLp2#"))
}

func Test_passwordSimilarity(t *testing.T) {
	assert.Zero(t, passwordSimilarity("anything", ""))
	assert.GreaterOrEqual(t, passwordSimilarity("JaneDoe", "jane doe"), pwdMaxSim)
	assert.Less(t, passwordSimilarity("Xq9!vLp2#", "jane@example.com"), pwdMaxSim)
}
