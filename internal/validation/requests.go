// Package validation checks request payloads before they reach the auth
// services.  Each request type has a Validate method built on
// ozzo-validation; failures are returned as validation.Errors so the
// handler can report them per field.
package validation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/iliyamo/storefront-auth/internal/model"
)

var personName = regexp.MustCompile(`^[\p{L}\s]+$`)

// usernames never look like an email address, so the two login
// identifiers cannot collide.
var handlePattern = regexp.MustCompile(`^[^@\s]+$`)

func nameRules(required bool) []validation.Rule {
	rules := []validation.Rule{
		validation.Match(personName).Error("may only contain letters"),
		validation.Length(2, 50).Error("must be between 2 and 50 characters"),
	}
	if required {
		return append([]validation.Rule{validation.Required}, rules...)
	}
	return append([]validation.Rule{validation.NilOrNotEmpty}, rules...)
}

var passwordPolicy = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if v := PasswordViolations(s); len(v) > 0 {
		return errors.New(strings.Join(v, "; "))
	}
	return nil
})

var knownRole = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := model.ParseRole(s); err != nil {
		return errors.New("must be one of customer, admin, courier")
	}
	return nil
})

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// Normalize trims whitespace around the free-text fields.
func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = model.NormalizeEmail(r.Email)
	r.Address = strings.TrimSpace(r.Address)
	r.Phone = NormalizePhone(r.Phone)
	r.Role = strings.TrimSpace(r.Role)
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required,
			validation.Match(handlePattern).Error("must not contain @ or spaces")),
		validation.Field(&r.FirstName, nameRules(true)...),
		validation.Field(&r.LastName, nameRules(true)...),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Address, validation.Required),
		validation.Field(&r.Phone, validation.Required, phoneNumber),
		validation.Field(&r.Password, validation.Required, passwordPolicy),
		validation.Field(&r.Role, knownRole),
	)
}

// LoginRequest is the body of POST /auth/login.  Either Email or
// Username identifies the account.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Credentials returns the identifier to look the account up by.  When an
// email is given the username is ignored.
func (r LoginRequest) Credentials() (username, email string) {
	if e := model.NormalizeEmail(r.Email); e != "" {
		return "", e
	}
	return strings.TrimSpace(r.Username), ""
}

func (r LoginRequest) Validate() error {
	emailRules := []validation.Rule{is.Email}
	if strings.TrimSpace(r.Username) == "" {
		emailRules = append([]validation.Rule{validation.Required.Error("email or username is required")}, emailRules...)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, emailRules...),
		validation.Field(&r.Password, validation.Required),
	)
}

// UpdateUserRequest is the body of PUT /auth/user/:id.  Only the listed
// profile fields can be changed; anything else in the body is ignored.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, nameRules(false)...),
		validation.Field(&r.LastName, nameRules(false)...),
		validation.Field(&r.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&r.Address, validation.NilOrNotEmpty),
		validation.Field(&r.Phone, validation.NilOrNotEmpty, phoneNumber),
	)
}

// Patch converts the request into a store patch, trimming values.
func (r UpdateUserRequest) Patch() model.UserPatch {
	return model.UserPatch{
		FirstName: trimmed(r.FirstName),
		LastName:  trimmed(r.LastName),
		Email:     trimmed(r.Email),
		Address:   trimmed(r.Address),
		Phone:     phone(r.Phone),
	}
}

func phone(s *string) *string {
	if s == nil {
		return nil
	}
	v := NormalizePhone(*s)
	return &v
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// RoleRequest is the body of PUT /auth/role/:id.
type RoleRequest struct {
	Role string `json:"role"`
}

func (r RoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Role, validation.Required, knownRole),
	)
}

// ProductRequest holds the fields of a product payload that are checked
// before it is forwarded to the catalog.  The payload itself is passed
// through unchanged.
type ProductRequest struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

func (r ProductRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Price, validation.By(func(value interface{}) error {
			if p, _ := value.(float64); p <= 0 {
				return errors.New("must be greater than 0")
			}
			return nil
		})),
		validation.Field(&r.Category, validation.Required),
	)
}

// ValidateProduct decodes raw and validates it as a new product.
func ValidateProduct(raw json.RawMessage) error {
	var r ProductRequest
	if err := json.Unmarshal(raw, &r); err != nil {
		return validation.Errors{"body": errors.New("must be a JSON object with name, price and category")}
	}
	return r.Validate()
}

// Fields flattens ozzo errors into field → message pairs.  It returns nil
// when err is not a validation failure.
func Fields(err error) map[string]string {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make(map[string]string, len(errs))
	for k, v := range errs {
		out[k] = v.Error()
	}
	return out
}

// ValidateRecipient checks a single destination address.
func ValidateRecipient(to string) error {
	return validation.Errors{"to": validation.Validate(to, validation.Required, is.Email)}.Filter()
}
