package onboarding

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/users"
)

// Policy decides what CompleteOnboarding does with incomplete data.
type Policy string

const (
	// PolicyLenient logs missing fields and submits anyway.
	PolicyLenient Policy = "lenient"
	// PolicyStrict refuses to submit incomplete data.
	PolicyStrict Policy = "strict"
)

type ValidationResult struct {
	IsValid       bool
	MissingFields []string
}

// IncompleteError reports the fields missing under PolicyStrict.
type IncompleteError struct {
	MissingFields []string
}

func (e *IncompleteError) Error() string {
	return "onboarding is incomplete: missing " + strings.Join(e.MissingFields, ", ")
}

// commonContract lists the fields every account must provide.
type commonContract struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
	Email string `json:"email" validate:"required"`
}

// vendorContract lists the additional fields vendors must provide.
type vendorContract struct {
	CompanyName       string   `json:"companyName" validate:"required"`
	BusinessEmail     string   `json:"businessEmail" validate:"required"`
	License           string   `json:"license" validate:"required"`
	YearsOfExperience string   `json:"yearsOfExperience" validate:"required"`
	Categories        []string `json:"categories" validate:"min=1"`
	City              string   `json:"city" validate:"required"`
	DocumentImage     string   `json:"documentImage" validate:"required"`
}

var contractValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}()

// Validate reports which required fields are missing. It never fails.
func (a *Accumulator) Validate() ValidationResult {
	d, _ := a.Data()
	missing := missingFields(commonContract{
		Name:  strings.TrimSpace(d.UserDetails.Name),
		Phone: strings.TrimSpace(d.UserDetails.Phone),
		Email: strings.TrimSpace(d.UserDetails.Email),
	})

	if d.AccountType == users.RoleVendor {
		var (
			business     BusinessDetails
			professional ProfessionalProfile
			address      Address
			verification Verification
		)
		if d.BusinessDetails != nil {
			business = *d.BusinessDetails
		}
		if d.ProfessionalProfile != nil {
			professional = *d.ProfessionalProfile
		}
		if d.Address != nil {
			address = *d.Address
		}
		if d.Verification != nil {
			verification = *d.Verification
		}
		missing = append(missing, missingFields(vendorContract{
			CompanyName:       strings.TrimSpace(business.CompanyName),
			BusinessEmail:     strings.TrimSpace(business.BusinessEmail),
			License:           strings.TrimSpace(business.License),
			YearsOfExperience: strings.TrimSpace(professional.YearsOfExperience),
			Categories:        utils.CompactStrings(professional.Categories),
			City:              strings.TrimSpace(address.City),
			DocumentImage:     strings.TrimSpace(verification.DocumentImage),
		})...)
	}

	return ValidationResult{IsValid: len(missing) == 0, MissingFields: missing}
}

func missingFields(contract any) []string {
	err := contractValidator.Struct(contract)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		out = append(out, fe.Field())
	}
	return out
}
