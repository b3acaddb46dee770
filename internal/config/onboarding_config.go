package config

type OnboardingConfig interface {
	// GetOnboardingStrict reports whether incomplete vendor registrations
	// are rejected locally instead of being submitted anyway.
	GetOnboardingStrict() bool
}

type Onboarding struct {
	OnboardingValidation string `env:"ONBOARDING_VALIDATION, default=lenient"`
}

var _ OnboardingConfig = Onboarding{}

func (o Onboarding) GetOnboardingStrict() bool {
	return o.OnboardingValidation == "strict"
}
