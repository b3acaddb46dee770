package config

// OAuthClient holds the settings of one OAuth/OIDC sign-in provider.
type OAuthClient struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// Enabled reports whether enough settings are present to start a flow.
func (o OAuthClient) Enabled() bool {
	return o.Issuer != "" && o.ClientID != "" && o.RedirectURL != ""
}

type IdentityConfig interface {
	GetFirebaseAPIKey() string
	GetFirebaseIdentityURL() string
	GetFirebaseTokenURL() string
	GetGoogleOAuth() OAuthClient
	GetAppleOAuth() OAuthClient
}

type Identity struct {
	FirebaseAPIKey      string `env:"FIREBASE_API_KEY"`
	FirebaseIdentityURL string `env:"FIREBASE_IDENTITY_URL, default=https://identitytoolkit.googleapis.com/v1"`
	FirebaseTokenURL    string `env:"FIREBASE_TOKEN_URL, default=https://securetoken.googleapis.com/v1"`

	GoogleIssuer       string   `env:"GOOGLE_ISSUER, default=https://accounts.google.com"`
	GoogleClientID     string   `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string   `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string   `env:"GOOGLE_REDIRECT_URL"`
	GoogleScopes       []string `env:"GOOGLE_SCOPES, default=openid,email,profile"`

	AppleIssuer       string   `env:"APPLE_ISSUER, default=https://appleid.apple.com"`
	AppleClientID     string   `env:"APPLE_CLIENT_ID"`
	AppleClientSecret string   `env:"APPLE_CLIENT_SECRET"`
	AppleRedirectURL  string   `env:"APPLE_REDIRECT_URL"`
	AppleScopes       []string `env:"APPLE_SCOPES, default=openid,email,name"`
}

var _ IdentityConfig = Identity{}

func (i Identity) GetFirebaseAPIKey() string      { return i.FirebaseAPIKey }
func (i Identity) GetFirebaseIdentityURL() string { return i.FirebaseIdentityURL }
func (i Identity) GetFirebaseTokenURL() string    { return i.FirebaseTokenURL }

func (i Identity) GetGoogleOAuth() OAuthClient {
	return OAuthClient{
		Issuer:       i.GoogleIssuer,
		ClientID:     i.GoogleClientID,
		ClientSecret: i.GoogleClientSecret,
		RedirectURL:  i.GoogleRedirectURL,
		Scopes:       i.GoogleScopes,
	}
}

func (i Identity) GetAppleOAuth() OAuthClient {
	return OAuthClient{
		Issuer:       i.AppleIssuer,
		ClientID:     i.AppleClientID,
		ClientSecret: i.AppleClientSecret,
		RedirectURL:  i.AppleRedirectURL,
		Scopes:       i.AppleScopes,
	}
}
