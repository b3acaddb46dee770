package onboarding_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jrsteele09/go-auth-client/onboarding"
	"github.com/jrsteele09/go-auth-client/storage"
	"github.com/jrsteele09/go-auth-client/storage/repofake"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	ctx  context.Context
	repo *repofake.FakeRepo
	acc  *onboarding.Accumulator
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	ctx := context.Background()
	repo := repofake.NewFakeRepo()
	return &testFixture{
		ctx:  ctx,
		repo: repo,
		acc:  onboarding.New(ctx, repo),
	}
}

func (f *testFixture) fillVendor(t *testing.T) {
	t.Helper()
	require.NoError(t, f.acc.SetAccountType(f.ctx, users.RoleVendor))
	require.NoError(t, f.acc.SetUserDetails(f.ctx, onboarding.UserDetails{Name: "Ada", Phone: "555", Email: "ada@x.io"}))
	require.NoError(t, f.acc.SetBusinessDetails(f.ctx, onboarding.BusinessDetails{CompanyName: "Ada Interiors", BusinessEmail: "hi@ada.io", License: "L-1"}))
	require.NoError(t, f.acc.SetProfessionalProfile(f.ctx, onboarding.ProfessionalProfile{YearsOfExperience: "7", Categories: []string{"kitchens"}}))
	require.NoError(t, f.acc.SetAddress(f.ctx, onboarding.Address{City: "Leeds"}))
	require.NoError(t, f.acc.SetVerification(f.ctx, onboarding.Verification{DocumentType: "license", DocumentImage: "/tmp/doc.jpg"}))
}

func TestAccountTypeGate(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("mutators before account type", func(t *testing.T) {
		err := f.acc.SetUserDetails(f.ctx, onboarding.UserDetails{Name: "Ada"})
		require.ErrorIs(t, err, onboarding.ErrAccountTypeRequired)
		_, ok := f.acc.Data()
		require.False(t, ok)
		require.Equal(t, 0, f.repo.Writes())
	})

	t.Run("unknown account type", func(t *testing.T) {
		require.ErrorIs(t, f.acc.SetAccountType(f.ctx, users.RoleAdmin), onboarding.ErrInvalidAccountType)
	})

	t.Run("account type creates data", func(t *testing.T) {
		require.NoError(t, f.acc.SetAccountType(f.ctx, users.RoleUser))
		d, ok := f.acc.Data()
		require.True(t, ok)
		require.Equal(t, users.RoleUser, d.AccountType)
		require.NotNil(t, d.UploadedFiles)
		require.Equal(t, 1, f.repo.Writes())
	})
}

func TestWriteThroughAndRestore(t *testing.T) {
	f := setupTestFixture(t)
	f.fillVendor(t)
	require.Equal(t, 6, f.repo.Writes())

	raw, ok, err := f.repo.Get(f.ctx, storage.OnboardingDataKey)
	require.NoError(t, err)
	require.True(t, ok)
	var persisted onboarding.Data
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	require.Equal(t, "Ada Interiors", persisted.BusinessDetails.CompanyName)

	restored := onboarding.New(f.ctx, f.repo)
	d, ok := restored.Data()
	require.True(t, ok)
	require.Equal(t, users.RoleVendor, d.AccountType)
	require.Equal(t, "Leeds", d.Address.City)
	require.True(t, restored.Validate().IsValid)
}

func TestRestoreIgnoresCorruptData(t *testing.T) {
	ctx := context.Background()
	repo := repofake.NewFakeRepo()
	require.NoError(t, repo.Set(ctx, storage.OnboardingDataKey, "{not json"))

	acc := onboarding.New(ctx, repo)
	_, ok := acc.Data()
	require.False(t, ok)
}

func TestStorageFailureKeepsMemory(t *testing.T) {
	f := setupTestFixture(t)
	f.repo.FailWith(errors.New("disk full"))

	require.NoError(t, f.acc.SetAccountType(f.ctx, users.RoleUser))
	require.NoError(t, f.acc.SetUserDetails(f.ctx, onboarding.UserDetails{Name: "Ada"}))
	d, ok := f.acc.Data()
	require.True(t, ok)
	require.Equal(t, "Ada", d.UserDetails.Name)
}

func TestDataIsACopy(t *testing.T) {
	f := setupTestFixture(t)
	f.fillVendor(t)

	d, _ := f.acc.Data()
	d.ProfessionalProfile.Categories[0] = "changed"
	d.Address.City = "changed"

	again, _ := f.acc.Data()
	require.Equal(t, "kitchens", again.ProfessionalProfile.Categories[0])
	require.Equal(t, "Leeds", again.Address.City)
}

func TestValidate(t *testing.T) {
	t.Run("nothing collected", func(t *testing.T) {
		f := setupTestFixture(t)
		res := f.acc.Validate()
		require.False(t, res.IsValid)
		require.Equal(t, []string{"name", "phone", "email"}, res.MissingFields)
	})

	t.Run("user needs only details", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.acc.SetAccountType(f.ctx, users.RoleUser))
		require.NoError(t, f.acc.SetUserDetails(f.ctx, onboarding.UserDetails{Name: "Ada", Phone: "555", Email: "ada@x.io"}))
		res := f.acc.Validate()
		require.True(t, res.IsValid)
		require.Empty(t, res.MissingFields)
	})

	t.Run("vendor with only user details", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.acc.SetAccountType(f.ctx, users.RoleVendor))
		require.NoError(t, f.acc.SetUserDetails(f.ctx, onboarding.UserDetails{Name: "Ada", Phone: "555", Email: "ada@x.io"}))
		res := f.acc.Validate()
		require.False(t, res.IsValid)
		require.Equal(t, []string{
			"companyName", "businessEmail", "license",
			"yearsOfExperience", "categories", "city", "documentImage",
		}, res.MissingFields)
	})

	t.Run("blank values count as missing", func(t *testing.T) {
		f := setupTestFixture(t)
		f.fillVendor(t)
		require.NoError(t, f.acc.SetUserDetails(f.ctx, onboarding.UserDetails{Name: "  ", Phone: "555", Email: "ada@x.io"}))
		require.NoError(t, f.acc.SetProfessionalProfile(f.ctx, onboarding.ProfessionalProfile{YearsOfExperience: "7", Categories: []string{" "}}))
		res := f.acc.Validate()
		require.Equal(t, []string{"name", "categories"}, res.MissingFields)
	})

	t.Run("complete vendor", func(t *testing.T) {
		f := setupTestFixture(t)
		f.fillVendor(t)
		require.True(t, f.acc.Validate().IsValid)
	})
}

func TestPrepareAPIPayload(t *testing.T) {
	t.Run("no data", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.acc.PrepareAPIPayload()
		require.ErrorIs(t, err, onboarding.ErrNoData)
	})

	t.Run("vendor payload", func(t *testing.T) {
		f := setupTestFixture(t)
		f.fillVendor(t)
		require.NoError(t, f.acc.SetUserDetails(f.ctx, onboarding.UserDetails{Name: "Ada", Phone: "555", Email: "ada@x.io", ProfileImage: "/tmp/me.png"}))
		require.NoError(t, f.acc.AddPortfolioProject(f.ctx, onboarding.Project{Title: "Loft", Images: []string{"/tmp/a.jpg", "/tmp/b.jpg"}}))
		require.NoError(t, f.acc.AddUploadedFile(f.ctx, onboarding.UploadedFile{Field: "certificates", Path: "/tmp/cert.pdf", FileName: "cert.pdf"}))

		m, err := f.acc.PrepareAPIPayload()
		require.NoError(t, err)
		require.Equal(t, "vendor", m.Fields["accountType"])

		var address onboarding.Address
		require.NoError(t, json.Unmarshal([]byte(m.Fields["address"]), &address))
		require.Equal(t, "Leeds", address.City)
		require.Contains(t, m.Fields, "businessDetails")
		require.Contains(t, m.Fields, "professionalProfile")
		require.Contains(t, m.Fields, "portfolio")
		require.Contains(t, m.Fields, "verification")

		fields := make([]string, 0, len(m.Files))
		for _, part := range m.Files {
			fields = append(fields, part.Field)
		}
		require.Equal(t, []string{"profileImage", "documentImage", "portfolioImages", "portfolioImages", "certificates"}, fields)
		require.Equal(t, "me.png", m.Files[0].FileName)
		require.Equal(t, "image/png", m.Files[0].ContentType)
		require.Equal(t, "/tmp/me.png", m.Files[0].Path)
	})

	t.Run("user payload omits vendor sections", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.acc.SetAccountType(f.ctx, users.RoleUser))
		require.NoError(t, f.acc.SetUserDetails(f.ctx, onboarding.UserDetails{Name: "Ada"}))
		m, err := f.acc.PrepareAPIPayload()
		require.NoError(t, err)
		require.Len(t, m.Fields, 2)
		require.Empty(t, m.Files)
	})
}

func TestClear(t *testing.T) {
	f := setupTestFixture(t)
	f.fillVendor(t)

	require.NoError(t, f.acc.Clear(f.ctx))
	_, ok := f.acc.Data()
	require.False(t, ok)
	_, ok, err := f.repo.Get(f.ctx, storage.OnboardingDataKey)
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, f.acc.SetUserDetails(f.ctx, onboarding.UserDetails{}), onboarding.ErrAccountTypeRequired)
}
