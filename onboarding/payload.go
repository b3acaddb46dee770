package onboarding

import (
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/jrsteele09/go-auth-client/apiclient"
)

// PrepareAPIPayload serializes the collected data into the multipart body
// expected by the complete-registration endpoint: accountType, one JSON
// field per section and the picked files.
func (a *Accumulator) PrepareAPIPayload() (*apiclient.Multipart, error) {
	d, ok := a.Data()
	if !ok {
		return nil, ErrNoData
	}

	m := &apiclient.Multipart{Fields: map[string]string{"accountType": string(d.AccountType)}}
	sections := []struct {
		name  string
		value any
		set   bool
	}{
		{"userDetails", d.UserDetails, true},
		{"businessDetails", d.BusinessDetails, d.BusinessDetails != nil},
		{"professionalProfile", d.ProfessionalProfile, d.ProfessionalProfile != nil},
		{"portfolio", d.Portfolio, d.Portfolio != nil},
		{"address", d.Address, d.Address != nil},
		{"verification", d.Verification, d.Verification != nil},
	}
	for _, s := range sections {
		if !s.set {
			continue
		}
		b, err := json.Marshal(s.value)
		if err != nil {
			return nil, fmt.Errorf("[Accumulator.PrepareAPIPayload] %s: %w", s.name, err)
		}
		m.Fields[s.name] = string(b)
	}

	if d.UserDetails.ProfileImage != "" {
		m.Files = append(m.Files, filePart("profileImage", d.UserDetails.ProfileImage, ""))
	}
	if d.Verification != nil && d.Verification.DocumentImage != "" {
		m.Files = append(m.Files, filePart("documentImage", d.Verification.DocumentImage, ""))
	}
	if d.Portfolio != nil {
		for _, p := range d.Portfolio.Projects {
			for _, img := range p.Images {
				m.Files = append(m.Files, filePart("portfolioImages", img, ""))
			}
		}
	}
	for _, f := range d.UploadedFiles {
		part := filePart(f.Field, f.Path, f.ContentType)
		if f.FileName != "" {
			part.FileName = f.FileName
		}
		m.Files = append(m.Files, part)
	}
	return m, nil
}

func filePart(field, path, contentType string) apiclient.FilePart {
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	return apiclient.FilePart{
		Field:       field,
		FileName:    filepath.Base(path),
		ContentType: contentType,
		Path:        path,
	}
}
