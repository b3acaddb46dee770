package onboarding

import "github.com/jrsteele09/go-auth-client/users"

type UserDetails struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"` // local file path
}

type BusinessDetails struct {
	CompanyName   string `json:"companyName,omitempty"`
	BusinessEmail string `json:"businessEmail,omitempty"`
	License       string `json:"license,omitempty"`
	Website       string `json:"website,omitempty"`
}

type ProfessionalProfile struct {
	YearsOfExperience string   `json:"yearsOfExperience,omitempty"`
	Categories        []string `json:"categories,omitempty"`
	Specializations   []string `json:"specializations,omitempty"`
	Bio               string   `json:"bio,omitempty"`
}

type Project struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"` // local file paths
}

type Portfolio struct {
	Projects []Project `json:"projects,omitempty"`
}

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type Verification struct {
	DocumentType  string `json:"documentType,omitempty"`
	DocumentImage string `json:"documentImage,omitempty"` // local file path
}

// UploadedFile is an extra file picked during onboarding.
type UploadedFile struct {
	Field       string `json:"field"`
	Path        string `json:"path"`
	FileName    string `json:"fileName,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Data is everything collected across the onboarding screens.
type Data struct {
	AccountType         users.RoleType       `json:"accountType"`
	UserDetails         UserDetails          `json:"userDetails"`
	BusinessDetails     *BusinessDetails     `json:"businessDetails,omitempty"`
	ProfessionalProfile *ProfessionalProfile `json:"professionalProfile,omitempty"`
	Portfolio           *Portfolio           `json:"portfolio,omitempty"`
	Address             *Address             `json:"address,omitempty"`
	Verification        *Verification        `json:"verification,omitempty"`
	UploadedFiles       []UploadedFile       `json:"uploadedFiles"`
}

func (d Data) clone() Data {
	c := d
	if d.BusinessDetails != nil {
		v := *d.BusinessDetails
		c.BusinessDetails = &v
	}
	if d.ProfessionalProfile != nil {
		v := *d.ProfessionalProfile
		v.Categories = append([]string(nil), v.Categories...)
		v.Specializations = append([]string(nil), v.Specializations...)
		c.ProfessionalProfile = &v
	}
	if d.Portfolio != nil {
		v := Portfolio{Projects: make([]Project, len(d.Portfolio.Projects))}
		for i, p := range d.Portfolio.Projects {
			p.Images = append([]string(nil), p.Images...)
			v.Projects[i] = p
		}
		c.Portfolio = &v
	}
	if d.Address != nil {
		v := *d.Address
		c.Address = &v
	}
	if d.Verification != nil {
		v := *d.Verification
		c.Verification = &v
	}
	c.UploadedFiles = append([]UploadedFile(nil), d.UploadedFiles...)
	return c
}
