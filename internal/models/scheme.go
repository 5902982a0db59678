package models

import "encoding/json"

// SchemeLink is one labelled link parsed out of a scheme's raw links string.
type SchemeLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Scheme is a government programme returned by the recommendation service.
type Scheme struct {
	Name               string       `json:"name"`
	Reason             string       `json:"reason"`
	Link               string       `json:"link"`
	Level              string       `json:"level,omitempty"`
	Department         string       `json:"department,omitempty"`
	Category           string       `json:"category,omitempty"`
	AgeText            string       `json:"ageText,omitempty"`
	Beneficiaries      string       `json:"beneficiaries,omitempty"`
	Description        string       `json:"description,omitempty"`
	Agency             string       `json:"agency,omitempty"`
	BenefitType        string       `json:"benefitType,omitempty"`
	Benefits           string       `json:"benefits,omitempty"`
	Exclusions         string       `json:"exclusions,omitempty"`
	Eligibility        string       `json:"eligibility,omitempty"`
	ApplicationProcess string       `json:"applicationProcess,omitempty"`
	Tags               []string     `json:"tags,omitempty"`
	State              string       `json:"state,omitempty"`
	Links              string       `json:"links,omitempty"`
	ParsedLinks        []SchemeLink `json:"parsedLinks,omitempty"`
}

// UnmarshalJSON decodes a scheme object field by field. A field of the wrong
// type is left empty. Only a value that is not an object is an error.
func (s *Scheme) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name               looseString     `json:"name"`
		Reason             looseString     `json:"reason"`
		Link               looseString     `json:"link"`
		Level              looseString     `json:"level"`
		Department         looseString     `json:"department"`
		Category           looseString     `json:"category"`
		AgeText            looseString     `json:"ageText"`
		Beneficiaries      looseString     `json:"beneficiaries"`
		Description        looseString     `json:"description"`
		Agency             looseString     `json:"agency"`
		BenefitType        looseString     `json:"benefitType"`
		Benefits           looseString     `json:"benefits"`
		Exclusions         looseString     `json:"exclusions"`
		Eligibility        looseString     `json:"eligibility"`
		ApplicationProcess looseString     `json:"applicationProcess"`
		Tags               looseStrings    `json:"tags"`
		State              looseString     `json:"state"`
		Links              looseString     `json:"links"`
		ParsedLinks        json.RawMessage `json:"parsedLinks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var parsed []SchemeLink
	if len(raw.ParsedLinks) > 0 {
		if err := json.Unmarshal(raw.ParsedLinks, &parsed); err != nil {
			parsed = nil
		}
	}

	*s = Scheme{
		Name:               string(raw.Name),
		Reason:             string(raw.Reason),
		Link:               string(raw.Link),
		Level:              string(raw.Level),
		Department:         string(raw.Department),
		Category:           string(raw.Category),
		AgeText:            string(raw.AgeText),
		Beneficiaries:      string(raw.Beneficiaries),
		Description:        string(raw.Description),
		Agency:             string(raw.Agency),
		BenefitType:        string(raw.BenefitType),
		Benefits:           string(raw.Benefits),
		Exclusions:         string(raw.Exclusions),
		Eligibility:        string(raw.Eligibility),
		ApplicationProcess: string(raw.ApplicationProcess),
		Tags:               []string(raw.Tags),
		State:              string(raw.State),
		Links:              string(raw.Links),
		ParsedLinks:        parsed,
	}
	return nil
}
