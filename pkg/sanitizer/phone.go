package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var DefaultRegions = []string{"IN", "US", "GB"}

// PhoneNormalizer rewrites phone numbers to E.164, trying each region in
// order for numbers without a country prefix.
type PhoneNormalizer struct {
	regions []string
}

func NewPhoneNormalizer(regions []string) *PhoneNormalizer {
	if len(regions) == 0 {
		regions = DefaultRegions
	}
	return &PhoneNormalizer{regions: regions}
}

// Normalize returns the E.164 form and true when the number is valid in one
// of the regions. Otherwise it returns the trimmed input and false.
func (n *PhoneNormalizer) Normalize(phone string) (string, bool) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", false
	}

	for _, region := range n.regions {
		parsed, err := phonenumbers.Parse(phone, region)
		if err != nil {
			continue
		}
		if phonenumbers.IsValidNumber(parsed) {
			return phonenumbers.Format(parsed, phonenumbers.E164), true
		}
	}
	return phone, false
}
