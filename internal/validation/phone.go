package validation

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

// PhoneRegion is the region assumed for numbers written without a
// country code.  It is set once at startup from PHONE_REGION.
var PhoneRegion = "CO"

// NormalizePhone rewrites s in E.164 form when it is a valid number and
// returns it trimmed but otherwise unchanged when it is not.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	num, err := phonenumbers.Parse(s, PhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return s
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

var phoneNumber = validation.By(func(value interface{}) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return nil
		}
		s = *v
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := phonenumbers.Parse(s, PhoneRegion); err != nil {
		return errors.New("must be a phone number")
	}
	return nil
})
