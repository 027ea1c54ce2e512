package middlewares

import (
	"net/http"

	"golang.org/x/text/language"
)

var Responses = struct {
	FailedValidations   *NewRM
	InternalServerError *NewRM
	Unauthorized        *NewRM
	InvalidRoles        *NewRM
	InvalidCredentials  *NewRM
	TuitionNotFound     *NewRM
	ApplicationNotFound *NewRM
	PaymentNotFound     *NewRM
	AlreadyApplied      *NewRM
	InvalidStatusChange *NewRM
}{
	FailedValidations: &NewRM{
		Language.English: "Failed field validations",
		Language.Bengali: "ফিল্ড যাচাই ব্যর্থ হয়েছে",
	},
	InternalServerError: &NewRM{
		Language.English: "Internal server error",
		Language.Bengali: "সার্ভারে সমস্যা হয়েছে",
	},
	Unauthorized: &NewRM{
		Language.English: "Unauthorized",
		Language.Bengali: "অনুমোদিত নয়",
	},
	InvalidRoles: &NewRM{
		Language.English: "You are not allowed to perform this action",
		Language.Bengali: "আপনার এই কাজটি করার অনুমতি নেই",
	},
	InvalidCredentials: &NewRM{
		Language.English: "Invalid email or password",
		Language.Bengali: "ইমেইল বা পাসওয়ার্ড ভুল",
	},
	TuitionNotFound: &NewRM{
		Language.English: "Tuition not found",
		Language.Bengali: "টিউশন পাওয়া যায়নি",
	},
	ApplicationNotFound: &NewRM{
		Language.English: "Application not found",
		Language.Bengali: "আবেদন পাওয়া যায়নি",
	},
	PaymentNotFound: &NewRM{
		Language.English: "Payment not found",
		Language.Bengali: "পেমেন্ট পাওয়া যায়নি",
	},
	AlreadyApplied: &NewRM{
		Language.English: "You have already applied to this tuition",
		Language.Bengali: "আপনি ইতিমধ্যে এই টিউশনে আবেদন করেছেন",
	},
	InvalidStatusChange: &NewRM{
		Language.English: "Only pending applications can be approved or rejected",
		Language.Bengali: "শুধুমাত্র অপেক্ষমাণ আবেদন অনুমোদন বা বাতিল করা যায়",
	},
}

type NewRM map[string]string

// In returns the message in language, falling back to English.
func (rm *NewRM) In(language string) string {
	if msg, ok := (*rm)[language]; ok {
		return msg
	}
	return (*rm)[Language.English]
}

var Language = struct {
	English string
	Bengali string
}{
	English: "en",
	Bengali: "bn",
}

var LanguageMap = map[string]string{
	Language.Bengali: "Bengali",
	Language.English: "English",
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Bengali})

// RequestLanguage picks the best supported language of Accept-Language.
func RequestLanguage(r *http.Request) string {
	tag, _ := language.MatchStrings(matcher, r.Header.Get("Accept-Language"))
	base, _ := tag.Base()
	if _, ok := LanguageMap[base.String()]; ok {
		return base.String()
	}
	return Language.English
}
