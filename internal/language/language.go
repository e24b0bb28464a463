package language

import "strings"

// Auto is the explicit request for engine-side language detection.
const Auto = "auto"

type entry struct {
	code2   string
	code3   []string
	display string
}

var languages = []entry{
	{"en", []string{"eng"}, "English"},
	{"es", []string{"spa"}, "Spanish"},
	{"fr", []string{"fra", "fre"}, "French"},
	{"de", []string{"deu", "ger"}, "German"},
	{"it", []string{"ita"}, "Italian"},
	{"pt", []string{"por"}, "Portuguese"},
	{"ja", []string{"jpn"}, "Japanese"},
	{"ko", []string{"kor"}, "Korean"},
	{"zh", []string{"zho", "chi"}, "Chinese"},
	{"ru", []string{"rus"}, "Russian"},
	{"uk", []string{"ukr"}, "Ukrainian"},
	{"ar", []string{"ara"}, "Arabic"},
	{"he", []string{"heb"}, "Hebrew"},
	{"hi", []string{"hin"}, "Hindi"},
	{"nl", []string{"nld", "dut"}, "Dutch"},
	{"pl", []string{"pol"}, "Polish"},
	{"cs", []string{"ces", "cze"}, "Czech"},
	{"sv", []string{"swe"}, "Swedish"},
	{"da", []string{"dan"}, "Danish"},
	{"no", []string{"nor"}, "Norwegian"},
	{"fi", []string{"fin"}, "Finnish"},
	{"el", []string{"ell", "gre"}, "Greek"},
	{"tr", []string{"tur"}, "Turkish"},
	{"vi", []string{"vie"}, "Vietnamese"},
}

var index = func() map[string]*entry {
	m := make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		m[e.code2] = e
		for _, c := range e.code3 {
			m[c] = e
		}
		m[strings.ToLower(e.display)] = e
	}
	return m
}()

func clean(value string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(value, "\u0000", "")))
}

// IsAuto reports whether value asks the engine to detect the language.
func IsAuto(value string) bool {
	v := clean(value)
	return v == "" || v == Auto || v == "und"
}

// ToISO2 converts a recognized code or English name to ISO 639-1. Unknown
// two-letter codes pass through; anything else yields "".
func ToISO2(value string) string {
	v := clean(value)
	if v == "" {
		return ""
	}
	if e, ok := index[v]; ok {
		return e.code2
	}
	if len(v) == 2 {
		return v
	}
	return ""
}

// DisplayName returns a human-readable name, "Auto" for detection requests,
// or the upper-cased input when the language is unknown.
func DisplayName(value string) string {
	if IsAuto(value) {
		return "Auto"
	}
	if e, ok := index[clean(value)]; ok {
		return e.display
	}
	return strings.ToUpper(strings.TrimSpace(value))
}

// FromTags extracts the language from container stream tags as ISO 639-1.
func FromTags(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang"} {
		value, ok := tags[key]
		if !ok || IsAuto(value) {
			continue
		}
		// BCP 47 tags such as "en-US" carry the base language first.
		if base, _, found := strings.Cut(clean(value), "-"); found {
			value = base
		}
		if code := ToISO2(value); code != "" {
			return code
		}
	}
	return ""
}

// Resolve picks the language hint for an engine: an explicit configured
// language wins, then the source's stream tag, otherwise detection ("").
func Resolve(configured string, tags map[string]string) string {
	if !IsAuto(configured) {
		if code := ToISO2(configured); code != "" {
			return code
		}
	}
	return FromTags(tags)
}
