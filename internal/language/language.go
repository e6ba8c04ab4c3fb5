package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter), also the tesseract traineddata name
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	chapter string   // Word used on title cards and template scripts
	words   []string // Full word forms (e.g. "english")
}

var languages = []entry{
	{"en", "eng", "", "English", "Chapter", []string{"english"}},
	{"es", "spa", "", "Spanish", "Capítulo", []string{"spanish", "español"}},
	{"fr", "fra", "fre", "French", "Chapitre", []string{"french", "français"}},
	{"de", "deu", "ger", "German", "Kapitel", []string{"german", "deutsch"}},
	{"it", "ita", "", "Italian", "Capitolo", []string{"italian", "italiano"}},
	{"pt", "por", "", "Portuguese", "Capítulo", []string{"portuguese", "português"}},
	{"ja", "jpn", "", "Japanese", "Chapter", []string{"japanese"}},
	{"ko", "kor", "", "Korean", "Chapter", []string{"korean"}},
	{"zh", "chi_sim", "zho", "Chinese", "Chapter", []string{"chinese"}},
	{"ru", "rus", "", "Russian", "Глава", []string{"russian"}},
	{"nl", "nld", "dut", "Dutch", "Hoofdstuk", []string{"dutch"}},
	{"pl", "pol", "", "Polish", "Rozdział", []string{"polish"}},
}

// Index maps built at init time.
var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	if tag, err := xlanguage.Parse(code); err == nil {
		base, _ := tag.Base()
		if e, ok := byCode2[base.String()]; ok {
			return e
		}
	}
	return nil
}

// Normalize converts codes, BCP 47 tags ("pt-BR") and word forms to ISO 639-1.
// Unrecognized input that parses as a language tag yields its base code; other
// input yields the empty string.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return ""
	}
	return base.String()
}

// Tag returns the x/text tag for code, or language.Und when it does not parse.
func Tag(code string) xlanguage.Tag {
	normalized := Normalize(code)
	if normalized == "" {
		return xlanguage.Und
	}
	tag, err := xlanguage.Parse(normalized)
	if err != nil {
		return xlanguage.Und
	}
	return tag
}

// ToISO3 converts any recognized language code to the 3-letter form tesseract expects.
// Returns "und" for unrecognized codes.
func ToISO3(code string) string {
	if e := lookup(code); e != nil {
		return e.code3
	}
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) == 3 {
		return code
	}
	return "und"
}

// DisplayName returns a human-readable English language name.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if e := lookup(code); e != nil {
		return e.display
	}
	if tag, err := xlanguage.Parse(strings.TrimSpace(code)); err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// ChapterWord returns the localized word for "chapter", defaulting to English.
func ChapterWord(code string) string {
	if e := lookup(code); e != nil {
		return e.chapter
	}
	return "Chapter"
}

// TesseractLanguages merges a configured "eng+por" style list with the
// narration language so the OCR engine always loads the chapter's script.
func TesseractLanguages(configured, narration string) string {
	parts := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	add := func(code string) {
		code = strings.TrimSpace(code)
		if code == "" || code == "und" {
			return
		}
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		parts = append(parts, code)
	}
	for _, code := range strings.Split(configured, "+") {
		add(code)
	}
	add(ToISO3(narration))
	return strings.Join(parts, "+")
}
