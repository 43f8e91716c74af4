// Package language normalises the spoken-language hint passed to the
// transcriber and picks the matching casing rules for captions.
package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto lets the transcriber detect the language itself.
const Auto = "auto"

// Suggested are the languages offered by default in user-facing menus.
var Suggested = []string{"en", "ur", "hi", "ar"}

// Normalize maps a hint such as "EN", "en-US" or "urd" to its ISO 639-1 base
// code. Empty input and "auto" normalise to Auto.
func Normalize(hint string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" || h == Auto {
		return Auto, nil
	}
	tag, err := language.Parse(h)
	if err != nil {
		return "", fmt.Errorf("language %q: %w", hint, err)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", fmt.Errorf("language %q: unknown", hint)
	}
	return base.String(), nil
}

// Tag returns the tag used for case mapping; Auto maps to language.Und.
func Tag(code string) language.Tag {
	if code == "" || code == Auto {
		return language.Und
	}
	t, err := language.Parse(code)
	if err != nil {
		return language.Und
	}
	return t
}

// Name is the English display name of code, or code itself when unknown.
func Name(code string) string {
	if code == "" || code == Auto {
		return "auto-detect"
	}
	if n := display.English.Languages().Name(Tag(code)); n != "" {
		return n
	}
	return code
}

// whisperNames maps the lowercase language names Whisper reports in
// verbose_json responses to ISO codes.
var whisperNames = map[string]string{
	"english": "en", "chinese": "zh", "german": "de", "spanish": "es",
	"russian": "ru", "korean": "ko", "french": "fr", "japanese": "ja",
	"portuguese": "pt", "turkish": "tr", "polish": "pl", "catalan": "ca",
	"dutch": "nl", "arabic": "ar", "swedish": "sv", "italian": "it",
	"indonesian": "id", "hindi": "hi", "finnish": "fi", "vietnamese": "vi",
	"hebrew": "he", "ukrainian": "uk", "greek": "el", "malay": "ms",
	"czech": "cs", "romanian": "ro", "danish": "da", "hungarian": "hu",
	"tamil": "ta", "norwegian": "no", "thai": "th", "urdu": "ur",
	"croatian": "hr", "bulgarian": "bg", "lithuanian": "lt", "latin": "la",
	"maori": "mi", "malayalam": "ml", "welsh": "cy", "slovak": "sk",
	"telugu": "te", "persian": "fa", "latvian": "lv", "bengali": "bn",
	"serbian": "sr", "azerbaijani": "az", "slovenian": "sl", "kannada": "kn",
	"estonian": "et", "macedonian": "mk", "breton": "br", "basque": "eu",
	"icelandic": "is", "armenian": "hy", "nepali": "ne", "mongolian": "mn",
	"bosnian": "bs", "kazakh": "kk", "albanian": "sq", "swahili": "sw",
	"galician": "gl", "marathi": "mr", "punjabi": "pa", "sinhala": "si",
	"khmer": "km", "shona": "sn", "yoruba": "yo", "somali": "so",
	"afrikaans": "af", "occitan": "oc", "georgian": "ka", "belarusian": "be",
	"tajik": "tg", "sindhi": "sd", "gujarati": "gu", "amharic": "am",
	"yiddish": "yi", "lao": "lo", "uzbek": "uz", "faroese": "fo",
	"haitian creole": "ht", "pashto": "ps", "turkmen": "tk", "nynorsk": "nn",
	"maltese": "mt", "sanskrit": "sa", "luxembourgish": "lb", "myanmar": "my",
	"tibetan": "bo", "tagalog": "tl", "malagasy": "mg", "assamese": "as",
	"tatar": "tt", "hawaiian": "haw", "lingala": "ln", "hausa": "ha",
	"bashkir": "ba", "javanese": "jv", "sundanese": "su", "cantonese": "yue",
}

// Detected turns a transcriber's language report, either a code such as
// "en" or a name such as "english", into an ISO code. It reports false when
// the value is empty or unrecognised.
func Detected(reported string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(reported))
	if v == "" || v == Auto {
		return "", false
	}
	if code, ok := whisperNames[v]; ok {
		return code, true
	}
	code, err := Normalize(v)
	if err != nil || code == Auto {
		return "", false
	}
	return code, true
}
