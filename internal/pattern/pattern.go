package pattern

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Interrogatives are the ordered, precompiled patterns that mark question-like
// text. Patterns expect normalized input (see Normalize).
var Interrogatives = []*regexp.Regexp{
	// Sentence-final question marks and endings
	regexp.MustCompile(`\?`),
	regexp.MustCompile(`(ですか|ますか|でしょうか|ましたか|ませんか|でしたか|のですか|んですか|かな|かしら|っけ)([。.!\s]|$)`),

	// Interrogative pronoun followed by a particle or copula
	regexp.MustCompile(`(何|なに|なん|どう|どの|どんな|どこ|どちら|どれ|いつ|誰|だれ|なぜ|いくら|いくつ)(が|を|に|で|は|と|の|か|ですか|でしょう|だと|ような|よう|いう)`),
	regexp.MustCompile(`(何|なに|なん)して`),
	// どうしても is "no matter what"
	regexp.MustCompile(`どうして([^も]|$)`),

	// Polite request endings
	regexp.MustCompile(`(教えてください|聞かせてください|いただけますか|いただけませんか|もらえますか|もらえませんか|くれますか|お聞かせ)`),

	// English interrogatives and modal inversions
	regexp.MustCompile(`(^|[\s,])(what|why|how|when|where|who|whom|whose|which)\b`),
	regexp.MustCompile(`^(can|could|would|will|do|does|did|is|are|was|were|should|have|has|may|shall)\s+(you|we|i|it|they|he|she|this|that|there|anyone|someone)\b`),
}

// ActivityMarkers is the smaller substring list used for the recent activity signal.
var ActivityMarkers = []string{
	"?",
	"ですか",
	"ますか",
	"でしょうか",
	"何",
	"どう",
	"どの",
	"なぜ",
	"what",
	"how",
	"why",
}

// InterrogativeStarters are words whose presence justifies appending a
// question mark to a refined candidate.
var InterrogativeStarters = []string{
	"何", "なに", "なん", "どう", "どの", "どんな", "どこ", "どちら", "どれ",
	"いつ", "誰", "だれ", "なぜ", "どうして", "いくら", "いくつ",
	"what", "why", "how", "when", "where", "who", "whom", "whose", "which",
}

// Fillers are discourse particles and hesitation markers dropped during refinement.
var Fillers = wordSet(
	"はい", "ええ", "えー", "えーと", "えっと", "えーっと",
	"あの", "あのー", "その", "そのー", "うーん", "んー", "あー",
	"um", "umm", "uh", "uhh", "er", "erm", "hmm",
)

// SoftFillers carry some meaning and are only collapsed when repeated.
var SoftFillers = wordSet("まあ", "ね", "なんか", "so", "well", "ok", "okay")

// Alternatives join the options of a single question and are never split,
// even when they begin with a connector.
var Alternatives = []string{"それとも"}

// Connectors split compound utterances into separate candidates.
var Connectors = []string{
	"それから",
	"それと",
	"あと、",
	"ところで",
	"もう一つ",
	" and also ",
	" also, ",
}

// PolitenessSuffixes are stripped from the end of refined candidates.
var PolitenessSuffixes = []string{
	"よろしくお願いいたします",
	"よろしくお願いします",
	"お願いいたします",
	"お願いします",
	"please",
}

var (
	leadingFiller  = regexp.MustCompile(`(?i)^\s*(はい|ええ|えー+っと|えっと|えー+と|えー+|あの[ー〜]*|その[ー〜]*|まあ|じゃあ|うーん|んー|あー+|そうですね|なるほど|um+|uh+|er+m?|so|well|okay|ok)[、,，\s]+`)
	prefaceClause  = regexp.MustCompile(`^[^、,，。]*(質問|お聞きしたい|聞きたい|伺いたい|お伺いしたい|確認したい)[^、,，。]*(が|けど|けれど|けれども|ですが)[、,，]\s*`)
	topicRetained  = regexp.MustCompile(`^[^、,，。?？]+(は|って|について)[、,，].*(か|[?？])$`)
	questionEnding = regexp.MustCompile(`((です|ます|でしょう|だろう|の|ん|ない|た)か|かな|かしら|っけ|[?？])\s*$`)
	trailingMarks  = regexp.MustCompile(`[\s。．.!！?？、,，…]+$`)
)

// Normalize lower-cases text and folds full-width and half-width forms so that
// "？" and "?" (or "ｶ" and "カ") compare equal.
func Normalize(text string) string {
	return strings.ToLower(width.Fold.String(text))
}

// IsQuestionLike reports whether text matches any interrogative pattern
func IsQuestionLike(text string) bool {
	normalized := strings.TrimSpace(Normalize(text))
	if normalized == "" {
		return false
	}
	for _, re := range Interrogatives {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

// MatchIndex returns the index of the first interrogative pattern matching
// normalized text, or -1.
func MatchIndex(normalized string) int {
	for i, re := range Interrogatives {
		if re.MatchString(normalized) {
			return i
		}
	}
	return -1
}

// HasQuestionEnding reports whether text ends in a question mark or a
// question-indicating sentence ending. A final か counts only after a copula,
// verb or の/ん form, so な-adjectives such as 静か do not qualify.
func HasQuestionEnding(text string) bool {
	return questionEnding.MatchString(strings.TrimSpace(width.Fold.String(text)))
}

// AlternativeAt reports whether text opens with an alternative conjunction
func AlternativeAt(text string) bool {
	for _, alt := range Alternatives {
		if strings.HasPrefix(text, alt) {
			return true
		}
	}
	return false
}

// ContainsStarter reports whether normalized text contains an interrogative word
func ContainsStarter(normalized string) bool {
	for _, starter := range InterrogativeStarters {
		if !strings.Contains(normalized, starter) {
			continue
		}
		if isASCIIWord(starter) && !containsWord(normalized, starter) {
			continue
		}
		return true
	}
	return false
}

// TopicRetained reports whether a candidate opens with a topic phrase that
// belongs to the question itself and must not be trimmed.
func TopicRetained(text string) bool {
	return topicRetained.MatchString(strings.TrimSpace(text))
}

// TrimPreface removes a leading "I have a question, but..." clause
func TrimPreface(text string) string {
	return prefaceClause.ReplaceAllString(text, "")
}

// StripLeadingFillers removes up to max leading filler tokens
func StripLeadingFillers(text string, max int) string {
	for i := 0; i < max; i++ {
		loc := leadingFiller.FindStringIndex(text)
		if loc == nil {
			break
		}
		text = text[loc[1]:]
	}
	return strings.TrimSpace(text)
}

// TrimTrailingMarks strips trailing punctuation and whitespace
func TrimTrailingMarks(text string) string {
	return trailingMarks.ReplaceAllString(text, "")
}

// IsLatin reports whether text contains no letters outside the Latin script
func IsLatin(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) && !unicode.In(r, unicode.Latin) {
			return false
		}
	}
	return true
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

func containsWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		if field == word {
			return true
		}
	}
	return false
}

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
