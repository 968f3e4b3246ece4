package ask

import "strings"

type fallbackMessages struct {
	noData        string
	clarification string
}

var fallbacks = map[string]fallbackMessages{
	"en": {
		noData:        "Sorry, no data is available for that right now.",
		clarification: "Could you tell me which team, tournament or season you mean?",
	},
	"hi": {
		noData:        "क्षमा करें, अभी इसके लिए कोई डेटा उपलब्ध नहीं है।",
		clarification: "कृपया बताइए कि आप किस टीम, टूर्नामेंट या सीज़न के बारे में पूछ रहे हैं?",
	},
	"bn": {
		noData:        "দুঃখিত, এই মুহূর্তে এর জন্য কোনো তথ্য পাওয়া যাচ্ছে না।",
		clarification: "আপনি কোন দল, টুর্নামেন্ট বা মৌসুমের কথা বলছেন জানাবেন?",
	},
	"ta": {
		noData:        "மன்னிக்கவும், இதற்கான தரவு தற்போது கிடைக்கவில்லை.",
		clarification: "நீங்கள் எந்த அணி, தொடர் அல்லது சீசனைக் குறிப்பிடுகிறீர்கள் என்று சொல்ல முடியுமா?",
	},
	"te": {
		noData:        "క్షమించండి, ప్రస్తుతం దీనికి సంబంధించిన డేటా అందుబాటులో లేదు.",
		clarification: "మీరు ఏ జట్టు, టోర్నమెంట్ లేదా సీజన్ గురించి అడుగుతున్నారో చెప్పగలరా?",
	},
	"ur": {
		noData:        "معذرت، اس وقت اس کے بارے میں کوئی ڈیٹا دستیاب نہیں ہے۔",
		clarification: "براہ کرم بتائیں کہ آپ کس ٹیم، ٹورنامنٹ یا سیزن کی بات کر رہے ہیں؟",
	},
}

func fallbackFor(language string) fallbackMessages {
	lang := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	if m, ok := fallbacks[lang]; ok {
		return m
	}
	return fallbacks["en"]
}

// NoDataMessage is the answer given when nothing could be retrieved.
func NoDataMessage(language string) string {
	return fallbackFor(language).noData
}

// ClarificationMessage is the default question when the query cannot be
// planned and the extractor offered none.
func ClarificationMessage(language string) string {
	return fallbackFor(language).clarification
}
