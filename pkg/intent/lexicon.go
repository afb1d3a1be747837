package intent

// Trigger phrases are ordered longest first so compound phrases win over
// their leading verb when both match at the same position.
var triggers = [][]string{
	{"show", "me", "a", "picture", "of"},
	{"show", "me", "an", "image", "of"},
	{"make", "me", "a", "picture", "of"},
	{"give", "me", "a", "picture", "of"},
	{"generate", "an", "image", "of"},
	{"generate", "a", "picture", "of"},
	{"create", "an", "image", "of"},
	{"create", "a", "picture", "of"},
	{"make", "an", "image", "of"},
	{"make", "a", "picture", "of"},
	{"draw", "a", "picture", "of"},
	{"paint", "a", "picture", "of"},
	{"draw", "me"},
	{"paint", "me"},
	{"draw"},
	{"paint"},
	{"sketch"},
	{"render"},
	{"generate"},
	{"visualize"},
	{"illustrate"},
	{"depict"},
}

// nounMarkers are determiners that mark a trigger word as a noun use
// ("the render", "my sketch") rather than an imperative.
var nounMarkers = map[string]bool{
	"a": true, "an": true, "the": true,
	"my": true, "your": true, "his": true, "her": true,
	"its": true, "our": true, "their": true,
	"this": true, "that": true, "these": true, "those": true,
}

var visualWords = map[string]bool{
	"red": true, "orange": true, "yellow": true, "green": true,
	"blue": true, "purple": true, "violet": true, "pink": true,
	"black": true, "white": true, "gray": true, "grey": true,
	"brown": true, "golden": true, "gold": true, "silver": true,
	"crimson": true, "scarlet": true, "turquoise": true, "teal": true,
	"indigo": true,

	"sunset": true, "sunrise": true, "dawn": true, "dusk": true,
	"twilight": true, "moonlight": true, "sunlight": true,
	"glow": true, "glowing": true, "neon": true,
	"shadow": true, "shadows": true, "mist": true, "misty": true,
	"fog": true, "foggy": true,

	"sky": true, "cloud": true, "clouds": true, "mountain": true,
	"mountains": true, "ocean": true, "sea": true, "beach": true,
	"forest": true, "woods": true, "river": true, "lake": true,
	"waterfall": true, "field": true, "meadow": true, "garden": true,
	"desert": true, "island": true, "city": true, "skyline": true,
	"castle": true, "cottage": true, "village": true, "valley": true,
	"canyon": true, "snow": true, "rain": true, "storm": true,
	"stars": true, "galaxy": true, "nebula": true, "moon": true,
	"sun": true,

	"painting": true, "portrait": true, "landscape": true,
	"watercolor": true, "canvas": true, "mural": true,
	"wallpaper": true, "poster": true, "artwork": true,
	"illustration": true, "drawing": true, "picture": true,
	"image": true, "photo": true, "photograph": true, "scene": true,
	"abstract": true, "surreal": true, "vivid": true,
	"colorful": true, "dreamy": true, "cinematic": true,
	"fantasy": true, "dragon": true, "unicorn": true, "robot": true,
	"spaceship": true,
}

// anaphors are pronouns that may refer back to an earlier prompt.
var anaphors = map[string]bool{
	"it": true, "that": true, "this": true, "them": true,
	"those": true, "these": true, "one": true, "ones": true,
}

// adjustments are words that ask for a variation of something already
// rendered. A short chunk needs one of these plus an anaphor before it is
// resolved against the window.
var adjustments = map[string]bool{
	"bigger": true, "smaller": true, "larger": true, "wider": true,
	"closer": true, "brighter": true, "darker": true, "lighter": true,
	"again": true, "more": true, "another": true, "different": true,
	"redo": true, "instead": true, "zoom": true, "colorful": true,
}

// interrogatives open a question. Contraction stems like "isn" appear
// because normalization strips apostrophes ("isn't" -> "isn t").
var interrogatives = map[string]bool{
	"what": true, "who": true, "whose": true, "where": true,
	"when": true, "why": true, "how": true, "which": true,
	"is": true, "are": true, "was": true, "were": true, "am": true,
	"do": true, "does": true, "did": true, "have": true, "has": true,
	"can": true, "could": true, "will": true, "would": true,
	"should": true, "shall": true, "may": true, "might": true,
	"isn": true, "aren": true, "don": true, "doesn": true,
	"didn": true, "wasn": true, "weren": true, "won": true,
	"wouldn": true, "couldn": true, "shouldn": true, "hasn": true,
	"haven": true,
}

var positiveWords = map[string]bool{
	"good": true, "great": true, "love": true, "loved": true,
	"lovely": true, "nice": true, "wonderful": true, "amazing": true,
	"awesome": true, "beautiful": true, "happy": true, "glad": true,
	"excellent": true, "fantastic": true, "perfect": true,
	"enjoy": true, "enjoyed": true, "fun": true, "cool": true,
	"best": true, "brilliant": true, "delightful": true,
	"gorgeous": true, "stunning": true, "pleased": true,
}

var negativeWords = map[string]bool{
	"bad": true, "hate": true, "hated": true, "terrible": true,
	"awful": true, "horrible": true, "sad": true, "angry": true,
	"annoying": true, "worst": true, "ugly": true, "boring": true,
	"disappointing": true, "disappointed": true, "broken": true,
	"wrong": true, "problem": true, "problems": true, "fail": true,
	"failed": true, "worried": true, "worry": true, "scared": true,
	"upset": true, "miserable": true,
}

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "nor": true,
	"yet": true, "with": true, "about": true, "into": true,
	"onto": true, "from": true, "over": true, "under": true,
	"after": true, "before": true, "between": true, "through": true,
	"because": true, "while": true, "during": true, "without": true,

	"this": true, "that": true, "these": true, "those": true,
	"there": true, "here": true, "then": true, "than": true,
	"them": true, "they": true, "their": true, "theirs": true,
	"you": true, "your": true, "yours": true, "youre": true,
	"she": true, "her": true, "hers": true, "him": true, "his": true,
	"its": true, "our": true, "ours": true, "was": true, "were": true,
	"are": true, "been": true, "being": true, "will": true,
	"would": true, "could": true, "should": true, "shall": true,
	"may": true, "might": true, "must": true, "have": true,
	"has": true, "had": true, "having": true, "does": true,
	"did": true, "doing": true, "not": true, "yes": true,
	"what": true, "which": true, "who": true, "whom": true,
	"whose": true, "when": true, "where": true, "why": true,
	"how": true, "all": true, "any": true, "both": true,
	"each": true, "few": true, "most": true, "other": true,
	"some": true, "such": true, "only": true, "own": true,
	"same": true, "very": true, "really": true, "quite": true,
	"too": true, "also": true, "just": true, "even": true,
	"still": true, "ever": true, "never": true, "always": true,
	"maybe": true, "perhaps": true, "like": true, "well": true,
	"yeah": true, "okay": true, "right": true, "sure": true,
	"know": true, "think": true, "thought": true, "want": true,
	"wanted": true, "need": true, "going": true, "gonna": true,
	"get": true, "got": true, "getting": true, "let": true,
	"lets": true, "come": true, "came": true, "went": true,
	"say": true, "said": true, "saying": true, "see": true,
	"saw": true, "look": true, "looking": true, "mean": true,
	"thing": true, "things": true, "stuff": true, "something": true,
	"anything": true, "nothing": true, "everything": true,
	"someone": true, "anyone": true, "everyone": true,
	"kind": true, "sort": true, "lot": true, "bit": true,
	"can": true, "cant": true, "don": true, "dont": true,
	"didn": true, "doesn": true, "isn": true, "aren": true,
	"wasn": true, "weren": true, "won": true, "wouldn": true,
	"couldn": true, "shouldn": true, "hasn": true, "haven": true,
	"ain": true, "gotta": true, "wanna": true,
}
