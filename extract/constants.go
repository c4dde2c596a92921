package extract

import (
	"regexp"

	"github.com/brunobiangulo/contractgraph/nlp"
)

var romanToNumber = map[string]string{
	"I": "1", "II": "2", "III": "3", "IV": "4", "V": "5",
	"VI": "6", "VII": "7", "VIII": "8", "IX": "9", "X": "10",
	"XI": "11", "XII": "12", "XIII": "13", "XIV": "14", "XV": "15",
	"XVI": "16", "XVII": "17", "XVIII": "18", "XIX": "19", "XX": "20",
}

// headerPattern recognises one style of article heading. When title is 0
// the heading is unnumbered and the whole capture is its title.
type headerPattern struct {
	re     *regexp.Regexp
	number int
	title  int
}

// articlePatterns are tried in order; an earlier pattern wins an overlap.
// All are line anchored and tolerate markdown heading or bold markers.
var articlePatterns = []headerPattern{
	{regexp.MustCompile(`(?im)^[ \t#*]*ARTICLE[ \t]+([IVX]+)[ \t]*[-–—.:][ \t]*(.*?)[ \t*]*$`), 1, 2},
	{regexp.MustCompile(`(?im)^[ \t#*]*ARTICLE[ \t]+(\d+)[ \t]*[-–—.:][ \t]*(.*?)[ \t*]*$`), 1, 2},
	{regexp.MustCompile(`(?m)^[ \t#*]*(\d+)\.[ \t]*([A-Z][A-Za-z \t]+?)[ \t*]*$`), 1, 2},
	{regexp.MustCompile(`(?im)^[ \t#*]*SECTION[ \t]+(\d+)[.:][ \t]*(.*?)[ \t*]*$`), 1, 2},
}

// capsHeadingPattern matches an unnumbered all-caps heading line. It only
// yields articles when no numbered heading exists.
var capsHeadingPattern = regexp.MustCompile(`(?m)^[ \t#*]*([A-Z][A-Z&,' \t-]{2,}[A-Z])[ \t*]*$`)

// sectionPatterns are matched line by line inside an article body.
var sectionPatterns = []headerPattern{
	{regexp.MustCompile(`(?m)^[ \t#*]*(\d+\.\d+)[ \t]+(.+?)[ \t]*$`), 1, 2},
	{regexp.MustCompile(`(?m)^[ \t#*]*(\d+\.\d+\.\d+)[ \t]+(.+?)[ \t]*$`), 1, 2},
	{regexp.MustCompile(`(?m)^[ \t#*]*(\d+\.\d+[a-z])[ \t]+(.+?)[ \t]*$`), 1, 2},
	{regexp.MustCompile(`(?m)^[ \t]*([A-Za-z])\.[ \t]+(.+?)[ \t]*$`), 1, 2},
	{regexp.MustCompile(`(?m)^[ \t]*\(([a-z])\)[ \t]+(.+?)[ \t]*$`), 1, 2},
}

// structuredSectionPatterns are the stricter section headings accepted in
// parsed (JSON) output, where every line is a candidate.
var structuredSectionPatterns = []headerPattern{
	{regexp.MustCompile(`(?m)^[ \t#*]*(\d+\.\d+(?:\.\d+)?)[ \t]+([A-Z].*?)[ \t]*$`), 1, 2},
	{regexp.MustCompile(`(?m)^[ \t]*([a-z])\)[ \t]+([A-Z].*?)[ \t]*$`), 1, 2},
	{regexp.MustCompile(`(?m)^[ \t]*\(([a-z])\)[ \t]+([A-Z].*?)[ \t]*$`), 1, 2},
}

var titlePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^[ \t#*]*(.*?(?:AGREEMENT|CONTRACT))`),
	regexp.MustCompile(`(?im)^(.+?)\bbetween\b`),
	regexp.MustCompile(`(?im)^([a-z \t]+(?:[ \t]*[-–—][ \t]*[a-z \t]+)?)$`),
}

// docTypes drive document classification. Order matters for ties.
var docTypes = []nlp.Category{
	{Name: "Non-Disclosure Agreement", Keywords: []string{"confidential", "disclose", "nda", "non-disclosure"}},
	{Name: "Employment Contract", Keywords: []string{"employ", "salary", "position", "hire", "job"}},
	{Name: "Lease Agreement", Keywords: []string{"lease", "rent", "landlord", "tenant", "premises"}},
	{Name: "License Agreement", Keywords: []string{"license", "royalty", "intellectual property", "patent"}},
	{Name: "Services Agreement", Keywords: []string{"service", "perform", "deliverable"}},
	{Name: "Purchase Agreement", Keywords: []string{"purchase", "buy", "sale"}},
	{Name: "Merger Agreement", Keywords: []string{"merger", "acquisition", "combine"}},
}

var dateContexts = []string{
	"effective date",
	"dated as of",
	"agreement date",
	"executed on",
	"entered into on",
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)[ \t]+\d{1,2}(?:st|nd|rd|th)?,?[ \t]+\d{4}\b`),
	regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?[ \t]+(?:day[ \t]+of[ \t]+)?(?:January|February|March|April|May|June|July|August|September|October|November|December),?[ \t]+\d{4}\b`),
	regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
}

var (
	directEffectiveDateRe = regexp.MustCompile(`Effective\s+Date:\s*([A-Za-z]+\s+\d{1,2},\s*\d{4})`)
	monthDayYearRe        = regexp.MustCompile(`[A-Z][a-z]+\s+\d{1,2},\s*\d{4}`)

	txtEffectiveDateRe = regexp.MustCompile(`(?i)effective\s+(?:as\s+of\s+)?(?:date|:)?\s*[:;]?\s*(\w+\s+\d{1,2}(?:st|nd|rd|th)?[\s,]+\d{4}|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	txtExecutionDateRe = regexp.MustCompile(`(?i)(?:executed|signed|dated)(?:\s+as\s+of)?\s+(?:this)?\s*(\w+\s+\d{1,2}(?:st|nd|rd|th)?[\s,]+\d{4}|\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4})`)
	txtPartyRe         = regexp.MustCompile(`(?i)((?:between|by and between|among)\s+)((?:[A-Z][A-Za-z\s,.']*(?:Inc\.|LLC|Ltd\.?|Corporation|Company|Co\.|LP|LLP|Trust|Association)){1,3})`)

	betweenRe = regexp.MustCompile(`(?is)\bbetween\s+(.+?)\s+and\s+(.+?)(?:\s+(?:effective date|witnesseth|whereas|now, therefore)|\s*$)`)
)

var (
	orgSuffixRe = regexp.MustCompile(`Inc\.|LLC|Ltd\.|Limited|Corp\.|Corporation|B\.V\.|GmbH`)
	orgWordRe   = regexp.MustCompile(`Company|Corporation|Technologies|Systems|International`)
)

var metadataPartyFalsePositives = []string{"article", "section", "this agreement", "hereinafter"}

var partyFalsePositives = []string{
	"article", "section", "agreement", "contract", "date",
	"herein", "hereof", "hereto", "effective date",
}

type orgType struct {
	re   *regexp.Regexp
	name string
}

var orgTypes = []orgType{
	{regexp.MustCompile(`Inc\.|\bCorporation\b|Corp\.`), "Corporation"},
	{regexp.MustCompile(`\bLLC\b`), "Limited Liability Company"},
	{regexp.MustCompile(`Ltd\.|\bLimited\b`), "Limited Company"},
	{regexp.MustCompile(`B\.V\.`), "Dutch Private Limited Company"},
	{regexp.MustCompile(`\bGmbH\b`), "German Limited Liability Company"},
	{regexp.MustCompile(`S\.A\.`), "Anonymous Society"},
	{regexp.MustCompile(`\bLLP\b`), "Limited Liability Partnership"},
	{regexp.MustCompile(`\bAG\b`), "German Public Company"},
	{regexp.MustCompile(`\bApS\b`), "Danish Private Limited Company"},
	{regexp.MustCompile(`\b(?:Oyj?|OYJ?)\b`), "Finnish Company"},
	{regexp.MustCompile(`\bPLC\b|P\.L\.C\.`), "Public Limited Company"},
}

// signaturePatterns capture (company, name, title) from signature blocks.
var signaturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:For|By):[ \t]*([A-Za-z0-9 \t,.&]+?)[ \t]*[_\s-]*\s*(?:Name|Signature):[ \t]*([A-Za-z \t.-]+?)\s*(?:Title|Position):[ \t]*([A-Za-z \t.-]+)`),
	regexp.MustCompile(`(?i)([A-Za-z0-9 \t,.&]+?)[ \t]*\n\s*By:[ \t_-]*(?:\n\s*)?Name:[ \t]*([A-Za-z \t.-]+?)[ \t]*\n\s*Title:[ \t]*([A-Za-z \t.-]+)`),
}

var importantKeywords = []string{
	"scope", "purpose", "term", "payment", "confidential", "intellectual property",
	"termination", "governing law", "indemnification", "warranty", "liability",
	"obligations", "representations", "warranties", "compliance", "assignment",
}

// provisionCategories let the classifier vote on article importance. Each
// category name is one of importantKeywords.
var provisionCategories = []nlp.Category{
	{Name: "scope", Keywords: []string{"scope", "services", "deliverables"}},
	{Name: "payment", Keywords: []string{"pay", "fee", "invoice", "compensation", "price"}},
	{Name: "confidential", Keywords: []string{"confidential", "non-disclosure", "proprietary"}},
	{Name: "intellectual property", Keywords: []string{"intellectual property", "copyright", "patent", "trademark"}},
	{Name: "termination", Keywords: []string{"terminate", "termination", "expire"}},
	{Name: "governing law", Keywords: []string{"governed by", "laws of", "jurisdiction"}},
	{Name: "indemnification", Keywords: []string{"indemnify", "indemnification", "hold harmless"}},
	{Name: "warranty", Keywords: []string{"warrant", "warranty", "as is"}},
	{Name: "liability", Keywords: []string{"liable", "liability", "damages"}},
	{Name: "obligations", Keywords: []string{"obligation", "responsibilities", "duties"}},
	{Name: "compliance", Keywords: []string{"comply", "compliance", "regulation"}},
	{Name: "assignment", Keywords: []string{"assign", "assignment", "transfer"}},
}

// keyTermCategories classify text windows into legal topics.
var keyTermCategories = []nlp.Category{
	{Name: "effective date", Keywords: []string{"effective date", "commencement", "effective as of"}},
	{Name: "termination", Keywords: []string{"terminate", "termination", "notice of termination"}},
	{Name: "confidentiality", Keywords: []string{"confidential", "non-disclosure", "proprietary information"}},
	{Name: "intellectual property", Keywords: []string{"intellectual property", "copyright", "patent", "trademark", "license"}},
	{Name: "payment terms", Keywords: []string{"payment", "invoice", "fee", "pay"}},
	{Name: "dispute resolution", Keywords: []string{"dispute", "arbitration", "mediation"}},
	{Name: "governing law", Keywords: []string{"governed by", "governing law", "laws of"}},
	{Name: "force majeure", Keywords: []string{"force majeure", "act of god", "beyond its reasonable control"}},
	{Name: "indemnification", Keywords: []string{"indemnify", "indemnification", "hold harmless"}},
	{Name: "limitation of liability", Keywords: []string{"limitation of liability", "consequential damages", "aggregate liability"}},
	{Name: "warranty", Keywords: []string{"warrants", "warranty", "warranties"}},
}

// Window sizes and limits for model-backed passes.
const (
	windowSize          = 450
	metadataNERLimit    = 10000
	classifyLimit       = 1000
	provisionLimit      = 2000
	enhanceLimit        = 25000
	signatureNERLimit   = 5000
	minKeyTermWindow    = 20
	maxMetadataParties  = 5
	maxFinancials       = 15
	maxKeyDates         = 15
	maxTermContexts     = 3
	summaryLimit        = 300
	dateContextDistance = 100
	proximityDistance   = 300

	docTypeThreshold   = 0.7
	provisionThreshold = 0.7
	keyTermThreshold   = 0.6
)
