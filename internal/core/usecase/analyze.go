package usecase

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/docqa-retrieval/internal/core/domain"
)

const (
	boostTermWeight    = 0.5
	generalConfidence  = 0.5
	maxSynonymsPerType = 3
)

var (
	versionPattern   = regexp.MustCompile(`\b\d+\.\d+(?:\.\d+)?\b`)
	acronymPattern   = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
	titleCasePattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
)

type categoryRule struct {
	queryType  domain.QueryType
	patterns   []*regexp.Regexp
	weight     float64
	boostTerms []string
}

// QueryAnalyzer classifies query intent, extracts technical vocabulary and
// builds the expanded query used by retrieval. It never fails: any internal
// problem degrades to a general classification at confidence 0.5.
type QueryAnalyzer struct {
	glossary domain.Glossary
	rules    []categoryRule
	acronyms map[string]string
	synonyms map[domain.QueryType]map[string][]string
	docTypes map[domain.QueryType]string
	logger   *slog.Logger
}

func NewQueryAnalyzer(glossary domain.Glossary, logger *slog.Logger) *QueryAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryAnalyzer{
		glossary: glossary,
		rules:    defaultCategoryRules(),
		acronyms: defaultAcronymExpansions(),
		synonyms: defaultSynonyms(),
		docTypes: defaultDocumentTypes(),
		logger:   logger,
	}
}

// Analyze produces the per-query analysis consumed by every pipeline stage.
// Only empty input is an error.
func (a *QueryAnalyzer) Analyze(query string) (domain.QueryAnalysis, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return domain.QueryAnalysis{}, fmt.Errorf("analyze query: %w", domain.ErrInvalidInput)
	}

	analysis := a.safeAnalyze(trimmed)
	return analysis, nil
}

// safeAnalyze isolates the heuristic body so that a panic in any of the
// regex/scoring paths degrades instead of taking the pipeline down.
func (a *QueryAnalyzer) safeAnalyze(query string) (analysis domain.QueryAnalysis) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("query_analysis_degraded", "panic", fmt.Sprint(r))
			analysis = domain.QueryAnalysis{
				Original:         query,
				Enhanced:         query,
				Type:             domain.QueryGeneral,
				IntentConfidence: generalConfidence,
			}
		}
	}()

	lowered := strings.ToLower(query)

	queryType, confidence := a.classify(lowered)
	terms := a.extractTechnicalTerms(query, lowered)
	expansion := a.expansionTerms(lowered, queryType)

	enhanced := query
	if len(expansion) > 0 {
		enhanced = query + " " + strings.Join(expansion, " ")
	}

	return domain.QueryAnalysis{
		Original:         query,
		Enhanced:         enhanced,
		Type:             queryType,
		IntentConfidence: confidence,
		TechnicalTerms:   terms,
		ExpansionTerms:   expansion,
		Filters:          a.suggestFilters(lowered, queryType),
	}
}

func (a *QueryAnalyzer) classify(lowered string) (domain.QueryType, float64) {
	scores := make(map[domain.QueryType]float64, len(a.rules))
	total := 0.0

	for _, rule := range a.rules {
		score := 0.0
		for _, p := range rule.patterns {
			if p.MatchString(lowered) {
				score += rule.weight
			}
		}
		for _, boost := range rule.boostTerms {
			if strings.Contains(lowered, boost) {
				score += boostTermWeight
			}
		}
		if score > 0 {
			scores[rule.queryType] = score
			total += score
		}
	}

	if total == 0 {
		return domain.QueryGeneral, generalConfidence
	}

	best := domain.QueryGeneral
	bestScore := 0.0
	for _, rule := range a.rules {
		if s := scores[rule.queryType]; s > bestScore {
			best = rule.queryType
			bestScore = s
		}
	}

	confidence := bestScore / total
	if confidence > 1.0 {
		confidence = 1.0
	}
	return best, confidence
}

func (a *QueryAnalyzer) extractTechnicalTerms(original, lowered string) []string {
	seen := make(map[string]struct{}, 16)
	out := make([]string, 0, 16)
	add := func(term string) {
		term = strings.TrimSpace(term)
		if term == "" {
			return
		}
		key := strings.ToLower(term)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}

	for _, terms := range a.glossary {
		for _, term := range terms {
			if containsWord(lowered, term) {
				add(term)
			}
		}
	}
	for _, v := range versionPattern.FindAllString(original, -1) {
		add(v)
	}
	for _, acr := range acronymPattern.FindAllString(original, -1) {
		add(acr)
	}
	for _, seq := range titleCasePattern.FindAllString(original, -1) {
		add(seq)
	}

	sort.Strings(out)
	return out
}

func (a *QueryAnalyzer) expansionTerms(lowered string, queryType domain.QueryType) []string {
	seen := make(map[string]struct{}, 8)
	out := make([]string, 0, 8)
	add := func(term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || strings.Contains(lowered, term) {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for acronym, expanded := range a.acronyms {
		if containsWord(lowered, strings.ToLower(acronym)) {
			add(expanded)
		}
	}

	// Glossary terms for the winning category that share a substring with a
	// query word tend to be morphological variants worth searching for.
	words := strings.Fields(lowered)
	for _, term := range a.glossary.Terms(string(queryType)) {
		for _, w := range words {
			if len(w) >= 4 && (strings.Contains(term, w) || strings.Contains(w, term)) {
				add(term)
				break
			}
		}
	}

	added := 0
	for trigger, syns := range a.synonyms[queryType] {
		if !containsWord(lowered, trigger) {
			continue
		}
		for _, s := range syns {
			if added >= maxSynonymsPerType {
				break
			}
			before := len(out)
			add(s)
			if len(out) > before {
				added++
			}
		}
	}

	return out
}

func (a *QueryAnalyzer) suggestFilters(lowered string, queryType domain.QueryType) domain.SearchFilter {
	filter := domain.SearchFilter{
		DocumentType: a.docTypes[queryType],
	}
	if v := versionPattern.FindString(lowered); v != "" {
		filter.Version = v
	}
	for _, urgent := range []string{"urgent", "asap", "critical", "immediately", "outage"} {
		if strings.Contains(lowered, urgent) {
			filter.HighPriority = true
			break
		}
	}
	return filter
}

func containsWord(lowered, term string) bool {
	term = strings.ToLower(term)
	idx := strings.Index(lowered, term)
	for idx >= 0 {
		startOK := idx == 0 || !isAlphaNum(lowered[idx-1])
		end := idx + len(term)
		endOK := end >= len(lowered) || !isAlphaNum(lowered[end])
		if startOK && endOK {
			return true
		}
		next := strings.Index(lowered[idx+1:], term)
		if next < 0 {
			return false
		}
		idx += 1 + next
	}
	return false
}

func isAlphaNum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func defaultCategoryRules() []categoryRule {
	return []categoryRule{
		{
			queryType: domain.QueryInstallation,
			weight:    1.0,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\binstall(?:ation|ing|ed|er)?\b`),
				regexp.MustCompile(`\bset\s?up\b`),
				regexp.MustCompile(`\b(?:prerequisite|requirement)s?\b`),
				regexp.MustCompile(`\bdeploy(?:ment|ing)?\b`),
			},
			boostTerms: []string{"install", "setup"},
		},
		{
			queryType: domain.QueryIntegration,
			weight:    1.0,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bintegrat(?:e|ion|ing)\b`),
				regexp.MustCompile(`\bapi\b`),
				regexp.MustCompile(`\bconnect(?:or|ion|ing)?\b`),
				regexp.MustCompile(`\bendpoint\b`),
			},
			boostTerms: []string{"interface", "webhook"},
		},
		{
			queryType: domain.QuerySecurity,
			weight:    1.0,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bsecur(?:e|ity)\b`),
				regexp.MustCompile(`\bauth(?:entication|orization)?\b`),
				regexp.MustCompile(`\bencrypt(?:ion|ed)?\b`),
				regexp.MustCompile(`\bcertificates?\b`),
			},
			boostTerms: []string{"tls", "firewall", "credential"},
		},
		{
			queryType: domain.QueryTroubleshooting,
			weight:    1.0,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\btroubleshoot(?:ing)?\b`),
				regexp.MustCompile(`\b(?:error|failure|fault)s?\b`),
				regexp.MustCompile(`\bnot\s+working\b`),
				regexp.MustCompile(`\b(?:fix|resolve|diagnos(?:e|tic))\b`),
			},
			boostTerms: []string{"issue", "problem", "broken"},
		},
		{
			queryType: domain.QueryVersion,
			weight:    1.0,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bversions?\b`),
				regexp.MustCompile(`\b(?:upgrade|migration|migrat(?:e|ing))\b`),
				regexp.MustCompile(`\brelease(?:s|d)?\b`),
			},
			boostTerms: []string{"changelog", "compatibility"},
		},
		{
			queryType: domain.QueryConfiguration,
			weight:    1.0,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\bconfigur(?:e|ation|ing|ed)\b`),
				regexp.MustCompile(`\b(?:parameter|setting)s?\b`),
				regexp.MustCompile(`\b(?:tune|tuning)\b`),
			},
			boostTerms: []string{"config", "option"},
		},
	}
}

func defaultAcronymExpansions() map[string]string {
	return map[string]string{
		"RNI":  "regional network interface",
		"AMI":  "advanced metering infrastructure",
		"API":  "application programming interface",
		"HES":  "head end system",
		"MDM":  "meter data management",
		"VPN":  "virtual private network",
		"TLS":  "transport layer security",
		"LDAP": "lightweight directory access protocol",
		"DNS":  "domain name system",
		"OS":   "operating system",
	}
}

func defaultSynonyms() map[domain.QueryType]map[string][]string {
	return map[domain.QueryType]map[string][]string{
		domain.QueryInstallation: {
			"install":      {"deploy", "provision", "set up"},
			"requirements": {"prerequisites", "specifications", "sizing"},
		},
		domain.QueryIntegration: {
			"integrate": {"connect", "interface", "link"},
			"api":       {"endpoint", "interface", "service"},
		},
		domain.QuerySecurity: {
			"security": {"hardening", "protection", "access control"},
		},
		domain.QueryTroubleshooting: {
			"error": {"failure", "fault", "exception"},
			"fix":   {"resolve", "repair", "workaround"},
		},
		domain.QueryVersion: {
			"upgrade": {"migration", "update", "release"},
		},
		domain.QueryConfiguration: {
			"configure": {"set up", "adjust", "tune"},
		},
	}
}

func defaultDocumentTypes() map[domain.QueryType]string {
	return map[domain.QueryType]string{
		domain.QueryInstallation:    "installation_guide",
		domain.QueryIntegration:     "integration_guide",
		domain.QuerySecurity:        "security_guide",
		domain.QueryTroubleshooting: "troubleshooting_guide",
		domain.QueryVersion:         "release_notes",
		domain.QueryConfiguration:   "configuration_guide",
	}
}
