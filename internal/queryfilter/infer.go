package queryfilter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cssci-tools/jonathan/internal/course"
)

// Metadata field names the inferencer writes equalities against. They
// mirror the chunker's metadata keys.
const (
	FieldSemester       = "semester"
	FieldAssignmentType = "assignment_type"
	FieldAssignment     = "assignment"
	FieldFilterKey      = "filter_key"
)

// parsedQuery is the normalized view of a question that rules match on.
type parsedQuery struct {
	text   string              // lowercased, punctuation stripped, space-joined
	tokens map[string]struct{} // whole-word set
}

// hasToken reports whether the word appears as a whole token. This is
// what keeps "re" from matching inside "requirements".
func (q parsedQuery) hasToken(word string) bool {
	_, ok := q.tokens[word]
	return ok
}

// hasPhrase reports whether the multi-word phrase appears in the
// normalized text.
func (q parsedQuery) hasPhrase(phrase string) bool {
	return strings.Contains(" "+q.text+" ", " "+phrase+" ")
}

// hasAny matches a keyword family: single words as whole tokens,
// multi-word entries as phrases.
func (q parsedQuery) hasAny(family ...string) bool {
	for _, kw := range family {
		if strings.ContainsRune(kw, ' ') {
			if q.hasPhrase(kw) {
				return true
			}
		} else if q.hasToken(kw) {
			return true
		}
	}
	return false
}

// axes accumulates the inferred classification of a query. Empty means
// the axis was not recognized.
type axes struct {
	semester       string
	assignmentType string
	assignment     string
}

// rule is one entry of the inference table: a predicate over the parsed
// query and the axes it sets when it fires. Precedence is the slice
// order; within the assignment axis the first rule to set it wins.
type rule struct {
	name    string
	matches func(parsedQuery) bool
	apply   func(parsedQuery, *axes)
}

// bypassFamily lists intents that are deliberately not bound to any
// course or assignment. A query containing one of these never receives
// a filter, even when other cues are present.
var bypassFamily = []string{
	"internship", "internships",
	"master", "masters", "msc",
	"masters programs", "masters program",
	"study abroad", "exchange",
	"phd",
}

// semesterCue captures an explicit "semester N" mention.
var semesterCue = regexp.MustCompile(`\bsemester\s*([1-6])\b`)

// inferenceRules is the ordered rule table. Declared as data so the
// precedence is visible in one place and testable row by row.
var inferenceRules = []rule{
	{
		name: "capstone deliverable",
		matches: func(q parsedQuery) bool {
			return q.hasAny("capstone", "final product")
		},
		apply: func(_ parsedQuery, ax *axes) {
			ax.assignment = course.AssignmentFinalProduct
			ax.assignmentType = course.AssignmentTypeGroup
			ax.semester = strconv.Itoa(course.TerminalSemester)
		},
	},
	{
		name: "explicit semester",
		matches: func(q parsedQuery) bool {
			return semesterCue.MatchString(q.text)
		},
		apply: func(q parsedQuery, ax *axes) {
			if ax.semester == "" {
				ax.semester = semesterCue.FindStringSubmatch(q.text)[1]
			}
		},
	},
	{
		name: "group individual contribution",
		matches: func(q parsedQuery) bool {
			return q.hasToken("group") && q.hasAny("individual", "contribution", "contributions")
		},
		apply: func(_ parsedQuery, ax *axes) {
			if ax.assignment == "" {
				ax.assignment = course.AssignmentIndividualContribution
				ax.assignmentType = course.AssignmentTypeGroupIndividual
			}
		},
	},
	{
		name: "group project",
		matches: func(q parsedQuery) bool {
			return q.hasToken("group")
		},
		apply: func(_ parsedQuery, ax *axes) {
			if ax.assignment == "" {
				ax.assignment = course.AssignmentFinalProduct
				ax.assignmentType = course.AssignmentTypeGroup
			}
		},
	},
	{
		name: "individual assignment: CME",
		matches: func(q parsedQuery) bool {
			return q.hasAny("cme", "computational methods exercise", "computational methods")
		},
		apply: applyIndividual(course.AssignmentCME),
	},
	{
		name: "individual assignment: RE",
		matches: func(q parsedQuery) bool {
			return q.hasAny("re", "reflection", "reflection essay", "reflective essay")
		},
		apply: applyIndividual(course.AssignmentRE),
	},
	{
		name: "individual assignment: DSP",
		matches: func(q parsedQuery) bool {
			return q.hasAny("dsp", "data story", "data story presentation")
		},
		apply: applyIndividual(course.AssignmentDSP),
	},
	{
		name: "individual assignment: LR",
		matches: func(q parsedQuery) bool {
			return q.hasAny("lr", "literature review")
		},
		apply: applyIndividual(course.AssignmentLR),
	},
}

func applyIndividual(code string) func(parsedQuery, *axes) {
	return func(_ parsedQuery, ax *axes) {
		if ax.assignment == "" {
			ax.assignment = code
			ax.assignmentType = course.AssignmentTypeIndividual
		}
	}
}

// Infer maps a free-text query to an optional metadata filter. It
// returns nil when the query matches a bypass intent or when no rule
// recognizes anything; retrieval then relies purely on semantic
// similarity (fail open, never fail the query).
func Infer(query string) *Filter {
	q := parse(query)

	if q.hasAny(bypassFamily...) {
		return nil
	}

	var ax axes
	for _, r := range inferenceRules {
		if r.matches(q) {
			r.apply(q, &ax)
		}
	}

	if ax.semester == "" && ax.assignmentType == "" && ax.assignment == "" {
		return nil
	}

	return buildFilter(ax)
}

// buildFilter expresses the inferred axes as a disjunction: the
// composite filter_key plus one equality per recognized field.
func buildFilter(ax axes) *Filter {
	key := course.Classification{
		Semester:       orUnknown(ax.semester),
		AssignmentType: orUnknown(ax.assignmentType),
		Assignment:     orUnknown(ax.assignment),
	}.FilterKey()

	f := Eq(FieldFilterKey, key)
	if ax.semester != "" {
		f.Or(FieldSemester, ax.semester)
	}
	if ax.assignmentType != "" {
		f.Or(FieldAssignmentType, ax.assignmentType)
	}
	if ax.assignment != "" {
		f.Or(FieldAssignment, ax.assignment)
	}
	return f
}

func orUnknown(s string) string {
	if s == "" {
		return course.Unknown
	}
	return s
}

// punctuation stripped before tokenizing; apostrophes are dropped so
// "master's" and "masters" normalize the same way.
var nonWord = regexp.MustCompile(`[^a-z0-9 ]+`)

func parse(query string) parsedQuery {
	text := strings.ToLower(query)
	text = strings.ReplaceAll(text, "'", "")
	text = nonWord.ReplaceAllString(text, " ")
	fields := strings.Fields(text)

	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		tokens[f] = struct{}{}
	}

	return parsedQuery{
		text:   strings.Join(fields, " "),
		tokens: tokens,
	}
}
