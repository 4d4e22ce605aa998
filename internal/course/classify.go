package course

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Classification is the structured placement of a document within the
// programme. Axes that cannot be inferred carry the Unknown marker.
type Classification struct {
	Semester       string // "1".."6" or Unknown
	AssignmentType string // individual / group / group_individual or Unknown
	Assignment     string // canonical assignment code or Unknown
}

// FilterKey joins the classification fields in a fixed order. It is
// stored on every chunk and used as an exact-match filter shortcut.
func (c Classification) FilterKey() string {
	return fmt.Sprintf("%s_%s_%s", c.Semester, c.AssignmentType, c.Assignment)
}

// semesterSegment matches directory segments like "semester_4",
// "semester 4", "sem4" or "s4".
var semesterSegment = regexp.MustCompile(`^(?:semester[_ ]?|sem[_ ]?|s)([1-6])$`)

// ClassifyPath infers a Classification from a slash-separated path
// relative to the raw course-material root. Expected layouts look like
//
//	semester_4/individual/CME/instructions.pdf
//	semester_6/capstone/final_product_rubric.pdf
//
// but any segment order is tolerated; each segment is inspected
// independently and the first match per axis wins. Paths with too few
// recognizable parts classify as Unknown on the missing axes rather
// than failing.
func ClassifyPath(relPath string) Classification {
	cls := Classification{
		Semester:       Unknown,
		AssignmentType: Unknown,
		Assignment:     Unknown,
	}

	segments := strings.Split(filepath.ToSlash(relPath), "/")
	for i, seg := range segments {
		tokens := []string{strings.ToLower(strings.TrimSpace(seg))}
		if i == len(segments)-1 {
			// The filename contributes its stem tokens, so
			// "CME_rubric.pdf" still classifies the assignment.
			tokens = stemTokens(seg)
		}
		for _, tok := range tokens {
			classifyToken(tok, &cls)
		}
	}

	// The capstone deliverable only exists in the terminal semester.
	if cls.Assignment == AssignmentFinalProduct && cls.Semester == Unknown {
		cls.Semester = strconv.Itoa(TerminalSemester)
	}

	return cls
}

// classifyToken applies one lowercase token to the classification,
// filling only axes still unknown.
func classifyToken(tok string, cls *Classification) {
	if cls.Semester == Unknown {
		if m := semesterSegment.FindStringSubmatch(tok); m != nil {
			cls.Semester = m[1]
		}
	}

	if cls.AssignmentType == Unknown {
		if at, ok := knownAssignmentTypes[tok]; ok {
			cls.AssignmentType = at
		}
	}

	if cls.Assignment == Unknown {
		for _, code := range KnownAssignments {
			if strings.EqualFold(tok, code) {
				cls.Assignment = code
				break
			}
		}
	}

	// Assignment codes imply their type when the directory layout
	// does not carry one.
	if cls.AssignmentType == Unknown {
		switch cls.Assignment {
		case AssignmentFinalProduct:
			cls.AssignmentType = AssignmentTypeGroup
		case AssignmentIndividualContribution:
			cls.AssignmentType = AssignmentTypeGroupIndividual
		case AssignmentCME, AssignmentRE, AssignmentDSP, AssignmentLR:
			cls.AssignmentType = AssignmentTypeIndividual
		}
	}
}

// stemTokens splits a filename stem into lowercase tokens on the usual
// separators. "final_product_rubric.pdf" -> [final_product_rubric,
// final_product, final, product, rubric].
func stemTokens(filename string) []string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.ToLower(stem)

	tokens := []string{stem}
	parts := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	// Adjacent pairs catch two-word codes like "final_product".
	for i := 0; i < len(parts)-1; i++ {
		tokens = append(tokens, parts[i]+"_"+parts[i+1])
	}
	tokens = append(tokens, parts...)
	return tokens
}
