package course

// Unknown marks a classification axis that could not be inferred from
// the document's path. Ambiguity is never an error; unknown documents
// are still indexed and reachable by plain semantic search.
const Unknown = "unknown"

// TerminalSemester is the capstone semester of the programme. Mentions
// of the capstone pin the semester axis to this value.
const TerminalSemester = 6

// Assignment type values stored in chunk metadata.
const (
	// AssignmentTypeIndividual is a regular individual assignment.
	AssignmentTypeIndividual = "individual"

	// AssignmentTypeGroup is the group-project deliverable.
	AssignmentTypeGroup = "group"

	// AssignmentTypeGroupIndividual is the individual-contribution
	// component graded within the group project.
	AssignmentTypeGroupIndividual = "group_individual"
)

// Canonical assignment codes for deliverables referenced in queries.
const (
	// AssignmentFinalProduct is the capstone group-project deliverable.
	AssignmentFinalProduct = "final_product"

	// AssignmentIndividualContribution is the per-student contribution
	// record inside the group project.
	AssignmentIndividualContribution = "individual_contribution"

	// AssignmentCME is the Computational Methods Exercise.
	AssignmentCME = "CME"

	// AssignmentRE is the Reflection Essay.
	AssignmentRE = "RE"

	// AssignmentDSP is the Data Story Presentation.
	AssignmentDSP = "DSP"

	// AssignmentLR is the Literature Review.
	AssignmentLR = "LR"
)

// KnownAssignments lists every canonical assignment code. Used by path
// classification to recognize assignment directories and file stems.
var KnownAssignments = []string{
	AssignmentFinalProduct,
	AssignmentIndividualContribution,
	AssignmentCME,
	AssignmentRE,
	AssignmentDSP,
	AssignmentLR,
}

// knownAssignmentTypes maps directory names to assignment types.
var knownAssignmentTypes = map[string]string{
	"individual":       AssignmentTypeIndividual,
	"group":            AssignmentTypeGroup,
	"group_individual": AssignmentTypeGroupIndividual,
	"capstone":         AssignmentTypeGroup,
}
