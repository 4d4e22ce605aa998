package course

import "testing"

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Classification
	}{
		{
			name: "full individual layout",
			path: "semester_4/individual/CME/instructions.pdf",
			want: Classification{Semester: "4", AssignmentType: AssignmentTypeIndividual, Assignment: AssignmentCME},
		},
		{
			name: "capstone rubric pins terminal semester",
			path: "capstone/final_product_rubric.pdf",
			want: Classification{Semester: "6", AssignmentType: AssignmentTypeGroup, Assignment: AssignmentFinalProduct},
		},
		{
			name: "assignment code from filename stem",
			path: "semester_2/RE_guidelines.md",
			want: Classification{Semester: "2", AssignmentType: AssignmentTypeIndividual, Assignment: AssignmentRE},
		},
		{
			name: "group individual contribution",
			path: "semester_6/group_individual/individual_contribution.pdf",
			want: Classification{Semester: "6", AssignmentType: AssignmentTypeGroupIndividual, Assignment: AssignmentIndividualContribution},
		},
		{
			name: "short semester segment",
			path: "s3/LR/reading_list.txt",
			want: Classification{Semester: "3", AssignmentType: AssignmentTypeIndividual, Assignment: AssignmentLR},
		},
		{
			name: "too few parts falls back to unknown",
			path: "syllabus.pdf",
			want: Classification{Semester: Unknown, AssignmentType: Unknown, Assignment: Unknown},
		},
		{
			name: "unrelated directories stay unknown",
			path: "admin/timetables/week1.pdf",
			want: Classification{Semester: Unknown, AssignmentType: Unknown, Assignment: Unknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyPath(tt.path)
			if got != tt.want {
				t.Errorf("ClassifyPath(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestClassifyPathDeterministic(t *testing.T) {
	const path = "semester_4/individual/CME/instructions.pdf"
	first := ClassifyPath(path)
	for range 5 {
		if got := ClassifyPath(path); got != first {
			t.Fatalf("classification not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestFilterKey(t *testing.T) {
	cls := Classification{Semester: "4", AssignmentType: AssignmentTypeIndividual, Assignment: AssignmentCME}
	if got, want := cls.FilterKey(), "4_individual_CME"; got != want {
		t.Errorf("FilterKey() = %q, want %q", got, want)
	}

	unknown := Classification{Semester: Unknown, AssignmentType: Unknown, Assignment: Unknown}
	if got, want := unknown.FilterKey(), "unknown_unknown_unknown"; got != want {
		t.Errorf("FilterKey() = %q, want %q", got, want)
	}
}
