package intake

import (
	"reflect"
	"strings"
	"testing"
)

const sampleResume = `Jane Doe
Senior Product Manager at Acme Corp
8 years of product management, 12+ years of experience overall.
Led the roadmap and strategy for checkout. Skilled in SQL, Jira, Figma and A/B testing.`

func TestExtractResume(t *testing.T) {
	r := ExtractResume(sampleResume)

	if r.CurrentRole != "Senior Product Manager" {
		t.Errorf("CurrentRole = %q", r.CurrentRole)
	}
	if r.CurrentCompany != "Acme Corp" {
		t.Errorf("CurrentCompany = %q", r.CurrentCompany)
	}
	if r.RoleExperience != 8 {
		t.Errorf("RoleExperience = %d", r.RoleExperience)
	}
	if r.YearsExperience != 12 {
		t.Errorf("YearsExperience = %d", r.YearsExperience)
	}
	want := []string{"Sql", "Jira", "Figma", "A/B Testing", "Roadmap", "Strategy"}
	if !reflect.DeepEqual(r.Skills, want) {
		t.Errorf("Skills = %v, want %v", r.Skills, want)
	}
	if r.Summary != sampleResume {
		t.Errorf("Summary = %q", r.Summary)
	}
}

func TestExtractResumeFallbacks(t *testing.T) {
	r := ExtractResume("just some text without anything useful")
	if r.CurrentRole != FallbackRole {
		t.Errorf("CurrentRole = %q, want %q", r.CurrentRole, FallbackRole)
	}
	if r.YearsExperience != 0 || r.RoleExperience != 0 {
		t.Errorf("experience = %d/%d, want 0", r.RoleExperience, r.YearsExperience)
	}
	if r.Skills != nil {
		t.Errorf("Skills = %v, want nil", r.Skills)
	}
	if r.CurrentCompany != "" {
		t.Errorf("CurrentCompany = %q", r.CurrentCompany)
	}
}

func TestExtractResumeLimits(t *testing.T) {
	r := ExtractResume(strings.Join(skillVocabulary, " ") + " " + strings.Repeat("x", 600))
	if len(r.Skills) != maxSkills {
		t.Errorf("len(Skills) = %d, want %d", len(r.Skills), maxSkills)
	}
	if !strings.HasSuffix(r.Summary, "...") || len([]rune(r.Summary)) != maxSummary+3 {
		t.Errorf("summary not truncated: %d runes", len([]rune(r.Summary)))
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"product manager": "Product Manager",
		"a/b testing":     "A/B Testing",
		"kpis":            "Kpis",
		"":                "",
	}
	for in, want := range tests {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrompt(t *testing.T) {
	res := ExtractResume(sampleResume)
	job := &Job{Title: "Group PM", Company: "Globex", Description: "Own growth."}

	p := Prompt(InterviewRequest{Resume: res, Job: job})
	for _, want := range []string{
		"Current Role: Senior Product Manager",
		"Current Company: Acme Corp",
		"Total Work Experience: 12 years",
		"Key Skills: Sql, Jira",
		"Position: Group PM",
		"Company: Globex",
		"JOB DESCRIPTION:\nOwn growth.",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	p = Prompt(InterviewRequest{Resume: res, TargetRole: "Director", Job: &Job{Title: FallbackTitle, Fallback: true}})
	if strings.Contains(p, FallbackTitle) || strings.Contains(p, "JOB DESCRIPTION") {
		t.Error("fallback posting leaked into prompt")
	}
	if !strings.Contains(p, "Position: Director") {
		t.Error("explicit target role missing")
	}
}
