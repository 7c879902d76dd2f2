package intake

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FallbackRole is reported when no known title appears in a resume.
const FallbackRole = "Professional"

const (
	maxSkills        = 10
	maxSummary       = 500
	promptSkills     = 8
	promptSummaryLen = 300
)

// Resume holds what the heuristics could pull out of pasted resume text.
// Zero values mean "not found".
type Resume struct {
	CurrentRole     string   `json:"current_role"`
	CurrentCompany  string   `json:"current_company,omitempty"`
	RoleExperience  int      `json:"role_experience"`
	YearsExperience int      `json:"years_experience"`
	Skills          []string `json:"skills"`
	Summary         string   `json:"summary"`
}

// Longer titles first so "senior product manager" wins over "product manager".
var roleTitles = []string{
	"senior product manager",
	"associate product manager",
	"principal product manager",
	"director of product",
	"vp of product",
	"head of product",
	"product manager",
	"product owner",
	"product lead",
	"engineering manager",
	"staff engineer",
	"senior software engineer",
	"software engineer",
	"data scientist",
}

var companyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:\bat|@)\s+([A-Z][a-zA-Z&]*(?:[ \t&]+[A-Z][a-zA-Z&]*)*(?:\s+(?:Inc|LLC|Corp|Corporation|Ltd|Limited))?)`),
	regexp.MustCompile(`([A-Z][a-zA-Z\s&]+(?:Inc|LLC|Corp|Corporation|Ltd|Limited))\s*-`),
}

var roleExperiencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\+?\s*years?\s*of\s*(?:product\s*management|pm|product)`),
	regexp.MustCompile(`(\d+)\+?\s*years?\s*(?:product\s*management|pm|product)\s*experience`),
	regexp.MustCompile(`(\d+)\s*years?\s*(?:as\s*a?\s*)?product\s*manager`),
}

var totalExperiencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\+?\s*years?\s*of\s*(?:professional\s*)?experience`),
	regexp.MustCompile(`(\d+)\+?\s*years?\s*experience`),
	regexp.MustCompile(`over\s*(\d+)\s*years`),
}

var skillVocabulary = []string{
	"python", "java", "sql", "analytics", "data analysis", "agile", "scrum",
	"jira", "figma", "sketch", "wireframing", "user research", "a/b testing",
	"roadmap", "strategy", "metrics", "kpis", "stakeholder management",
}

// ExtractResume applies keyword and pattern heuristics to resume text.
// The role falls back to FallbackRole, experience to 0 and skills to nil.
func ExtractResume(text string) Resume {
	lower := strings.ToLower(text)
	r := Resume{
		CurrentRole: FallbackRole,
		Summary:     summarize(text),
	}

	for _, title := range roleTitles {
		if strings.Contains(lower, title) {
			r.CurrentRole = titleCase(title)
			break
		}
	}

	for _, re := range companyPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			r.CurrentCompany = strings.TrimSpace(m[1])
			break
		}
	}

	r.RoleExperience = firstYears(lower, roleExperiencePatterns)
	r.YearsExperience = firstYears(lower, totalExperiencePatterns)

	for _, skill := range skillVocabulary {
		if len(r.Skills) == maxSkills {
			break
		}
		if strings.Contains(lower, skill) {
			r.Skills = append(r.Skills, titleCase(skill))
		}
	}
	return r
}

func firstYears(text string, patterns []*regexp.Regexp) int {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n
			}
		}
	}
	return 0
}

func summarize(text string) string {
	text = strings.TrimSpace(text)
	if len([]rune(text)) > maxSummary {
		return truncate(text, maxSummary) + "..."
	}
	return text
}

// titleCase upper-cases the first letter of each word, including after "/".
func titleCase(s string) string {
	b := []rune(s)
	start := true
	for i, c := range b {
		if start && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		start = c == ' ' || c == '/' || c == '-'
	}
	return string(b)
}

// InterviewRequest is the input to Prompt.
type InterviewRequest struct {
	Resume        Resume `json:"resume"`
	TargetRole    string `json:"target_role,omitempty"`
	TargetCompany string `json:"target_company,omitempty"`
	Job           *Job   `json:"job,omitempty"`
}

// Prompt builds the system prompt handed to the voice interviewer.
func Prompt(req InterviewRequest) string {
	var b strings.Builder
	res := req.Resume

	b.WriteString("You are an experienced hiring manager conducting a mock interview. ")
	b.WriteString("You have read the candidate's resume. Use it to ask relevant, personalized questions.\n\n")

	b.WriteString("CANDIDATE PROFILE:\n")
	fmt.Fprintf(&b, "- Current Role: %s\n", orDefault(res.CurrentRole, FallbackRole))
	if res.CurrentCompany != "" {
		fmt.Fprintf(&b, "- Current Company: %s\n", res.CurrentCompany)
	}
	fmt.Fprintf(&b, "- Role Experience: %d years\n", res.RoleExperience)
	fmt.Fprintf(&b, "- Total Work Experience: %d years\n", res.YearsExperience)

	if len(res.Skills) > 0 || res.Summary != "" {
		b.WriteString("\nRESUME HIGHLIGHTS:\n")
		if len(res.Skills) > 0 {
			skills := res.Skills
			if len(skills) > promptSkills {
				skills = skills[:promptSkills]
			}
			fmt.Fprintf(&b, "- Key Skills: %s\n", strings.Join(skills, ", "))
		}
		if res.Summary != "" {
			fmt.Fprintf(&b, "- Background Summary: %s\n", truncate(res.Summary, promptSummaryLen))
		}
	}

	targetRole, targetCompany := req.TargetRole, req.TargetCompany
	if req.Job != nil && !req.Job.Fallback {
		targetRole = orDefault(targetRole, req.Job.Title)
		targetCompany = orDefault(targetCompany, req.Job.Company)
	}
	if targetRole != "" || targetCompany != "" {
		b.WriteString("\nTARGET ROLE:\n")
		if targetRole != "" {
			fmt.Fprintf(&b, "- Position: %s\n", targetRole)
		}
		if targetCompany != "" {
			fmt.Fprintf(&b, "- Company: %s\n", targetCompany)
		}
	}
	if req.Job != nil && !req.Job.Fallback && req.Job.Description != "" {
		fmt.Fprintf(&b, "\nJOB DESCRIPTION:\n%s\n", req.Job.Description)
	}

	b.WriteString(`
INTERVIEW INSTRUCTIONS:
1. Reference the candidate's experience and skills when relevant.
2. Ask behavioral questions using the STAR method based on their actual experience.
3. Include technical and strategic questions appropriate for their experience level.
4. Ask follow-up questions based on their responses.
5. Keep responses concise and interview-like.
6. The interview should last 15-20 minutes; end naturally after covering the key competencies.

Start by greeting the candidate and explaining the interview format, then ask your first question.
`)
	return b.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
