package prompts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/assessor/internal/model"
)

const maxSubjectRunes = 200

var assessmentResultRegex = regexp.MustCompile(`(?i)</?\s*assessment-result\b[^>]*>`)

//go:embed course.txt
var courseText string

var (
	loadOnce       sync.Once
	loadErr        error
	courseTemplate *template.Template
)

// CourseData holds template data for the course prompt.
type CourseData struct {
	Subject           string
	Level             model.ExperienceLevel
	BeginnerScore     int
	IntermediateScore int
	HasIntermediate   bool
	PayloadJSON       string
}

func load() error {
	loadOnce.Do(func() {
		courseTemplate, loadErr = template.New("course").Parse(courseText)
		if loadErr != nil {
			loadErr = fmt.Errorf("parse course prompt: %w", loadErr)
		}
	})
	return loadErr
}

// BuildCoursePrompt renders the course-generation prompt for a completed
// assessment.
func BuildCoursePrompt(p model.CoursePayload) (string, error) {
	if err := load(); err != nil {
		return "", err
	}

	p.Subject = sanitizeSubject(p.Subject)
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	data := CourseData{
		Subject:       p.Subject,
		Level:         p.ExperienceLevel,
		BeginnerScore: p.BeginnerScorePercent,
		PayloadJSON:   string(raw),
	}
	if p.IntermediateScorePercent != nil {
		data.HasIntermediate = true
		data.IntermediateScore = *p.IntermediateScorePercent
	}

	var buf bytes.Buffer
	if err := courseTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeSubject(subject string) string {
	subject = assessmentResultRegex.ReplaceAllString(subject, "")
	subject = strings.Join(strings.Fields(subject), " ")

	if subject == "" {
		return "[unspecified]"
	}
	if utf8.RuneCountInString(subject) > maxSubjectRunes {
		subject = string([]rune(subject)[:maxSubjectRunes])
	}
	return subject
}
