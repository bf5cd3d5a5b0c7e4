package enrich

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/m-p-esser/data-job-pipeline/internal/models"

	"github.com/google/uuid"
)

// docIDNamespace derives stable document IDs for job IDs that cannot be
// parsed.
var docIDNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

var (
	tokenPattern     = regexp.MustCompile(`[\p{L}\p{N}+#]+`)
	postedAgoPattern = regexp.MustCompile(`(?i)(\d+)\s*(hours?|days?|stunden?|tag(?:e|en)?)`)
	remotePattern    = regexp.MustCompile(`(?i)(remote|wfh|work[- ]from[- ]home|home[- ]?office)`)
)

// employmentTypes maps extension strings to a normalized employment type.
// German values appear verbatim in the source market's postings.
var employmentTypes = map[string]string{
	"full-time":  "full-time",
	"fulltime":   "full-time",
	"vollzeit":   "full-time",
	"part-time":  "part-time",
	"parttime":   "part-time",
	"teilzeit":   "part-time",
	"internship": "internship",
	"praktikum":  "internship",
	"contractor": "contractor",
	"freelance":  "contractor",
}

type ExtensionType string

const (
	ExtensionEmployment ExtensionType = "employment_type"
	ExtensionPostedAgo  ExtensionType = "posted_n_periods_ago"
	ExtensionOther      ExtensionType = "other"
)

// Tokenize lowercases the text and splits it into word tokens between 2 and
// 20 characters.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		if len(token) >= 2 && len(token) <= 20 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// ExtractKeywords returns the keywords whose lowercased form appears as a
// whole token in the text. Matching is token-based so "R" does not fire on
// every word containing the letter.
func ExtractKeywords(keywords []string, text string) []string {
	tokens := Tokenize(text)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		tokenSet[token] = struct{}{}
	}

	var matches []string
	seen := make(map[string]struct{})
	for _, keyword := range keywords {
		normalized := strings.ToLower(strings.TrimSpace(keyword))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		if _, ok := tokenSet[normalized]; ok {
			seen[normalized] = struct{}{}
			matches = append(matches, keyword)
		}
	}
	return matches
}

// ClassifyExtension decides whether a job extension names an employment
// type, a posting age, or something else.
func ClassifyExtension(extension string) ExtensionType {
	normalized := strings.ToLower(strings.TrimSpace(extension))
	if _, ok := employmentTypes[normalized]; ok {
		return ExtensionEmployment
	}
	if postedAgoPattern.MatchString(extension) {
		return ExtensionPostedAgo
	}
	return ExtensionOther
}

// EmploymentType normalizes an employment extension. Returns "" for
// extensions that are not employment types.
func EmploymentType(extension string) string {
	return employmentTypes[strings.ToLower(strings.TrimSpace(extension))]
}

// PostedAgo parses a "posted N hours/days ago" extension into a duration,
// normalized to hours (days count as 24). German unit words are recognized
// alongside English ones.
func PostedAgo(extension string) (time.Duration, bool) {
	matches := postedAgoPattern.FindStringSubmatch(extension)
	if len(matches) < 3 {
		return 0, false
	}

	n, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, false
	}

	unit := strings.ToLower(matches[2])
	switch {
	case strings.HasPrefix(unit, "day"), strings.HasPrefix(unit, "tag"):
		return time.Duration(n) * 24 * time.Hour, true
	default:
		return time.Duration(n) * time.Hour, true
	}
}

// IsRemote reports whether the description mentions remote work.
func IsRemote(description string) bool {
	return remotePattern.MatchString(description)
}

// DocID extracts the document ID carried inside the opaque job_id blob.
// Job IDs arrive as JSON objects with a "docid" field; anything else gets a
// deterministic UUID so reruns stay idempotent.
func DocID(jobID string) string {
	var blob struct {
		DocID string `json:"docid"`
	}
	if err := json.Unmarshal([]byte(jobID), &blob); err == nil && blob.DocID != "" {
		return blob.DocID
	}
	return uuid.NewSHA1(docIDNamespace, []byte(jobID)).String()
}

// BuildFinalRows engineers one final row per unique document ID from the
// joined raw rows. Duplicates keep the earliest-seen posting.
func BuildFinalRows(jobs []models.JoinedJob, keywordCategories map[string][]string) []models.FinalJobRow {
	sorted := make([]models.JoinedJob, len(jobs))
	copy(sorted, jobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	seen := make(map[string]struct{}, len(sorted))
	rows := make([]models.FinalJobRow, 0, len(sorted))

	for _, job := range sorted {
		docID := DocID(job.JobID)
		if _, dup := seen[docID]; dup {
			continue
		}
		seen[docID] = struct{}{}
		rows = append(rows, buildRow(job, docID, keywordCategories))
	}

	return rows
}

func buildRow(job models.JoinedJob, docID string, keywordCategories map[string][]string) models.FinalJobRow {
	keywords := make(map[string][]string, len(keywordCategories))
	for category, list := range keywordCategories {
		keywords[category] = ExtractKeywords(list, job.Description)
	}

	var employmentType string
	var postedAt *time.Time
	for _, extension := range job.Extensions {
		switch ClassifyExtension(extension) {
		case ExtensionEmployment:
			if employmentType == "" {
				employmentType = EmploymentType(extension)
			}
		case ExtensionPostedAgo:
			if postedAt == nil {
				if ago, ok := PostedAgo(extension); ok {
					t := job.CreatedAt.Add(-ago)
					postedAt = &t
				}
			}
		}
	}

	return models.FinalJobRow{
		DocID:             docID,
		SearchID:          job.SearchID,
		Title:             job.Title,
		Company:           job.Company,
		Location:          job.Location,
		Via:               job.Via,
		Description:       job.Description,
		DescriptionChars:  uint32(len(job.Description)),
		DescriptionTokens: uint32(len(Tokenize(job.Description))),
		Keywords:          keywords,
		EmploymentType:    employmentType,
		PostedAt:          postedAt,
		Remote:            IsRemote(job.Description),
		CreatedAt:         job.CreatedAt,
	}
}
