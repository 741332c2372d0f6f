package validator

import (
	"fmt"
	"path"
	"strings"

	"github.com/lonardonifabio/tech-documents/pkg/types"
)

// BuildRecord validates a and turns it into the persisted record for src.
// The record id is derived from the slash-separated relative path.
func BuildRecord(a types.Analysis, src types.SourceFile, confidence float64) types.DocumentRecord {
	filename := src.Name
	if filename == "" {
		filename = path.Base(src.RelPath)
	}
	relPath := src.RelPath
	if relPath == "" {
		relPath = "documents/" + filename
	}

	v := ValidateAndFill(a, filename)
	rec := types.DocumentRecord{
		ID:              types.RecordID(relPath),
		Filename:        filename,
		Title:           v.Title,
		Authors:         v.Authors,
		Filepath:        relPath,
		FileSize:        src.Size,
		Summary:         v.Summary,
		Keywords:        v.Keywords,
		KeyConcepts:     v.KeyConcepts,
		Category:        v.Category,
		Difficulty:      v.Difficulty,
		ContentPreview:  v.ContentPreview,
		ConfidenceScore: clampConfidence(confidence),
	}
	if !src.ModTime.IsZero() {
		rec.UploadDate = types.FormatUploadDate(src.ModTime)
	}
	Enrich(&rec, v)
	return rec
}

// Enrich fills the site's enrichment fields from the validated analysis
func Enrich(rec *types.DocumentRecord, a types.Analysis) {
	category := strings.ToLower(string(rec.Category))

	industry := a.Business.Industry
	if len(industry) == 0 {
		industry = []string{"Technology"}
	}
	terms := rec.Keywords
	if len(terms) > 3 {
		terms = terms[:3]
	}

	rec.TargetAudience = fmt.Sprintf("Professionals in %s field", category)
	rec.Industry = industry
	rec.BusinessFunctions = []string{"Research and Development", "Strategy"}
	rec.Companies = []string{}
	rec.Technologies = orEmpty(a.Technical.Technologies)
	rec.Processes = []string{"Analysis", "Implementation"}
	rec.TechnicalTerms = append([]string{}, terms...)
	rec.Methodologies = orEmpty(a.Technical.Methodologies)
	rec.ToolsMentioned = orEmpty(a.Technical.Tools)
	rec.Prerequisites = []string{"Basic understanding of the subject matter"}
	rec.LearningObjectives = []string{fmt.Sprintf("Understand %s concepts", category)}
	rec.UseCases = orEmpty(a.Business.UseCases)
	rec.BenefitsMentioned = []string{"Improved understanding", "Practical insights"}
	rec.ChallengesAddressed = []string{"Knowledge gaps", "Implementation challenges"}
	rec.BestPractices = []string{"Follow systematic approaches"}
	rec.QuestionsAndAnswers = QuestionsAndAnswers(a, rec.Category)
}

// QuestionsAndAnswers renders the five templated Q&A entries shown on the site
func QuestionsAndAnswers(a types.Analysis, cat types.Category) []string {
	category := strings.ToLower(string(cat))

	problem := "This document addresses challenges in " + category
	if len(a.KeyConcepts) > 0 {
		problem = "This document explores " + a.KeyConcepts[0]
	}

	changers := a.Technical.Technologies
	if len(changers) == 0 {
		changers = head(a.Keywords, 2)
	}
	changers = append(append([]string{}, changers...), a.Technical.Methodologies...)
	tech := "The document presents " + category + " innovations"
	if len(changers) > 0 {
		tech = "The document highlights " + strings.Join(head(changers, 3), ", ") + " as transformative technologies"
	}
	context := "technology sector"
	if len(a.Business.Industry) > 0 {
		context = a.Business.Industry[0]
	}

	application := "The insights from this " + category + " document can be applied to strategic decision-making and operational improvements"
	if len(a.Business.UseCases) > 0 {
		application = "The document provides practical applications including " + strings.Join(head(a.Business.UseCases, 2), ", ")
	}

	trends := "significant shifts in " + category
	if len(a.Keywords) > 0 {
		trends = "emerging trends in " + strings.Join(head(a.Keywords, 2), ", ")
	}

	assumptions := "conventional " + category + " practices"
	if len(a.KeyConcepts) > 0 {
		assumptions = "traditional approaches to " + strings.ToLower(a.KeyConcepts[0])
	}

	return []string{
		"🔍 Q: What specific problem does this document aim to solve or highlight, and why does it matter now? A: " +
			problem + ", which is critical in today's rapidly evolving technological landscape where organizations need practical guidance to stay competitive.",
		"💡 Q: Which AI or data science methods or technologies are presented as game-changers, and in what context? A: " +
			tech + " in the context of " + context + ", demonstrating their potential to revolutionize traditional approaches and create new opportunities for innovation.",
		"🧭 Q: How can the insights or use cases from this document be applied to real-world scenarios or decisions? A: " +
			application + ", enabling professionals to translate theoretical knowledge into actionable strategies that drive measurable business outcomes.",
		"🌐 Q: What shifts or trends are emerging from the data or case studies, and how should a professional respond? A: The document reveals " +
			trends + ", suggesting professionals should adapt by developing new competencies, embracing continuous learning, and positioning themselves at the forefront of industry transformation.",
		"🔄 Q: Which traditional assumptions are challenged or redefined by the findings in this document? A: The document challenges " +
			assumptions + ", presenting evidence that conventional wisdom may be outdated and advocating for more innovative, data-driven approaches that better align with current market realities.",
	}
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
