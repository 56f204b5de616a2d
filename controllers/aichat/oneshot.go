package aichat

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/omxchavan/mentos-talk/controllers/api"
	"github.com/omxchavan/mentos-talk/controllers/authentication"
	"github.com/omxchavan/mentos-talk/models/users"
	"github.com/omxchavan/mentos-talk/services"
)

// Одноразовые AI-эндпоинты: цель -> теги и подборка наставников,
// проблема -> сводка, цель -> план действий. Историю не пишут, отказ
// внешнего вызова деградирует до текстовой заглушки, не до ошибки.

type goalRequest struct {
	Goal string `json:"goal"`
}

type recommendation struct {
	Mentor      map[string]any `json:"mentor"`
	MatchScore  float64        `json:"matchScore"`
	MatchReason string         `json:"matchReason"`
}

// RecommendMentors извлекает из цели теги экспертизы и подбирает по ним
// наставников. bestEffort=true помечает теги, полученные деградированным
// разбором свободного текста, а не структурированным выводом модели.
func RecommendMentors(w http.ResponseWriter, r *http.Request, db *gorm.DB, auth *authentication.Identity, ai *services.AIClient) {
	if _, err := auth.Validate(r); err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req goalRequest
	if err := api.Decode(r, &req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if req.Goal == "" {
		api.Fail(w, http.StatusBadRequest, "Goal is required")
		return
	}

	tags, bestEffort, genErr := ai.ExtractTags(r.Context(), req.Goal)
	var explanation string
	if genErr != nil {
		log.Error().Err(genErr).Msg("Отказ генеративного API, наивное извлечение ключевых слов")
		// Грубая выборка ключевых слов из самой цели.
		tags = nil
		for _, word := range strings.Fields(req.Goal) {
			if len(word) > 4 {
				tags = append(tags, word)
			}
		}
		bestEffort = true
		explanation = "I'll find mentors that match your interests."
	} else {
		explanation = fmt.Sprintf("Based on your goal %q, I'm looking for mentors with expertise in: %s",
			req.Goal, strings.Join(tags, ", "))
	}

	profiles, err := findMatchingProfiles(db, tags)
	if err != nil {
		api.Internal(w, "Failed to recommend mentors", err)
		return
	}

	recs := make([]recommendation, 0, len(profiles))
	for _, p := range profiles {
		matching := matchingTags(&p, tags)

		score := 0.0
		if len(tags) > 0 {
			score = float64(len(matching)) / float64(len(tags)) * 100
		}

		reason := "Related expertise"
		if len(matching) > 0 {
			reason = "Matches: " + strings.Join(matching, ", ")
		}

		photo := p.ProfilePhoto
		if photo == "" {
			photo = p.User.ProfilePhoto
		}

		recs = append(recs, recommendation{
			Mentor: map[string]any{
				"id":           p.ID,
				"name":         p.User.Name,
				"profilePhoto": photo,
				"bio":          p.Bio,
				"expertise":    p.TagNames(),
				"experience":   p.Experience,
				"avgRating":    p.AvgRating,
				"totalRatings": p.TotalRatings,
			},
			MatchScore:  score,
			MatchReason: reason,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].MatchScore > recs[j].MatchScore })

	response := explanation
	if len(recs) > 0 {
		response += fmt.Sprintf("\n\nI found %d mentor(s) that might be a great fit for you!", len(recs))
	} else {
		response += "\n\nNo exact matches found, but check out our top-rated mentors."
	}

	api.OK(w, http.StatusOK, map[string]any{
		"response":        response,
		"extractedTags":   tags,
		"bestEffort":      bestEffort,
		"recommendations": recs,
	})
}

// findMatchingProfiles — профили, у которых тег или bio пересекаются с
// извлечёнными тегами; топ-5 по рейтингу.
func findMatchingProfiles(db *gorm.DB, tags []string) ([]users.MentorProfile, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	tagCond := db
	bioCond := db
	for i, t := range tags {
		pattern := "%" + strings.ToLower(t) + "%"
		if i == 0 {
			tagCond = db.Where("LOWER(name) LIKE ?", pattern)
			bioCond = db.Where("LOWER(bio) LIKE ?", pattern)
		} else {
			tagCond = tagCond.Or("LOWER(name) LIKE ?", pattern)
			bioCond = bioCond.Or("LOWER(bio) LIKE ?", pattern)
		}
	}

	sub := db.Model(&users.ExpertiseTag{}).Select("mentor_profile_id").Where(tagCond)

	var profiles []users.MentorProfile
	err := db.Model(&users.MentorProfile{}).
		Preload("Expertise").Preload("User").
		Where(db.Where("id IN (?)", sub).Or(bioCond)).
		Order("avg_rating DESC").
		Limit(5).
		Find(&profiles).Error
	return profiles, err
}

func matchingTags(p *users.MentorProfile, tags []string) []string {
	var matching []string
	for _, own := range p.Expertise {
		for _, t := range tags {
			if strings.Contains(strings.ToLower(own.Name), strings.ToLower(t)) {
				matching = append(matching, own.Name)
				break
			}
		}
	}
	return matching
}

type issueRequest struct {
	Issue string `json:"issue"`
}

// SummarizeIssue — сводка проблемы пользователя для наставника. При
// отказе API — простое усечение исходного текста.
func SummarizeIssue(w http.ResponseWriter, r *http.Request, auth *authentication.Identity, ai *services.AIClient) {
	if _, err := auth.Validate(r); err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req issueRequest
	if err := api.Decode(r, &req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if req.Issue == "" {
		api.Fail(w, http.StatusBadRequest, "Issue description is required")
		return
	}

	summary, genErr := ai.Generate(r.Context(), services.PromptSummarize, "User's issue:\n"+req.Issue)
	if genErr != nil {
		log.Error().Err(genErr).Msg("Отказ генеративного API, сводка заменена усечением")
		summary = req.Issue
		if len(summary) > 200 {
			summary = summary[:200] + "..."
		}
	}

	api.OK(w, http.StatusOK, map[string]any{
		"summary":        summary,
		"originalLength": len(req.Issue),
		"summaryLength":  len(summary),
	})
}

// GenerateActionPlan — план действий по цели. При отказе API — шаблонный
// план с упоминанием цели.
func GenerateActionPlan(w http.ResponseWriter, r *http.Request, auth *authentication.Identity, ai *services.AIClient) {
	if _, err := auth.Validate(r); err != nil {
		api.Fail(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req goalRequest
	if err := api.Decode(r, &req); err != nil {
		api.Fail(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if req.Goal == "" {
		api.Fail(w, http.StatusBadRequest, "Goal is required")
		return
	}

	plan, genErr := ai.Generate(r.Context(), services.PromptActionPlan, "User's goal:\n"+req.Goal)
	if genErr != nil {
		log.Error().Err(genErr).Msg("Отказ генеративного API, подставлен шаблонный план")
		plan = fallbackPlan(req.Goal)
	}

	api.OK(w, http.StatusOK, map[string]any{
		"plan": plan,
		"goal": req.Goal,
	})
}

func fallbackPlan(goal string) string {
	return fmt.Sprintf(`## Action Plan for: %s

### Learning Steps:
1. Research and understand the fundamentals
2. Find learning resources (courses, tutorials)
3. Practice with hands-on projects
4. Seek feedback from mentors
5. Build a portfolio of work

### Recommended Resources:
- Online learning platforms (Coursera, Udemy)
- Documentation and official guides
- Community forums and Discord servers

### Timeline:
- Weeks 1-2: Foundation learning
- Weeks 3-4: Practice projects
- Month 2+: Advanced topics and specialization`, goal)
}
