// Package catalog holds the static, immutable table of application flows.
//
// Flows are defined at build time and validated at init: every conditional
// route must reference questions that exist in its flow, and every flow must
// end on a non-informational question so terminal detection derived from the
// definition is always meaningful.
package catalog

import (
	"fmt"

	"github.com/bioculture/applyform/internal/models"
)

// Flow IDs for the three application tracks.
const (
	FlowBrandSponsor   = "brand_sponsor_application"
	FlowGuest          = "guest_application"
	FlowContentCreator = "content_creator_application"
)

var flows = []models.Flow{
	{
		ID:   FlowBrandSponsor,
		Name: "Brand Sponsor",
		Questions: []models.Question{
			{
				ID:          "description",
				Type:        models.QuestionTypeCompanyInformation,
				Title:       "Bioculture Brand Application",
				Description: "Take your wellness brand to the moon with our exclusive retreats. Harness the power of brand campaigns and content collaborations, connecting you to our handpicked roster of high-level, conscious creators.",
			},
			{
				ID:       "contact_info",
				Type:     models.QuestionTypeContactMatrix,
				Title:    "Let's get your contact information",
				Required: true,
			},
			{
				ID:          "company_website",
				Type:        models.QuestionTypeWebsite,
				Title:       "What is your company's website?*",
				Placeholder: "https://",
				Required:    true,
				Validation: []models.ValidationRule{
					{Type: "required", Message: "Website is required"},
					{Type: "url", Message: "Please enter a valid URL"},
				},
			},
			{
				ID:          "brand_description",
				Type:        models.QuestionTypeLongText,
				Title:       "Briefly describe your brand and its vibe",
				Placeholder: "Type your answer here...",
				Required:    true,
			},
			{
				ID:          "sponsorship_experience",
				Type:        models.QuestionTypeLongText,
				Title:       "Have you sponsored similar events or collaborated with creators in the past?",
				Description: "If yes, please provide details",
				Placeholder: "Type your answer here...",
			},
			{
				ID:          "sponsorship_opportunities",
				Type:        models.QuestionTypeMultipleChoice,
				Title:       "Which sponsorship opportunities are you interested in?",
				Description: "Choose as many as you like",
				Required:    true,
				ImageURL:    "https://images.typeform.com/images/h9NEkaivUSZV/image/default-firstframe.png",
				Options: []string{
					"Micro-dose",
					"Therapeutic-dose",
					"Heroic-dose",
				},
			},
			{
				ID:          "partnership_vision",
				Type:        models.QuestionTypeLongText,
				Title:       "What is your main goal/vision for this partnership?",
				Placeholder: "Type your answer here...",
				Required:    true,
			},
			{
				ID:          "brand_referral_source",
				Type:        models.QuestionTypeLongText,
				Title:       "Who referred you/how did you hear about Bioculture?",
				Placeholder: "Type your answer here...",
			},
			{
				ID:          "brand_retreat_dates",
				Type:        models.QuestionTypeMultipleChoice,
				Title:       "We have monthly retreats in Mexico\nWhich dates are you interested in? (we also provide accommodation one day before/after retreat)",
				Description: "Choose as many as you like",
				Required:    true,
				Options: []string{
					"Oct 2025 (3 in Mexico)",
					"Nov 2025 (Mexico)",
					"Feb 2026 (Mexico)",
					"March 2026 (2 in Guatemala)",
					"May 2026 (Costa Rica)",
					"July 2026 (Costa Rica)",
				},
			},
		},
	},
	{
		ID:   FlowGuest,
		Name: "Guest",
		Questions: []models.Question{
			{
				ID:          "description",
				Type:        models.QuestionTypeCompanyInformation,
				Title:       "Bioculture Guest Application",
				Description: "Join us as a special guest at our exclusive wellness creator retreats! This application is your opportunity to share more about yourself, and how you'll contribute to the vibe of our collective talent at Bioculture retreats.",
			},
			{
				ID:       "contact_info",
				Type:     models.QuestionTypeContactMatrix,
				Title:    "Let's get your contact information",
				Required: true,
			},
			{
				ID:          "guest_instagram_handle",
				Type:        models.QuestionTypeShortText,
				Title:       "What is your Instagram handle?",
				Placeholder: "Type your answer here...",
			},
			{
				ID:          "guest_referral_source",
				Type:        models.QuestionTypeLongText,
				Title:       "Who referred you/how did you hear about Bioculture?* ",
				Description: "(please be specific)",
				Placeholder: "Type your answer here...",
				Required:    true,
				Validation: []models.ValidationRule{
					{Type: "required", Message: "Referral source is required"},
				},
			},
			{
				ID:          "professional_background",
				Type:        models.QuestionTypeLongText,
				Title:       "Briefly introduce yourself and your professional background* ",
				Placeholder: "Type your answer here...",
				Required:    true,
				Validation: []models.ValidationRule{
					{Type: "required", Message: "Professional background is required"},
				},
			},
			{
				ID:          "application_inspiration",
				Type:        models.QuestionTypeLongText,
				Title:       "With 30% of our guests being content creators and 70% being other attendees, what inspired you to apply to our retreats?",
				Placeholder: "Type your answer here...",
			},
			{
				ID:          "accommodation_preference",
				Type:        models.QuestionTypeMultipleChoice,
				Title:       "We have different options for your accommodation* ",
				Description: " Which one are you interested in? (room rates are charged per guest)",
				Required:    true,
				Options: []string{
					"$2,700 - Shared Quad Room",
					"$3,350 - Shared Double Room",
					"$4,000 - Private Room",
					"$5,000 - Private Room for 2",
					"$5,000 - Private Modern Casita",
				},
			},
			{
				ID:          "guest_retreat_dates",
				Type:        models.QuestionTypeMultipleChoice,
				Title:       "We have monthly retreats in Mexico\nWhich dates are you interested in? (additional retreats will be updated - TBD)",
				Description: "Choose as many as you like",
				Required:    true,
				Options: []string{
					"October 26-30 Conscious Cannabis & Movement Retreat (Mexico)",
					"November 17-21 Life, Love, Longevity Retreat (Mexico)",
					"Feb 2-6 2026 X-GAMES Adventure Retreat (Guatemala)",
					"Feb 9-12 2026 Digital Nomad Citadel Week (Guatemala)",
					"March 2-6 2026 Unlocking Your True Identity Retreat (Guatemala)",
					"March 9-13 2026 Sacred Polarity Retreat (Guatemala)",
					"May 18-22 2026 Costume Retreat (Guatemala)",
				},
			},
		},
	},
	{
		ID:   FlowContentCreator,
		Name: "Content Creator",
		Questions: []models.Question{
			{
				ID:          "description",
				Type:        models.QuestionTypeCompanyInformation,
				Title:       "Bioculture Talent Application",
				Description: "We're looking for content creators with over 100k Instagram followers looking to collaborate with wellness brands and other like-minded creators.",
			},
			{
				ID:       "contact_info",
				Type:     models.QuestionTypeContactMatrix,
				Title:    "Let's get your contact information",
				Required: true,
			},
			{
				ID:          "creator_instagram_handle",
				Type:        models.QuestionTypeShortText,
				Title:       "What is your Instagram handle?* ",
				Description: " 100k followers or more (unless your engagement ROCKS!)",
				Placeholder: "Type your answer here...",
				Required:    true,
				Validation: []models.ValidationRule{
					{Type: "required", Message: "Instagram handle is required"},
				},
			},
			{
				ID:          "creator_referral_source",
				Type:        models.QuestionTypeLongText,
				Title:       "Who referred you/how did you hear about Bioculture?",
				Placeholder: "Type your answer here...",
			},
			{
				ID:          "online_presence",
				Type:        models.QuestionTypeLongText,
				Title:       "Briefly introduce yourself and describe your online presence",
				Description: "(content niche, audience demographics)",
				Placeholder: "Type your answer here...",
				Required:    true,
			},
			{
				ID:          "wellness_brand_experience",
				Type:        models.QuestionTypeLongText,
				Title:       "Have you worked with wellness brands or attended similar events in the past?",
				Description: "If yes, please provide details",
				Placeholder: "Type your answer here...",
			},
			{
				ID:          "current_brand_affiliations",
				Type:        models.QuestionTypeLongText,
				Title:       "Are you currently affiliated with any brands?",
				Description: "If yes, please list them",
				Placeholder: "Type your answer here...",
			},
			{
				ID:          "selection_reason",
				Type:        models.QuestionTypeLongText,
				Title:       "We have a long waiting list…\nGive us a reason why we should pick you? <3",
				Placeholder: "Type your answer here...",
				Required:    true,
			},
			{
				ID:          "creator_retreat_dates",
				Type:        models.QuestionTypeMultipleChoice,
				Title:       "We have monthly retreats in Mexico\nWhich dates are you interested in? (we also provide accommodation one day before/after retreat)",
				Description: "Choose as many as you like",
				Required:    true,
				Options: []string{
					"Oct 2025 (3 in Mexico)",
					"Nov 2025 (Mexico)",
					"Dec 2025 (Columbia)",
					"Feb 2026 (Mexico)",
					"March 2026 (2 in Guatemala)",
					"May 2026 (Costa Rica)",
					"July 2026 (Costa Rica)",
				},
			},
		},
	},
}

func init() {
	for i := range flows {
		if err := validateFlow(&flows[i]); err != nil {
			panic(fmt.Sprintf("invalid flow definition %s: %v", flows[i].ID, err))
		}
	}
}

// validateFlow enforces the catalog's construction invariants.
func validateFlow(f *models.Flow) error {
	if f.ID == "" || f.Name == "" {
		return fmt.Errorf("flow id and name are required")
	}
	if len(f.Questions) == 0 {
		return fmt.Errorf("flow has no questions")
	}
	seen := make(map[string]bool, len(f.Questions))
	for i := range f.Questions {
		q := &f.Questions[i]
		if q.ID == "" {
			return fmt.Errorf("question %d has no id", i)
		}
		if seen[q.ID] {
			return fmt.Errorf("duplicate question id %s", q.ID)
		}
		seen[q.ID] = true
		if !models.IsValidQuestionType(q.Type) {
			return fmt.Errorf("question %s has unsupported type %s", q.ID, q.Type)
		}
	}
	if f.TerminalQuestionID() == "" {
		return fmt.Errorf("flow has no non-informational question")
	}
	// The terminal question must be the true last question of the flow so that
	// terminal detection and sequential end-of-list completion agree.
	if last := f.Questions[len(f.Questions)-1]; f.TerminalQuestionID() != last.ID {
		return fmt.Errorf("terminal question %s is not the last question", f.TerminalQuestionID())
	}
	for _, route := range f.ConditionalRouting {
		if !seen[route.FromQuestionID] {
			return fmt.Errorf("conditional route references unknown source question %s", route.FromQuestionID)
		}
		for _, cond := range route.Conditions {
			if !seen[cond.NextQuestionID] {
				return fmt.Errorf("conditional route references unknown target question %s", cond.NextQuestionID)
			}
		}
	}
	return nil
}

// All returns every flow in the catalog.
func All() []models.Flow {
	return flows
}

// ByID returns the flow with the given ID.
func ByID(id string) (*models.Flow, error) {
	for i := range flows {
		if flows[i].ID == id {
			return &flows[i], nil
		}
	}
	return nil, models.ErrFlowNotFound
}
