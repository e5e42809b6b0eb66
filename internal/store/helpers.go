package store

import (
	"encoding/json"
	"fmt"

	"github.com/bioculture/applyform/internal/models"
)

// marshalAnswers encodes the answer list as JSON for a nullable text column.
// An empty list is stored as an empty string rather than "[]".
func marshalAnswers(answers []models.Answer) (string, error) {
	if len(answers) == 0 {
		return "", nil
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("marshal answers failed: %w", err)
	}
	return string(data), nil
}

// unmarshalAnswers decodes the answers column, treating empty as no answers.
func unmarshalAnswers(raw string) ([]models.Answer, error) {
	if raw == "" {
		return nil, nil
	}
	var answers []models.Answer
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers failed: %w", err)
	}
	return answers, nil
}

// unmarshalCampaignData decodes the campaign data column, treating empty as no data.
func unmarshalCampaignData(raw string) (models.CampaignData, error) {
	if raw == "" {
		return nil, nil
	}
	var data models.CampaignData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("unmarshal campaign data failed: %w", err)
	}
	return data, nil
}
