package sessions

import "github.com/convene-app/backend/internal/models"

// DefaultStages is the stock three-stage arc used when a session is
// created without an explicit configuration: warm up in pairs, go deep
// in small groups, then close together.
func DefaultStages() []models.StageDefinition {
	return []models.StageDefinition{
		{
			Name:    "Connect",
			Enabled: true,
			Substages: []models.SubstageDefinition{
				{
					ID:              "connect-welcome",
					Name:            "Welcome",
					GroupSize:       "whole-group",
					DurationSeconds: 300,
					Prompt:          "Welcome! Settle in while the host opens the session.",
				},
				{
					ID:              "connect-pairs",
					Name:            "Pair Introductions",
					GroupSize:       "pair",
					DurationSeconds: 420,
					Prompt:          "Introduce yourself: what brought you here today?",
				},
			},
		},
		{
			Name:    "Explore",
			Enabled: true,
			Substages: []models.SubstageDefinition{
				{
					ID:              "explore-dialogue",
					Name:            "Small Group Dialogue",
					GroupSize:       "quad",
					DurationSeconds: 900,
					Prompt:          "Discuss the main question. Make space for every voice.",
				},
				{
					ID:              "explore-harvest",
					Name:            "Harvest",
					GroupSize:       "quad",
					DurationSeconds: 300,
					Prompt:          "Capture the one insight your group wants to share.",
					PreserveGroups:  true,
				},
			},
		},
		{
			Name:    "Reflect",
			Enabled: true,
			Substages: []models.SubstageDefinition{
				{
					ID:              "reflect-closing",
					Name:            "Closing Circle",
					GroupSize:       "whole-group",
					DurationSeconds: 600,
					Prompt:          "What are you taking with you?",
				},
			},
		},
	}
}
