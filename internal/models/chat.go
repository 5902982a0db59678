package models

import "encoding/json"

// Role identifies who authored a chat message.
type Role string

const (
	RoleAI   Role = "ai"
	RoleUser Role = "user"
)

// ChatMessage is a single rendered turn in a conversation. Messages are
// appended to the conversation and never edited afterwards.
type ChatMessage struct {
	ID      int64    `json:"id"`
	Role    Role     `json:"role"`
	Text    string   `json:"text"`
	Schemes []Scheme `json:"schemes,omitempty"`
}

// ChatRequest is the payload accepted by the message and refine endpoints.
type ChatRequest struct {
	Message string `json:"message"`
}

// RecommendRequest is the body sent to the upstream /recommend endpoint.
type RecommendRequest struct {
	ConversationHistory []string `json:"conversation_history"`
	CurrentInput        string   `json:"current_input"`
}

// RefineRequest is the body sent to the upstream /refine endpoint.
type RefineRequest struct {
	OriginalQuery  string `json:"original_query"`
	FollowupAnswer string `json:"followup_answer"`
}

// RecommendResponse is the reply from the upstream recommendation service.
type RecommendResponse struct {
	FollowupNeeded bool     `json:"followup_needed"`
	Message        string   `json:"message"`
	Results        []Scheme `json:"results,omitempty"`
}

// UnmarshalJSON accepts the reply shapes the upstream has been seen to emit:
// the text may arrive as "message", "question" or "text" and the result set
// as "results" or "top_matches". Mistyped fields are treated as absent and
// result entries that are not objects are dropped.
func (r *RecommendResponse) UnmarshalJSON(data []byte) error {
	var raw struct {
		FollowupNeeded looseBool       `json:"followup_needed"`
		Message        looseString     `json:"message"`
		Question       looseString     `json:"question"`
		Text           looseString     `json:"text"`
		Results        json.RawMessage `json:"results"`
		TopMatches     json.RawMessage `json:"top_matches"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.FollowupNeeded = bool(raw.FollowupNeeded)
	r.Message = ""
	for _, s := range []looseString{raw.Message, raw.Question, raw.Text} {
		if s != "" {
			r.Message = string(s)
			break
		}
	}

	r.Results = decodeSchemes(raw.Results)
	if len(r.Results) == 0 {
		r.Results = decodeSchemes(raw.TopMatches)
	}
	return nil
}

// Empty reports whether the response carries neither text nor results.
func (r *RecommendResponse) Empty() bool {
	return r == nil || (len(r.Results) == 0 && r.Message == "")
}
