package evalsuite

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Question is one entry of the evaluation question set.
type Question struct {
	Question           string `json:"question"`
	GoldenAnswer       string `json:"golden_answer"`
	EvaluationCriteria string `json:"evaluation_criteria"`
}

type questionFile struct {
	Data []Question `json:"data"`
}

// LoadQuestions reads the evaluation question set from a JSON file.
func LoadQuestions(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}
	var file questionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question file: %w", err)
	}
	if len(file.Data) == 0 {
		return nil, errors.New("question file contains no entries")
	}
	return file.Data, nil
}

// ResponseRecord pairs one question with the agent's response.
type ResponseRecord struct {
	Question           string `json:"question"`
	GoldenAnswer       string `json:"golden_answer"`
	EvaluationCriteria string `json:"evaluation_criteria"`
	AgentResponse      string `json:"agent_response"`
}

// ResponseFile is the intermediate artifact between response generation and
// judging. Never mutated after write.
type ResponseFile struct {
	GeneratedAt string           `json:"generated_at"`
	Results     []ResponseRecord `json:"results"`
}

// LoadResponses reads a response file from disk.
func LoadResponses(path string) (*ResponseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read response file: %w", err)
	}
	var file ResponseFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse response file: %w", err)
	}
	if len(file.Results) == 0 {
		return nil, errors.New("response file contains no results")
	}
	return &file, nil
}

// WriteResponses persists a response file to disk.
func WriteResponses(path string, file *ResponseFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write response file: %w", err)
	}
	return nil
}
