package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/scout/internal/domain/model"
)

func encodePosting(p model.Posting) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode posting: %w", err)
	}
	return string(b), nil
}

func decodePosting(body string) (model.Posting, error) {
	var p model.Posting
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return model.Posting{}, fmt.Errorf("decode posting: %w", err)
	}
	return p, nil
}

func encodeDecision(d model.Decision) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode decision: %w", err)
	}
	return string(b), nil
}

func decodeDecision(body string) (model.Decision, error) {
	var d model.Decision
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return model.Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	return d, nil
}

func since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
