package extract

import "context"

// MockRecognizer is a canned Recognizer for tests.
type MockRecognizer struct {
	// Responses maps input text to a fixed analysis. Texts with no entry
	// yield an empty analysis.
	Responses map[string]*Analysis

	// Err, when set, is returned for every call.
	Err error
}

func (m *MockRecognizer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if a, ok := m.Responses[text]; ok {
		return a, nil
	}
	return &Analysis{}, nil
}
