package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/support-router/backend/internal/intent"
	"github.com/support-router/backend/pkg/logger"
)

// Evaluator measures classifier accuracy against a labelled dataset.
type Evaluator struct {
	classifier *intent.Classifier
}

type EvaluationDataset struct {
	Items []DatasetItem `json:"items"`
}

type DatasetItem struct {
	Query       string        `json:"query"`
	Expected    intent.Intent `json:"expected_intent"`
	Description string        `json:"description,omitempty"`
}

type IntentResult struct {
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type Misclassification struct {
	Query    string        `json:"query"`
	Expected intent.Intent `json:"expected"`
	Got      intent.Intent `json:"got"`
}

type EvaluationReport struct {
	TotalQueries       int                            `json:"total_queries"`
	CorrectCount       int                            `json:"correct_count"`
	Accuracy           float64                        `json:"accuracy"`
	PerIntent          map[intent.Intent]IntentResult `json:"per_intent"`
	Misclassifications []Misclassification            `json:"misclassifications"`
}

func NewEvaluator(classifier *intent.Classifier) *Evaluator {
	if classifier == nil {
		classifier = intent.Default()
	}
	return &Evaluator{classifier: classifier}
}

// DefaultDataset holds the routing cases the service is expected to get right.
func DefaultDataset() *EvaluationDataset {
	items := []DatasetItem{
		{Query: "I cannot log into my account", Expected: intent.Technical, Description: "Login issue"},
		{Query: "I was charged twice for my subscription this month", Expected: intent.Billing, Description: "Double charge"},
		{Query: "The application is not working and showing errors", Expected: intent.Technical, Description: "Application errors"},
		{Query: "How do I cancel my subscription?", Expected: intent.Billing, Description: "Cancellation question"},
		{Query: "Hello, I need some help", Expected: intent.General, Description: "General inquiry"},
		{Query: "The app is not working", Expected: intent.Technical},
		{Query: "Password reset issue", Expected: intent.Technical},
		{Query: "Technical problem with login", Expected: intent.Technical},
		{Query: "Login issue with payment", Expected: intent.Technical},
		{Query: "I was charged twice this month", Expected: intent.Billing},
		{Query: "Billing problem with my account", Expected: intent.Billing},
		{Query: "Cancel my subscription", Expected: intent.Billing},
		{Query: "Payment issue", Expected: intent.Billing},
		{Query: "I have a billing problem with login", Expected: intent.Billing},
		{Query: "What are your business hours?", Expected: intent.General},
		{Query: "How can I contact support?", Expected: intent.General},
		{Query: "General information needed", Expected: intent.General},
	}
	return &EvaluationDataset{Items: items}
}

func (e *Evaluator) RunDatasetEvaluation(dataset *EvaluationDataset) *EvaluationReport {
	logger.Info("Running dataset evaluation", zap.Int("items", len(dataset.Items)))

	report := &EvaluationReport{
		TotalQueries:       len(dataset.Items),
		PerIntent:          make(map[intent.Intent]IntentResult),
		Misclassifications: []Misclassification{},
	}

	for i, item := range dataset.Items {
		expected := intent.Parse(string(item.Expected))
		got := e.classifier.Classify(item.Query)

		res := report.PerIntent[expected]
		res.Total++
		if got == expected {
			res.Correct++
			report.CorrectCount++
		} else {
			report.Misclassifications = append(report.Misclassifications, Misclassification{
				Query:    item.Query,
				Expected: expected,
				Got:      got,
			})
			logger.Debug("Misclassified query",
				zap.Int("index", i),
				zap.String("expected", expected.String()),
				zap.String("got", got.String()),
			)
		}
		report.PerIntent[expected] = res
	}

	for k, res := range report.PerIntent {
		res.Accuracy = percentage(res.Correct, res.Total)
		report.PerIntent[k] = res
	}
	report.Accuracy = percentage(report.CorrectCount, report.TotalQueries)

	logger.Info("Dataset evaluation completed",
		zap.Int("total", report.TotalQueries),
		zap.Int("correct", report.CorrectCount),
		zap.Float64("accuracy", report.Accuracy),
	)

	return report
}

func percentage(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func LoadDatasetFromJSON(jsonData []byte) (*EvaluationDataset, error) {
	var dataset EvaluationDataset
	if err := json.Unmarshal(jsonData, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}

	for i, item := range dataset.Items {
		if strings.TrimSpace(item.Query) == "" {
			return nil, fmt.Errorf("dataset item %d: query is empty", i)
		}
		switch item.Expected {
		case intent.Technical, intent.Billing, intent.General:
		default:
			return nil, fmt.Errorf("dataset item %d: unknown intent %q", i, item.Expected)
		}
	}

	return &dataset, nil
}

func LoadDatasetFile(path string) (*EvaluationDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return LoadDatasetFromJSON(data)
}

func GenerateReport(report *EvaluationReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, `
Intent Routing Evaluation
=========================

Total Queries: %d
Correct: %d
Accuracy: %.1f%%

Per Intent:
`, report.TotalQueries, report.CorrectCount, report.Accuracy)

	intents := make([]string, 0, len(report.PerIntent))
	for k := range report.PerIntent {
		intents = append(intents, string(k))
	}
	sort.Strings(intents)
	for _, k := range intents {
		res := report.PerIntent[intent.Intent(k)]
		fmt.Fprintf(&b, "- %s: %d/%d (%.1f%%)\n", k, res.Correct, res.Total, res.Accuracy)
	}

	if len(report.Misclassifications) > 0 {
		b.WriteString("\nMisclassifications:\n")
		for _, m := range report.Misclassifications {
			fmt.Fprintf(&b, "- %q: expected %s, got %s\n", m.Query, m.Expected, m.Got)
		}
	}

	return b.String()
}
