// Package knowledge holds the fixed set of support articles used as response context.
package knowledge

// Document is a knowledge-base article. The embedding is computed once when the store is built.
type Document struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Category  string    `json:"category" yaml:"category"`
	Embedding []float32 `json:"-" yaml:"-"`
}

// DefaultDocuments returns the built-in support articles.
func DefaultDocuments() []Document {
	return []Document{
		{
			ID:       "1",
			Title:    "Login Issues",
			Content:  `If you cannot log in, try resetting your password. Click "Forgot Password" on the login page and follow the instructions.`,
			Category: "technical",
		},
		{
			ID:       "2",
			Title:    "Billing Cycles",
			Content:  "Billing occurs monthly on the date you signed up. You can view your billing history in Account Settings > Billing.",
			Category: "billing",
		},
		{
			ID:       "3",
			Title:    "Account Cancellation",
			Content:  "To cancel your account, go to Settings > Account > Cancel Subscription. You will retain access until the end of your billing period.",
			Category: "billing",
		},
		{
			ID:       "4",
			Title:    "Performance Issues",
			Content:  "If the application is running slowly, try clearing your browser cache or using a different browser. Contact support if issues persist.",
			Category: "technical",
		},
		{
			ID:       "5",
			Title:    "Feature Requests",
			Content:  "We welcome feature requests! Please submit them through our feedback form or contact support with your suggestions.",
			Category: "general",
		},
	}
}
