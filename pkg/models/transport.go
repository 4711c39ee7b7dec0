package models

// AnalyzeFoodRequest is the body of POST /api/gemini/analyze-food.
type AnalyzeFoodRequest struct {
	ImagePayload string `json:"imagePayload" binding:"required"`
	Variant      string `json:"variant" binding:"required"`
}

// ProxyRequest is the body of POST /api/gemini-proxy/:variant, where the
// variant travels in the path.
type ProxyRequest struct {
	ImageData string `json:"imageData" binding:"required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Kind      string `json:"kind,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}
