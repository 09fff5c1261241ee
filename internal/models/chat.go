package models

// HistoryEntry pairs a submitted prompt with the text generated for it.
type HistoryEntry struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Snapshot is a read-only copy of the chat state handed to renderers.
type Snapshot struct {
	Prompt    string         `json:"prompt"`
	Response  string         `json:"response"`
	Loading   bool           `json:"loading"`
	ErrorKind string         `json:"error_kind,omitempty"`
	History   []HistoryEntry `json:"history"`
}

// ChatRequest is the payload sent to the chat endpoints.
type ChatRequest struct {
	Prompt string `json:"prompt"`
}

// HistoryResponse lists the stored entries, newest first.
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
	Total   int            `json:"total"`
}
