package ocr

import "encoding/json"

// ExtractedItem is one tradeable row read off the screenshot.
type ExtractedItem struct {
	Name      string   `json:"name"`
	BuyPrice  float64  `json:"buyPrice"`
	SellPrice *float64 `json:"sellPrice"` // null when the UI shows no sell price
}

// Result is the response contract of the OCR endpoint.
type Result struct {
	Items []ExtractedItem `json:"items"`
	Error string          `json:"error,omitempty"`
}

// Image is the inlined image sent upstream. Data stays base64-encoded.
type Image struct {
	MIMEType string
	Data     string
}

// Extraction carries the model's JSON exactly as returned plus its typed view.
// Typed is false when the JSON is an object but does not fit Result.
type Extraction struct {
	Raw    json.RawMessage
	Result Result
	Typed  bool
}
