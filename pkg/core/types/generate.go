package types

// Turn roles understood by the generation backend.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Content is one role-tagged turn of a conversation.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is either text or inline binary data.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob carries base64-encoded bytes with their MIME type.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type HarmCategory string

const (
	HarmCategoryHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// HarmCategories lists the four standard categories in request order.
func HarmCategories() []HarmCategory {
	return []HarmCategory{
		HarmCategoryHarassment,
		HarmCategoryHateSpeech,
		HarmCategorySexuallyExplicit,
		HarmCategoryDangerousContent,
	}
}

const BlockNone = "BLOCK_NONE"

type SafetySetting struct {
	Category  HarmCategory `json:"category"`
	Threshold string       `json:"threshold"`
}

// GenerateRequest is a single streaming call to the generation backend.
type GenerateRequest struct {
	Model             string
	Contents          []Content
	SystemInstruction string
	// ThinkingBudget is omitted from the wire request when nil.
	ThinkingBudget *int
	GoogleSearch   bool
	SafetySettings []SafetySetting
}
