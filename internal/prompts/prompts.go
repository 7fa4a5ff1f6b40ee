// Package prompts holds the fixed instruction templates used by the
// multimodal operations. Entries are returned verbatim.
package prompts

// Task names addressable through Lookup.
const (
	TaskImageAnalysis = "image-analysis"
	TaskAgeEstimation = "age-estimation"
)

// ImageAnalysis is sent with an image when the caller supplies no custom prompt.
const ImageAnalysis = `You are an image analysis assistant. Analyze the provided image and describe what you see in detail. Include:
- Main subjects or objects in the image
- Colors and visual composition
- Any text or notable features
- Overall context or setting

Keep your response clear and concise.`

// AgeEstimation is always sent with age estimation requests.
const AgeEstimation = `You are an age estimation assistant. Analyze the person in the provided image and estimate their age. Provide:
- Your estimated age or age range
- Key facial features that informed your estimate
- A confidence level (low, medium, high)

Be respectful and professional in your response. If multiple people are in the image, estimate the age of the most prominent person.`

var catalog = map[string]string{
	TaskImageAnalysis: ImageAnalysis,
	TaskAgeEstimation: AgeEstimation,
}

// Lookup returns the template registered under task.
func Lookup(task string) (string, bool) {
	p, ok := catalog[task]
	return p, ok
}
