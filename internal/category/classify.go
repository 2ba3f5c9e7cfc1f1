package category

import (
	"regexp"
	"strings"
)

// Confidence of a classification guess.
type Confidence string

const (
	High Confidence = "high"
	Low  Confidence = "low"
)

// Suggestion is a recommended category for a post.
type Suggestion struct {
	Category   Category   `json:"category"`
	Model      string     `json:"model,omitempty"`
	Confidence Confidence `json:"confidence"`
}

type pattern struct {
	name string
	re   *regexp.Regexp
}

var videoModels = []pattern{
	{"Veo", regexp.MustCompile(`(?i)\bveo[-\s]*(\d+(?:\.\d+)?)?`)},
	{"Sora", regexp.MustCompile(`(?i)\bsora\s*(\d+(?:\.\d+)?)?`)},
	{"Kling", regexp.MustCompile(`(?i)\bkling(?:_?ai)?[-\s]*(\d+(?:\.\d+)?)?`)},
	{"Pika", regexp.MustCompile(`(?i)\bpika[-\s]*(\d+(?:\.\d+)?)?`)},
	{"PixVerse", regexp.MustCompile(`(?i)\bpixverse[-\s]*v?[-\s]*(\d+(?:\.\d+)?)?`)},
	{"Runway Gen", regexp.MustCompile(`(?i)\brunway(?:\s*gen[-\s]*)?(\d+(?:\.\d+)?)?`)},
	{"Luma", regexp.MustCompile(`(?i)\bluma(?:[-\s]*ray|\s+dream\s+machine)?`)},
	{"LTX", regexp.MustCompile(`(?i)\bltx[-\s]*(pro|\d+(?:\.\d+)?)?`)},
	{"Wan", regexp.MustCompile(`(?i)\bwan[-\s]*\d+(?:\.\d+)?`)},
	{"Grok Imagine", regexp.MustCompile(`(?i)\bgrok(?:\s+imagine)?`)},
	{"Seedance", regexp.MustCompile(`(?i)\bseedance`)},
	{"Hailuo", regexp.MustCompile(`(?i)\bhailuo`)},
}

var nanoKeywords = []string{"nano-banana", "nanobanana", "nano banana", "nanobana", "gemini"}

var imageModels = []struct {
	name     string
	keywords []string
}{
	{"ChatGPT Image", []string{"chatgpt", "gpt4o", "gpt-4o", "chat gpt"}},
	{"DALL-E", []string{"dall-e", "dalle", "dall·e", "dall e"}},
	{"Midjourney", []string{"midjourney", "mid journey"}},
	{"Stable Diffusion", []string{"sdxl", "stable diffusion", "stable-diffusion"}},
	{"Flux", []string{"flux"}},
	{"Grok Imagine", []string{"grok", "imagen", "imagine"}},
	{"Ideogram", []string{"ideogram"}},
	{"Recraft", []string{"recraft"}},
	{"Seedream", []string{"seedream"}},
	{"Qwen Image", []string{"qwen-image", "qwen image"}},
	{"Hunyuan", []string{"hunyuan"}},
	{"Meta AI", []string{"meta ai"}},
}

var promptHints = regexp.MustCompile(`(?i)\b(cinematic|portrait|photo of|illustration|hyperrealistic|8k|4k)\b`)

// Classify recommends a category from post text and media flags. It returns
// nil when the post carries no media or nothing suggests generated content.
func Classify(text string, hasVideo, hasImage bool) *Suggestion {
	lower := strings.ToLower(text)

	if hasVideo {
		for _, p := range videoModels {
			if p.re.MatchString(lower) {
				return &Suggestion{Category: Video, Model: p.name, Confidence: High}
			}
		}
	}

	if hasImage {
		for _, kw := range nanoKeywords {
			if strings.Contains(lower, kw) {
				return &Suggestion{Category: Nano, Model: "Nano Banana Pro", Confidence: High}
			}
		}
		for _, m := range imageModels {
			for _, kw := range m.keywords {
				if strings.Contains(lower, kw) {
					return &Suggestion{Category: Image, Model: m.name, Confidence: High}
				}
			}
		}
	}

	if (hasVideo || hasImage) && looksLikePrompt(lower) {
		if hasVideo {
			return &Suggestion{Category: Video, Confidence: Low}
		}
		return &Suggestion{Category: Image, Confidence: Low}
	}

	return nil
}

func looksLikePrompt(lower string) bool {
	if len([]rune(lower)) > 50 {
		return true
	}
	for _, marker := range []string{"prompt", "--ar", "--v", "--style"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return promptHints.MatchString(lower)
}
