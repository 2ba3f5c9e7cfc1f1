package category

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		hasVideo bool
		hasImage bool
		want     *Suggestion
	}{
		{"video model", "Made with Veo 3 in one shot", true, false, &Suggestion{Category: Video, Model: "Veo", Confidence: High}},
		{"video model needs video", "Made with Veo 3", false, false, nil},
		{"nano beats image models", "Gemini + Midjourney remix", false, true, &Suggestion{Category: Nano, Model: "Nano Banana Pro", Confidence: High}},
		{"image model", "midjourney v7 test", false, true, &Suggestion{Category: Image, Model: "Midjourney", Confidence: High}},
		{"video prompt guess", "cinematic shot", true, false, &Suggestion{Category: Video, Confidence: Low}},
		{"image prompt guess", "prompt: a cat", false, true, &Suggestion{Category: Image, Confidence: Low}},
		{"no media", "cinematic midjourney prompt", false, false, nil},
		{"plain image", "lunch", false, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text, tt.hasVideo, tt.hasImage)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("Classify() = %+v, want %+v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("Classify() = %+v, want %+v", *got, *tt.want)
			}
		})
	}
}
