package main

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

// First aid assistant for reporters waiting on a rescue team. The
// knowledge base is static and the matching is deterministic: roadside
// advice must not depend on a network call, and the same message always
// yields the same answer.

// firstAidGuidance is one topic's advice, rendered as ordered steps.
type firstAidGuidance struct {
	Topic  string   `json:"topic"`
	Advice []string `json:"advice"`
}

var firstAidTopics = map[string]firstAidGuidance{
	"bleeding": {
		Topic: "bleeding",
		Advice: []string{
			"Bleeding control:",
			"1. Use a clean cloth or gauze",
			"2. Apply firm, direct pressure",
			"3. Do not peek, maintain pressure for 5 minutes",
			"4. If blood soaks through, add more layers",
			"5. Elevate the wound above the heart if possible",
			"6. Keep the animal calm and still",
			"Severe bleeding: maintain constant pressure, do not remove blood clots, cover to keep warm.",
			"Rescue team arriving in 5-10 minutes.",
		},
	},
	"breathing": {
		Topic: "breathing",
		Advice: []string{
			"Breathing difficulties:",
			"1. Clear any obstruction from the mouth",
			"2. Extend the neck slightly to open the airway",
			"3. Do not tilt the head back",
			"4. Keep calm, stress worsens breathing",
			"5. Provide fresh air",
			"6. Monitor chest movement",
			"If not breathing: close the mouth and breathe into the nose, one breath every 3 seconds, watch the chest rise.",
			"This is critical, help is coming fast.",
		},
	},
	"shock": {
		Topic: "shock",
		Advice: []string{
			"Treating shock:",
			"1. Keep the animal lying down",
			"2. Cover with a blanket, not the head",
			"3. Keep calm and quiet",
			"4. Do not give food or water",
			"5. Monitor breathing and pulse",
			"Signs of shock: pale gums, rapid breathing, weak pulse, cold extremities.",
			"Veterinary help is on the way.",
		},
	},
	"poisoning": {
		Topic: "poisoning",
		Advice: []string{
			"Suspected poisoning:",
			"1. Do NOT induce vomiting",
			"2. Remove any remaining poison from the mouth",
			"3. Keep a sample of the poison if safe",
			"4. Keep the animal calm and still",
			"5. Note symptoms and time",
			"This is urgent, help is on the way.",
		},
	},
	"dog-injured": {
		Topic: "dog-injured",
		Advice: []string{
			"Injured dog:",
			"1. Approach slowly and speak softly",
			"2. Avoid sudden movements",
			"3. If conscious, check breathing",
			"4. Keep warm with a blanket or cloth",
			"5. Do not move if a spine injury is suspected",
			"6. Monitor breathing and consciousness",
			"Rescue team will arrive in 5-10 minutes.",
		},
	},
	"dog-accident": {
		Topic: "dog-accident",
		Advice: []string{
			"Traffic accident victim:",
			"1. Move to a safe area if in traffic",
			"2. Check for breathing",
			"3. Look for visible injuries",
			"4. Keep still, do not bend limbs",
			"5. Cover with a blanket to prevent shock",
			"6. Talk calmly to comfort",
			"Stay with the animal until help arrives.",
		},
	},
	"cat-injured": {
		Topic: "cat-injured",
		Advice: []string{
			"Injured cat:",
			"1. Approach slowly, cats hide when hurt",
			"2. Use a blanket to gently restrain if needed",
			"3. Keep in a dark, quiet space",
			"4. Watch for breathing difficulties",
			"5. Do not give food or water",
			"Help arriving in 5-10 minutes.",
		},
	},
	"cat-accident": {
		Topic: "cat-accident",
		Advice: []string{
			"Accident victim:",
			"1. Use a cardboard box as a stretcher",
			"2. Move gently to a safe location",
			"3. Check breathing",
			"4. Keep warm and quiet",
			"5. Note visible injuries",
			"Stay calm, the rescue team has been notified.",
		},
	},
	"bird-injured": {
		Topic: "bird-injured",
		Advice: []string{
			"Injured bird:",
			"1. Place in a small box with air holes",
			"2. Keep warm, not hot",
			"3. Keep quiet, stress is dangerous",
			"4. Do not give food or water",
			"5. Minimize handling",
			"6. Keep away from pets",
			"Wildlife rescue arriving soon.",
		},
	},
	"general": {
		Topic: "general",
		Advice: []string{
			"General first aid steps:",
			"1. Stay calm, animals sense your stress",
			"2. Ensure your own safety first",
			"3. Keep the animal still and warm",
			"4. Do not give food or water",
			"5. Monitor breathing",
			"6. Note symptoms and time",
			"The rescue team has been notified and is on the way.",
			"Ask about a specific condition: bleeding, breathing, accident, poisoning.",
		},
	},
}

var firstAidHelp = firstAidGuidance{
	Topic: "help",
	Advice: []string{
		"Describe the animal and what happened, for example \"dog bleeding\" or \"cat accident\".",
		"Covered animals: dogs, cats, birds.",
		"Covered conditions: bleeding, breathing, shock, accident, poisoning.",
	},
}

// matchFirstAidTopic picks the guidance for a free-text message.
// Condition keywords win over animal keywords, so "dog bleeding" gets
// the bleeding steps, not the generic dog advice.
func matchFirstAidTopic(message string) firstAidGuidance {
	input := strings.ToLower(strings.TrimSpace(message))
	contains := func(keywords ...string) bool {
		for _, keyword := range keywords {
			if strings.Contains(input, keyword) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("bleed"):
		return firstAidTopics["bleeding"]
	case contains("breath", "chok"):
		return firstAidTopics["breathing"]
	case contains("shock", "unconscious"):
		return firstAidTopics["shock"]
	case contains("poison", "toxic"):
		return firstAidTopics["poisoning"]
	case contains("dog", "puppy"):
		if contains("accident", "hit") {
			return firstAidTopics["dog-accident"]
		}
		return firstAidTopics["dog-injured"]
	case contains("cat", "kitten"):
		if contains("accident", "hit") {
			return firstAidTopics["cat-accident"]
		}
		return firstAidTopics["cat-injured"]
	case contains("bird"):
		return firstAidTopics["bird-injured"]
	// Greetings match whole words only: "hit" must not read as "hi".
	case hasAnyWord(input, "hi", "hello", "help"):
		return firstAidTopics["general"]
	case contains("accident", "hit", "car"):
		return firstAidTopics["dog-accident"]
	default:
		return firstAidHelp
	}
}

func hasAnyWord(input string, words ...string) bool {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, field := range fields {
		for _, word := range words {
			if field == word {
				return true
			}
		}
	}
	return false
}

// firstAidGuideHandler returns the general guidance the assistant opens
// with.
func (a *App) firstAidGuideHandler(c *gin.Context) {
	c.JSON(http.StatusOK, firstAidTopics["general"])
}

// firstAidAdviceHandler answers a reporter message with matching
// guidance.
func (a *App) firstAidAdviceHandler(c *gin.Context) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || strings.TrimSpace(payload.Message) == "" {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_message", Message: "Describe the animal and its condition."})
		return
	}
	c.JSON(http.StatusOK, matchFirstAidTopic(payload.Message))
}
