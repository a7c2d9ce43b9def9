package sentiment

import (
	"math"
	"strings"
)

// Label summarises the dominant mood of a text.
type Label string

const (
	Neutral  Label = "neutral"
	Positive Label = "positive"
	Negative Label = "negative"
	Distress Label = "distress"
)

// Result is a 1-5 mood rating with a confidence and short supportive suggestions.
type Result struct {
	Rating      int      `json:"rating"`
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions"`
	Label       Label    `json:"label"`
}

var keywordBuckets = map[Label][]string{
	Positive: {
		"feliz", "alegre", "contente", "grato", "grata", "gratidão", "aliviado", "aliviada", "animado", "animada",
		"esperança", "tranquilo", "tranquila", "em paz", "melhor", "ótimo", "ótima", "bem-estar", "orgulho",
		"happy", "grateful", "relieved", "hopeful", "calm", "better", "great", "proud", "thanks", "obrigado", "obrigada",
	},
	Negative: {
		"triste", "tristeza", "ansioso", "ansiosa", "ansiedade", "cansado", "cansada", "sozinho", "sozinha",
		"solidão", "medo", "preocupado", "preocupada", "angústia", "estressado", "estressada", "estresse",
		"raiva", "irritado", "irritada", "frustrado", "frustrada", "chorar", "chorando", "desanimado", "desanimada",
		"sad", "anxious", "tired", "lonely", "afraid", "worried", "stressed", "angry", "frustrated", "crying",
	},
	Distress: {
		"suicídio", "suicida", "me matar", "tirar minha vida", "não aguento mais", "quero morrer", "me machucar",
		"automutilação", "sem saída", "desesperado", "desesperada", "desespero",
		"suicide", "kill myself", "want to die", "self-harm", "hopeless",
	},
}

// weight applied per keyword hit; distress counts as strongly negative.
var bucketWeight = map[Label]int{
	Positive: 3,
	Negative: -3,
	Distress: -8,
}

var suggestionsByLabel = map[Label][]string{
	Distress: {
		"Você não está sozinho: ligue para o CVV no 188 ou acesse cvv.org.br, a qualquer hora.",
		"Se estiver em perigo imediato, procure o SAMU (192) ou o pronto-socorro mais próximo.",
		"Converse com alguém de confiança e conte como você está se sentindo agora.",
	},
	Negative: {
		"Experimente respirar devagar por um minuto, contando até quatro em cada inspiração.",
		"Escreva o que está sentindo, sem julgamentos, para organizar os pensamentos.",
		"Considere conversar com um profissional de saúde mental.",
	},
	Neutral: {
		"Reserve alguns minutos para perceber como seu corpo e sua mente estão hoje.",
		"Pense em uma pequena atividade que costuma te fazer bem.",
	},
	Positive: {
		"Aproveite esse momento e anote o que contribuiu para ele.",
		"Compartilhe essa sensação boa com alguém próximo.",
	},
}

// Analyze scores text with keyword buckets.
func Analyze(text string) Result {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return build(Neutral, 0, 0)
	}

	hits := map[Label]int{}
	total := 0
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				hits[label]++
				total++
			}
		}
	}

	score := 0
	for label, n := range hits {
		score += n * bucketWeight[label]
	}

	// Exclamations amplify whichever direction the text already leans.
	if exclamations := strings.Count(text, "!"); exclamations > 0 && score != 0 {
		boost := exclamations
		if boost > 3 {
			boost = 3
		}
		if score > 0 {
			score += boost
		} else {
			score -= boost
		}
	}

	label := Neutral
	switch {
	case hits[Distress] > 0:
		label = Distress
	case score > 0:
		label = Positive
	case score < 0:
		label = Negative
	}

	return build(label, score, total)
}

func build(label Label, score, hits int) Result {
	rating := 3 + int(math.Round(float64(score)/4))
	if label == Distress {
		rating = 1
	}
	rating = ClampRating(float64(rating))

	confidence := 0.3
	if hits > 0 {
		confidence = ClampConfidence(0.5 + 0.1*float64(hits))
		if confidence > 0.9 {
			confidence = 0.9
		}
	}

	suggestions := append([]string(nil), suggestionsByLabel[label]...)
	return Result{Rating: rating, Confidence: confidence, Suggestions: suggestions, Label: label}
}

// ClampRating rounds v and bounds it to [1, 5].
// NaN counts as neutral.
func ClampRating(v float64) int {
	switch {
	case math.IsNaN(v):
		return 3
	case v <= 1:
		return 1
	case v >= 5:
		return 5
	}
	return int(math.Round(v))
}

// ClampConfidence bounds v to [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LabelForRating maps a rating back to a label; distress is never inferred from a number alone.
func LabelForRating(rating int) Label {
	switch {
	case rating <= 2:
		return Negative
	case rating >= 4:
		return Positive
	default:
		return Neutral
	}
}
