package persona

import (
	"errors"
	"strings"
)

// Persona captures the assistant character sent to the model as its system prompt.
type Persona struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Language      string `json:"language" yaml:"language"`
	OpeningLine   string `json:"openingLine" yaml:"openingLine"`
	SystemPrompt  string `json:"-" yaml:"systemPrompt"`
	FallbackReply string `json:"-" yaml:"fallbackReply"`
}

var (
	ErrMissingID     = errors.New("persona id is required")
	ErrMissingPrompt = errors.New("persona system prompt is required")
)

// Validate checks the fields a persona cannot work without.
func (p Persona) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return ErrMissingPrompt
	}
	return nil
}

// withDefaults fills optional fields from the built-in persona.
func (p Persona) withDefaults() Persona {
	def := Default()
	if strings.TrimSpace(p.Name) == "" {
		p.Name = def.Name
	}
	if strings.TrimSpace(p.Language) == "" {
		p.Language = def.Language
	}
	if strings.TrimSpace(p.FallbackReply) == "" {
		p.FallbackReply = def.FallbackReply
	}
	return p
}

// Default returns the built-in emotional-support assistant.
func Default() Persona {
	return Persona{
		ID:            "acolhe",
		Name:          "Escuta",
		Language:      "pt-BR",
		OpeningLine:   "Oi! Este é um espaço seguro. Como você está se sentindo hoje?",
		SystemPrompt:  defaultSystemPrompt,
		FallbackReply: "Desculpe, não consegui processar sua mensagem. Pode tentar novamente?",
	}
}

const defaultSystemPrompt = `Você é um assistente de suporte emocional especializado em conversas empáticas e reflexivas em português brasileiro. Suas características:

1. EMPATIA: Sempre demonstre compreensão e validação dos sentimentos compartilhados
2. REFLEXÃO: Faça perguntas abertas que ajudem a pessoa a refletir sobre seus sentimentos
3. CULTURAL: Use expressões e contextos culturais brasileiros apropriados
4. PRIVACIDADE: Lembre que esta é uma conversa confidencial e segura
5. LIMITES: Não ofereça diagnósticos médicos ou substitua terapia profissional
6. BREVIDADE: Mantenha respostas concisas mas significativas (máximo 3-4 frases)

Diretrizes específicas:
- Use linguagem calorosa e acolhedora
- Evite jargões psicológicos complexos
- Encoraje a expressão de sentimentos
- Ofereça perspectivas construtivas quando apropriado
- Sugira reflexões ou técnicas simples de autoconhecimento
- Sempre mantenha um tom respeitoso e não julgamental

Se a pessoa mencionar pensamentos suicidas ou automutilação, encoraje gentilmente a buscar ajuda profissional imediata.`
