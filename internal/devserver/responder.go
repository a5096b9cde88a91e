package devserver

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/smartcall/helpdesk-go/internal/config"
	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

// Responder produces the support agent's reply to a user message.
type Responder interface {
	Reply(ctx context.Context, history []StoredMessage, userText string) (string, error)
}

// NewResponder picks the Ark-backed agent when model credentials are
// configured and falls back to the scripted agent otherwise, so the dev
// server always runs.
func NewResponder(ctx context.Context, cfg config.AIConfig) Responder {
	if !cfg.Enabled() {
		log.Println("[ai] ark credentials not configured, using scripted responder")
		return ScriptedResponder{}
	}

	responder, err := NewArkResponder(ctx, cfg)
	if err != nil {
		log.Printf("[ai] warning: failed to initialize ark responder: %v", err)
		log.Println("[ai] falling back to scripted responder")
		return ScriptedResponder{}
	}

	log.Println("[ai] ark responder initialized successfully")
	return responder
}

const supportSystemPrompt = "Você é o assistente virtual da SmartCall, um serviço de suporte técnico. " +
	"Responda em português, de forma curta e objetiva, propondo passos práticos de diagnóstico. " +
	"Se o problema estiver fora do seu alcance, sugira ao usuário chamar um técnico."

// ArkResponder generates replies with an eino chain over an Ark model.
type ArkResponder struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkResponder compiles the prompt/model chain.
func NewArkResponder(ctx context.Context, cfg config.AIConfig) (*ArkResponder, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ArkResponder{chain: runnable}, nil
}

// Reply invokes the chain with the recent ticket history.
func (r *ArkResponder) Reply(ctx context.Context, history []StoredMessage, userText string) (string, error) {
	response, err := r.chain.Invoke(ctx, map[string]any{
		"system":  supportSystemPrompt,
		"history": historyMessages(history),
		"query":   userText,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	return response.Content, nil
}

func historyMessages(history []StoredMessage) []*schema.Message {
	const historyLimit = 10

	start := 0
	if len(history) > historyLimit {
		start = len(history) - historyLimit
	}

	msgs := make([]*schema.Message, 0, len(history)-start)
	for _, m := range history[start:] {
		switch {
		case m.IsUser:
			msgs = append(msgs, schema.UserMessage(m.Text))
		case m.SenderType == ticket.SenderAI:
			msgs = append(msgs, schema.AssistantMessage(m.Text, nil))
		}
	}
	return msgs
}

// ScriptedResponder returns deterministic canned replies, good enough
// for development and required for tests.
type ScriptedResponder struct{}

// Reply matches a few common support topics and otherwise asks for
// detail.
func (ScriptedResponder) Reply(_ context.Context, history []StoredMessage, userText string) (string, error) {
	lower := strings.ToLower(userText)
	switch {
	case strings.Contains(lower, "senha"):
		return "Para redefinir sua senha, acesse Configurações > Conta > Redefinir senha. Se o problema persistir, posso encaminhar para um técnico.", nil
	case strings.Contains(lower, "internet"), strings.Contains(lower, "rede"), strings.Contains(lower, "wifi"):
		return "Vamos começar pelo básico: reinicie o roteador e aguarde 30 segundos. A conexão voltou ao normal?", nil
	case strings.Contains(lower, "impressora"):
		return "Verifique se a impressora está ligada e conectada à mesma rede do computador. Consegue imprimir uma página de teste?", nil
	case len(history) == 1:
		return "Olá! Recebi seu chamado e já estou analisando. Pode me dar mais detalhes sobre quando o problema começou?", nil
	default:
		return "Entendi. Pode me descrever o que acontece exatamente, incluindo alguma mensagem de erro que apareça na tela?", nil
	}
}
