package telegram

import (
	"context"
	"fmt"
	"strings"
)

const helpText = `Available commands:
/start - Start interaction
/help - Show this help
/ping - Check if bot is responsive
/status - Show bot status
/echo <message> - Echo your message

Just send me any message and I'll reply!`

const fallbackReply = "Sorry, I encountered an error processing your message."

// dispatch routes one inbound update. All errors end here: a failed reply
// or a failed completion degrades the answer, it never kills the loop.
func (s *session) dispatch(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	text := strings.TrimSpace(msg.Text)
	var reply string
	if strings.HasPrefix(text, "/") {
		reply = s.handleCommand(msg, text)
	} else {
		reply = s.handleText(ctx, text)
	}
	if reply == "" {
		return
	}

	if err := s.client.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
		s.logger.WithError(err).
			WithField("chat_id", msg.Chat.ID).
			Warn("reply failed")
	}
}

func (s *session) handleCommand(msg *Message, text string) string {
	cmd, args := splitCommand(text)

	switch cmd {
	case "/start":
		name := msg.From.DisplayName()
		if name == "" {
			name = "there"
		}
		return fmt.Sprintf("Hello %s! I'm alive and polling.\n\n"+
			"Try these commands:\n"+
			"/help - Show available commands\n"+
			"/ping - Test bot response\n"+
			"/status - Show bot status", name)
	case "/help":
		return helpText
	case "/ping":
		return "Pong! Bot is running via polling."
	case "/status":
		return s.statusReply()
	case "/echo":
		if args == "" {
			return "Usage: /echo <message>"
		}
		return args
	default:
		return "Unknown command. Send /help for the list."
	}
}

func (s *session) statusReply() string {
	if s.cfg.Status == nil {
		return "Bot status: running via polling"
	}
	st := s.cfg.Status()
	return fmt.Sprintf("Bot status:\nRunning via polling\nUptime: %s",
		st.UptimeFormatted())
}

// handleText answers free text: through the completer when configured, as a
// plain echo otherwise. Completion failures degrade to a fallback reply.
func (s *session) handleText(ctx context.Context, text string) string {
	if s.cfg.Completer == nil {
		return "You said: " + text
	}

	reply, err := s.cfg.Completer.Complete(ctx, text)
	if err != nil {
		s.logger.WithError(err).Warn("completion failed")
		return fallbackReply
	}
	return reply
}

func splitCommand(text string) (cmd, args string) {
	parts := strings.SplitN(text, " ", 2)
	cmd = strings.ToLower(strings.TrimSpace(parts[0]))
	// strip the @botname suffix used in group chats
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return cmd, args
}
