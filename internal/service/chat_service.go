package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/events"
	"github.com/spec-kit/ops-ticket-bot/pkg/util"
)

var (
	greetingPattern = regexp.MustCompile(`(?i)(morning|hello|hi|assalamu'alaikum|evening|hey|assalamualaikum|afternoon|shalom|hai|hej|pagi|siang|malam)`)
	thanksPattern   = regexp.MustCompile(`(?i)(makasih|thank you|thank|thx|maaci|suwun|nuhun)`)
)

var greetingReplies = map[string]string{
	"morning":          "Good Morning",
	"hello":            "Hello",
	"hi":               "Hi",
	"hai":              "Hai",
	"hej":              "Hej",
	"assalamu'alaikum": "Wa'alaikumussalam",
	"assalamualaikum":  "Wa'alaikumussalam",
	"hey":              "Hey",
	"afternoon":        "Good Afternoon",
	"evening":          "Good Evening",
	"shalom":           "Shalom",
	"pagi":             "Selamat Pagi",
	"siang":            "Selamat Siang",
	"malam":            "Selamat Malam",
}

var thanksReplies = map[string]string{
	"makasih":   "Iyaa, sama sama :pray:",
	"thank you": "yap, my pleasure :pray:",
	"thank":     "yap, my pleasure :pray:",
	"thx":       "yuhu, you're welcome",
	"maaci":     "hihi iaa, maaciw juga :wink:",
	"suwun":     "enggeh, sami sami :pray:",
	"nuhun":     "muhun, sami sami :pray:",
}

// InboundMessage is a plain chat message addressed to the bot.
type InboundMessage struct {
	Channel  string
	TS       string
	ThreadTS string
	UserID   string
	Text     string
}

// ChatService answers small talk, records every message in the chat log
// and feeds helpdesk thread replies into ticket transcripts.
type ChatService struct {
	lifecycle  *LifecycleService
	messenger  Messenger
	directory  Directory
	dispatcher events.Dispatcher
	botName    string
	logger     *zap.Logger
	now        func() time.Time
}

func NewChatService(lifecycle *LifecycleService, messenger Messenger, directory Directory, dispatcher events.Dispatcher, botName string, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if botName == "" {
		botName = "Pepe"
	}
	return &ChatService{
		lifecycle:  lifecycle,
		messenger:  messenger,
		directory:  directory,
		dispatcher: dispatcher,
		botName:    botName,
		logger:     logger,
		now:        time.Now,
	}
}

// Reply picks the canned replies for a message.
func (s *ChatService) Reply(userID, text string) []string {
	lower := strings.ToLower(strings.TrimSpace(text))
	ready := fmt.Sprintf("%s is ready to help :frog:", s.botName)
	if m := greetingPattern.FindStringSubmatch(lower); m != nil {
		if reply, ok := greetingReplies[m[1]]; ok {
			return []string{fmt.Sprintf("%s <@%s>, %s", reply, userID, ready), UsageHint}
		}
	}
	if m := thanksPattern.FindStringSubmatch(lower); m != nil {
		if reply, ok := thanksReplies[m[1]]; ok {
			return []string{reply}
		}
	}
	return []string{fmt.Sprintf("Hi <@%s>, %s", userID, ready), UsageHint}
}

// HandleMessage processes one inbound message. Thread replies on a helpdesk
// ticket go to its transcript; other thread replies are ignored; top-level
// messages get a canned reply. Every message is published for the chat log.
func (s *ChatService) HandleMessage(ctx context.Context, msg InboundMessage) error {
	name, err := s.directory.DisplayName(ctx, msg.UserID)
	if err != nil {
		name = ""
	}
	author := domain.Individual(msg.UserID, name)

	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventChatMessage,
		Actor:     author,
		Timestamp: s.now(),
		Payload:   events.ChatMessagePayload{Channel: msg.Channel, TS: msg.TS, Text: msg.Text},
	})

	if msg.ThreadTS != "" && msg.ThreadTS != msg.TS {
		key := domain.MessageRef{Channel: msg.Channel, TS: msg.ThreadTS}.Key()
		_, err := s.lifecycle.AppendTranscript(ctx, key, author, msg.Text)
		switch {
		case err == nil:
			return nil
		case util.HasCode(err, util.CodeNotFound), util.HasCode(err, util.CodeValidation), util.HasCode(err, util.CodeTerminal):
			return nil
		default:
			return err
		}
	}

	var errs []error
	for _, reply := range s.Reply(msg.UserID, msg.Text) {
		if _, err := s.messenger.PostText(ctx, msg.Channel, "", reply); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
