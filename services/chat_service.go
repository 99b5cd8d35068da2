//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-relay/clock"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"context"
	stderrors "errors"
	"log/slog"
)

type IChatService interface {
	Join(ctx context.Context, cmd domain.JoinCommand) (domain.Participant, error)
	Heartbeat(ctx context.Context, name string) error
	Send(ctx context.Context, cmd domain.SendMessageCommand) (domain.Message, error)
	ListParticipants(ctx context.Context) ([]domain.Participant, error)
	ListMessages(ctx context.Context, cmd domain.GetMessagesCommand) ([]domain.Message, error)
	SearchMessages(ctx context.Context, cmd domain.SearchMessagesCommand) ([]domain.Message, error)
}

// Censor rewrites forbidden words out of a message text.
type Censor interface {
	Censor(original string) (string, []string)
}

// ChatService is the entry point for client actions. It holds no state of its
// own; the registry and the log are the only shared resources.
type ChatService struct {
	log          *slog.Logger
	clock        clock.Clock
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	search       repositories.ISearchIndex
	censor       Censor
}

func NewChatService(
	log *slog.Logger,
	clock clock.Clock,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	search repositories.ISearchIndex,
	censor Censor,
) *ChatService {
	return &ChatService{
		log:          log,
		clock:        clock,
		participants: participants,
		messages:     messages,
		search:       search,
		censor:       censor,
	}
}

// Join registers a participant and announces it to the room.
// If the announcement cannot be stored the participant stays registered.
func (s *ChatService) Join(_ context.Context, cmd domain.JoinCommand) (domain.Participant, error) {
	if err := domain.ValidateJoin(&cmd); err != nil {
		return domain.Participant{}, err
	}
	participant, err := s.participants.Join(cmd.Name)
	if err != nil {
		return domain.Participant{}, err
	}
	status := domain.NewStatusMessage(participant.Name, domain.JoinedText, participant.LastSeen)
	if _, err = s.messages.Append(status); err != nil {
		s.log.Error("Failed to announce participant", "name", participant.Name, "error", err)
		return participant, err
	}
	return participant, nil
}

func (s *ChatService) Heartbeat(_ context.Context, name string) error {
	if name == "" {
		return errors.ErrNotFound
	}
	return s.participants.Heartbeat(name)
}

// Send appends a public or private message from a live participant.
func (s *ChatService) Send(_ context.Context, cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := domain.ValidateSend(cmd); err != nil {
		return domain.Message{}, err
	}
	if _, err := s.participants.Get(cmd.From); err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return domain.Message{}, errors.ErrInvalidSender
		}
		return domain.Message{}, err
	}

	text := cmd.Text
	if s.censor != nil {
		var words []string
		if text, words = s.censor.Censor(cmd.Text); len(words) > 0 {
			s.log.Info("Censored message", "from", cmd.From, "words", words)
		}
	}
	message := domain.NewMessage(cmd.From, cmd.To, text, cmd.Type, s.clock.Now())
	message.Lang = moderation.DetectLanguage(text)

	seq, err := s.messages.Append(message)
	if err != nil {
		s.log.Error("Failed to append message", "from", cmd.From, "error", err)
		return domain.Message{}, err
	}
	message.Sequence = seq

	if s.search != nil {
		if err = s.search.Index(message); err != nil {
			s.log.Warn("Failed to index message", "sequence", seq, "error", err)
		}
	}
	return message, nil
}

func (s *ChatService) ListParticipants(_ context.Context) ([]domain.Participant, error) {
	return s.participants.List()
}

func (s *ChatService) ListMessages(_ context.Context, cmd domain.GetMessagesCommand) ([]domain.Message, error) {
	return s.messages.QueryFor(cmd.Viewer, cmd.Limit)
}

// SearchMessages runs a full-text query over the sent messages Viewer may see, newest first.
func (s *ChatService) SearchMessages(ctx context.Context, cmd domain.SearchMessagesCommand) ([]domain.Message, error) {
	if err := domain.ValidateSearch(&cmd); err != nil {
		return nil, err
	}
	if s.search == nil {
		return nil, nil
	}
	sequences, err := s.search.Search(ctx, cmd.Viewer, cmd.Query, cmd.Limit)
	if err != nil {
		return nil, err
	}
	if len(sequences) == 0 {
		return nil, nil
	}
	return s.messages.GetMany(sequences)
}
