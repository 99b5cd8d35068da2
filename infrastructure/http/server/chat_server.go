package server

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/services"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// UserHeader carries the caller identity on every request but the join.
const UserHeader = "User"

type participantResponse struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

type messageResponse struct {
	ID       string `json:"id"`
	Sequence uint64 `json:"sequence"`
	From     string `json:"from"`
	To       string `json:"to"`
	Text     string `json:"text"`
	Type     string `json:"type"`
	Time     string `json:"time"`
	Lang     string `json:"lang,omitempty"`
}

type joinRequest struct {
	Name string `json:"name"`
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type healthResponse struct {
	Presence observability.PresenceStats `json:"presence"`
	Process  *observability.ProcessStats `json:"process,omitempty"`
}

// ChatServer exposes the chat service over HTTP.
type ChatServer struct {
	log          *slog.Logger
	chatService  services.IChatService
	monitoring   *observability.MonitoringManager
	processStats func() (observability.ProcessStats, error)
}

func NewChatServer(log *slog.Logger, chatService services.IChatService, monitoring *observability.MonitoringManager) *ChatServer {
	return &ChatServer{
		log:          log,
		chatService:  chatService,
		monitoring:   monitoring,
		processStats: observability.CurrentProcessStats,
	}
}

// Router builds the gin engine with every route of the relay.
func (s *ChatServer) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), cors())

	router.POST("/participants", s.Join)
	router.GET("/participants", s.ListParticipants)
	router.POST("/messages", s.Send)
	router.GET("/messages", s.ListMessages)
	router.GET("/messages/search", s.SearchMessages)
	router.POST("/status", s.Heartbeat)
	router.GET("/health", s.Health)
	return router
}

func (s *ChatServer) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Validation(err))
		return
	}
	if _, err := s.chatService.Join(c.Request.Context(), domain.JoinCommand{Name: req.Name}); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *ChatServer) ListParticipants(c *gin.Context) {
	participants, err := s.chatService.ListParticipants(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	responses := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		responses = append(responses, participantResponse{Name: p.Name, LastStatus: p.LastSeen.UnixMilli()})
	}
	c.JSON(http.StatusOK, responses)
}

func (s *ChatServer) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, errors.Validation(err))
		return
	}
	_, err := s.chatService.Send(c.Request.Context(), domain.SendMessageCommand{
		From: c.GetHeader(UserHeader),
		To:   req.To,
		Text: req.Text,
		Type: domain.MessageType(req.Type),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// ListMessages answers newest first. A missing or non-positive limit returns
// the whole visible set; a limit that is not an integer is rejected.
// Without a User header the caller is the empty viewer and sees only public
// messages and room-wide announcements.
func (s *ChatServer) ListMessages(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	messages, err := s.chatService.ListMessages(c.Request.Context(), domain.GetMessagesCommand{
		Viewer: c.GetHeader(UserHeader),
		Limit:  limit,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponses(messages))
}

func (s *ChatServer) SearchMessages(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	messages, err := s.chatService.SearchMessages(c.Request.Context(), domain.SearchMessagesCommand{
		Viewer: c.GetHeader(UserHeader),
		Query:  c.Query("q"),
		Limit:  max(lo.FromPtr(limit), 0),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toMessageResponses(messages))
}

func (s *ChatServer) Heartbeat(c *gin.Context) {
	if err := s.chatService.Heartbeat(c.Request.Context(), c.GetHeader(UserHeader)); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *ChatServer) Health(c *gin.Context) {
	response := healthResponse{Presence: s.monitoring.GetLatest()}
	if stats, err := s.processStats(); err != nil {
		s.log.Debug("Process stats unavailable", "error", err)
	} else {
		response.Process = &stats
	}
	c.JSON(http.StatusOK, response)
}

func (s *ChatServer) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func parseLimit(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.ErrInvalidLimit
	}
	return &limit, nil
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	responses := lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return messageResponse{
			ID:       m.ID.String(),
			Sequence: m.Sequence,
			From:     m.From,
			To:       m.To,
			Text:     m.Text,
			Type:     string(m.Type),
			Time:     m.Time,
			Lang:     m.Lang,
		}
	})
	if responses == nil {
		return []messageResponse{}
	}
	return responses
}

func (s *ChatServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

// cors lets any origin call the relay, browsers included.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, "+UserHeader)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
