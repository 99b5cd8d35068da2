package domain

type JoinCommand struct {
	Name string `validate:"required"`
}

type SendMessageCommand struct {
	From string      `validate:"required"`
	To   string      `validate:"required"`
	Text string      `validate:"required"`
	Type MessageType `validate:"required,oneof=message private_message"`
}

// GetMessagesCommand lists what Viewer may see, newest first.
// A nil or non-positive Limit returns the whole visible set.
type GetMessagesCommand struct {
	Viewer string
	Limit  *int
}

type SearchMessagesCommand struct {
	Viewer string
	Query  string `validate:"required"`
	Limit  int    `validate:"gte=0"`
}
