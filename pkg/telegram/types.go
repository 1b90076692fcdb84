package telegram

import "encoding/json"

// Response is the envelope of every Bot API reply.
type Response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // "private", "group", "supergroup" or "channel"
}

type Message struct {
	Chat Chat `json:"chat"`
}

type Update struct {
	UpdateID    int64    `json:"update_id"`
	Message     *Message `json:"message"`
	ChannelPost *Message `json:"channel_post"`
}

type ChatMember struct {
	User struct {
		ID int64 `json:"id"`
	} `json:"user"`
	Status string `json:"status"`
}
