package discord

import "context"

type FileMessage struct {
	ChannelID   string
	Content     string
	Filename    string
	ContentType string
	FileBody    []byte
}

// Client delivers evaluation reports to a Discord channel over REST only.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	SendChannelMessage(channelID, content string) error
	SendChannelMessageWithFile(msg FileMessage) error
	GetBotUserID() (string, error)
	ResolveChannelName(channelID string) string
}
