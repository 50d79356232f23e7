package notifier

import (
	"fmt"
	"github.com/slack-go/slack"
	"log/slog"
	"sync"
)

// SlackNotifier posts notifications to Slack. If Channel is set, notifications go to that channel. Otherwise, they
// are posted to every channel the bot is a member of.
type SlackNotifier struct {
	Logger *slog.Logger
	SlackSender
	Channel string
	userID  string
	lock    sync.Mutex
}

type SlackSender interface {
	PostMessage(string, ...slack.MsgOption) (string, string, error)
	GetConversations(*slack.GetConversationsParameters) ([]slack.Channel, string, error)
	AuthTest() (*slack.AuthTestResponse, error)
}

var _ Notifier = &SlackNotifier{}

func (s *SlackNotifier) Notify(n Notification) {
	channels, err := s.getChannels()
	if err != nil {
		s.Logger.Error("notifier failed to retrieve channels", "err", err)
		return
	}
	color := "good"
	if n.Err != nil {
		color = "danger"
	}
	for _, channel := range channels {
		s.Logger.Debug("notifying on slack", "channel", channel)
		_, _, err = s.SlackSender.PostMessage(channel, slack.MsgOptionAttachments(slack.Attachment{
			Color: color,
			Title: n.Title(),
			Text:  n.Text(),
		}))
		if err != nil {
			s.Logger.Error("notifier failed to post message", "err", err)
		}
	}
}

func (s *SlackNotifier) getChannels() ([]string, error) {
	if s.Channel != "" {
		return []string{s.Channel}, nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.userID == "" {
		authResp, err := s.SlackSender.AuthTest()
		if err != nil {
			return nil, fmt.Errorf("AuthTest: %w", err)
		}
		s.userID = authResp.UserID
	}

	var joinedChannels []string
	var cursor string
	for {
		channels, nextCursor, err := s.SlackSender.GetConversations(&slack.GetConversationsParameters{Cursor: cursor, Limit: 100})
		if err != nil {
			return nil, err
		}
		for _, channel := range channels {
			if channel.IsMember && !channel.IsArchived {
				joinedChannels = append(joinedChannels, channel.ID)
			}
		}
		if cursor = nextCursor; cursor == "" {
			break
		}
	}
	return joinedChannels, nil
}
