// Package app wires every callable function to its dependencies.
package app

import (
	"github.com/redis/go-redis/v9"

	"crm-functions/internal/blob"
	"crm-functions/internal/common/callable"
	"crm-functions/internal/common/config"
	httpclient "crm-functions/internal/common/http"
	"crm-functions/internal/common/logger"
	"crm-functions/internal/common/salesforce"
	"crm-functions/internal/documents"
	"crm-functions/internal/notify"
	"crm-functions/internal/search"

	conversationopen "crm-functions/internal/functions/chat/conversation-open"
	conversationread "crm-functions/internal/functions/chat/conversation-read"
	conversationslist "crm-functions/internal/functions/chat/conversations-list"
	imageuploadurl "crm-functions/internal/functions/chat/image-upload-url"
	messagesend "crm-functions/internal/functions/chat/message-send"
	messageslist "crm-functions/internal/functions/chat/messages-list"
	messagessearch "crm-functions/internal/functions/chat/messages-search"

	attachmentdownload "crm-functions/internal/functions/crm/attachment-download"
	attachmentupload "crm-functions/internal/functions/crm/attachment-upload"
	attachmentuploadurl "crm-functions/internal/functions/crm/attachment-upload-url"
	opportunitieslist "crm-functions/internal/functions/crm/opportunities-list"
	proposalget "crm-functions/internal/functions/crm/proposal-get"
	proposalmeterscreate "crm-functions/internal/functions/crm/proposal-meters-create"
	sessionrefresh "crm-functions/internal/functions/crm/session-refresh"

	"crm-functions/internal/functions/maintenance/cleanup"
	notificationssend "crm-functions/internal/functions/notifications/send"

	profileget "crm-functions/internal/functions/users/profile-get"
	pushtokenregister "crm-functions/internal/functions/users/push-token-register"
	roleset "crm-functions/internal/functions/users/role-set"
)

// Dependencies are the shared clients handed to the functions. A zero value
// is enough to list descriptors and schemas.
type Dependencies struct {
	Config     *config.Config
	Store      *documents.Store
	Connector  *salesforce.Connector
	Redis      redis.Cmdable
	Blobs      *blob.Store
	Notifier   *notify.Notifier
	Index      *search.MessageIndex
	Downloader *httpclient.Client
	Logger     logger.Logger
}

// NewCleaner builds the retention sweep used by maintenance.cleanup and
// the scheduled command.
func NewCleaner(d Dependencies) *cleanup.Cleaner {
	return cleanup.NewCleaner(d.Store, d.Blobs, d.Index, d.Logger)
}

// Functions returns every function in registration order.
func Functions(d Dependencies) []callable.Function {
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	log := d.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	var index messagesend.Indexer
	if d.Index != nil {
		index = d.Index
	}

	return []callable.Function{
		// CRM
		opportunitieslist.NewHandler(opportunitieslist.HandlerOptions{Connector: d.Connector, Profiles: d.Store, Logger: log}),
		proposalget.NewHandler(proposalget.HandlerOptions{Connector: d.Connector, Profiles: d.Store, Logger: log}),
		proposalmeterscreate.NewHandler(proposalmeterscreate.HandlerOptions{
			AppConfig:  cfg,
			Connector:  d.Connector,
			Profiles:   d.Store,
			Downloader: d.Downloader,
			Redis:      d.Redis,
			Logger:     log,
		}),
		attachmentuploadurl.NewHandler(attachmentuploadurl.HandlerOptions{Blobs: d.Blobs, Logger: log}),
		attachmentupload.NewHandler(attachmentupload.HandlerOptions{
			AppConfig:     cfg,
			Connector:     d.Connector,
			Profiles:      d.Store,
			Conversations: d.Store,
			Blobs:         d.Blobs,
			Logger:        log,
		}),
		attachmentdownload.NewHandler(attachmentdownload.HandlerOptions{Connector: d.Connector, Profiles: d.Store, Blobs: d.Blobs, Logger: log}),
		sessionrefresh.NewHandler(sessionrefresh.HandlerOptions{Sessions: d.Connector, Profiles: d.Store, Logger: log}),

		// Users
		profileget.NewHandler(profileget.HandlerOptions{Store: d.Store, Logger: log}),
		roleset.NewHandler(roleset.HandlerOptions{Store: d.Store, Logger: log}),
		pushtokenregister.NewHandler(pushtokenregister.HandlerOptions{Store: d.Store, Endpoints: d.Notifier, Logger: log}),

		// Chat
		conversationopen.NewHandler(conversationopen.HandlerOptions{Store: d.Store, Logger: log}),
		conversationslist.NewHandler(conversationslist.HandlerOptions{Chat: cfg.Chat, Store: d.Store, Logger: log}),
		messagesend.NewHandler(messagesend.HandlerOptions{Chat: cfg.Chat, Store: d.Store, Index: index, Pusher: d.Notifier, Logger: log}),
		messageslist.NewHandler(messageslist.HandlerOptions{Chat: cfg.Chat, Store: d.Store, Images: d.Blobs, Logger: log}),
		conversationread.NewHandler(conversationread.HandlerOptions{Store: d.Store, Logger: log}),
		imageuploadurl.NewHandler(imageuploadurl.HandlerOptions{Store: d.Store, Blobs: d.Blobs, Logger: log}),
		messagessearch.NewHandler(messagessearch.HandlerOptions{Store: d.Store, Searcher: d.Index, Logger: log}),

		// Notifications and maintenance
		notificationssend.NewHandler(notificationssend.HandlerOptions{Store: d.Store, Notifier: d.Notifier, Logger: log}),
		cleanup.NewHandler(cleanup.HandlerOptions{Chat: cfg.Chat, Cleaner: NewCleaner(d), Logger: log}),
	}
}
