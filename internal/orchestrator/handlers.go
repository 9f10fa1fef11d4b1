package orchestrator

import (
	"context"
	"log"

	"github.com/relaychat/sync-engine/internal/cache"
	"github.com/relaychat/sync-engine/internal/events"
)

// attachHandlers subscribes every category stream and applies each event
// to the backing stores. Handlers are write-through: they never block the
// pipelines on anything but the store round-trip, and a store error is
// logged and dropped, never propagated upstream.
func (s *Session) attachHandlers() {
	handle(s, s.streams.Posts, s.handlePostBatch)
	handle(s, s.streams.Channels, s.handleChannelBatch)
	handle(s, s.streams.Teams, s.handleTeam)
	handle(s, s.streams.Users, s.handleUser)
	handle(s, s.streams.Reactions, s.handleReaction)
	handle(s, s.streams.Threads, s.handleThread)
	handle(s, s.streams.Preferences, s.handlePreferences)
	handle(s, s.streams.Typing, s.handleTyping)
	handle(s, s.streams.Sidebar, s.handleSidebar)
	handle(s, s.streams.Drafts, s.handleDraft)
	handle(s, s.streams.System, s.handleSystem)
	handle(s, s.streams.Dialogs, s.handleDialog)
	handle(s, s.streams.Bookmarks, s.handleBookmark)
	handle(s, s.streams.Groups, s.handleGroup)
	handle(s, s.streams.Roles, s.handleRole)
	handle(s, s.streams.Cloud, s.handleCloud)
	handle(s, s.streams.ScheduledPosts, s.handleScheduledPost)
}

func (s *Session) handlePostBatch(ctx context.Context, batch []events.PostEvent) {
	for _, ev := range batch {
		switch ev.Type {
		case events.PostCreated:
			if ev.Post == nil {
				continue
			}
			if err := s.deps.Cache.Set(ctx, cache.DomainPosts, ev.Post.ID, ev.Post); err != nil {
				log.Printf("orchestrator: cache post %s: %v", ev.Post.ID, err)
				continue
			}
			if err := s.deps.Cache.PrependToList(ctx, cache.DomainPosts, ev.ChannelID, ev.Post.ID); err != nil {
				log.Printf("orchestrator: order post %s: %v", ev.Post.ID, err)
			}

		case events.PostEdited:
			if ev.Post == nil {
				continue
			}
			// An edit only refreshes an entry that is already cached. A
			// miss means the post was never seen or was swept; writing it
			// now would resurrect it outside its channel ordering.
			exists, err := s.deps.Cache.Exists(ctx, cache.DomainPosts, ev.Post.ID)
			if err != nil {
				log.Printf("orchestrator: check post %s: %v", ev.Post.ID, err)
				continue
			}
			if !exists {
				continue
			}
			if err := s.deps.Cache.Set(ctx, cache.DomainPosts, ev.Post.ID, ev.Post); err != nil {
				log.Printf("orchestrator: cache post %s: %v", ev.Post.ID, err)
			}

		case events.PostDeleted:
			if ev.PostID == "" {
				continue
			}
			if ev.ChannelID != "" {
				if err := s.deps.Cache.RemoveFromList(ctx, cache.DomainPosts, ev.ChannelID, ev.PostID); err != nil {
					log.Printf("orchestrator: unorder post %s: %v", ev.PostID, err)
				}
			}
			if err := s.deps.Cache.Delete(ctx, cache.DomainPosts, ev.PostID); err != nil {
				log.Printf("orchestrator: delete post %s: %v", ev.PostID, err)
			}
		}
	}
}

func (s *Session) handleChannelBatch(ctx context.Context, batch []events.ChannelEvent) {
	for _, ev := range batch {
		switch ev.Type {
		case events.ChannelCreated, events.ChannelUpdated, events.ChannelConverted:
			if ev.Channel == nil {
				continue
			}
			if err := s.deps.Cache.Set(ctx, cache.DomainChannels, ev.Channel.ID, ev.Channel); err != nil {
				log.Printf("orchestrator: cache channel %s: %v", ev.Channel.ID, err)
				continue
			}
			if ev.Type == events.ChannelCreated && ev.TeamID != "" {
				if err := s.deps.Cache.PrependToList(ctx, cache.DomainChannels, ev.TeamID, ev.Channel.ID); err != nil {
					log.Printf("orchestrator: order channel %s: %v", ev.Channel.ID, err)
				}
			}

		case events.ChannelDeleted:
			if ev.ChannelID == "" {
				continue
			}
			if ev.TeamID != "" {
				if err := s.deps.Cache.RemoveFromList(ctx, cache.DomainChannels, ev.TeamID, ev.ChannelID); err != nil {
					log.Printf("orchestrator: unorder channel %s: %v", ev.ChannelID, err)
				}
			}
			if err := s.deps.Cache.Delete(ctx, cache.DomainChannels, ev.ChannelID); err != nil {
				log.Printf("orchestrator: delete channel %s: %v", ev.ChannelID, err)
			}
		}
	}
}

func (s *Session) handleTeam(ctx context.Context, ev events.TeamEvent) {
	switch ev.Type {
	case events.TeamUpdated, events.TeamJoined:
		if ev.Team == nil {
			return
		}
		if err := s.deps.Cache.Set(ctx, cache.DomainTeams, ev.Team.ID, ev.Team); err != nil {
			log.Printf("orchestrator: cache team %s: %v", ev.Team.ID, err)
		}
	case events.TeamDeleted:
		if ev.TeamID == "" {
			return
		}
		if err := s.deps.Cache.Delete(ctx, cache.DomainTeams, ev.TeamID); err != nil {
			log.Printf("orchestrator: delete team %s: %v", ev.TeamID, err)
		}
	case events.TeamLeft:
		// Leaving a team only matters when it is this session's user.
		if ev.UserID == s.sctx.CurrentUserID && ev.TeamID != "" {
			if err := s.deps.Cache.Delete(ctx, cache.DomainTeams, ev.TeamID); err != nil {
				log.Printf("orchestrator: delete team %s: %v", ev.TeamID, err)
			}
		}
	}
}

func (s *Session) handleUser(ctx context.Context, ev events.UserEvent) {
	if ev.Type == events.UserStatus {
		if ev.UserID == "" {
			return
		}
		if err := s.deps.Presence.SetStatus(ctx, ev.UserID, ev.Status); err != nil {
			log.Printf("orchestrator: presence %s: %v", ev.UserID, err)
		}
		return
	}
	if ev.User != nil {
		if err := s.deps.Cache.Set(ctx, cache.DomainUsers, ev.User.ID, ev.User); err != nil {
			log.Printf("orchestrator: cache user %s: %v", ev.User.ID, err)
		}
	}
}

func (s *Session) handleReaction(ctx context.Context, ev events.ReactionEvent) {
	if ev.Reaction == nil || ev.PostID == "" {
		return
	}

	// Patch the cached post in place. A miss is fine: the post will carry
	// its reactions whenever it next gets cached whole.
	var post events.Post
	ok, err := s.deps.Cache.Get(ctx, cache.DomainPosts, ev.PostID, &post)
	if err != nil {
		log.Printf("orchestrator: load post %s for reaction: %v", ev.PostID, err)
		return
	}
	if !ok {
		return
	}

	switch ev.Type {
	case events.ReactionAdded:
		for _, r := range post.Reactions {
			if r.UserID == ev.Reaction.UserID && r.EmojiName == ev.Reaction.EmojiName {
				return
			}
		}
		post.Reactions = append(post.Reactions, *ev.Reaction)
	case events.ReactionRemoved:
		kept := post.Reactions[:0]
		for _, r := range post.Reactions {
			if r.UserID == ev.Reaction.UserID && r.EmojiName == ev.Reaction.EmojiName {
				continue
			}
			kept = append(kept, r)
		}
		post.Reactions = kept
	}

	if err := s.deps.Cache.Set(ctx, cache.DomainPosts, ev.PostID, post); err != nil {
		log.Printf("orchestrator: cache post %s after reaction: %v", ev.PostID, err)
	}
}

func (s *Session) handleThread(ctx context.Context, ev events.ThreadEvent) {
	if ev.Thread == nil {
		return
	}
	if err := s.deps.Cache.Set(ctx, cache.DomainThreads, ev.Thread.ID, ev.Thread); err != nil {
		log.Printf("orchestrator: cache thread %s: %v", ev.Thread.ID, err)
	}
}

func (s *Session) handlePreferences(ctx context.Context, ev events.PreferenceEvent) {
	for _, p := range ev.Preferences {
		id := p.Category + ":" + p.Name
		switch ev.Type {
		case events.PreferencesChanged:
			if err := s.deps.Cache.Set(ctx, cache.DomainPreferences, id, p); err != nil {
				log.Printf("orchestrator: cache preference %s: %v", id, err)
			}
		case events.PreferencesDeleted:
			if err := s.deps.Cache.Delete(ctx, cache.DomainPreferences, id); err != nil {
				log.Printf("orchestrator: delete preference %s: %v", id, err)
			}
		}
	}
}

func (s *Session) handleTyping(ctx context.Context, ev events.TypingEvent) {
	var err error
	if ev.IsTyping {
		err = s.deps.Typing.SetTyping(ctx, ev.ChannelID, ev.UserID, ev.ThreadID)
	} else {
		err = s.deps.Typing.ClearTyping(ctx, ev.ChannelID, ev.UserID, ev.ThreadID)
	}
	if err != nil {
		log.Printf("orchestrator: typing %s/%s: %v", ev.ChannelID, ev.UserID, err)
	}
}

func (s *Session) handleSidebar(ctx context.Context, ev events.SidebarEvent) {
	switch ev.Type {
	case events.SidebarCategoryCreated, events.SidebarCategoryUpdated:
		if ev.Category == nil {
			return
		}
		if err := s.deps.Cache.Set(ctx, cache.DomainSidebar, ev.Category.ID, ev.Category); err != nil {
			log.Printf("orchestrator: cache sidebar category %s: %v", ev.Category.ID, err)
		}
	case events.SidebarCategoryDeleted:
		if ev.CategoryID == "" {
			return
		}
		if err := s.deps.Cache.Delete(ctx, cache.DomainSidebar, ev.CategoryID); err != nil {
			log.Printf("orchestrator: delete sidebar category %s: %v", ev.CategoryID, err)
		}
	case events.SidebarCategoryOrderUpdated:
		if len(ev.Order) == 0 {
			return
		}
		if err := s.deps.Cache.Set(ctx, cache.DomainSidebar, "order:"+ev.TeamID, ev.Order); err != nil {
			log.Printf("orchestrator: cache sidebar order: %v", err)
		}
	}
}

func (s *Session) handleDraft(ctx context.Context, ev events.DraftEvent) {
	switch ev.Type {
	case events.DraftCreated, events.DraftUpdated:
		if ev.Draft == nil {
			return
		}
		if err := s.deps.Drafts.Set(ctx, ev.ChannelID, ev.RootID, ev.Draft); err != nil {
			log.Printf("orchestrator: draft %s/%s: %v", ev.ChannelID, ev.RootID, err)
		}
	case events.DraftDeleted:
		if err := s.deps.Drafts.Delete(ctx, ev.ChannelID, ev.RootID); err != nil {
			log.Printf("orchestrator: delete draft %s/%s: %v", ev.ChannelID, ev.RootID, err)
		}
	}
}

func (s *Session) handleBookmark(ctx context.Context, ev events.BookmarkEvent) {
	switch ev.Type {
	case events.BookmarkCreated, events.BookmarkUpdated:
		if ev.Bookmark == nil {
			return
		}
		if err := s.deps.Cache.Set(ctx, cache.DomainBookmarks, ev.Bookmark.ID, ev.Bookmark); err != nil {
			log.Printf("orchestrator: cache bookmark %s: %v", ev.Bookmark.ID, err)
		}
	case events.BookmarkSorted:
		// A sort event re-orders the channel's whole bookmark set: upsert
		// every bookmark it carries and record the ordering per channel.
		if len(ev.Bookmarks) == 0 || ev.ChannelID == "" {
			return
		}
		order := make([]string, 0, len(ev.Bookmarks))
		for i := range ev.Bookmarks {
			b := &ev.Bookmarks[i]
			order = append(order, b.ID)
			if err := s.deps.Cache.Set(ctx, cache.DomainBookmarks, b.ID, b); err != nil {
				log.Printf("orchestrator: cache bookmark %s: %v", b.ID, err)
			}
		}
		if err := s.deps.Cache.Set(ctx, cache.DomainBookmarks, "order:"+ev.ChannelID, order); err != nil {
			log.Printf("orchestrator: cache bookmark order: %v", err)
		}
	case events.BookmarkDeleted:
		if ev.Bookmark == nil || ev.Bookmark.ID == "" {
			return
		}
		if err := s.deps.Cache.Delete(ctx, cache.DomainBookmarks, ev.Bookmark.ID); err != nil {
			log.Printf("orchestrator: delete bookmark %s: %v", ev.Bookmark.ID, err)
		}
	}
}

func (s *Session) handleGroup(ctx context.Context, ev events.GroupEvent) {
	if ev.Type == events.GroupReceived && ev.Group != nil {
		if err := s.deps.Cache.Set(ctx, cache.DomainGroups, ev.Group.ID, ev.Group); err != nil {
			log.Printf("orchestrator: cache group %s: %v", ev.Group.ID, err)
		}
	}
}

func (s *Session) handleRole(ctx context.Context, ev events.RoleEvent) {
	if ev.Role == nil {
		return
	}
	if err := s.deps.Cache.Set(ctx, cache.DomainRoles, ev.Role.ID, ev.Role); err != nil {
		log.Printf("orchestrator: cache role %s: %v", ev.Role.ID, err)
	}
}

// System, dialog and cloud events carry nothing the stores persist; the
// session still consumes them so the streams have a subscriber and the
// notifications show up in the log.
func (s *Session) handleSystem(ctx context.Context, ev events.SystemEvent) {
	log.Printf("orchestrator: system event %s", ev.Type)
}

func (s *Session) handleDialog(ctx context.Context, ev events.DialogEvent) {
	log.Printf("orchestrator: dialog requested trigger=%s", ev.TriggerID)
}

func (s *Session) handleCloud(ctx context.Context, ev events.CloudEvent) {
	log.Printf("orchestrator: cloud event %s", ev.Type)
}

func (s *Session) handleScheduledPost(ctx context.Context, ev events.ScheduledPostEvent) {
	switch ev.Type {
	case events.ScheduledPostCreated, events.ScheduledPostUpdated:
		if ev.Post == nil {
			return
		}
		if err := s.deps.Cache.Set(ctx, cache.DomainScheduledPosts, ev.Post.ID, ev.Post); err != nil {
			log.Printf("orchestrator: cache scheduled post %s: %v", ev.Post.ID, err)
		}
	case events.ScheduledPostDeleted:
		if ev.Post == nil || ev.Post.ID == "" {
			return
		}
		if err := s.deps.Cache.Delete(ctx, cache.DomainScheduledPosts, ev.Post.ID); err != nil {
			log.Printf("orchestrator: delete scheduled post %s: %v", ev.Post.ID, err)
		}
	}
}
