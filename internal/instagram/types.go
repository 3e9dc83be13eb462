package instagram

import (
	"fmt"
	"time"
)

type Thread struct {
	ID    string
	Users []ThreadUser
	Items []Item
}

type ThreadUser struct {
	PK       int64
	Username string
}

// Item is a single direct message. Text holds either the typed text or, for
// shared reels and posts, the canonical link of the shared media.
type Item struct {
	ID       string
	SenderPK int64
	Text     string
	SentAt   time.Time
}

// Username returns the username of a thread participant.
func (t *Thread) Username(pk int64) (string, bool) {
	for _, u := range t.Users {
		if u.PK == pk {
			return u.Username, true
		}
	}
	return "", false
}

type inboxResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Inbox   struct {
		Threads []threadPayload `json:"threads"`
	} `json:"inbox"`
}

type threadPayload struct {
	ThreadID string `json:"thread_id"`
	Users    []struct {
		PK       int64  `json:"pk"`
		Username string `json:"username"`
	} `json:"users"`
	Items []itemPayload `json:"items"`
}

type itemPayload struct {
	ItemID    string `json:"item_id"`
	UserID    int64  `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
	ItemType  string `json:"item_type"`
	Text      string `json:"text"`
	Link      *struct {
		Text string `json:"text"`
	} `json:"link"`
	Clip *struct {
		Clip mediaCode `json:"clip"`
	} `json:"clip"`
	MediaShare *mediaCode `json:"media_share"`
}

type mediaCode struct {
	Code string `json:"code"`
}

func (p *threadPayload) toThread() Thread {
	t := Thread{ID: p.ThreadID}
	for _, u := range p.Users {
		t.Users = append(t.Users, ThreadUser{PK: u.PK, Username: u.Username})
	}
	for _, it := range p.Items {
		t.Items = append(t.Items, Item{
			ID:       it.ItemID,
			SenderPK: it.UserID,
			Text:     it.text(),
			SentAt:   time.UnixMicro(it.Timestamp),
		})
	}
	return t
}

func (p *itemPayload) text() string {
	switch p.ItemType {
	case "link":
		if p.Link != nil {
			return p.Link.Text
		}
	case "clip":
		if p.Clip != nil && p.Clip.Clip.Code != "" {
			return fmt.Sprintf("https://www.instagram.com/reel/%s/", p.Clip.Clip.Code)
		}
	case "media_share":
		if p.MediaShare != nil && p.MediaShare.Code != "" {
			return fmt.Sprintf("https://www.instagram.com/p/%s/", p.MediaShare.Code)
		}
	}
	return p.Text
}

type userResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	User    struct {
		PK       int64  `json:"pk"`
		Username string `json:"username"`
	} `json:"user"`
	LoggedInUser struct {
		PK       int64  `json:"pk"`
		Username string `json:"username"`
	} `json:"logged_in_user"`
}

type mediaInfoResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Items   []mediaItem `json:"items"`
}

type mediaItem struct {
	VideoVersions []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"video_versions"`
	CarouselMedia []mediaItem `json:"carousel_media"`
}

// videoURL returns the largest rendition of the first video in the item.
func (m *mediaItem) videoURL() (string, bool) {
	best, bestArea := "", -1
	for _, v := range m.VideoVersions {
		if area := v.Width * v.Height; area > bestArea {
			best, bestArea = v.URL, area
		}
	}
	if best != "" {
		return best, true
	}
	for i := range m.CarouselMedia {
		if u, ok := m.CarouselMedia[i].videoURL(); ok {
			return u, true
		}
	}
	return "", false
}
