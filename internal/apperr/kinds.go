package apperr

type Kind string

const (
	KindUnknown           Kind = "unknown"
	KindAlreadyActivated  Kind = "already_activated"
	KindCodeCollision     Kind = "code_collision"
	KindNotActivated      Kind = "not_activated"
	KindBanned            Kind = "banned"
	KindUnresolvableLink  Kind = "unresolvable_link"
	KindFetchFailed       Kind = "fetch_failed"
	KindCompressionFailed Kind = "compression_failed"
	KindPersistence       Kind = "persistence"
	KindAuthExpired       Kind = "auth_expired"
)

var userMessages = map[Kind]string{
	KindAlreadyActivated:  "✅ Your account is already activated.",
	KindCodeCollision:     "⚠️ Activation code conflict. Please request a new code with /start.",
	KindNotActivated:      "🔒 Your account is not activated yet. Use /start and press \"Activate\" to link your Instagram account.",
	KindBanned:            "🚫 You are banned from using this bot.",
	KindUnresolvableLink:  "❌ This doesn't look like an Instagram post, reel or video link.",
	KindFetchFailed:       "❌ Failed to download the video. It may be private, removed or temporarily unavailable.",
	KindCompressionFailed: "❌ The video is too large and could not be compressed.",
	KindPersistence:       "⚠️ Something went wrong on our side, please try again later.",
	KindAuthExpired:       "⚠️ The downloader is reconnecting to Instagram, please try again in a minute.",
}

const genericMessage = "⚠️ Something went wrong, please try again later."
