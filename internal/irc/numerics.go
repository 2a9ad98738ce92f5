package irc

// Numeric replies the session reacts to
const (
	RplWelcome       = 1
	RplISupport      = 5
	RplEndOfWho      = 315
	RplChannelModeIs = 324
	RplCreationTime  = 329
	RplTopic         = 332
	RplTopicWhoTime  = 333
	RplWhoReply      = 352
	RplNamReply      = 353
	RplEndOfMotd     = 376
	ErrNoMotd        = 422
	ErrNicknameInUse = 433
)
