package dispatch

// Signal names emitted by the session
const (
	SignalConnect    = "connect"
	SignalDisconnect = "disconnect"
	SignalIdle       = "idle"
	SignalPing       = "ping"
	SignalRaw        = "raw"

	SignalPublicMessage  = "public_message"
	SignalPrivateMessage = "private_message"
	SignalPublicCommand  = "public_command"
	SignalPrivateCommand = "private_command"
	SignalPublicAction   = "public_action"
	SignalPrivateAction  = "private_action"

	SignalPublicCTCP          = "public_ctcp"
	SignalPrivateCTCP         = "private_ctcp"
	SignalPublicCTCPResponse  = "public_ctcp_response"
	SignalPrivateCTCPResponse = "private_ctcp_response"

	SignalPublicNotice  = "public_notice"
	SignalPrivateNotice = "private_notice"
	SignalNotice        = "notice"

	SignalChannelJoin     = "channel_join"
	SignalChannelJoinSync = "channel_join_sync"
	SignalChannelPart     = "channel_part"
	SignalUserQuit        = "user_quit"
	SignalNickChange      = "nick_change"
	SignalTopicChange     = "topic_change"
	SignalUserKicked      = "user_kicked"
	SignalInvite          = "invite"

	SignalScriptLoad   = "script_load"
	SignalScriptUnload = "script_unload"
)
